package domain

import "context"

// SessionState is the lifecycle state of a monitored session.
type SessionState string

const (
	SessionConnecting SessionState = "connecting"
	SessionReady      SessionState = "ready"
	SessionTerminated SessionState = "terminated"
)

// ChannelInfo describes a destination channel as seen through a session.
type ChannelInfo struct {
	ID   string
	Name string
	// Text reports whether messages can be sent to the channel.
	Text bool
}

// Session is one authenticated connection to the chat platform.
type Session interface {
	// Label identifies the session in logs. It never contains the credential.
	Label() string
	// Self returns the honeypot identity. It is zero until the session is ready.
	Self() User
	State() SessionState
	FetchUser(ctx context.Context, id string) (User, error)
	FetchChannel(ctx context.Context, id string) (ChannelInfo, error)
	SendText(ctx context.Context, channelID, content string) error
}

// InboundHandler is invoked by a session for every observed event.
type InboundHandler func(ctx context.Context, sess Session, ev InboundEvent)

// Observers is the set of callbacks attached to every monitored session.
type Observers struct {
	Ready        func(ctx context.Context, sess Session)
	Message      InboundHandler
	Relationship InboundHandler
	// Closed is called once when the session terminates; err is nil on a clean close.
	Closed func(sess Session, err error)
}

// MonitoredSession is a Session that can be connected with a set of observers.
type MonitoredSession interface {
	Session
	// Open registers the observers and authenticates. It returns once the
	// connection attempt has finished.
	Open(ctx context.Context, obs Observers) error
	Close() error
}
