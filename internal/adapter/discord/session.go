// Package discord implements monitored honeypot sessions on discordgo.
package discord

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"

	"honeypot/internal/domain"
)

// closeAuthenticationFailed is the gateway close code for a rejected token.
const closeAuthenticationFailed = 4004

// Option configures a Session.
type Option func(*Session)

// WithIntents overrides the gateway intents sent on identify.
func WithIntents(intents discordgo.Intent) Option {
	return func(s *Session) { s.dg.Identify.Intents = intents }
}

// WithHTTPClient overrides the REST client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.dg.Client = c }
}

// Session is one honeypot account connected to the gateway. It implements
// domain.MonitoredSession.
type Session struct {
	label  string
	dg     *discordgo.Session
	logger *slog.Logger

	mu    sync.RWMutex
	state domain.SessionState
	self  domain.User
	obs   domain.Observers
	ctx   context.Context

	cancel context.CancelFunc
	remove []func()

	// dialMu orders the gateway dial in Open against the disconnect in Close.
	dialMu sync.Mutex
}

// NewSession creates an unopened session authenticating with token.
func NewSession(label, token string, logger *slog.Logger, opts ...Option) (*Session, error) {
	dg, err := discordgo.New(token)
	if err != nil {
		return nil, domain.NewDomainError("discord.NewSession", domain.ErrInvalidInput, err.Error())
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	s := newSession(label, dg, logger)
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// NewFactory returns a constructor suitable for the session manager. A token
// discordgo refuses yields a session that fails on Open.
func NewFactory(logger *slog.Logger, opts ...Option) func(label, token string) domain.MonitoredSession {
	return func(label, token string) domain.MonitoredSession {
		s, err := NewSession(label, token, logger, opts...)
		if err != nil {
			return &brokenSession{label: label, err: err}
		}
		return s
	}
}

func newSession(label string, dg *discordgo.Session, logger *slog.Logger) *Session {
	return &Session{
		label:  label,
		dg:     dg,
		logger: logger.With("session", label),
		state:  domain.SessionConnecting,
		ctx:    context.Background(),
	}
}

func (s *Session) Label() string { return s.label }

func (s *Session) Self() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.self
}

func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st domain.SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Open registers the observers and connects to the gateway. It returns once
// the gateway accepted or rejected the credential; readiness is reported
// through obs.Ready. Opening a closed session does nothing.
func (s *Session) Open(ctx context.Context, obs domain.Observers) error {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	s.mu.Lock()
	if s.state == domain.SessionTerminated {
		s.mu.Unlock()
		s.logger.Debug("session closed before open, not connecting")
		return nil
	}
	s.obs = obs
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.remove = append(s.remove,
		s.dg.AddHandler(s.onReady),
		s.dg.AddHandler(s.onResumed),
		s.dg.AddHandler(s.onMessageCreate),
		s.dg.AddHandler(s.onEvent),
		s.dg.AddHandler(s.onDisconnect),
	)
	s.mu.Unlock()

	if err := s.dg.Open(); err != nil {
		s.setState(domain.SessionTerminated)
		if websocket.IsCloseError(err, closeAuthenticationFailed) {
			return domain.NewDomainError("discord.Open", domain.ErrAuthInvalid, err.Error())
		}
		return domain.NewDomainError("discord.Open", domain.ErrProviderError, err.Error())
	}
	return nil
}

// Close disconnects from the gateway. The Closed observer runs once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == domain.SessionTerminated && s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	wasOpen := s.cancel != nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = domain.SessionTerminated
	closed := s.obs.Closed
	remove := s.remove
	s.remove = nil
	s.mu.Unlock()

	for _, rm := range remove {
		rm()
	}

	// Waits for an in-flight dial so the connection it opens is torn down.
	s.dialMu.Lock()
	err := s.dg.Close()
	s.dialMu.Unlock()

	if wasOpen && closed != nil {
		closed(s, err)
	}
	return err
}

func (s *Session) observers() (context.Context, domain.Observers) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx, s.obs
}

// markReady moves a live session to ready. A terminated session stays
// terminated.
func (s *Session) markReady(self *discordgo.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionTerminated {
		return false
	}
	if self != nil {
		s.self = toUser(self)
	}
	s.state = domain.SessionReady
	return true
}

func (s *Session) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if !s.markReady(r.User) {
		return
	}
	ctx, obs := s.observers()
	if obs.Ready != nil {
		obs.Ready(ctx, s)
	}
}

func (s *Session) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	if s.markReady(nil) {
		s.logger.Info("gateway session resumed")
	}
}

func (s *Session) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	s.mu.Lock()
	if s.state == domain.SessionTerminated {
		s.mu.Unlock()
		return
	}
	s.state = domain.SessionConnecting
	s.mu.Unlock()
	s.logger.Warn("gateway disconnected, waiting for reconnect")
}

func (s *Session) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil {
		return
	}
	ctx, obs := s.observers()
	if obs.Message == nil {
		return
	}
	direct := m.GuildID == "" && s.isDirect(ctx, m.ChannelID)
	obs.Message(ctx, s, messageEvent(m.Message, direct, receivedAt(m.Timestamp)))
}

func (s *Session) onEvent(_ *discordgo.Session, e *discordgo.Event) {
	ev, ok := decodeRelationship(e)
	if !ok {
		return
	}
	ctx, obs := s.observers()
	if obs.Relationship == nil {
		return
	}
	ev.ReceivedAt = time.Now()
	obs.Relationship(ctx, s, ev)
}

// isDirect reports whether channelID is a one-to-one conversation. A lookup
// failure is treated as not direct.
func (s *Session) isDirect(ctx context.Context, channelID string) bool {
	ch, err := s.channel(ctx, channelID)
	if err != nil {
		s.logger.Debug("channel lookup failed", "channel", channelID, "error", err)
		return false
	}
	return ch.Type == discordgo.ChannelTypeDM
}

// channel resolves from the state cache first, then from the REST API.
func (s *Session) channel(ctx context.Context, id string) (*discordgo.Channel, error) {
	if s.dg.State != nil {
		if ch, err := s.dg.State.Channel(id); err == nil {
			return ch, nil
		}
	}
	return s.dg.Channel(id, discordgo.WithContext(ctx))
}

// FetchUser resolves a user by id through the REST API.
func (s *Session) FetchUser(ctx context.Context, id string) (domain.User, error) {
	u, err := s.dg.User(id, discordgo.WithContext(ctx))
	if err != nil {
		return domain.User{}, classifyRESTError("discord.FetchUser", err, discordgo.ErrCodeUnknownUser, domain.ErrUserUnknown)
	}
	return toUser(u), nil
}

// FetchChannel resolves a notify channel. An "Unknown Channel" response maps
// to domain.ErrChannelUnknown.
func (s *Session) FetchChannel(ctx context.Context, id string) (domain.ChannelInfo, error) {
	ch, err := s.channel(ctx, id)
	if err != nil {
		return domain.ChannelInfo{}, classifyRESTError("discord.FetchChannel", err, discordgo.ErrCodeUnknownChannel, domain.ErrChannelUnknown)
	}
	return domain.ChannelInfo{ID: ch.ID, Name: ch.Name, Text: isTextChannel(ch.Type)}, nil
}

// SendText posts content to channelID.
func (s *Session) SendText(ctx context.Context, channelID, content string) error {
	_, err := s.dg.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return err
}

// classifyRESTError maps a REST error carrying unknownCode to sentinel and
// anything else to domain.ErrProviderError.
func classifyRESTError(op string, err error, unknownCode int, sentinel error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil && rest.Message.Code == unknownCode {
		return domain.NewDomainError(op, sentinel, rest.Message.Message)
	}
	return domain.NewDomainError(op, domain.ErrProviderError, err.Error())
}

// brokenSession stands in for a session whose client could not be built.
type brokenSession struct {
	label string
	err   error
}

func (b *brokenSession) Label() string                                { return b.label }
func (b *brokenSession) Self() domain.User                            { return domain.User{} }
func (b *brokenSession) State() domain.SessionState                   { return domain.SessionTerminated }
func (b *brokenSession) Open(context.Context, domain.Observers) error { return b.err }
func (b *brokenSession) Close() error                                 { return nil }
func (b *brokenSession) FetchUser(context.Context, string) (domain.User, error) {
	return domain.User{}, b.err
}
func (b *brokenSession) FetchChannel(context.Context, string) (domain.ChannelInfo, error) {
	return domain.ChannelInfo{}, b.err
}
func (b *brokenSession) SendText(context.Context, string, string) error { return b.err }

var (
	_ domain.MonitoredSession = (*Session)(nil)
	_ domain.MonitoredSession = (*brokenSession)(nil)
)
