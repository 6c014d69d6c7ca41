package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxIncludeDepth bounds how many files deep an include chain may go.
const maxIncludeDepth = 10

// includeLoader merges the files named by "includes:" into a Config. Every
// included file must live under the main config's directory, and a file that
// carries honeypot.tokens must be readable by its owner only, so account
// tokens can sit apart from a world-readable main config.
type includeLoader struct {
	root string
	seen map[string]bool
}

// mergeIncludes overlays the includes of the config at mainPath onto cfg.
// Includes are merged in listed order; a file's own settings win over the
// files it includes.
func mergeIncludes(cfg *Config, mainPath string) error {
	l := &includeLoader{
		root: filepath.Dir(mainPath),
		seen: map[string]bool{mainPath: true},
	}
	patterns := cfg.Includes
	cfg.Includes = nil
	return l.expand(cfg, patterns, l.root, 1)
}

func (l *includeLoader) expand(cfg *Config, patterns []string, dir string, depth int) error {
	for _, pattern := range patterns {
		files, err := l.match(pattern, dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			if depth > maxIncludeDepth {
				return fmt.Errorf("include %q: max depth %d exceeded", f, maxIncludeDepth)
			}
			if l.seen[f] {
				return fmt.Errorf("include %q: circular include", f)
			}
			l.seen[f] = true
			if err := l.merge(cfg, f, depth); err != nil {
				return err
			}
		}
	}
	return nil
}

// match resolves pattern against dir. A literal path that does not exist is
// returned as is so the read reports it; a glob matching nothing is skipped.
func (l *includeLoader) match(pattern, dir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(dir, pattern)
	}
	pattern, err := filepath.Abs(pattern)
	if err != nil {
		return nil, fmt.Errorf("include %q: %w", pattern, err)
	}

	rel, err := filepath.Rel(l.root, pattern)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("include %q escapes config directory %s", pattern, l.root)
	}

	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("include %q: %w", pattern, err)
	}
	if len(files) == 0 && !strings.ContainsAny(pattern, "*?[") {
		files = []string{pattern}
	}
	return files, nil
}

// includedFile is the part of an included file read before it is merged.
type includedFile struct {
	Includes []string `yaml:"includes"`
	Honeypot struct {
		Tokens []string `yaml:"tokens"`
	} `yaml:"honeypot"`
}

func (l *includeLoader) merge(cfg *Config, path string, depth int) error {
	if err := validatePermissions(path); err != nil {
		return fmt.Errorf("include: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("include %q: %w", path, err)
	}

	var head includedFile
	if err := yaml.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("include %q: parse: %w", path, err)
	}
	if head.Honeypot.Tokens != nil {
		if err := tokenFilePermissions(path); err != nil {
			return err
		}
	}

	if err := l.expand(cfg, head.Includes, filepath.Dir(path), depth+1); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("include %q: parse: %w", path, err)
	}
	cfg.Includes = nil
	return nil
}

// tokenFilePermissions rejects a token-bearing include that anyone but its
// owner can read.
func tokenFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("include %q: %w", path, err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return fmt.Errorf("include %q sets honeypot.tokens with insecure permissions %o (want 0600)", path, perm)
	}
	return nil
}
