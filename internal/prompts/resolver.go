package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned for unregistered prompt keys.
var ErrNotFound = errors.New("prompt not found")

// Resolver resolves prompts. Resolution order: override file > embedded default.
type Resolver struct {
	embedded  map[string]EmbeddedPrompt
	overrides map[string]string
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewResolver creates an empty resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		embedded:  make(map[string]EmbeddedPrompt),
		overrides: make(map[string]string),
		logger:    logger,
	}
}

// Register registers an embedded prompt.
// This should be called during initialization by each phase package.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}
	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}

	r.embedded[prompt.Key] = prompt
	r.logger.Debug("registered embedded prompt", "key", prompt.Key, "vars", prompt.Variables)
}

// LoadOverrides replaces the current overrides with the .tmpl files in dir.
// A missing directory clears all overrides. Files whose name does not match a
// registered key are ignored with a warning.
func (r *Resolver) LoadOverrides(dir string) (int, error) {
	loaded := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("failed to read prompt overrides: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".tmpl" {
			continue
		}
		key := strings.TrimSuffix(e.Name(), ".tmpl")
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return 0, fmt.Errorf("failed to read prompt override %s: %w", key, err)
		}
		loaded[key] = string(data)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range loaded {
		if _, ok := r.embedded[key]; !ok {
			r.logger.Warn("ignoring override for unknown prompt", "key", key)
			delete(loaded, key)
		}
	}
	r.overrides = loaded
	if len(loaded) > 0 {
		r.logger.Info("loaded prompt overrides", "count", len(loaded), "dir", dir)
	}
	return len(loaded), nil
}

// Resolve returns the override for key if one is loaded, otherwise the
// embedded default.
func (r *Resolver) Resolve(key string) (*ResolvedPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(key)
}

func (r *Resolver) resolveLocked(key string) (*ResolvedPrompt, error) {
	embedded, ok := r.embedded[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if text, ok := r.overrides[key]; ok {
		return &ResolvedPrompt{
			Key:         key,
			Text:        text,
			Description: embedded.Description,
			Variables:   ExtractVariables(text),
			Hash:        HashText(text),
			IsOverride:  true,
		}, nil
	}
	return &ResolvedPrompt{
		Key:         key,
		Text:        embedded.Text,
		Description: embedded.Description,
		Variables:   embedded.Variables,
		Hash:        embedded.Hash,
	}, nil
}

// Render resolves key and executes it against data.
func (r *Resolver) Render(key string, data any) (string, error) {
	p, err := r.Resolve(key)
	if err != nil {
		return "", err
	}
	return Execute(key, p.Text, data)
}

// All returns every registered prompt as currently resolved, sorted by key.
func (r *Resolver) All() []ResolvedPrompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ResolvedPrompt, 0, len(r.embedded))
	for key := range r.embedded {
		p, _ := r.resolveLocked(key)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Fingerprint identifies the full set of prompts in effect.
func (r *Resolver) Fingerprint() string {
	var b strings.Builder
	for _, p := range r.All() {
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Hash)
		b.WriteByte('\n')
	}
	return HashText(b.String())[:16]
}
