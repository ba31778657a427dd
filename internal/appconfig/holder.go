package appconfig

import "sync"

// Holder provides thread-safe access to a mutable *Config and an immutable
// config file path, identical in shape to the teacher's config.Holder, so the
// config can be swapped with Update without racing readers (§10.3). Nothing
// in this module reloads config on SIGHUP; serve reads it once at startup.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewHolder creates a Holder with the initial config and config file path.
func NewHolder(cfg *Config, path string) *Holder {
	return &Holder{cfg: cfg, path: path}
}

// Config returns the current config snapshot.
func (h *Holder) Config() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cfg
}

// Path returns the config file path.
func (h *Holder) Path() string {
	return h.path
}

// Update replaces the config, observed by all subsequent Config() calls.
func (h *Holder) Update(cfg *Config) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cfg = cfg
}
