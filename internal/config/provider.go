package config

import (
	"context"
	"log"
	"sync"
	"time"
)

// Provider holds the current config snapshot and supports periodic hot
// reload, so detector thresholds can change without restarting workers.
// Workers call Snapshot once per job and never cache the result.
type Provider struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// NewProvider wraps an already-loaded config. Path may be empty when the
// config did not come from a file, in which case reload is a no-op.
func NewProvider(path string, cfg *Config) *Provider {
	return &Provider{path: path, cfg: cfg}
}

// Snapshot returns the current config. The returned value must be treated
// as read-only.
func (p *Provider) Snapshot() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Reload re-reads the config file. A failed reload keeps the previous
// snapshot and is logged, never fatal.
func (p *Provider) Reload() {
	if p.path == "" {
		return
	}
	cfg, err := Load(p.path)
	if err != nil {
		log.Printf("config: reload %s: %v (keeping previous)", p.path, err)
		return
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

// StartReload reloads the config every interval until ctx is cancelled.
func (p *Provider) StartReload(ctx context.Context, interval time.Duration) {
	if p.path == "" || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Reload()
			}
		}
	}()
}
