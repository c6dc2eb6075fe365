// Package session gates the application behind a PIN and re-locks it after a
// period of inactivity.
package session

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"

	"log/slog"
)

const (
	// DefaultIdleTimeout re-locks the session after this much inactivity.
	DefaultIdleTimeout = 5 * time.Minute
	// failureCooldown blocks unlock attempts briefly after a mismatch.
	failureCooldown = 3 * time.Second
)

// CredentialKind tags the storage shape of the PIN.
type CredentialKind int

const (
	KindNone   CredentialKind = iota // no PIN configured
	KindPlain                        // 4-character legacy plaintext
	KindHashed                       // 64-character SHA-256 hex digest
)

// Credential is the parsed stored PIN. The variant is decided once, here,
// instead of re-sniffing string lengths at every comparison site.
type Credential struct {
	Kind  CredentialKind
	Value string
}

// ParseCredential classifies a stored PIN string.
func ParseCredential(stored string) Credential {
	switch len(stored) {
	case 0:
		return Credential{Kind: KindNone}
	case 4:
		return Credential{Kind: KindPlain, Value: stored}
	case 64:
		return Credential{Kind: KindHashed, Value: stored}
	default:
		// unrecognized shapes can never match; treat as unconfigured
		return Credential{Kind: KindNone}
	}
}

// HashPIN returns the SHA-256 hex digest of a PIN, the current storage shape.
func HashPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

// Matches verifies a candidate PIN against the credential.
func (c Credential) Matches(pin string) bool {
	switch c.Kind {
	case KindPlain:
		return subtle.ConstantTimeCompare([]byte(c.Value), []byte(pin)) == 1
	case KindHashed:
		return subtle.ConstantTimeCompare([]byte(c.Value), []byte(HashPIN(pin))) == 1
	}
	return false
}

// PINStore persists the credential; the domain store's settings back it.
type PINStore interface {
	PIN(ctx context.Context) (string, error)
	SetPIN(ctx context.Context, pin string) error
}

// Guard holds the lock state. It starts locked; Unlock opens it, the idle
// timer or Lock closes it again.
type Guard struct {
	store    PINStore
	logger   *slog.Logger
	idle     time.Duration
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	locked   bool
	failedAt time.Time
	timer    *time.Timer
}

func New(store PINStore, logger *slog.Logger, idle time.Duration) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Guard{
		store:    store,
		logger:   logger,
		idle:     idle,
		cooldown: failureCooldown,
		now:      time.Now,
		locked:   true,
	}
}

// Unlock verifies the PIN. A legacy plaintext credential that matches is
// migrated to its hashed shape in place. A mismatch arms a short cooldown
// during which every attempt fails.
func (g *Guard) Unlock(ctx context.Context, pin string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.failedAt.IsZero() && g.now().Sub(g.failedAt) < g.cooldown {
		return false
	}

	stored, err := g.store.PIN(ctx)
	if err != nil {
		g.logger.Error("read pin", "err", err)
		return false
	}
	cred := ParseCredential(stored)
	if !cred.Matches(pin) {
		g.failedAt = g.now()
		return false
	}

	if cred.Kind == KindPlain {
		if err := g.store.SetPIN(ctx, HashPIN(pin)); err != nil {
			// the session still opens; migration retries on the next unlock
			g.logger.Error("migrate pin to hash", "err", err)
		}
	}

	g.failedAt = time.Time{}
	g.locked = false
	g.armTimer()
	return true
}

// Touch restarts the idle timer. Inert while locked.
func (g *Guard) Touch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locked {
		return
	}
	g.armTimer()
}

// Lock closes the session immediately.
func (g *Guard) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locked = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// Locked reports the current state.
func (g *Guard) Locked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.locked
}

// ChangePIN verifies the current PIN and stores the new one hashed.
func (g *Guard) ChangePIN(ctx context.Context, current, next string) bool {
	stored, err := g.store.PIN(ctx)
	if err != nil {
		g.logger.Error("read pin", "err", err)
		return false
	}
	cred := ParseCredential(stored)
	// allow setting the first PIN when none is configured yet
	if cred.Kind != KindNone && !cred.Matches(current) {
		return false
	}
	if len(next) != 4 {
		return false
	}
	if err := g.store.SetPIN(ctx, HashPIN(next)); err != nil {
		g.logger.Error("store pin", "err", err)
		return false
	}
	return true
}

// callers hold g.mu
func (g *Guard) armTimer() {
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.idle, g.Lock)
}
