// Package auth issues and validates the opaque session credentials that gate
// scans. Credentials live in the durable key-value store when a session is
// available and in a process-local fallback store otherwise; validation
// consults whichever store the current session offers, degrading to the
// fallback when the durable store errors.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"scoutgate/internal/kv"
	"strconv"
	"time"
)

const (
	// DefaultLifetime is how long an issued credential stays valid.
	DefaultLifetime = 30 * 24 * time.Hour
	// DefaultGrace is added to the store-level expiry so the stored entry
	// outlives the logical expiry it records.
	DefaultGrace = time.Hour

	tokenBytes = 32
	keyPrefix  = "credential:"
)

// Credential is an issued bearer secret and its logical expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Authority issues, validates and revokes credentials.
type Authority struct {
	fallback kv.Store
	lifetime time.Duration
	grace    time.Duration
	now      func() time.Time
	entropy  io.Reader
}

// Option configures an Authority.
type Option func(*Authority)

func WithLifetime(d time.Duration) Option {
	return func(a *Authority) {
		if d > 0 {
			a.lifetime = d
		}
	}
}

func WithGrace(d time.Duration) Option {
	return func(a *Authority) {
		if d >= 0 {
			a.grace = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		a.now = now
	}
}

// WithEntropy replaces crypto/rand as the token source.
func WithEntropy(r io.Reader) Option {
	return func(a *Authority) {
		a.entropy = r
	}
}

// NewAuthority creates an authority whose fallback store is consulted when
// no durable store is reachable. The fallback is usually a *kv.MemoryStore
// owned for the life of the process.
func NewAuthority(fallback kv.Store, opts ...Option) *Authority {
	a := &Authority{
		fallback: fallback,
		lifetime: DefaultLifetime,
		grace:    DefaultGrace,
		now:      time.Now,
		entropy:  rand.Reader,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Lifetime returns the configured credential lifetime.
func (a *Authority) Lifetime() time.Duration {
	return a.lifetime
}

// Issue mints a new credential and records it. Only entropy failure is
// returned as an error; a failed durable write lands the credential in the
// fallback store instead.
func (a *Authority) Issue(ctx context.Context, sess *kv.Session) (Credential, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(a.entropy, buf); err != nil {
		return Credential{}, fmt.Errorf("generate credential: %w", err)
	}

	cred := Credential{
		Token:     base64.RawURLEncoding.EncodeToString(buf),
		ExpiresAt: a.now().Add(a.lifetime),
	}

	key := credentialKey(cred.Token)
	value := strconv.FormatInt(cred.ExpiresAt.UnixMilli(), 10)
	ttl := a.lifetime + a.grace

	if store, ok := sess.Store(); ok {
		err := record(ctx, store, key, value, ttl)
		if err == nil {
			return cred, nil
		}
		slog.Warn("Durable credential write failed, using fallback store", "error", err)
	}

	if err := record(ctx, a.fallback, key, value, ttl); err != nil {
		slog.Error("Fallback credential write failed", "error", err)
	}
	return cred, nil
}

func record(ctx context.Context, store kv.Store, key, value string, ttl time.Duration) error {
	if err := store.Set(ctx, key, value); err != nil {
		return err
	}
	return store.Expire(ctx, key, ttl)
}

// Validate reports whether token names a live credential. It never returns
// an error: store failures degrade to the fallback store and then to false.
// An expired credential is deleted as a side effect.
func (a *Authority) Validate(ctx context.Context, sess *kv.Session, token string) bool {
	if token == "" {
		return false
	}
	key := credentialKey(token)

	if store, ok := sess.Store(); ok {
		valid, err := a.check(ctx, store, key)
		if err == nil {
			return valid
		}
		slog.Warn("Durable credential lookup failed, using fallback store", "error", err)
	}

	valid, err := a.check(ctx, a.fallback, key)
	if err != nil {
		slog.Error("Fallback credential lookup failed", "error", err)
		return false
	}
	return valid
}

func (a *Authority) check(ctx context.Context, store kv.Store, key string) (bool, error) {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		slog.Warn("Discarding malformed credential entry")
		_ = store.Delete(ctx, key)
		return false, nil
	}

	if a.now().UnixMilli() >= expiresAt {
		if err := store.Delete(ctx, key); err != nil {
			slog.Debug("Failed to delete expired credential", "error", err)
		}
		return false, nil
	}
	return true, nil
}

// Revoke removes the credential from every store it might live in.
func (a *Authority) Revoke(ctx context.Context, sess *kv.Session, token string) {
	if token == "" {
		return
	}
	key := credentialKey(token)

	if store, ok := sess.Store(); ok {
		if err := store.Delete(ctx, key); err != nil {
			slog.Warn("Durable credential revoke failed", "error", err)
		}
	}
	if err := a.fallback.Delete(ctx, key); err != nil {
		slog.Warn("Fallback credential revoke failed", "error", err)
	}
}

// credentialKey stores only a digest of the bearer secret, so a store dump
// cannot be replayed as credentials.
func credentialKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:])
}
