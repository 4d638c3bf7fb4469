// Package session turns externally exported browser cookies into a seeded,
// authenticated browsing context. It accepts the two file shapes browser
// extensions commonly produce: a bare JSON array of cookie objects, or an
// object wrapping that array under a "cookies" field.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidCookieFormat reports input that is neither a cookie array nor an
// object with a "cookies" array. It is fatal before any navigation happens.
var ErrInvalidCookieFormat = errors.New(`cookies must be a JSON array or an object with a "cookies" array`)

// Cookie is one browser cookie record. Name and Value are required; the rest
// are optional and pass through to the DevTools protocol as-is.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"` // unix seconds
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

type cookieEnvelope struct {
	Cookies []Cookie `json:"cookies"`
}

// Parse decodes a cookie set from either accepted shape.
func Parse(data []byte) ([]Cookie, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrInvalidCookieFormat
	}
	switch trimmed[0] {
	case '[':
		var cookies []Cookie
		if err := json.Unmarshal(trimmed, &cookies); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCookieFormat, err)
		}
		return cookies, nil
	case '{':
		var env cookieEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCookieFormat, err)
		}
		if env.Cookies == nil {
			return nil, ErrInvalidCookieFormat
		}
		return env.Cookies, nil
	default:
		return nil, ErrInvalidCookieFormat
	}
}

// Load reads and parses a cookie file.
func Load(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	return Parse(data)
}

// Save writes cookies back as an indented JSON array, the bare shape Parse
// accepts, so a saved session can seed the next run.
func Save(path string, cookies []Cookie) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Normalize fills in the default domain on cookies that carry none and fixes
// the sameSite capitalization the DevTools protocol expects ("Lax", "Strict",
// "None"). The input slice is not modified.
func Normalize(cookies []Cookie, defaultDomain string) []Cookie {
	out := make([]Cookie, len(cookies))
	for i, c := range cookies {
		if c.Domain == "" {
			c.Domain = defaultDomain
		}
		if c.Path == "" {
			c.Path = "/"
		}
		if c.SameSite != "" {
			lower := strings.ToLower(c.SameSite)
			c.SameSite = strings.ToUpper(lower[:1]) + lower[1:]
		}
		out[i] = c
	}
	return out
}

// CookieSetter is the slice of the browsing context Seed needs.
type CookieSetter interface {
	SetCookies(ctx context.Context, cookies []Cookie) error
}

// Seed normalizes cookies and installs them into the browsing context. It must
// run before the first navigation so that the very first request is
// authenticated.
func Seed(ctx context.Context, b CookieSetter, cookies []Cookie, defaultDomain string) error {
	if len(cookies) == 0 {
		return nil
	}
	if err := b.SetCookies(ctx, Normalize(cookies, defaultDomain)); err != nil {
		return fmt.Errorf("seed session cookies: %w", err)
	}
	return nil
}
