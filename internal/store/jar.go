package store

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"
)

// Jar is an http.CookieJar that writes every cookie it receives through to
// the store, so a session survives restarts. Matching and expiry are left to
// net/http/cookiejar.
type Jar struct {
	inner  *cookiejar.Jar
	store  *Store
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

type JarOption func(*Jar)

func WithJarLogger(l *slog.Logger) JarOption {
	return func(j *Jar) { j.logger = l }
}

// NewJar creates a jar and seeds it with the cookies stored for base.
func NewJar(s *Store, base string, opts ...JarOption) (*Jar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	j := &Jar{
		inner:  inner,
		store:  s,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	cookies, err := s.LoadCookies(u.Host, j.now())
	if err != nil {
		return nil, err
	}
	if len(cookies) > 0 {
		inner.SetCookies(&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, cookies)
	}
	return j, nil
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	for _, c := range cookies {
		if err := j.store.SaveCookie(u.Host, c, now); err != nil {
			j.logger.Warn("persist cookie failed", "name", c.Name, "err", err)
		}
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// Clear forgets the stored cookies for host. Cookies already in memory stay
// until the process exits.
func (j *Jar) Clear(host string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.store.ClearCookies(host)
}
