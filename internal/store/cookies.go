package store

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"
)

// SaveCookie stores c for host, replacing any cookie with the same name and
// path. A cookie that is already expired or has MaxAge < 0 is deleted instead.
func (s *Store) SaveCookie(host string, c *http.Cookie, now time.Time) error {
	path := c.Path
	if path == "" {
		path = "/"
	}
	if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
		_, err := s.db.Exec(`DELETE FROM cookies WHERE host = ? AND name = ? AND path = ?`, host, c.Name, path)
		if err != nil {
			return fmt.Errorf("delete cookie %q: %w", c.Name, err)
		}
		return nil
	}

	var expires sql.NullString
	switch {
	case c.MaxAge > 0:
		expires = sql.NullString{String: now.Add(time.Duration(c.MaxAge) * time.Second).UTC().Format(time.RFC3339), Valid: true}
	case !c.Expires.IsZero():
		expires = sql.NullString{String: c.Expires.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO cookies (host, name, path, value, expires, secure, http_only, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		ON CONFLICT(host, name, path) DO UPDATE SET
			value = excluded.value,
			expires = excluded.expires,
			secure = excluded.secure,
			http_only = excluded.http_only,
			updated_at = excluded.updated_at`,
		host, c.Name, path, c.Value, expires, boolToInt(c.Secure), boolToInt(c.HttpOnly),
	)
	if err != nil {
		return fmt.Errorf("save cookie %q: %w", c.Name, err)
	}
	return nil
}

// LoadCookies returns the unexpired cookies stored for host.
func (s *Store) LoadCookies(host string, now time.Time) ([]*http.Cookie, error) {
	rows, err := s.db.Query(
		`SELECT name, path, value, expires, secure, http_only FROM cookies WHERE host = ? ORDER BY name`,
		host,
	)
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	defer rows.Close()

	var out []*http.Cookie
	for rows.Next() {
		var (
			c        http.Cookie
			expires  sql.NullString
			secure   int
			httpOnly int
		)
		if err := rows.Scan(&c.Name, &c.Path, &c.Value, &expires, &secure, &httpOnly); err != nil {
			return nil, err
		}
		if expires.Valid {
			t, err := time.Parse(time.RFC3339, expires.String)
			if err != nil || !t.After(now) {
				continue
			}
			c.Expires = t
		}
		c.Secure = secure == 1
		c.HttpOnly = httpOnly == 1
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ClearCookies forgets every cookie stored for host.
func (s *Store) ClearCookies(host string) error {
	if _, err := s.db.Exec(`DELETE FROM cookies WHERE host = ?`, host); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
