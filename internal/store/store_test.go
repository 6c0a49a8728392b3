package store

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != SchemaVersion() {
		t.Fatalf("expected user_version %d, got %d", SchemaVersion(), version)
	}
}

func TestMigrateFromV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(migrations[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES ('theme', 'light')"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	s, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	if v, _ := s.GetSetting(SettingTheme); v != "light" {
		t.Fatalf("settings lost in migration, theme = %q", v)
	}
	c := &http.Cookie{Name: "sid", Value: "abc", Path: "/"}
	if err := s.SaveCookie("example.com", c, time.Now()); err != nil {
		t.Fatalf("cookies table missing after migration: %v", err)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/letstodo.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetSetting(SettingTheme, "light"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen: migrations must not reset existing values.
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	v, err := s2.GetSetting(SettingTheme)
	if err != nil {
		t.Fatal(err)
	}
	if v != "light" {
		t.Fatalf("expected light after reopen, got %q", v)
	}
}

func TestDefaultDBPath(t *testing.T) {
	t.Setenv(EnvDB, "")
	path, err := DefaultDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "letstodo.db" {
		t.Fatalf("unexpected path %q", path)
	}

	t.Setenv(EnvDB, "/tmp/other.db")
	if path, _ := DefaultDBPath(); path != "/tmp/other.db" {
		t.Fatalf("env override ignored, got %q", path)
	}
}

// ============================================================
// Settings
// ============================================================

func TestDefaultSettings(t *testing.T) {
	s := newTestStore(t)
	want := map[string]string{
		SettingTheme:   "dark",
		SettingSortKey: "created",
		SettingSortDir: "desc",
	}
	for k, v := range want {
		got, err := s.GetSetting(k)
		if err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
		if got != v {
			t.Fatalf("%s: expected %q, got %q", k, v, got)
		}
	}
}

func TestSetSettingUpsert(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetSetting("custom", "1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSetting("custom", "2"); err != nil {
		t.Fatal(err)
	}
	v, _ := s.GetSetting("custom")
	if v != "2" {
		t.Fatalf("expected 2, got %q", v)
	}

	all, err := s.GetAllSettings()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 settings, got %d", len(all))
	}
}

func TestSettingOr(t *testing.T) {
	s := newTestStore(t)
	v, err := s.SettingOr("missing", "fallback")
	if err != nil {
		t.Fatal(err)
	}
	if v != "fallback" {
		t.Fatalf("expected fallback, got %q", v)
	}
	if _, err := s.GetSetting("missing"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

// ============================================================
// Cookies
// ============================================================

func TestSaveAndLoadCookies(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s.SaveCookie("api.test", &http.Cookie{Name: "sid", Value: "abc", HttpOnly: true}, now)
	s.SaveCookie("api.test", &http.Cookie{Name: "short", Value: "x", MaxAge: 60}, now)
	s.SaveCookie("other.test", &http.Cookie{Name: "sid", Value: "zzz"}, now)

	got, err := s.LoadCookies("api.test", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(got))
	}
	if got[0].Name != "short" || got[1].Name != "sid" || got[1].Value != "abc" || !got[1].HttpOnly {
		t.Fatalf("unexpected cookies %+v %+v", got[0], got[1])
	}

	later, _ := s.LoadCookies("api.test", now.Add(2*time.Minute))
	if len(later) != 1 || later[0].Name != "sid" {
		t.Fatalf("expired cookie should be skipped, got %d", len(later))
	}
}

func TestSaveCookieReplacesAndDeletes(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.SaveCookie("h", &http.Cookie{Name: "sid", Value: "1"}, now)
	s.SaveCookie("h", &http.Cookie{Name: "sid", Value: "2"}, now)

	got, _ := s.LoadCookies("h", now)
	if len(got) != 1 || got[0].Value != "2" {
		t.Fatalf("expected replaced cookie, got %+v", got)
	}

	s.SaveCookie("h", &http.Cookie{Name: "sid", MaxAge: -1}, now)
	got, _ = s.LoadCookies("h", now)
	if len(got) != 0 {
		t.Fatalf("expected cookie deleted, got %+v", got)
	}
}

func TestClearCookies(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.SaveCookie("h", &http.Cookie{Name: "a", Value: "1"}, now)
	if err := s.ClearCookies("h"); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.LoadCookies("h", now); len(got) != 0 {
		t.Fatalf("expected no cookies, got %d", len(got))
	}
}

// ============================================================
// Jar
// ============================================================

func TestJarPersistsAcrossInstances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "session-1", Path: "/"})
			return
		}
		c, err := r.Cookie("sid")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(c.Value))
	}))
	defer srv.Close()

	s := newTestStore(t)
	jar, err := NewJar(s, srv.URL+"/api")
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Jar: jar}
	resp, err := client.Get(srv.URL + "/login")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	// A fresh jar over the same store carries the session.
	jar2, err := NewJar(s, srv.URL+"/api")
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(srv.URL + "/todos")
	cookies := jar2.Cookies(u)
	if len(cookies) != 1 || cookies[0].Value != "session-1" {
		t.Fatalf("expected restored session cookie, got %+v", cookies)
	}

	resp, err = (&http.Client{Jar: jar2}).Get(srv.URL + "/todos")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with restored cookie, got %d", resp.StatusCode)
	}

	if err := jar2.Clear(u.Host); err != nil {
		t.Fatal(err)
	}
	jar3, _ := NewJar(s, srv.URL)
	if len(jar3.Cookies(u)) != 0 {
		t.Fatal("cleared cookies should not be restored")
	}
}
