// Package apitest runs an in-memory lets-todo API for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const cookieName = "sid"

// Request records one call the server received.
type Request struct {
	Method string
	Path   string
	Body   string
}

type todo struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   int    `json:"completed"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	owner       string
}

type session struct {
	kind    string
	userID  int64
	email   string
	guestID string
}

// Server is a fake API. Handlers are mounted under /api.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	todos    map[int64]*todo
	nextID   int64
	nextUser int64
	users    map[string]string
	userIDs  map[string]int64
	sessions map[string]*session
	failures map[string]int
	requests []Request
}

func New() *Server {
	s := &Server{
		todos:    make(map[int64]*todo),
		nextID:   1,
		nextUser: 1,
		users:    make(map[string]string),
		userIDs:  make(map[string]int64),
		sessions: make(map[string]*session),
		failures: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// APIURL is the base URL clients should use.
func (s *Server) APIURL() string {
	return s.Server.URL + "/api"
}

// Fail makes every later request matching method and path answer with status.
// Path is relative to /api, e.g. "/todos/1".
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	s.failures[method+" "+path] = status
	s.mu.Unlock()
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	s.failures = make(map[string]int)
	s.mu.Unlock()
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// AddUser registers an account directly.
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
	s.userIDs[email] = s.nextUser
	s.nextUser++
}

// Count returns how many todos exist across all owners.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.todos)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: path, Body: string(body)})

	if status, ok := s.failures[r.Method+" "+path]; ok {
		writeJSON(w, status, map[string]string{"error": fmt.Sprintf("forced failure %d", status)})
		return
	}

	sess := s.sessionFor(r)

	switch {
	case r.Method == http.MethodGet && path == "/session/validate":
		s.validate(w, sess)
	case r.Method == http.MethodPost && path == "/session/guest":
		id := fmt.Sprintf("guest-%d", len(s.sessions)+1)
		s.startSession(w, &session{kind: "guest", guestID: id})
		writeJSON(w, http.StatusOK, map[string]string{"guestId": id})
	case r.Method == http.MethodPost && path == "/session/guest/end":
		s.endSession(w, r)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case r.Method == http.MethodPost && path == "/register":
		s.register(w, body)
	case r.Method == http.MethodPost && path == "/login":
		s.login(w, body)
	case r.Method == http.MethodPost && path == "/logout":
		s.endSession(w, r)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case strings.HasPrefix(path, "/todos"):
		if sess == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}
		s.todosRoute(w, r.Method, path, body, sess)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no route"})
	}
}

func (s *Server) sessionFor(r *http.Request) *session {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return nil
	}
	return s.sessions[c.Value]
}

func (s *Server) startSession(w http.ResponseWriter, sess *session) {
	id := fmt.Sprintf("s%d-%d", len(s.sessions)+1, time.Now().UnixNano())
	s.sessions[id] = sess
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: id, Path: "/"})
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(cookieName); err == nil {
		delete(s.sessions, c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
}

func (s *Server) validate(w http.ResponseWriter, sess *session) {
	if sess == nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false})
		return
	}
	reply := map[string]any{"valid": true, "type": sess.kind}
	if sess.kind == "user" {
		reply["userId"] = sess.userID
		reply["email"] = sess.email
	} else {
		reply["guestId"] = sess.guestID
	}
	writeJSON(w, http.StatusOK, reply)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, body []byte) {
	var c credentials
	if err := json.Unmarshal(body, &c); err != nil || c.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if _, ok := s.users[c.Email]; ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email exists"})
		return
	}
	s.users[c.Email] = c.Password
	s.userIDs[c.Email] = s.nextUser
	s.nextUser++
	s.startSession(w, &session{kind: "user", userID: s.userIDs[c.Email], email: c.Email})
	writeJSON(w, http.StatusCreated, map[string]any{"userId": s.userIDs[c.Email]})
}

func (s *Server) login(w http.ResponseWriter, body []byte) {
	var c credentials
	if err := json.Unmarshal(body, &c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if pw, ok := s.users[c.Email]; !ok || pw != c.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	s.startSession(w, &session{kind: "user", userID: s.userIDs[c.Email], email: c.Email})
	writeJSON(w, http.StatusOK, map[string]any{"userId": s.userIDs[c.Email]})
}

func owner(sess *session) string {
	if sess.kind == "user" {
		return "user:" + sess.email
	}
	return "guest:" + sess.guestID
}

func (s *Server) todosRoute(w http.ResponseWriter, method, path string, body []byte, sess *session) {
	rest := strings.Trim(strings.TrimPrefix(path, "/todos"), "/")
	if rest == "" {
		switch method {
		case http.MethodGet:
			list := make([]*todo, 0)
			for _, t := range s.todos {
				if t.owner == owner(sess) {
					list = append(list, t)
				}
			}
			sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			s.create(w, body, sess)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		}
		return
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad id"})
		return
	}
	t, ok := s.todos[id]
	if !ok || t.owner != owner(sess) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "todo not found"})
		return
	}
	switch method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, t)
	case http.MethodPatch:
		var patch map[string]json.RawMessage
		if err := json.Unmarshal(body, &patch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
		if raw, ok := patch["title"]; ok {
			json.Unmarshal(raw, &t.Title)
		}
		if raw, ok := patch["description"]; ok {
			json.Unmarshal(raw, &t.Description)
		}
		if raw, ok := patch["completed"]; ok {
			json.Unmarshal(raw, &t.Completed)
		}
		t.UpdatedAt = now()
		writeJSON(w, http.StatusOK, t)
	case http.MethodDelete:
		delete(s.todos, id)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) create(w http.ResponseWriter, body []byte, sess *session) {
	var in struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Completed   int    `json:"completed"`
	}
	if err := json.Unmarshal(body, &in); err != nil || strings.TrimSpace(in.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title required"})
		return
	}
	ts := now()
	t := &todo{
		ID:          s.nextID,
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		owner:       owner(sess),
	}
	s.nextID++
	s.todos[t.ID] = t
	writeJSON(w, http.StatusCreated, t)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
