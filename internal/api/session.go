package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sadopc/letstodo/internal/model"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Validation is the parsed reply of GET /session/validate.
type Validation struct {
	Valid     bool
	Type      model.Kind
	UserID    int64
	Email     string
	SessionID string
	GuestID   string
}

// Session converts a valid reply into a session record.
func (v Validation) Session() model.Session {
	if !v.Valid {
		return model.Session{}
	}
	return model.Session{
		Kind:      v.Type,
		UserID:    v.UserID,
		Email:     v.Email,
		GuestID:   v.GuestID,
		SessionID: v.SessionID,
	}
}

func (c *Client) ValidateSession(ctx context.Context) (Validation, error) {
	body, err := c.do(ctx, http.MethodGet, "/session/validate", nil)
	if err != nil {
		return Validation{}, err
	}
	if !gjson.ValidBytes(body) {
		return Validation{}, fmt.Errorf("validate session: %w: invalid json", ErrMalformed)
	}
	return parseValidation(gjson.ParseBytes(body)), nil
}

// parseValidation treats a "valid" reply without a known type as invalid.
func parseValidation(r gjson.Result) Validation {
	v := Validation{
		Valid:     r.Get("valid").Bool(),
		UserID:    r.Get("userId").Int(),
		Email:     r.Get("email").String(),
		SessionID: r.Get("sessionId").String(),
		GuestID:   r.Get("guestId").String(),
	}
	switch model.Kind(r.Get("type").String()) {
	case model.KindUser:
		v.Type = model.KindUser
	case model.KindGuest:
		v.Type = model.KindGuest
	default:
		v.Valid = false
	}
	if !v.Valid {
		return Validation{}
	}
	return v
}

// StartGuest opens a guest session and returns its id.
func (c *Client) StartGuest(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/session/guest", nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "guestId").String(), nil
}

func (c *Client) EndGuest(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/session/guest/end", nil)
	return err
}

// Register creates an account. The returned user id is 0 when the server omits it.
func (c *Client) Register(ctx context.Context, email, password string) (int64, error) {
	return c.credentials(ctx, "/register", email, password)
}

// Login signs in. The returned user id is 0 when the server omits it.
func (c *Client) Login(ctx context.Context, email, password string) (int64, error) {
	return c.credentials(ctx, "/login", email, password)
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/logout", nil)
	return err
}

func (c *Client) credentials(ctx context.Context, path, email, password string) (int64, error) {
	payload, err := sjson.SetBytes([]byte(`{}`), "email", email)
	if err != nil {
		return 0, fmt.Errorf("encode credentials: %w", err)
	}
	if payload, err = sjson.SetBytes(payload, "password", password); err != nil {
		return 0, fmt.Errorf("encode credentials: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return 0, err
	}
	return gjson.GetBytes(body, "userId").Int(), nil
}
