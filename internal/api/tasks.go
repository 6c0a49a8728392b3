package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sadopc/letstodo/internal/model"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	body, err := c.do(ctx, http.MethodGet, "/todos", nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("list tasks: %w: invalid json", ErrMalformed)
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("list tasks: %w: expected array", ErrMalformed)
	}
	items := root.Array()
	tasks := make([]model.Task, 0, len(items))
	for i, item := range items {
		t, err := parseTask(item)
		if err != nil {
			return nil, fmt.Errorf("list tasks: item %d: %w", i, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id int64) (model.Task, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/todos/%d", id), nil)
	if err != nil {
		return model.Task{}, err
	}
	return decodeTask(body, "get task")
}

func (c *Client) CreateTask(ctx context.Context, d model.Draft) (model.Task, error) {
	payload, err := draftBody(d)
	if err != nil {
		return model.Task{}, fmt.Errorf("encode task: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/todos", payload)
	if err != nil {
		return model.Task{}, err
	}
	return decodeTask(body, "create task")
}

func (c *Client) UpdateTask(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error) {
	payload, err := patchBody(p)
	if err != nil {
		return model.Task{}, fmt.Errorf("encode patch: %w", err)
	}
	body, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/todos/%d", id), payload)
	if err != nil {
		return model.Task{}, err
	}
	return decodeTask(body, "update task")
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/todos/%d", id), nil)
	return err
}

func draftBody(d model.Draft) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "title", d.Title); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "description", d.Description); err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "completed", boolInt(d.Completed))
}

// patchBody encodes only the fields present in p.
func patchBody(p model.TaskPatch) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if p.Title != nil {
		if body, err = sjson.SetBytes(body, "title", *p.Title); err != nil {
			return nil, err
		}
	}
	if p.Description != nil {
		if body, err = sjson.SetBytes(body, "description", *p.Description); err != nil {
			return nil, err
		}
	}
	if p.Completed != nil {
		if body, err = sjson.SetBytes(body, "completed", boolInt(*p.Completed)); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func decodeTask(body []byte, op string) (model.Task, error) {
	if !gjson.ValidBytes(body) {
		return model.Task{}, fmt.Errorf("%s: %w: invalid json", op, ErrMalformed)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return model.Task{}, fmt.Errorf("%s: %w: expected object", op, ErrMalformed)
	}
	t, err := parseTask(root)
	if err != nil {
		return model.Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// parseTask validates one task object from the server.
func parseTask(r gjson.Result) (model.Task, error) {
	id := r.Get("id")
	if !id.Exists() || id.Int() <= 0 {
		return model.Task{}, fmt.Errorf("%w: missing id", ErrMalformed)
	}
	t := model.Task{
		ID:          id.Int(),
		Title:       r.Get("title").String(),
		Description: r.Get("description").String(),
		Completed:   r.Get("completed").Bool(),
	}
	t.CreatedAt = parseTime(firstOf(r, "created_at", "createdAt", "created"))
	t.UpdatedAt = parseTime(firstOf(r, "updated_at", "updatedAt", "updated"))
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	return t, nil
}

func firstOf(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts RFC 3339 and SQL-style strings or epoch numbers
// (milliseconds, or seconds for small values). Unparseable input yields zero.
func parseTime(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.Number:
		n := v.Int()
		if n <= 0 {
			return time.Time{}
		}
		if n < 1e12 {
			return time.Unix(n, 0).UTC()
		}
		return time.UnixMilli(n).UTC()
	case gjson.String:
		s := strings.TrimSpace(v.String())
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
