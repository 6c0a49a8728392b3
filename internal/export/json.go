package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sadopc/letstodo/internal/model"
	"github.com/tidwall/gjson"
)

// BackupVersion is written into every backup and required on import.
const BackupVersion = "1.0"

// ErrInvalidBackup is returned for files that are not a task backup.
var ErrInvalidBackup = errors.New("invalid backup file")

type Backup struct {
	Tasks      []model.Task
	Trashed    []model.Task
	ExportedAt time.Time
	UserEmail  string
}

type jsonBackup struct {
	Todos        []jsonTask `json:"todos"`
	TrashedTodos []jsonTask `json:"trashedTodos"`
	ExportDate   string     `json:"exportDate"`
	Version      string     `json:"version"`
	UserEmail    string     `json:"userEmail,omitempty"`
}

type jsonTask struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   int    `json:"completed"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	DeletedAt   string `json:"deletedAt,omitempty"`
}

func toJSONTasks(list []model.Task) []jsonTask {
	out := make([]jsonTask, 0, len(list))
	for _, t := range list {
		jt := jsonTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			CreatedAt:   formatTime(t.CreatedAt),
			UpdatedAt:   formatTime(t.UpdatedAt),
		}
		if t.Completed {
			jt.Completed = 1
		}
		if t.DeletedAt != nil {
			jt.DeletedAt = formatTime(*t.DeletedAt)
		}
		out = append(out, jt)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// WriteJSON writes b in the backup format.
func WriteJSON(w io.Writer, b Backup) error {
	exported := b.ExportedAt
	if exported.IsZero() {
		exported = time.Now()
	}
	doc := jsonBackup{
		Todos:        toJSONTasks(b.Tasks),
		TrashedTodos: toJSONTasks(b.Trashed),
		ExportDate:   exported.UTC().Format(time.RFC3339),
		Version:      BackupVersion,
		UserEmail:    b.UserEmail,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return nil
}

func ToJSON(b Backup, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	if err := WriteJSON(f, b); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}

// ReadJSON parses a backup. The document must be an object with a todos
// array and a version; tasks without a title are skipped.
func ReadJSON(r io.Reader) (Backup, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Backup{}, fmt.Errorf("read backup: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return Backup{}, fmt.Errorf("%w: not json", ErrInvalidBackup)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() || !root.Get("todos").IsArray() || root.Get("version").String() == "" {
		return Backup{}, fmt.Errorf("%w: missing todos or version", ErrInvalidBackup)
	}

	b := Backup{
		Tasks:     parseTasks(root.Get("todos")),
		Trashed:   parseTasks(root.Get("trashedTodos")),
		UserEmail: root.Get("userEmail").String(),
	}
	if t, err := time.Parse(time.RFC3339, root.Get("exportDate").String()); err == nil {
		b.ExportedAt = t
	}
	return b, nil
}

func FromJSON(path string) (Backup, error) {
	f, err := os.Open(path)
	if err != nil {
		return Backup{}, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()
	return ReadJSON(f)
}

func parseTasks(arr gjson.Result) []model.Task {
	var out []model.Task
	for _, item := range arr.Array() {
		title := item.Get("title").String()
		if title == "" {
			continue
		}
		t := model.Task{
			ID:          item.Get("id").Int(),
			Title:       title,
			Description: item.Get("description").String(),
			Completed:   item.Get("completed").Bool(),
			CreatedAt:   parseTime(item, "created_at", "createdAt"),
			UpdatedAt:   parseTime(item, "updated_at", "updatedAt"),
		}
		if d := parseTime(item, "deletedAt", "deleted_at"); !d.IsZero() {
			t.DeletedAt = &d
		}
		out = append(out, t)
	}
	return out
}

func parseTime(item gjson.Result, keys ...string) time.Time {
	for _, k := range keys {
		if v := item.Get(k).String(); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
