package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/letstodo/internal/model"
)

func sampleData() ([]model.Task, []model.Task) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	deleted := now.Add(time.Hour)

	tasks := []model.Task{
		{ID: 1, Title: "Buy milk", Description: "2 liters", Completed: true, CreatedAt: now, UpdatedAt: now},
		{ID: 2, Title: "Call mom", CreatedAt: now.Add(time.Minute), UpdatedAt: now.Add(time.Minute)},
	}
	trashed := []model.Task{
		{ID: 3, Title: "Old idea", CreatedAt: now, UpdatedAt: now, DeletedAt: &deleted},
	}
	return tasks, trashed
}

// ============================================================
// CSV
// ============================================================

func TestToCSV(t *testing.T) {
	tasks, trashed := sampleData()
	path := filepath.Join(t.TempDir(), "test.csv")

	if err := ToCSV(tasks, trashed, path); err != nil {
		t.Fatalf("ToCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	// header + 2 live + 1 trashed
	if len(records) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(records))
	}
	for i, h := range csvHeader {
		if records[0][i] != h {
			t.Fatalf("header[%d] = %q, want %q", i, records[0][i], h)
		}
	}

	row := records[1]
	if row[0] != "1" || row[1] != "Buy milk" || row[2] != "2 liters" || row[3] != "true" {
		t.Fatalf("unexpected first row %v", row)
	}
	if row[6] != "" {
		t.Fatalf("live task should have empty Deleted, got %q", row[6])
	}
	if records[3][6] == "" {
		t.Fatal("trashed task should carry its deletion time")
	}
}

func TestToCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil, nil); err != nil {
		t.Fatal(err)
	}
	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 1 {
		t.Fatalf("expected header only, got %d rows", len(records))
	}
}

func TestToCSVBadPath(t *testing.T) {
	if err := ToCSV(nil, nil, "/nonexistent/dir/file.csv"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToCSVSpecialCharacters(t *testing.T) {
	tasks := []model.Task{{ID: 1, Title: `Say "hi", then leave`, Description: "line one\nline two"}}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, tasks, nil); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("CSV should be valid even with special chars: %v", err)
	}
	if records[1][1] != `Say "hi", then leave` || records[1][2] != "line one\nline two" {
		t.Fatalf("fields mangled: %q", records[1])
	}
}

// ============================================================
// JSON
// ============================================================

func TestToJSON(t *testing.T) {
	tasks, trashed := sampleData()
	path := filepath.Join(t.TempDir(), "backup.json")

	err := ToJSON(Backup{Tasks: tasks, Trashed: trashed, UserEmail: "a@b.io"}, path)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc jsonBackup
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc.Version != BackupVersion {
		t.Fatalf("version = %q", doc.Version)
	}
	if len(doc.Todos) != 2 || len(doc.TrashedTodos) != 1 {
		t.Fatalf("unexpected counts %d/%d", len(doc.Todos), len(doc.TrashedTodos))
	}
	if doc.Todos[0].Completed != 1 || doc.Todos[1].Completed != 0 {
		t.Fatal("completed should be encoded as 0/1")
	}
	if doc.TrashedTodos[0].DeletedAt == "" {
		t.Fatal("trashed task should keep deletedAt")
	}
	if _, err := time.Parse(time.RFC3339, doc.ExportDate); err != nil {
		t.Fatalf("exportDate is not RFC3339: %q", doc.ExportDate)
	}
	if doc.UserEmail != "a@b.io" {
		t.Fatalf("userEmail = %q", doc.UserEmail)
	}
}

func TestToJSONPrettyPrinted(t *testing.T) {
	var buf bytes.Buffer
	WriteJSON(&buf, Backup{})
	if !strings.Contains(buf.String(), "\n  ") {
		t.Fatal("JSON should be indented")
	}
	if !strings.Contains(buf.String(), `"todos": []`) {
		t.Fatalf("empty backup should still carry a todos array: %s", buf.String())
	}
}

func TestToJSONBadPath(t *testing.T) {
	if err := ToJSON(Backup{}, "/nonexistent/dir/file.json"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	tasks, trashed := sampleData()
	path := filepath.Join(t.TempDir(), "rt.json")
	if err := ToJSON(Backup{Tasks: tasks, Trashed: trashed}, path); err != nil {
		t.Fatal(err)
	}

	b, err := FromJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Tasks) != 2 || len(b.Trashed) != 1 {
		t.Fatalf("unexpected counts %d/%d", len(b.Tasks), len(b.Trashed))
	}
	if !b.Tasks[0].Equal(tasks[0]) {
		t.Fatalf("task changed: %+v vs %+v", b.Tasks[0], tasks[0])
	}
	if b.Trashed[0].DeletedAt == nil || !b.Trashed[0].DeletedAt.Equal(*trashed[0].DeletedAt) {
		t.Fatal("deletedAt lost")
	}
}

// ============================================================
// ReadJSON validation
// ============================================================

func TestReadJSONRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `hello`},
		{"array", `[]`},
		{"no todos", `{"version":"1.0"}`},
		{"todos not array", `{"todos":{},"version":"1.0"}`},
		{"no version", `{"todos":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(tt.body))
			if !errors.Is(err, ErrInvalidBackup) {
				t.Fatalf("expected ErrInvalidBackup, got %v", err)
			}
		})
	}
}

func TestReadJSONLenientTasks(t *testing.T) {
	body := `{
		"version": "1.0",
		"todos": [
			{"id": 4, "title": "bool flag", "completed": true},
			{"id": 5, "title": "", "completed": 1},
			{"title": "numeric flag", "completed": 1, "createdAt": "2024-01-01T00:00:00Z"}
		]
	}`
	b, err := ReadJSON(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Tasks) != 2 {
		t.Fatalf("untitled tasks should be skipped, got %d", len(b.Tasks))
	}
	if !b.Tasks[0].Completed || !b.Tasks[1].Completed {
		t.Fatal("completed should accept bool and 0/1")
	}
	if b.Tasks[1].CreatedAt.IsZero() {
		t.Fatal("camelCase createdAt should be read")
	}
}
