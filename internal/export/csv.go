// Package export writes task backups (JSON) and spreadsheets (CSV) and reads
// backups back in.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/letstodo/internal/model"
)

var csvHeader = []string{"ID", "Title", "Description", "Completed", "Created", "Updated", "Deleted"}

// WriteCSV writes live tasks followed by trashed ones. The Deleted column is
// empty for live tasks.
func WriteCSV(out io.Writer, tasks, trashed []model.Task) error {
	w := csv.NewWriter(out)

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, list := range [][]model.Task{tasks, trashed} {
		for _, t := range list {
			deleted := ""
			if t.DeletedAt != nil {
				deleted = localTime(*t.DeletedAt)
			}
			row := []string{
				strconv.FormatInt(t.ID, 10),
				t.Title,
				t.Description,
				strconv.FormatBool(t.Completed),
				localTime(t.CreatedAt),
				localTime(t.UpdatedAt),
				deleted,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func ToCSV(tasks, trashed []model.Task, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()
	return WriteCSV(f, tasks, trashed)
}

func localTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}
