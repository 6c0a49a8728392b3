package tasks

import (
	"sort"
	"strings"
	"time"

	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/state"
)

// Filter returns the tasks matching f. The input is never modified.
func Filter(list []model.Task, f state.Filter) []model.Task {
	out := make([]model.Task, 0, len(list))
	for _, t := range list {
		switch f {
		case state.FilterCompleted:
			if !t.Completed {
				continue
			}
		case state.FilterPending:
			if t.Completed {
				continue
			}
		}
		out = append(out, t.Clone())
	}
	return out
}

// Search keeps tasks whose title or description contains term, ignoring case.
// An empty term matches everything.
func Search(list []model.Task, term string) []model.Task {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]model.Task, 0, len(list))
	for _, t := range list {
		if term == "" ||
			strings.Contains(strings.ToLower(t.Title), term) ||
			strings.Contains(strings.ToLower(t.Description), term) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Sort returns a sorted copy of list. Ties keep their original order.
func Sort(list []model.Task, key state.SortKey, dir state.SortDir) []model.Task {
	out := make([]model.Task, len(list))
	for i, t := range list {
		out[i] = t.Clone()
	}
	less := func(a, b model.Task) bool {
		switch key {
		case state.SortTitle:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case state.SortUpdated:
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if dir == state.SortDesc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

type TrashFilter string

const (
	TrashAll    TrashFilter = "all"
	TrashRecent TrashFilter = "recent"
	TrashOld    TrashFilter = "old"
)

const (
	recentWindow = 24 * time.Hour
	oldAge       = 7 * 24 * time.Hour
)

// FilterTrash selects trashed tasks deleted within the last day (recent) or
// more than a week ago (old).
func FilterTrash(list []model.Task, f TrashFilter, now time.Time) []model.Task {
	out := make([]model.Task, 0, len(list))
	for _, t := range list {
		age := time.Duration(0)
		if t.DeletedAt != nil {
			age = now.Sub(*t.DeletedAt)
		}
		switch f {
		case TrashRecent:
			if t.DeletedAt == nil || age >= recentWindow {
				continue
			}
		case TrashOld:
			if t.DeletedAt == nil || age <= oldAge {
				continue
			}
		}
		out = append(out, t.Clone())
	}
	return out
}

type Stats struct {
	Total     int
	Completed int
	Pending   int
	Trashed   int
}

// Percent is the completed share of Total, 0 when there are no tasks.
func (s Stats) Percent() int {
	if s.Total == 0 {
		return 0
	}
	return s.Completed * 100 / s.Total
}

func Summarize(tasks, trash []model.Task) Stats {
	st := Stats{Total: len(tasks), Trashed: len(trash)}
	for _, t := range tasks {
		if t.Completed {
			st.Completed++
		}
	}
	st.Pending = st.Total - st.Completed
	return st
}

// View applies the store's filter, search and sort settings.
func View(st state.State) []model.Task {
	return Sort(Search(Filter(st.Tasks, st.Filter), st.Search), st.SortKey, st.SortDir)
}
