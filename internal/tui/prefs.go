package tui

import (
	"log/slog"

	"github.com/sadopc/letstodo/internal/state"
	"github.com/sadopc/letstodo/internal/store"
)

// loadPrefs applies the saved theme and sort order to st. A theme set in
// the config file wins over the saved one.
func loadPrefs(local *store.Store, configTheme string, st *state.State) {
	if local != nil {
		if v, err := local.SettingOr(store.SettingTheme, ""); err == nil && validTheme(v) {
			st.Theme = state.Theme(v)
		}
		if v, err := local.SettingOr(store.SettingSortKey, ""); err == nil && containsSortKey(v) {
			st.SortKey = state.SortKey(v)
		}
		if v, err := local.SettingOr(store.SettingSortDir, ""); err == nil && (v == string(state.SortAsc) || v == string(state.SortDesc)) {
			st.SortDir = state.SortDir(v)
		}
	}
	if validTheme(configTheme) {
		st.Theme = state.Theme(configTheme)
	}
}

// savePrefs writes the preferences touched by c.
func savePrefs(local *store.Store, logger *slog.Logger, c state.Change) {
	if local == nil {
		return
	}
	save := func(key, value string) {
		if err := local.SetSetting(key, value); err != nil {
			logger.Warn("save preference failed", "key", key, "err", err)
		}
	}
	if c.Has(state.KeyTheme) {
		save(store.SettingTheme, string(c.New.Theme))
	}
	if c.Has(state.KeySortKey) {
		save(store.SettingSortKey, string(c.New.SortKey))
	}
	if c.Has(state.KeySortDir) {
		save(store.SettingSortDir, string(c.New.SortDir))
	}
}

func validTheme(v string) bool {
	return v == string(state.ThemeDark) || v == string(state.ThemeLight)
}

func containsSortKey(v string) bool {
	for _, k := range sortOrder {
		if string(k) == v {
			return true
		}
	}
	return false
}
