package tui

import (
	"fmt"
	"strings"
)

// View types.
const (
	ViewHistory      = "history_updates"
	ViewStatsUpdates = "stats_updates"
	ViewStatsSession = "stats_session"
)

// Run starts the TUI for viewType.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	if strings.HasPrefix(viewType, "history_") {
		return RunHistoryTUI(viewType, data)
	}
	if strings.HasPrefix(viewType, "stats_") {
		return RunStatsTUI(viewType, data)
	}

	return fmt.Errorf("unknown view type: %s", viewType)
}

// IsTUISupported reports whether viewType has a TUI. Only the read-only
// history and stats views do.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if v == viewType {
			return true
		}
	}
	return false
}

// SupportedTUIViews lists the view types with a TUI.
func SupportedTUIViews() []string {
	return []string{
		ViewHistory,
		ViewStatsUpdates,
		ViewStatsSession,
	}
}
