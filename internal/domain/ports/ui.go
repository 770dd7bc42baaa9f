package ports

import "github.com/mdview/mdview/internal/domain/events"

// TabStrip is the minimal contract with the presentation layer's tab bar:
// create/remove a visual, toggle flags, show or hide the bar. No styling
// detail leaks through this port.
type TabStrip interface {
	// AddTab creates a visual for a newly opened tab.
	AddTab(tab events.TabInfo)

	// RemoveTab removes the visual for a closed tab.
	RemoveTab(id int64)

	// SetActive marks one tab visual as active. Zero clears the mark.
	SetActive(id int64)

	// SetModified toggles the modified indicator on a tab visual.
	SetModified(id int64, modified bool)

	// SetVisible shows or hides the whole tab bar.
	SetVisible(visible bool)
}

// Notifier surfaces user-visible notifications. Watcher and file errors are
// warnings; they never alter session state.
type Notifier interface {
	Info(message string)
	Warn(message string)
}

// NopTabStrip returns a TabStrip that ignores every call, for headless use.
func NopTabStrip() TabStrip {
	return nopTabStrip{}
}

type nopTabStrip struct{}

func (nopTabStrip) AddTab(events.TabInfo)   {}
func (nopTabStrip) RemoveTab(int64)         {}
func (nopTabStrip) SetActive(int64)         {}
func (nopTabStrip) SetModified(int64, bool) {}
func (nopTabStrip) SetVisible(bool)         {}
