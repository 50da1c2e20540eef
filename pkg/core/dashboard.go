package core

import (
	"encoding/json"
	"slices"
	"time"
)

// EmptyWidgetID is the reserved panel id of the empty placeholder slot.
// Layout editors persist it so a new panel can be dropped into place; it is
// never shown to read-only consumers.
const EmptyWidgetID = "empty_widget"

// LayoutEntry places one panel on the dashboard grid.
type LayoutEntry struct {
	I      string `json:"i" yaml:"i"`
	X      int    `json:"x" yaml:"x"`
	Y      int    `json:"y" yaml:"y"`
	W      int    `json:"w" yaml:"w"`
	H      int    `json:"h" yaml:"h"`
	Moved  bool   `json:"moved,omitempty" yaml:"moved,omitempty"`
	Static bool   `json:"static,omitempty" yaml:"static,omitempty"`
}

// DashboardData holds the user-editable part of a dashboard.
type DashboardData struct {
	Title       string            `json:"title" yaml:"title"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Layout      []LayoutEntry     `json:"layout,omitempty" yaml:"layout,omitempty"`
	Widgets     []json.RawMessage `json:"widgets,omitempty" yaml:"-"`
}

// Dashboard is a persisted dashboard.
type Dashboard struct {
	ID        string        `json:"uuid" yaml:"uuid"`
	Data      DashboardData `json:"data" yaml:"data"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" yaml:"updated_at"`
	CreatedBy string        `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	UpdatedBy string        `json:"updated_by,omitempty" yaml:"updated_by,omitempty"`
}

// Clone returns a deep copy of the dashboard.
func (d *Dashboard) Clone() *Dashboard {
	if d == nil {
		return nil
	}
	out := *d
	out.Data.Tags = slices.Clone(d.Data.Tags)
	out.Data.Layout = slices.Clone(d.Data.Layout)
	if d.Data.Widgets != nil {
		out.Data.Widgets = make([]json.RawMessage, len(d.Data.Widgets))
		for i, w := range d.Data.Widgets {
			out.Data.Widgets[i] = slices.Clone(w)
		}
	}
	return &out
}

// IsPlaceholderSlot reports whether entry is the reserved empty placeholder.
func IsPlaceholderSlot(entry LayoutEntry) bool {
	return entry.I == EmptyWidgetID
}

// VisibleLayout returns the entries that are not placeholder slots, in their
// original order. The result is never nil.
func VisibleLayout(entries []LayoutEntry) []LayoutEntry {
	out := make([]LayoutEntry, 0, len(entries))
	for _, e := range entries {
		if IsPlaceholderSlot(e) {
			continue
		}
		out = append(out, e)
	}
	return out
}
