package session

import (
	"time"

	"github.com/colonyops/huddle/internal/core/payload"
)

// Palette holds the participant colors. A participant's color is
// Palette[joinIndex % len(Palette)].
var Palette = [...]string{
	"#E57373", // red
	"#64B5F6", // blue
	"#81C784", // green
	"#FFB74D", // orange
	"#BA68C8", // purple
	"#4DB6AC", // teal
	"#F06292", // pink
	"#AED581", // lime
	"#7986CB", // indigo
	"#FFD54F", // amber
	"#4DD0E1", // cyan
	"#A1887F", // brown
}

// PaletteSize is the number of distinct participant colors.
const PaletteSize = len(Palette)

// ColorFor returns the palette entry for a zero-based join index.
func ColorFor(joinIndex int) string {
	if joinIndex < 0 {
		joinIndex = -joinIndex
	}
	return Palette[joinIndex%PaletteSize]
}

// Presence is the ephemeral cursor/selection/activity state of a participant.
// Cursor and Selection are opaque client payloads relayed as-is.
type Presence struct {
	Cursor    payload.Raw `json:"cursor,omitempty"`
	Selection payload.Raw `json:"selection,omitempty"`
	IsActive  bool        `json:"isActive"`
	Color     string      `json:"color"`
	UpdatedAt time.Time   `json:"timestamp"`
}

// PresenceUpdate carries the fields present in a presence:update request.
// A field is applied only when its Set flag is true, so clients can clear a
// cursor by sending an explicit null.
type PresenceUpdate struct {
	Cursor       payload.Raw
	CursorSet    bool
	Selection    payload.Raw
	SelectionSet bool
	IsActive     bool
	IsActiveSet  bool
	Timestamp    time.Time // zero means "use server time"
}

// Apply returns p with the update's fields overwritten.
func (p Presence) Apply(upd PresenceUpdate, now time.Time) Presence {
	if upd.CursorSet {
		p.Cursor = orNil(upd.Cursor)
	}
	if upd.SelectionSet {
		p.Selection = orNil(upd.Selection)
	}
	if upd.IsActiveSet {
		p.IsActive = upd.IsActive
	}
	if upd.Timestamp.IsZero() {
		p.UpdatedAt = now
	} else {
		p.UpdatedAt = upd.Timestamp
	}
	return p
}

func orNil(r payload.Raw) payload.Raw {
	if r.IsNull() {
		return nil
	}
	return r
}
