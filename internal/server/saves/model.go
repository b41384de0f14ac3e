// Package saves stores per-user game save snapshots as flat JSON files and
// keeps an in-memory index of them. Disk is the source of truth; the index is
// rebuilt from a directory scan at startup.
package saves

import (
	"time"

	"github.com/jimzhouzzy/klotski-server/internal/common"
)

// GameSave is both the upload payload and the content of a save file.
type GameSave struct {
	Username string `json:"username"`
	Date     string `json:"date"`
	SaveData string `json:"saveData"`
	AutoSave bool   `json:"autoSave"`
}

// Kind is "auto" or "manual", for logs and metrics.
func (g *GameSave) Kind() string {
	if g.AutoSave {
		return "auto"
	}
	return "manual"
}

// FileName is the name of the file holding g inside the user's directory.
func (g *GameSave) FileName() string {
	if g.AutoSave {
		return common.AutosavePrefix + g.Date + ".json"
	}
	return g.Date + ".json"
}

// dateLayouts are the ISO-8601 shapes clients are known to send, most
// specific first. Java's LocalDateTime.toString omits the zone.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 date string.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// olderThan orders saves by timestamp. Dates that do not parse, and ties,
// fall back to plain string order, which matches ISO-8601 order anyway.
func olderThan(a, b *GameSave) bool {
	ta, okA := ParseDate(a.Date)
	tb, okB := ParseDate(b.Date)
	if okA && okB && !ta.Equal(tb) {
		return ta.Before(tb)
	}
	return a.Date < b.Date
}
