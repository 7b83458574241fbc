// Package season computes the weekly ranking window. Seasons roll over at
// Monday 09:00 in UTC+9; the window id is derived from the start date so
// identical instants always map to identical seasons.
package season

import (
	"time"

	"github.com/funniceguy/web-minigame-factory/internal/domain"
)

const idPrefix = "kst-week-"

// Length of one season.
const Length = 7 * 24 * time.Hour

var kst = time.FixedZone("KST", 9*60*60)

// CurrentWindow returns the season containing now. The function is pure;
// callers must invoke it fresh whenever season currency is checked.
func CurrentWindow(now time.Time) domain.Season {
	local := now.In(kst)

	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, kst)
	daysSinceMonday := (int(local.Weekday()) + 6) % 7

	start := midnight.AddDate(0, 0, -daysSinceMonday).Add(9 * time.Hour)
	// Before Monday 09:00 the window is still the previous week's.
	if local.Before(start) {
		start = start.AddDate(0, 0, -7)
	}
	end := start.Add(Length)

	return domain.Season{
		ID:      idPrefix + start.In(kst).Format("2006-01-02"),
		StartAt: start.UnixMilli(),
		EndAt:   end.UnixMilli(),
	}
}
