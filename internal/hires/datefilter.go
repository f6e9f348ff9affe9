package hires

import "github.com/example/taxi-admin/internal/models"

// Date filtering happens in memory over the already-fetched list, keyed
// on the hire's creation timestamp, matching how the office uses the
// screen (daily sheet, monthly sheet, free range).

func FilterByDay(hires []models.Hire, year int, month int, day int) []models.Hire {
	return filter(hires, func(h models.Hire) bool {
		t := h.Created.Time
		return !t.IsZero() && t.Year() == year && int(t.Month()) == month && t.Day() == day
	})
}

func FilterByMonth(hires []models.Hire, year int, month int) []models.Hire {
	return filter(hires, func(h models.Hire) bool {
		t := h.Created.Time
		return !t.IsZero() && t.Year() == year && int(t.Month()) == month
	})
}

// FilterByRange keeps hires created on any day from start through end,
// both inclusive, compared at day granularity in the timestamps' own
// zone.
func FilterByRange(hires []models.Hire, start, end models.Timestamp) []models.Hire {
	return filter(hires, func(h models.Hire) bool {
		t := h.Created.Time
		if t.IsZero() {
			return false
		}
		day := dateOnly(t.Year(), int(t.Month()), t.Day())
		s := dateOnly(start.Year(), int(start.Month()), start.Day())
		e := dateOnly(end.Year(), int(end.Month()), end.Day())
		return day >= s && day <= e
	})
}

// dateOnly packs a calendar date into a comparable int.
func dateOnly(year, month, day int) int {
	return year*10000 + month*100 + day
}

func filter(hires []models.Hire, keep func(models.Hire) bool) []models.Hire {
	out := make([]models.Hire, 0, len(hires))
	for _, h := range hires {
		if keep(h) {
			out = append(out, h)
		}
	}
	return out
}
