// Package timeslot parses weekly time ranges and detects schedule collisions.
package timeslot

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/uniplan/enrollment-api/internal/models"
)

var rangePattern = regexp.MustCompile(`^(\d{2}):(\d{2})-(\d{2}):(\d{2})$`)

// Parse failures. Messages are user-facing and surfaced verbatim.
var (
	ErrInvalidFormat = errors.New("invalid time range format, expected HH:MM-HH:MM")
	ErrInvalidRange  = errors.New("invalid time range: start must come before end and fit within 00:00-24:00")
)

// Range holds a time slot's bounds in minutes since midnight.
type Range struct {
	Start int
	End   int
}

// ParseRange converts an "HH:MM-HH:MM" string into minute bounds.
func ParseRange(s string) (Range, error) {
	m := rangePattern.FindStringSubmatch(s)
	if m == nil {
		return Range{}, ErrInvalidFormat
	}

	startH, _ := strconv.Atoi(m[1])
	startM, _ := strconv.Atoi(m[2])
	endH, _ := strconv.Atoi(m[3])
	endM, _ := strconv.Atoi(m[4])

	r := Range{Start: startH*60 + startM, End: endH*60 + endM}
	if r.Start >= r.End || r.Start < 0 || r.End > 24*60 {
		return Range{}, ErrInvalidRange
	}
	return r, nil
}

// Overlaps reports whether two ranges share time, treating them as half-open
// intervals: a slot ending exactly when another begins does not overlap.
func (r Range) Overlaps(o Range) bool {
	return max(r.Start, o.Start) < min(r.End, o.End)
}

// DetectConflicts runs an exhaustive pairwise comparison across the subjects'
// slot cross-products and reports every colliding pair. Slots whose time
// string no longer parses are skipped; stored slots were validated at
// creation time and a corrupt one must not break enrollment display.
func DetectConflicts(subjects []models.Subject) []models.ScheduleConflict {
	var conflicts []models.ScheduleConflict
	for i := 0; i < len(subjects); i++ {
		for j := i + 1; j < len(subjects); j++ {
			if c := pairConflict(subjects[i], subjects[j]); c != nil {
				conflicts = append(conflicts, *c)
			}
		}
	}
	return conflicts
}

func pairConflict(a, b models.Subject) *models.ScheduleConflict {
	for _, slotA := range a.Schedule {
		rangeA, err := ParseRange(slotA.Time)
		if err != nil {
			continue
		}
		for _, slotB := range b.Schedule {
			if slotA.Day != slotB.Day {
				continue
			}
			rangeB, err := ParseRange(slotB.Time)
			if err != nil {
				continue
			}
			if rangeA.Overlaps(rangeB) {
				return &models.ScheduleConflict{
					SubjectA: a.Name,
					SubjectB: b.Name,
					Day:      slotA.Day,
					TimeA:    slotA.Time,
					TimeB:    slotB.Time,
				}
			}
		}
	}
	return nil
}

// HasRegistrationOverlap checks a new subject's slots against the flattened
// schedules of the other subjects in the same semester. New slots are parsed
// strictly and failures propagate; a stored slot that fails to parse skips
// that comparison. The boundary condition intentionally differs from
// Range.Overlaps and is kept as-is pending a product decision on unifying
// the two semantics.
func HasRegistrationOverlap(newSlots, existing []models.ScheduleSlot) (bool, error) {
	for _, slot := range newSlots {
		newRange, err := ParseRange(slot.Time)
		if err != nil {
			return false, err
		}
		for _, other := range existing {
			if other.Day != slot.Day {
				continue
			}
			otherRange, err := ParseRange(other.Time)
			if err != nil {
				continue
			}
			if (newRange.Start >= otherRange.Start && newRange.Start < otherRange.End) ||
				(newRange.End > otherRange.Start && newRange.End <= otherRange.End) ||
				(newRange.Start <= otherRange.Start && newRange.End >= otherRange.End) {
				return true, nil
			}
		}
	}
	return false, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
