package timers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationRe = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)
	clockRe    = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*(am|pm)?$`)
)

// ParseFireAt interprets a spoken time expression and returns the absolute
// fire-at time. Two grammars are accepted:
//
//   - Durations like "5m", "1h30m", "90s": relative to now.
//   - Clock times like "7:30", "6:15pm": the next occurrence of that wall
//     time, rolling over to tomorrow when it has already passed today.
func ParseFireAt(input string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return time.Time{}, fmt.Errorf("timers: empty time expression")
	}

	if m := durationRe.FindStringSubmatch(s); m != nil && (m[1] != "" || m[2] != "" || m[3] != "") {
		var d time.Duration
		if m[1] != "" {
			h, _ := strconv.Atoi(m[1])
			d += time.Duration(h) * time.Hour
		}
		if m[2] != "" {
			min, _ := strconv.Atoi(m[2])
			d += time.Duration(min) * time.Minute
		}
		if m[3] != "" {
			sec, _ := strconv.Atoi(m[3])
			d += time.Duration(sec) * time.Second
		}
		if d <= 0 {
			return time.Time{}, fmt.Errorf("timers: zero duration %q", input)
		}
		return now.Add(d), nil
	}

	if m := clockRe.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if minute > 59 {
			return time.Time{}, fmt.Errorf("timers: invalid minutes in %q", input)
		}
		switch m[3] {
		case "pm":
			if hour > 12 {
				return time.Time{}, fmt.Errorf("timers: invalid hour in %q", input)
			}
			if hour != 12 {
				hour += 12
			}
		case "am":
			if hour > 12 {
				return time.Time{}, fmt.Errorf("timers: invalid hour in %q", input)
			}
			if hour == 12 {
				hour = 0
			}
		default:
			if hour > 23 {
				return time.Time{}, fmt.Errorf("timers: invalid hour in %q", input)
			}
		}

		fireAt := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !fireAt.After(now) {
			fireAt = fireAt.AddDate(0, 0, 1)
		}
		return fireAt, nil
	}

	return time.Time{}, fmt.Errorf("timers: unrecognized time expression %q", input)
}

// FormatRemaining renders a duration the way it should be spoken:
// "1 hour 5 minutes", "2 minutes 30 seconds", "45 seconds".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)

	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	var parts []string
	if h > 0 {
		parts = append(parts, plural(h, "hour"))
	}
	if m > 0 {
		parts = append(parts, plural(m, "minute"))
	}
	// Seconds are spoken only when the remaining time is short enough for
	// them to matter.
	if s > 0 && h == 0 {
		parts = append(parts, plural(s, "second"))
	}
	if len(parts) == 0 {
		return "0 seconds"
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
