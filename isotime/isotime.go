// Package isotime implements the planner's metadata and time model: parsing,
// normalizing, and performing arithmetic on absolute timestamps and
// durations expressed in ISO-8601, converted internally to a signed integer
// count of microseconds. All public temporal values at external interfaces
// are ISO-8601; the engine and STN operate exclusively on Micros.
package isotime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/latticeplan/htn/planerrors"
)

// Micros is a signed count of microseconds, used both for absolute instants
// (relative to the Unix epoch) and for durations.
type Micros int64

// durationPattern matches the ISO-8601 duration grammar PnYnMnDTnHnMnS, with
// every designator optional and T required only when a time component is
// present. Matching is permissive; ToMicrosDur rejects Y/M (calendar) parts.
var durationPattern = regexp.MustCompile(
	`^P(?:(\d+(?:\.\d+)?)Y)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)D)?` +
		`(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

const (
	microsPerSecond = 1_000_000
	microsPerMinute = 60 * microsPerSecond
	microsPerHour   = 60 * microsPerMinute
	microsPerDay    = 24 * microsPerHour
)

// ToMicrosAbs parses an absolute ISO-8601 datetime (extended format, explicit
// timezone offset or "Z") into microseconds since the Unix epoch.
func ToMicrosAbs(iso string) (Micros, error) {
	if iso == "" {
		return 0, planerrors.New(planerrors.MalformedMetadata, "empty absolute timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return 0, planerrors.Wrap(planerrors.MalformedMetadata, fmt.Sprintf("parse absolute timestamp %q", iso), err)
	}
	sec := t.Unix()
	nsec := int64(t.Nanosecond())
	micros := sec*microsPerSecond + nsec/1000
	if sec != 0 && (micros-nsec/1000)/microsPerSecond != sec {
		return 0, planerrors.Newf(planerrors.MalformedMetadata, "absolute timestamp %q overflows microsecond range", iso)
	}
	return Micros(micros), nil
}

// FromMicrosAbs formats microseconds since the Unix epoch as a canonical
// absolute ISO-8601 datetime in UTC with microsecond precision.
func FromMicrosAbs(m Micros) string {
	sec := int64(m) / microsPerSecond
	rem := int64(m) % microsPerSecond
	if rem < 0 {
		rem += microsPerSecond
		sec--
	}
	t := time.Unix(sec, rem*1000).UTC()
	return t.Format("2006-01-02T15:04:05.000000Z")
}

// ToMicrosDur parses an ISO-8601 duration (PnYnMnDTnHnMnS) into microseconds.
// Year and calendar-month designators are rejected as malformed: their
// duration in microseconds depends on an anchor date this package does not
// have, and spec.md explicitly calls this case out as unsupported.
func ToMicrosDur(iso string) (Micros, error) {
	if iso == "" {
		return 0, planerrors.New(planerrors.MalformedMetadata, "empty duration")
	}
	m := durationPattern.FindStringSubmatch(iso)
	if m == nil || iso == "P" || iso == "PT" {
		return 0, planerrors.Newf(planerrors.MalformedMetadata, "malformed ISO-8601 duration %q", iso)
	}
	years, months, days, hours, minutes, seconds := m[1], m[2], m[3], m[4], m[5], m[6]
	if years != "" {
		return 0, planerrors.Newf(planerrors.MalformedMetadata, "duration %q uses a year designator, which requires calendar semantics this package does not implement", iso)
	}
	if months != "" {
		return 0, planerrors.Newf(planerrors.MalformedMetadata, "duration %q uses a calendar-month designator, which requires calendar semantics this package does not implement", iso)
	}
	var total float64
	for _, part := range []struct {
		raw   string
		scale float64
	}{
		{days, float64(microsPerDay)},
		{hours, float64(microsPerHour)},
		{minutes, float64(microsPerMinute)},
		{seconds, float64(microsPerSecond)},
	} {
		if part.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(part.raw, 64)
		if err != nil {
			return 0, planerrors.Wrap(planerrors.MalformedMetadata, fmt.Sprintf("parse duration component in %q", iso), err)
		}
		total += v * part.scale
	}
	if total < 0 {
		return 0, planerrors.Newf(planerrors.MalformedMetadata, "duration %q is negative", iso)
	}
	return Micros(total), nil
}

// FromMicrosDur formats microseconds as a canonical ISO-8601 duration using
// only day/hour/minute/second designators.
func FromMicrosDur(m Micros) string {
	if m < 0 {
		m = 0
	}
	remaining := int64(m)
	days := remaining / microsPerDay
	remaining %= microsPerDay
	hours := remaining / microsPerHour
	remaining %= microsPerHour
	minutes := remaining / microsPerMinute
	remaining %= microsPerMinute
	secMicros := remaining

	var b strings.Builder
	b.WriteString("P")
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	hasTime := hours > 0 || minutes > 0 || secMicros > 0
	if hasTime {
		b.WriteString("T")
		if hours > 0 {
			fmt.Fprintf(&b, "%dH", hours)
		}
		if minutes > 0 {
			fmt.Fprintf(&b, "%dM", minutes)
		}
		if secMicros > 0 {
			whole := secMicros / microsPerSecond
			frac := secMicros % microsPerSecond
			if frac == 0 {
				fmt.Fprintf(&b, "%dS", whole)
			} else {
				fmt.Fprintf(&b, "%d.%06dS", whole, frac)
			}
		}
	}
	if days == 0 && !hasTime {
		return "PT0S"
	}
	return b.String()
}
