// Package timeconv converts instants into per-zone display values and
// computes the signed offset between two IANA timezones.
package timeconv

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Conversion holds the display values for one instant in one zone.
type Conversion struct {
	LocalTime string // "3:04 PM"
	LocalDate string // "Mon, Jan 2"
	UTCOffset string // "UTC+5:30", "UTC-8", or "UTC"
}

// Delta describes how zoneB relates to zoneA at a reference instant.
type Delta struct {
	// Hours is the signed offset of zoneB relative to zoneA. Zones with
	// fractional offsets (e.g. Asia/Kolkata) yield non-integer values.
	Hours float64

	// DayRollover is -1, 0 or +1 depending on whether the reference
	// instant falls on the previous, same, or next calendar day in
	// zoneB relative to zoneA.
	DayRollover int
}

// Convert maps an instant and an IANA zone name to displayable local
// time, date, and UTC offset strings. The only failure mode is an
// unknown zone identifier.
func Convert(instant time.Time, zone string) (Conversion, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Conversion{}, errors.Wrapf(err, "invalid timezone %q", zone)
	}

	local := instant.In(loc)
	_, offset := local.Zone()

	return Conversion{
		LocalTime: local.Format("3:04 PM"),
		LocalDate: local.Format("Mon, Jan 2"),
		UTCOffset: formatUTCOffset(offset),
	}, nil
}

// Difference computes the signed hour delta and day rollover between
// two zones for a given reference instant. DST is respected because
// both offsets are evaluated at the reference instant itself.
func Difference(zoneA, zoneB string, reference time.Time) (Delta, error) {
	locA, err := time.LoadLocation(zoneA)
	if err != nil {
		return Delta{}, errors.Wrapf(err, "invalid timezone %q", zoneA)
	}
	locB, err := time.LoadLocation(zoneB)
	if err != nil {
		return Delta{}, errors.Wrapf(err, "invalid timezone %q", zoneB)
	}

	inA := reference.In(locA)
	inB := reference.In(locB)
	_, offsetA := inA.Zone()
	_, offsetB := inB.Zone()

	return Delta{
		Hours:       float64(offsetB-offsetA) / 3600,
		DayRollover: dayRollover(inA, inB),
	}, nil
}

// dayRollover compares the calendar dates of the same instant in two
// zones. Extreme zone pairs (UTC-12 vs UTC+14) can be two calendar days
// apart for a sliver of each day; the indicator saturates at ±1.
func dayRollover(inA, inB time.Time) int {
	yA, mA, dA := inA.Date()
	yB, mB, dB := inB.Date()
	dayA := time.Date(yA, mA, dA, 0, 0, 0, 0, time.UTC)
	dayB := time.Date(yB, mB, dB, 0, 0, 0, 0, time.UTC)

	switch {
	case dayB.After(dayA):
		return 1
	case dayB.Before(dayA):
		return -1
	default:
		return 0
	}
}

// formatUTCOffset renders a zone offset in seconds as a compact label.
func formatUTCOffset(seconds int) string {
	if seconds == 0 {
		return "UTC"
	}

	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}

	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("UTC%s%d", sign, hours)
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, hours, minutes)
}
