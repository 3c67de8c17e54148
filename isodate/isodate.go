// Package isodate reads and writes ISO 8601 date-times of the form
//
//	YYYY-MM-DDTHH:mm:ss[.fffffff][Z|±HH[:]mm]
//
// counting time in ticks of 100 nanoseconds since 0001-01-01T00:00:00
// of the proleptic Gregorian calendar. This is the representation
// used when date-times are persisted as text or as integer ticks.
package isodate

import (
	"time"
)

const (
	TicksPerMicrosecond = 10
	TicksPerMillisecond = 10_000
	TicksPerSecond      = 10_000_000
	TicksPerMinute      = 60 * TicksPerSecond
	TicksPerHour        = 60 * TicksPerMinute
	TicksPerDay         = 24 * TicksPerHour

	// MinTicks is 0001-01-01T00:00:00.
	MinTicks int64 = 0
	// MaxTicks is 9999-12-31T23:59:59.9999999.
	MaxTicks int64 = 3155378975999999999
	// UnixEpochTicks is 1970-01-01T00:00:00.
	UnixEpochTicks int64 = 621355968000000000
)

const (
	daysPerYear        = 365
	daysPer4Years      = 4*daysPerYear + 1
	daysPer100Years    = 25*daysPer4Years - 1
	daysPer400Years    = 4*daysPer100Years + 1
	nanosecondsPerTick = 100
)

var (
	daysToMonth365 = [13]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334, 365}
	daysToMonth366 = [13]int{0, 31, 60, 91, 121, 152, 182, 213, 244, 274, 305, 335, 366}
)

// Kind says how a DateTime relates to UTC.
type Kind uint8

const (
	// Unspecified values carry no zone. They format without a suffix.
	Unspecified Kind = iota
	// UTC values format with a Z suffix.
	UTC
	// Local values are wall-clock times at a known UTC offset.
	// They format with a ±HH:mm suffix.
	Local
)

func (k Kind) String() string {
	switch k {
	case Unspecified:
		return "Unspecified"
	case UTC:
		return "UTC"
	case Local:
		return "Local"
	default:
		return "Kind(" + itoa(int(k)) + ")"
	}
}

// DateTime is a wall-clock time counted in ticks.
//
// For Local values Offset is the UTC offset of the wall clock, so the
// instant is Ticks minus Offset. Offset is zero for other kinds.
type DateTime struct {
	Ticks  int64
	Kind   Kind
	Offset time.Duration
}

// FromTicks returns the Unspecified DateTime at ticks.
func FromTicks(ticks int64) DateTime {
	return DateTime{Ticks: ticks}
}

// Date returns the DateTime for the given calendar fields.
// It reports false if any field is out of range.
func Date(year, month, day, hour, min, sec int, kind Kind) (DateTime, bool) {
	if year < 1 || year > 9999 || month < 1 || month > 12 {
		return DateTime{}, false
	}
	if day < 1 || day > DaysInMonth(year, month) {
		return DateTime{}, false
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
		return DateTime{}, false
	}
	return DateTime{Ticks: dateToTicks(year, month, day) + timeToTicks(hour, min, sec), Kind: kind}, true
}

// FromTime converts t. Times in time.UTC become UTC values, all others
// become Local values carrying t's offset. Times outside InRange are
// clamped to MinTicks or MaxTicks.
func FromTime(t time.Time) DateTime {
	_, off := t.Zone()
	var ticks int64
	switch y := t.Year(); {
	case y < 1:
		ticks = MinTicks
	case y > 9999:
		ticks = MaxTicks
	default:
		wall := t.Unix() + int64(off)
		ticks = UnixEpochTicks + wall*TicksPerSecond + int64(t.Nanosecond())/nanosecondsPerTick
	}
	if t.Location() == time.UTC {
		return DateTime{Ticks: ticks, Kind: UTC}
	}
	return DateTime{Ticks: ticks, Kind: Local, Offset: time.Duration(off) * time.Second}
}

// Time converts d to a time.Time. Unspecified values are read as UTC.
// Local values are returned in a fixed zone at their offset.
func (d DateTime) Time() time.Time {
	switch d.Kind {
	case Local:
		off := int64(d.Offset / time.Second)
		return ticksToTime(d.Ticks - off*TicksPerSecond).In(time.FixedZone("", int(off)))
	default:
		return ticksToTime(d.Ticks)
	}
}

// Date returns the calendar date of d.
func (d DateTime) Date() (year, month, day int) {
	return dateValues(clampTicks(d.Ticks))
}

// Clock returns the time of day of d.
func (d DateTime) Clock() (hour, min, sec int) {
	t := clampTicks(d.Ticks)
	hour = int(t / TicksPerHour % 24)
	min = int(t / TicksPerMinute % 60)
	sec = int(t / TicksPerSecond % 60)
	return hour, min, sec
}

// Fraction returns the ticks past the whole second.
func (d DateTime) Fraction() int {
	return int(clampTicks(d.Ticks) % TicksPerSecond)
}

// Valid reports whether d lies between MinTicks and MaxTicks. The
// calendar accessors and Format clamp values that do not.
func (d DateTime) Valid() bool {
	return MinTicks <= d.Ticks && d.Ticks <= MaxTicks
}

// InRange reports whether t falls in years 1 through 9999 of its own
// zone, the span a DateTime can hold.
func InRange(t time.Time) bool {
	y := t.Year()
	return 1 <= y && y <= 9999
}

// IsLeapYear reports whether year has 366 days.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in month of year.
// It returns 0 if month is not in [1, 12].
func DaysInMonth(year, month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	days := &daysToMonth365
	if IsLeapYear(year) {
		days = &daysToMonth366
	}
	return days[month] - days[month-1]
}

func dateToTicks(year, month, day int) int64 {
	days := &daysToMonth365
	if IsLeapYear(year) {
		days = &daysToMonth366
	}
	y := int64(year - 1)
	n := y*365 + y/4 - y/100 + y/400 + int64(days[month-1]) + int64(day-1)
	return n * TicksPerDay
}

func timeToTicks(hour, min, sec int) int64 {
	return int64(hour)*TicksPerHour + int64(min)*TicksPerMinute + int64(sec)*TicksPerSecond
}

// dateValues splits ticks into a calendar date without iterating over
// years: it peels off whole 400-, 100-, 4- and 1-year periods in turn.
func dateValues(ticks int64) (year, month, day int) {
	n := int(ticks / TicksPerDay)

	y400 := n / daysPer400Years
	n -= y400 * daysPer400Years

	// The last 100-year period of each 400 has an extra day.
	y100 := n / daysPer100Years
	if y100 == 4 {
		y100 = 3
	}
	n -= y100 * daysPer100Years

	y4 := n / daysPer4Years
	n -= y4 * daysPer4Years

	// Likewise the last year of each 4.
	y1 := n / daysPerYear
	if y1 == 4 {
		y1 = 3
	}

	year = y400*400 + y100*100 + y4*4 + y1 + 1
	n -= y1 * daysPerYear

	// y1, y4 and y100 count from year 1, so the leap test differs from IsLeapYear.
	leap := y1 == 3 && (y4 != 24 || y100 == 3)
	days := &daysToMonth365
	if leap {
		days = &daysToMonth366
	}

	// No month is 32 days long, so n/32 never overshoots.
	m := n>>5 + 1
	for n >= days[m] {
		m++
	}
	return year, m, n - days[m-1] + 1
}

func ticksToTime(ticks int64) time.Time {
	rel := ticks - UnixEpochTicks
	sec := rel / TicksPerSecond
	rem := rel % TicksPerSecond
	if rem < 0 {
		sec--
		rem += TicksPerSecond
	}
	return time.Unix(sec, rem*nanosecondsPerTick).UTC()
}

func clampTicks(ticks int64) int64 {
	if ticks < MinTicks {
		return MinTicks
	}
	if ticks > MaxTicks {
		return MaxTicks
	}
	return ticks
}

func itoa(v int) string {
	var buf [20]byte
	i := len(buf)
	neg := v < 0
	if neg {
		v = -v
	}
	for {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
