package isodate

import (
	"time"
)

var power10 = [...]int64{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000}

// Parse parses s, converting values with an explicit offset to the
// local time zone. See ParseIn.
func Parse(s string) (DateTime, bool) {
	return ParseIn(s, time.Local)
}

// ParseIn parses s in the single left-to-right grammar
//
//	YYYY-MM-DDTHH:mm:ss[.f{1,7}][Z|±HH[[:]mm]]
//
// and reports false unless the whole of s was consumed.
//
// Without a zone the result is Unspecified and with Z it is UTC. An
// explicit offset yields a Local value: the instant is converted to its
// wall clock in loc, or time.Local if loc is nil. Should that instant
// fall outside the representable range, loc's offset at the parsed wall
// clock is used instead and the result clamped to [MinTicks, MaxTicks].
func ParseIn(s string, loc *time.Location) (DateTime, bool) {
	if loc == nil {
		loc = time.Local
	}
	p := parser{s: s}
	if !p.parse() {
		return DateTime{}, false
	}

	d := dateToTicks(p.year, p.month, p.day) + timeToTicks(p.hour, p.minute, p.second) + p.fraction
	switch p.zone {
	case zoneNone:
		return DateTime{Ticks: d}, true
	case zoneUTC:
		return DateTime{Ticks: d, Kind: UTC}, true
	}

	offset := int64(p.zoneHour)*TicksPerHour + int64(p.zoneMinute)*TicksPerMinute
	var utc int64
	var ok bool
	if p.zone == zoneWest {
		utc = d + offset
		ok = utc <= MaxTicks
	} else {
		utc = d - offset
		ok = utc >= MinTicks
	}
	if ok {
		return toLocal(utc, loc), true
	}

	// The instant is unrepresentable, so apply loc's offset at d to the
	// unclamped UTC ticks and clamp the result.
	local := localOffset(d, loc)
	return DateTime{Ticks: clampTicks(utc + local), Kind: Local, Offset: time.Duration(local) * nanosecondsPerTick}, true
}

// toLocal converts the UTC instant utc to its wall clock in loc.
func toLocal(utc int64, loc *time.Location) DateTime {
	_, off := ticksToTime(utc).In(loc).Zone()
	return DateTime{
		Ticks:  clampTicks(utc + int64(off)*TicksPerSecond),
		Kind:   Local,
		Offset: time.Duration(off) * time.Second,
	}
}

// localOffset returns loc's UTC offset in ticks for the wall clock d.
func localOffset(d int64, loc *time.Location) int64 {
	dt := DateTime{Ticks: d}
	y, m, day := dt.Date()
	h, mi, s := dt.Clock()
	_, off := time.Date(y, time.Month(m), day, h, mi, s, 0, loc).Zone()
	return int64(off) * TicksPerSecond
}

type zoneKind uint8

const (
	zoneNone zoneKind = iota
	zoneUTC
	zoneWest
	zoneEast
)

// parser holds the fields read so far. Each step consumes from pos
// and reports whether it matched. The range checks happen as the
// fields are read so a bad value stops the parse at that position.
type parser struct {
	s   string
	pos int

	year, month, day     int
	hour, minute, second int
	fraction             int64

	zone                 zoneKind
	zoneHour, zoneMinute int
}

func (p *parser) parse() bool {
	if !p.digits(4, &p.year) || p.year < 1 {
		return false
	}
	if !p.char('-') || !p.digits(2, &p.month) || p.month < 1 || p.month > 12 {
		return false
	}
	if !p.char('-') || !p.digits(2, &p.day) || p.day < 1 || p.day > DaysInMonth(p.year, p.month) {
		return false
	}
	if !p.char('T') || !p.digits(2, &p.hour) || p.hour >= 24 {
		return false
	}
	if !p.char(':') || !p.digits(2, &p.minute) || p.minute >= 60 {
		return false
	}
	if !p.char(':') || !p.digits(2, &p.second) || p.second >= 60 {
		return false
	}
	if p.char('.') && !p.parseFraction() {
		return false
	}
	if p.pos < len(p.s) && !p.parseZone() {
		return false
	}
	return p.pos == len(p.s)
}

// parseFraction reads one to seven digits, scaled to ticks.
func (p *parser) parseFraction() bool {
	n := 0
	var f int64
	for n < 7 && p.pos < len(p.s) && isDigit(p.s[p.pos]) {
		f = f*10 + int64(p.s[p.pos]-'0')
		p.pos++
		n++
	}
	if n == 0 {
		return false
	}
	p.fraction = f * power10[7-n]
	return true
}

func (p *parser) parseZone() bool {
	switch c := p.s[p.pos]; c {
	case 'Z', 'z':
		p.pos++
		p.zone = zoneUTC
		return true
	case '-', '+':
		p.pos++
		if !p.digits(2, &p.zoneHour) {
			return false
		}
		if c == '-' {
			p.zone = zoneWest
		} else {
			p.zone = zoneEast
		}
	default:
		return false
	}
	if p.pos == len(p.s) {
		return true
	}
	p.char(':')
	// Minutes are taken as given up to 99, like the hours.
	return p.digits(2, &p.zoneMinute)
}

func (p *parser) char(c byte) bool {
	if p.pos < len(p.s) && p.s[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) digits(n int, dst *int) bool {
	if p.pos+n > len(p.s) {
		return false
	}
	v := 0
	for i := 0; i < n; i++ {
		c := p.s[p.pos+i]
		if !isDigit(c) {
			return false
		}
		v = v*10 + int(c-'0')
	}
	p.pos += n
	*dst = v
	return true
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
