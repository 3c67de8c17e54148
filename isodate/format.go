package isodate

import "time"

// Format returns d as YYYY-MM-DDTHH:mm:ss, followed by the fraction of
// the second with trailing zeros removed if it is non-zero, then Z for
// UTC values or ±HH:mm for Local values.
func (d DateTime) Format() string {
	var buf [64]byte
	return string(d.AppendFormat(buf[:0]))
}

func (d DateTime) String() string { return d.Format() }

// AppendFormat is like Format but appends to b.
func (d DateTime) AppendFormat(b []byte) []byte {
	year, month, day := d.Date()
	hour, min, sec := d.Clock()

	b = appendInt(b, year, 4)
	b = append(b, '-')
	b = appendInt(b, month, 2)
	b = append(b, '-')
	b = appendInt(b, day, 2)
	b = append(b, 'T')
	b = appendInt(b, hour, 2)
	b = append(b, ':')
	b = appendInt(b, min, 2)
	b = append(b, ':')
	b = appendInt(b, sec, 2)

	if f := d.Fraction(); f != 0 {
		digits := 7
		for f%10 == 0 {
			digits--
			f /= 10
		}
		b = append(b, '.')
		b = appendInt(b, f, digits)
	}

	switch d.Kind {
	case UTC:
		b = append(b, 'Z')
	case Local:
		b = appendOffset(b, d.Offset)
	}
	return b
}

func (d DateTime) MarshalText() ([]byte, error) {
	return d.AppendFormat(nil), nil
}

func (d *DateTime) UnmarshalText(b []byte) error {
	v, ok := Parse(string(b))
	if !ok {
		return &ParseError{Value: string(b)}
	}
	*d = v
	return nil
}

// ParseError reports text that is not an ISO 8601 date-time.
type ParseError struct {
	Value string
}

func (e *ParseError) Error() string {
	return "isodate: cannot parse " + quote(e.Value)
}

func appendOffset(b []byte, off time.Duration) []byte {
	if off >= 0 {
		b = append(b, '+')
	} else {
		b = append(b, '-')
		off = -off
	}
	b = appendInt(b, int(off/time.Hour%24), 2)
	b = append(b, ':')
	return appendInt(b, int(off/time.Minute%60), 2)
}

// appendInt appends the low digits decimal digits of v, zero padded.
func appendInt(b []byte, v, digits int) []byte {
	n := len(b)
	for i := 0; i < digits; i++ {
		b = append(b, '0')
	}
	for i := digits - 1; i >= 0; i-- {
		b[n+i] = byte('0' + v%10)
		v /= 10
	}
	return b
}

func quote(s string) string {
	const max = 64
	if len(s) > max {
		s = s[:max] + "..."
	}
	return `"` + s + `"`
}
