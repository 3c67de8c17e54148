package sqlvalue

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ninjasync/nxsqlite/isodate"
	"github.com/ninjasync/nxsqlite/sqliteh"
	"github.com/shopspring/decimal"
)

// ErrInvalidDateTime is returned when a text cell decoded as a
// date-time does not parse.
var ErrInvalidDateTime = errors.New("sqlvalue: invalid date-time")

// ErrDateTimeRange is returned when binding a date-time outside years
// 1 through 9999, which ISO text and ticks cannot represent.
var ErrDateTimeRange = errors.New("sqlvalue: date-time out of range")

// ErrNotFinite is returned when an infinite or NaN REAL is decoded
// into a decimal.
var ErrNotFinite = errors.New("sqlvalue: not a finite number")

// Binder is the parameter-binding subset of sqliteh.Stmt.
type Binder interface {
	BindNull(col int) error
	BindInt64(col int, val int64) error
	BindDouble(col int, val float64) error
	BindText64(col int, val string) error
	BindBlob64(col int, val []byte) error
}

// Reader is the column-reading subset of sqliteh.Stmt.
type Reader interface {
	ColumnType(col int) sqliteh.ColumnType
	ColumnInt64(col int) int64
	ColumnDouble(col int) float64
	ColumnText(col int) string
	ColumnBlob(col int) []byte
}

// Codec binds and decodes values under one connection's settings.
//
// Date-times are stored as integer ticks when Ticks is set and as ISO
// 8601 text otherwise. Values written under one setting must be read
// under the same one.
type Codec struct {
	Ticks bool
	// Location is the zone that text with an explicit UTC offset is
	// converted into. Nil means time.Local.
	Location *time.Location
}

// Bind binds v to the 1-based parameter pos.
func (c Codec) Bind(b Binder, pos int, v Value) error {
	switch v.kind {
	case KindNull:
		return b.BindNull(pos)
	case KindInt, KindBool, KindEnum:
		return b.BindInt64(pos, v.n)
	case KindFloat:
		return b.BindDouble(pos, v.f)
	case KindDecimal:
		// Stored as REAL, so precision beyond float64 is lost.
		return b.BindDouble(pos, v.dec.InexactFloat64())
	case KindText:
		return b.BindText64(pos, v.s)
	case KindBlob:
		return b.BindBlob64(pos, v.b)
	case KindDuration:
		return b.BindInt64(pos, v.n/100)
	case KindTime:
		if c.Ticks {
			if !isodate.InRange(v.t.UTC()) {
				return fmt.Errorf("%w: %v", ErrDateTimeRange, v.t)
			}
			return b.BindInt64(pos, isodate.FromTime(v.t.UTC()).Ticks)
		}
		if !isodate.InRange(v.t) {
			return fmt.Errorf("%w: %v", ErrDateTimeRange, v.t)
		}
		return b.BindText64(pos, isodate.FromTime(v.t).Format())
	case KindDateTime:
		if !v.dt.Valid() {
			return fmt.Errorf("%w: ticks %d", ErrDateTimeRange, v.dt.Ticks)
		}
		if c.Ticks {
			return b.BindInt64(pos, v.dt.Ticks)
		}
		return b.BindText64(pos, v.dt.Format())
	case KindUUID:
		return b.BindText64(pos, v.u.String())
	}
	return fmt.Errorf("sqlvalue: bind of unknown kind %v", v.kind)
}

// Decode reads column col as typ.
//
// NULL cells decode to a NULL Value whatever typ is. Float targets read
// NaN from TEXT and BLOB cells. Integer targets are truncated to their
// width.
func (c Codec) Decode(r Reader, col int, typ Type) (Value, error) {
	ct := r.ColumnType(col)
	if ct == sqliteh.SQLITE_NULL {
		return Null(), nil
	}
	switch typ {
	case TypeString:
		return Text(r.ColumnText(col)), nil
	case TypeInt, TypeInt64:
		return Int(r.ColumnInt64(col)), nil
	case TypeInt8:
		return Int(int64(int8(r.ColumnInt64(col)))), nil
	case TypeInt16:
		return Int(int64(int16(r.ColumnInt64(col)))), nil
	case TypeInt32:
		return Int(int64(int32(r.ColumnInt64(col)))), nil
	case TypeUint8:
		return Int(int64(uint8(r.ColumnInt64(col)))), nil
	case TypeUint16:
		return Int(int64(uint16(r.ColumnInt64(col)))), nil
	case TypeUint32:
		return Int(int64(uint32(r.ColumnInt64(col)))), nil
	case TypeBool:
		return Bool(r.ColumnInt64(col) != 0), nil
	case TypeFloat32, TypeFloat64:
		if ct != sqliteh.SQLITE_INTEGER && ct != sqliteh.SQLITE_FLOAT {
			return Float(math.NaN()), nil
		}
		f := r.ColumnDouble(col)
		if typ == TypeFloat32 {
			f = float64(float32(f))
		}
		return Float(f), nil
	case TypeDecimal:
		f := r.ColumnDouble(col)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return Value{}, fmt.Errorf("%w: %v", ErrNotFinite, f)
		}
		return Decimal(decimal.NewFromFloat(f)), nil
	case TypeBytes:
		return Blob(r.ColumnBlob(col)), nil
	case TypeEnum:
		return Enum(nil, r.ColumnInt64(col)), nil
	case TypeDuration:
		return Duration(time.Duration(r.ColumnInt64(col)) * 100), nil
	case TypeTime, TypeDateTime:
		dt, err := c.dateTime(r, col)
		if err != nil {
			return Value{}, err
		}
		if typ == TypeTime {
			return Time(dt.Time()), nil
		}
		return DateTime(dt), nil
	case TypeUUID:
		s := r.ColumnText(col)
		u, err := uuid.Parse(s)
		if err != nil {
			return Value{}, fmt.Errorf("sqlvalue: invalid UUID %q: %w", s, err)
		}
		return UUID(u), nil
	}
	return Value{}, fmt.Errorf("sqlvalue: decode to unknown type %v", typ)
}

func (c Codec) dateTime(r Reader, col int) (isodate.DateTime, error) {
	if c.Ticks {
		n := r.ColumnInt64(col)
		dt := isodate.FromTicks(n)
		if !dt.Valid() {
			return isodate.DateTime{}, fmt.Errorf("%w: ticks %d", ErrInvalidDateTime, n)
		}
		return dt, nil
	}
	s := r.ColumnText(col)
	dt, ok := isodate.ParseIn(s, c.Location)
	if !ok {
		return isodate.DateTime{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, s)
	}
	return dt, nil
}

// DecodeAny reads column col by its storage class alone.
func (c Codec) DecodeAny(r Reader, col int) Value {
	switch r.ColumnType(col) {
	case sqliteh.SQLITE_INTEGER:
		return Int(r.ColumnInt64(col))
	case sqliteh.SQLITE_FLOAT:
		return Float(r.ColumnDouble(col))
	case sqliteh.SQLITE_TEXT:
		return Text(r.ColumnText(col))
	case sqliteh.SQLITE_BLOB:
		return Blob(r.ColumnBlob(col))
	default:
		return Null()
	}
}
