// Package sqlvalue converts between Go values and SQLite storage cells.
//
// The set of values that can be stored is closed: a Value is one of the
// kinds listed below, and Of rejects anything else with an
// UnsupportedTypeError. A Codec binds a Value to a statement parameter
// and decodes a result column into a Value of a requested Type.
package sqlvalue

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ninjasync/nxsqlite/isodate"
	"github.com/shopspring/decimal"
)

// Kind is the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindBool
	KindFloat
	KindDecimal
	KindText
	KindBlob
	KindEnum
	KindDuration
	KindTime
	KindDateTime
	KindUUID
)

var kindNames = [...]string{
	KindNull:     "null",
	KindInt:      "int",
	KindBool:     "bool",
	KindFloat:    "float",
	KindDecimal:  "decimal",
	KindText:     "text",
	KindBlob:     "blob",
	KindEnum:     "enum",
	KindDuration: "duration",
	KindTime:     "time",
	KindDateTime: "datetime",
	KindUUID:     "uuid",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a tagged union over the storable kinds.
// The zero Value is NULL.
type Value struct {
	kind Kind
	n    int64 // int, bool, enum, duration (nanoseconds)
	f    float64
	s    string
	b    []byte
	t    time.Time
	dt   isodate.DateTime
	u    uuid.UUID
	dec  decimal.Decimal
	enum reflect.Type // named integer type of an enum, if known
}

func Null() Value                       { return Value{} }
func Int(n int64) Value                 { return Value{kind: KindInt, n: n} }
func Float(f float64) Value             { return Value{kind: KindFloat, f: f} }
func Decimal(d decimal.Decimal) Value   { return Value{kind: KindDecimal, dec: d} }
func Text(s string) Value               { return Value{kind: KindText, s: s} }
func Blob(b []byte) Value               { return Value{kind: KindBlob, b: b} }
func Duration(d time.Duration) Value    { return Value{kind: KindDuration, n: int64(d)} }
func Time(t time.Time) Value            { return Value{kind: KindTime, t: t} }
func DateTime(d isodate.DateTime) Value { return Value{kind: KindDateTime, dt: d} }
func UUID(u uuid.UUID) Value            { return Value{kind: KindUUID, u: u} }

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.n = 1
	}
	return v
}

// Enum returns the enumeration value n of the named integer type typ.
// typ may be nil when the type is not known, as for decoded values.
func Enum(typ reflect.Type, n int64) Value {
	return Value{kind: KindEnum, n: n, enum: typ}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns the integer held by an int, bool, enum or duration value.
func (v Value) Int64() int64 { return v.n }

func (v Value) Bool() bool                 { return v.n != 0 }
func (v Value) Float64() float64           { return v.f }
func (v Value) Decimal() decimal.Decimal   { return v.dec }
func (v Value) Text() string               { return v.s }
func (v Value) Blob() []byte               { return v.b }
func (v Value) Duration() time.Duration    { return time.Duration(v.n) }
func (v Value) Time() time.Time            { return v.t }
func (v Value) DateTime() isodate.DateTime { return v.dt }
func (v Value) UUID() uuid.UUID            { return v.u }
func (v Value) EnumType() reflect.Type     { return v.enum }

// Interface returns v as a plain Go value, or nil for NULL.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.n
	case KindBool:
		return v.n != 0
	case KindFloat:
		return v.f
	case KindDecimal:
		return v.dec
	case KindText:
		return v.s
	case KindBlob:
		return v.b
	case KindEnum:
		if v.enum != nil {
			return reflect.ValueOf(v.n).Convert(v.enum).Interface()
		}
		return v.n
	case KindDuration:
		return time.Duration(v.n)
	case KindTime:
		return v.t
	case KindDateTime:
		return v.dt
	case KindUUID:
		return v.u
	default:
		return nil
	}
}

// String formats v for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindText:
		return v.s
	case KindBlob:
		return "x'" + hex.EncodeToString(v.b) + "'"
	case KindTime:
		if !isodate.InRange(v.t) {
			return v.t.String()
		}
		return isodate.FromTime(v.t).Format()
	case KindDateTime:
		if !v.dt.Valid() {
			return fmt.Sprintf("DateTime(ticks=%d)", v.dt.Ticks)
		}
		return v.dt.Format()
	default:
		return fmt.Sprint(v.Interface())
	}
}

// UnsupportedTypeError reports a Go type outside the storable set.
type UnsupportedTypeError struct {
	Type reflect.Type
	Op   string // "bind" or "decode"
}

func (e *UnsupportedTypeError) Error() string {
	name := "<nil>"
	if e.Type != nil {
		name = e.Type.String()
	}
	return "sqlvalue: cannot " + e.Op + " type " + name
}

// Of converts x to a Value. Pointers are followed, nil pointers are
// NULL, and named integer types other than time.Duration are enums.
func Of(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case decimal.Decimal:
		return Decimal(x), nil
	case string:
		return Text(x), nil
	case []byte:
		if x == nil {
			return Null(), nil
		}
		return Blob(x), nil
	case time.Duration:
		return Duration(x), nil
	case time.Time:
		return Time(x), nil
	case isodate.DateTime:
		return DateTime(x), nil
	case uuid.UUID:
		return UUID(x), nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		return Of(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Enum(rv.Type(), rv.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Enum(rv.Type(), int64(rv.Uint())), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	}
	return Value{}, &UnsupportedTypeError{Type: rv.Type(), Op: "bind"}
}
