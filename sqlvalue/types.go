package sqlvalue

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ninjasync/nxsqlite/isodate"
	"github.com/shopspring/decimal"
)

// Type is a decode target.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeString
	TypeInt
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeBool
	TypeFloat32
	TypeFloat64
	TypeDecimal
	TypeBytes
	TypeEnum
	TypeDuration
	TypeTime
	TypeDateTime
	TypeUUID
)

var typeNames = [...]string{
	TypeInvalid:  "invalid",
	TypeString:   "string",
	TypeInt:      "int",
	TypeInt8:     "int8",
	TypeInt16:    "int16",
	TypeInt32:    "int32",
	TypeInt64:    "int64",
	TypeUint8:    "uint8",
	TypeUint16:   "uint16",
	TypeUint32:   "uint32",
	TypeBool:     "bool",
	TypeFloat32:  "float32",
	TypeFloat64:  "float64",
	TypeDecimal:  "decimal",
	TypeBytes:    "bytes",
	TypeEnum:     "enum",
	TypeDuration: "duration",
	TypeTime:     "time",
	TypeDateTime: "datetime",
	TypeUUID:     "uuid",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

var (
	durationType = reflect.TypeFor[time.Duration]()
	timeType     = reflect.TypeFor[time.Time]()
	dateTimeType = reflect.TypeFor[isodate.DateTime]()
	uuidType     = reflect.TypeFor[uuid.UUID]()
	decimalType  = reflect.TypeFor[decimal.Decimal]()
)

// TypeFor returns the decode target for values of t. A pointer type
// decodes as its element type, with NULL becoming a nil pointer.
func TypeFor(t reflect.Type) (Type, error) {
	if t == nil {
		return TypeInvalid, &UnsupportedTypeError{Op: "decode"}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case durationType:
		return TypeDuration, nil
	case timeType:
		return TypeTime, nil
	case dateTimeType:
		return TypeDateTime, nil
	case uuidType:
		return TypeUUID, nil
	case decimalType:
		return TypeDecimal, nil
	}

	named := t.PkgPath() != ""
	switch t.Kind() {
	case reflect.String:
		return TypeString, nil
	case reflect.Bool:
		return TypeBool, nil
	case reflect.Float32:
		return TypeFloat32, nil
	case reflect.Float64:
		return TypeFloat64, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return TypeBytes, nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		if named {
			return TypeEnum, nil
		}
		return intTypes[t.Kind()], nil
	}
	return TypeInvalid, &UnsupportedTypeError{Type: t, Op: "decode"}
}

var intTypes = map[reflect.Kind]Type{
	reflect.Int:    TypeInt,
	reflect.Int8:   TypeInt8,
	reflect.Int16:  TypeInt16,
	reflect.Int32:  TypeInt32,
	reflect.Int64:  TypeInt64,
	reflect.Uint8:  TypeUint8,
	reflect.Uint16: TypeUint16,
	reflect.Uint32: TypeUint32,
}

// Assign stores v into dst, which must be settable. NULL stores the
// zero value, so a nil pointer for pointer destinations. Non-NULL
// values are stored through pointers, allocating as needed.
func (v Value) Assign(dst reflect.Value) error {
	if v.kind == KindNull {
		dst.SetZero()
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := v.Assign(p.Elem()); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	t := dst.Type()
	switch v.kind {
	case KindInt, KindBool, KindEnum, KindDuration:
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetInt(v.n)
			return nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			dst.SetUint(uint64(v.n))
			return nil
		case reflect.Bool:
			dst.SetBool(v.n != 0)
			return nil
		case reflect.Float32, reflect.Float64:
			dst.SetFloat(float64(v.n))
			return nil
		}
	case KindFloat:
		switch {
		case t == decimalType:
			if math.IsInf(v.f, 0) || math.IsNaN(v.f) {
				return fmt.Errorf("%w: %v", ErrNotFinite, v.f)
			}
			dst.Set(reflect.ValueOf(decimal.NewFromFloat(v.f)))
			return nil
		case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
			dst.SetFloat(v.f)
			return nil
		}
	case KindDecimal:
		switch {
		case t == decimalType:
			dst.Set(reflect.ValueOf(v.dec))
			return nil
		case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
			dst.SetFloat(v.dec.InexactFloat64())
			return nil
		}
	case KindText:
		if t.Kind() == reflect.String {
			dst.SetString(v.s)
			return nil
		}
	case KindBlob:
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			dst.SetBytes(v.b)
			return nil
		}
	case KindTime:
		switch t {
		case timeType:
			dst.Set(reflect.ValueOf(v.t))
			return nil
		case dateTimeType:
			dst.Set(reflect.ValueOf(isodate.FromTime(v.t)))
			return nil
		}
	case KindDateTime:
		switch t {
		case dateTimeType:
			dst.Set(reflect.ValueOf(v.dt))
			return nil
		case timeType:
			dst.Set(reflect.ValueOf(v.dt.Time()))
			return nil
		}
	case KindUUID:
		if t == uuidType {
			dst.Set(reflect.ValueOf(v.u))
			return nil
		}
	}
	return fmt.Errorf("sqlvalue: cannot assign %v value to %v", v.kind, t)
}
