package sqliteh

import (
	"errors"
	"fmt"
	"testing"
)

func TestOpenFlagsString(t *testing.T) {
	tests := []struct {
		flags OpenFlags
		want  string
	}{
		{0, ""},
		{SQLITE_OPEN_READONLY, "SQLITE_OPEN_READONLY"},
		{OpenFlagsDefault, "SQLITE_OPEN_READWRITE|SQLITE_OPEN_CREATE|SQLITE_OPEN_URI|SQLITE_OPEN_FULLMUTEX"},
		{SQLITE_OPEN_MEMORY | 0x8, "SQLITE_OPEN_MEMORY|UNKNOWN_FLAG:8"},
	}
	for _, tt := range tests {
		if got := tt.flags.String(); got != tt.want {
			t.Errorf("OpenFlags(%#x).String() = %q, want %q", int(tt.flags), got, tt.want)
		}
	}
	if !OpenFlagsDefault.Create() || SQLITE_OPEN_READWRITE.Create() {
		t.Error("Create() mismatch")
	}
}

func TestCodeString(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{SQLITE_CONSTRAINT, "SQLITE_CONSTRAINT"},
		{SQLITE_CONSTRAINT_UNIQUE, "SQLITE_CONSTRAINT_UNIQUE"},
		{SQLITE_IOERR | 7<<8, "SQLITE_IOERR(1802)"},
		{SQLITE_DONE, "SQLITE_DONE(not an error)"},
		{99, "SQLITE_UNKNOWN_ERR(99)"},
		{-3, "SQLITE_UNKNOWN_ERR(-3)"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("Code(%d).String() = %q, want %q", int(tt.code), got, tt.want)
		}
	}
}

func TestErrCodeIs(t *testing.T) {
	err := fmt.Errorf("insert: %w", CodeAsError(SQLITE_CONSTRAINT_UNIQUE))
	if !errors.Is(err, ErrCode(SQLITE_CONSTRAINT)) {
		t.Error("extended code does not match its primary code")
	}
	if !errors.Is(err, ErrCode(SQLITE_CONSTRAINT_UNIQUE)) {
		t.Error("extended code does not match itself")
	}
	if errors.Is(err, ErrCode(SQLITE_CONSTRAINT_NOTNULL)) {
		t.Error("extended code matches a sibling")
	}
	if errors.Is(CodeAsError(SQLITE_CONSTRAINT), ErrCode(SQLITE_CONSTRAINT_UNIQUE)) {
		t.Error("primary code matches an extended code")
	}
	for _, c := range []Code{SQLITE_OK, SQLITE_ROW, SQLITE_DONE} {
		if err := CodeAsError(c); err != nil {
			t.Errorf("CodeAsError(%v) = %v, want nil", c, err)
		}
	}
}
