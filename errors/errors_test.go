package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseUnpack,
				Kind:   KindMagic,
				Path:   []string{"header", "e_ident", "EI_MAG0"},
				Detail: "expected 127, got 0",
			},
			contains: []string{"[unpack]", "magic", "header.e_ident.EI_MAG0", "expected 127"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhasePack,
				Kind:  KindOffsetUnresolved,
			},
			contains: []string{"[pack]", "offset_unresolved"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseUnpack,
				Kind:   KindTruncated,
				Detail: "need 4 bytes",
				Cause:  errors.New("unexpected EOF"),
			},
			contains: []string{"[unpack]", "truncated", "need 4 bytes", "caused by", "unexpected EOF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseUnpack,
		Kind:  KindTruncated,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseUnpack,
		Kind:  KindMagic,
		Path:  []string{"signature"},
	}

	tests := []struct {
		name   string
		target *Error
		want   bool
	}{
		{"same phase and kind", &Error{Phase: PhaseUnpack, Kind: KindMagic}, true},
		{"different phase", &Error{Phase: PhasePack, Kind: KindMagic}, false},
		{"different kind", &Error{Phase: PhaseUnpack, Kind: KindInvalidEnum}, false},
		{"kind wildcard phase", &Error{Kind: KindMagic}, true},
		{"phase wildcard kind", &Error{Phase: PhaseUnpack}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(err, tt.target); got != tt.want {
				t.Errorf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseUnpack, KindInvalidEnum).
		Path("header", "e_type").
		Value(42).
		Cause(cause).
		Detail("value %d not in %s", 42, "ElfType").
		Build()

	if err.Phase != PhaseUnpack {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseUnpack)
	}
	if err.Kind != KindInvalidEnum {
		t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidEnum)
	}
	if err.FieldPath() != "header.e_type" {
		t.Errorf("FieldPath = %q, want header.e_type", err.FieldPath())
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "value 42 not in ElfType" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestPrepend(t *testing.T) {
	var err error = Magic(PhaseUnpack, 0x7f, 0)
	err = Prepend(err, "EI_MAG0")
	err = Prepend(err, "e_ident")
	err = Prepend(fmt.Errorf("wrapped: %w", err), "header")

	path := PathOf(err)
	if strings.Join(path, ".") != "header.e_ident.EI_MAG0" {
		t.Fatalf("path = %v", path)
	}
	if KindOf(err) != KindMagic {
		t.Errorf("KindOf = %v, want magic", KindOf(err))
	}
	if !IsRecoverable(err) {
		t.Error("magic errors should be recoverable")
	}

	plain := Prepend(errors.New("boom"), "field")
	if KindOf(plain) != KindInvalidInput {
		t.Errorf("plain error kind = %v", KindOf(plain))
	}
	if p := PathOf(plain); len(p) != 1 || p[0] != "field" {
		t.Errorf("plain error path = %v", p)
	}

	if Prepend(nil, "x") != nil {
		t.Error("Prepend(nil) should stay nil")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name        string
		err         *Error
		kind        Kind
		recoverable bool
	}{
		{"Truncated", Truncated(PhaseUnpack, 4, 1, nil), KindTruncated, false},
		{"Magic", Magic(PhaseUnpack, "PK", "ZZ"), KindMagic, true},
		{"InvalidEnum", InvalidEnum(PhaseUnpack, 9, "ElfClass"), KindInvalidEnum, true},
		{"Unresolved", Unresolved(".length", "no such field"), KindUnresolved, false},
		{"Unrecoverable", Unrecoverable(PhaseUnpack, "unknown class"), KindUnrecoverable, false},
		{"SizeMismatch", SizeMismatch(PhasePack, 4, 5), KindSizeMismatch, false},
		{"InvalidDiscriminant", InvalidDiscriminant(PhaseUnpack, 3), KindInvalidVariant, false},
		{"OffsetUnresolved", OffsetUnresolved(PhasePack), KindOffsetUnresolved, false},
		{"InvalidInput", InvalidInput(PhaseUnpack, "bad"), KindInvalidInput, false},
		{"Schema", Schema("duplicate field"), KindSchema, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Recoverable() != tt.recoverable {
				t.Errorf("Recoverable = %v, want %v", tt.err.Recoverable(), tt.recoverable)
			}
		})
	}
}
