// Package errors provides structured error types for the abstruct library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the dotted field path from the root chunk down to the failing
// field, the offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseUnpack, errors.KindMagic).
//		Path("e_ident", "EI_MAG0").
//		Value(0x00).
//		Detail("expected 0x7f").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Truncated(errors.PhaseUnpack, 4, 2, nil)
//	err := errors.InvalidDiscriminant(errors.PhaseUnpack, 7)
//
// Composite fields grow the path while an error travels upwards:
//
//	return errors.Prepend(err, name)
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind, and an empty Phase or Kind on the target is a wildcard.
package errors
