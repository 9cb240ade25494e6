package schema

import (
	"fmt"
	"hash/crc32"

	"github.com/wippyai/abstruct/codec"
	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/stream"
)

// SumFunc computes a checksum over concatenated raw bytes.
type SumFunc func([]byte) uint64

// CRC32 is the IEEE CRC-32 used by PNG and ZIP.
func CRC32(b []byte) uint64 { return uint64(crc32.ChecksumIEEE(b)) }

// XOR8 folds every byte with exclusive or.
func XOR8(b []byte) uint64 {
	var x byte
	for _, c := range b {
		x ^= c
	}
	return uint64(x)
}

// Sum8 adds every byte modulo 256.
func Sum8(b []byte) uint64 {
	var x byte
	for _, c := range b {
		x += c
	}
	return uint64(x)
}

// ChecksumField is an integer recomputed from the raw bytes of named
// siblings right before it is packed. On unpack a mismatch is a magic
// violation.
type ChecksumField struct {
	ScalarField
	sum  SumFunc
	over []string
}

// Checksum declares a computed field over the named siblings, hashed in
// the given order with sum (CRC32 when nil).
func Checksum(name string, format codec.Format, over []string, sum SumFunc, opts ...FieldOption) FieldSpec {
	if len(over) == 0 {
		mustSchema(errors.Schema("checksum covers no fields"), name)
	}
	if sum == nil {
		sum = CRC32
	}
	cfg := newConfig(opts)
	names := append([]string(nil), over...)
	return FieldSpec{
		name: name,
		kind: "checksum",
		build: func(n string) Field {
			c := &ChecksumField{sum: sum, over: names}
			c.format = format
			c.init(c, n, cfg)
			return c
		},
	}
}

// Covers returns the sibling names the checksum is computed over.
func (c *ChecksumField) Covers() []string {
	return append([]string(nil), c.over...)
}

// Compute returns the checksum of the covered siblings' current bytes.
func (c *ChecksumField) Compute() (uint64, error) {
	parent, ok := c.Parent().(*Chunk)
	if !ok {
		return 0, errors.Unresolved(c.name, "checksum is not inside a chunk")
	}
	var buf []byte
	for _, name := range c.over {
		f := parent.Field(name)
		if f == nil {
			return 0, errors.Unresolved(name, fmt.Sprintf("checksum %q covers a missing field", c.name))
		}
		buf = append(buf, f.Raw()...)
	}
	return c.format.Mask(c.sum(buf)), nil
}

// Verify reports whether the stored value matches the covered bytes.
func (c *ChecksumField) Verify() (bool, error) {
	v, err := c.Compute()
	if err != nil {
		return false, err
	}
	return v == c.value, nil
}

// Update recomputes and stores the checksum.
func (c *ChecksumField) Update() error {
	v, err := c.Compute()
	if err != nil {
		return err
	}
	c.value = v
	return nil
}

// Unpack only reads the stored value; the enclosing chunk verifies it
// once every covered sibling has been read.
func (c *ChecksumField) Unpack(st *stream.Stream) error {
	return c.ScalarField.Unpack(st)
}

func (c *ChecksumField) verify() error {
	want, err := c.Compute()
	if err != nil {
		return err
	}
	if want == c.value {
		return nil
	}
	mismatch := errors.Magic(errors.PhaseUnpack, fmt.Sprintf("%#x", want), fmt.Sprintf("%#x", c.value))
	return c.violation(mismatch, ComplianceMagic)
}

func (c *ChecksumField) Relayout(offset int64) (int, error) {
	if err := c.Update(); err != nil {
		return 0, err
	}
	return c.ScalarField.Relayout(offset)
}

func (c *ChecksumField) Pack(st *stream.Stream) error {
	if err := c.Update(); err != nil {
		return c.fail(err)
	}
	return c.ScalarField.Pack(st)
}
