package schema

import (
	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/stream"
	"go.uber.org/zap"
)

// Options configures a root chunk.
type Options struct {
	// Compliance is the root's flag set. Children inherit it by default.
	Compliance Compliance
	// Offset is where the root starts in the stream.
	Offset int64
}

// DefaultOptions returns lenient options: violations are logged and the
// decoded values kept.
func DefaultOptions() Options {
	return Options{Compliance: ComplianceNone}
}

// Option modifies Options.
type Option func(*Options)

// Strict makes magic, checksum and enum violations fatal.
func Strict() Option {
	return func(o *Options) { o.Compliance |= ComplianceEnum | ComplianceMagic }
}

// RootCompliance replaces the root compliance flags.
func RootCompliance(c Compliance) Option {
	return func(o *Options) { o.Compliance = c }
}

// StartAt places the root at offset.
func StartAt(offset int64) Option {
	return func(o *Options) { o.Offset = offset }
}

func applyOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// PackOptions controls a pack pass.
type PackOptions struct {
	// SkipRelayout packs with the offsets from the last relayout.
	SkipRelayout bool
}

// Unpack decodes data as s. On failure the partially decoded tree is
// returned with the error so callers can inspect what was read.
func Unpack(s *Schema, data []byte, opts ...Option) (*Chunk, error) {
	return UnpackStream(s, stream.New(data), opts...)
}

// UnpackStream decodes s from st starting at the configured offset.
func UnpackStream(s *Schema, st *stream.Stream, opts ...Option) (*Chunk, error) {
	o := applyOptions(opts)
	c := s.instance(s.name)
	c.compliance = o.Compliance
	discard(c)
	if err := st.SeekTo(o.Offset); err != nil {
		return c, errors.Wrap(errors.PhaseUnpack, errors.KindInvalidInput, err, "seek to root offset")
	}
	if err := c.Unpack(st); err != nil {
		Logger().Debug("unpack failed",
			zap.String("schema", s.name),
			zap.Int64("position", st.Tell()),
			zap.Error(err))
		return c, err
	}
	return c, nil
}

// Open decodes the file at path as s. The file is memory-mapped where the
// platform allows and released before Open returns.
func Open(s *Schema, path string, opts ...Option) (c *Chunk, err error) {
	st, err := stream.Open(path)
	if err != nil {
		return nil, errors.Load("open "+path, err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			err = errors.Load("close "+path, cerr)
		}
	}()
	return UnpackStream(s, st, opts...)
}

// Pack relays out the root chunk c and returns its bytes.
func Pack(c *Chunk) ([]byte, error) {
	st := stream.NewBuffer()
	if err := c.PackWith(st, PackOptions{}); err != nil {
		return nil, err
	}
	return st.Bytes(), nil
}
