package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrNegativeSeek is returned when a seek would move before the start.
	ErrNegativeSeek = errors.New("stream: negative position")
	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("stream: closed")
	// ErrNoMark is returned by Reset when no mark is pending.
	ErrNoMark = errors.New("stream: reset without mark")
)

// Stream is a seekable byte source and sink. Reads past the end fail;
// writes past the end grow the buffer, zero-filling any gap.
type Stream struct {
	data   []byte
	marks  []int64
	pos    int64
	unmap  func([]byte) error
	shared bool
	closed bool
}

// New returns a stream reading from data. The slice is not copied until
// the first write.
func New(data []byte) *Stream {
	return &Stream{data: data, shared: true}
}

// NewBuffer returns an empty stream for packing.
func NewBuffer() *Stream {
	return &Stream{}
}

// Open maps path read-only. If mmap is unavailable it falls back to
// ReadAt-based loading. The returned stream must be closed to release
// the mapping.
func Open(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := stat.Size()
	if size == 0 {
		return New(nil), nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("stream: %s too large to map (%d bytes)", path, size)
	}

	if data, unmap, err := mapFile(f, int(size)); err == nil {
		return &Stream{data: data, unmap: unmap}, nil
	}

	data, err := readAllAt(f, int(size))
	if err != nil {
		return nil, err
	}
	return New(data), nil
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

// Mapped reports whether the stream is backed by a live file mapping.
func (s *Stream) Mapped() bool {
	return s.unmap != nil
}

// Len returns the total number of bytes in the stream.
func (s *Stream) Len() int {
	return len(s.data)
}

// Remaining returns the number of bytes after the current position.
func (s *Stream) Remaining() int {
	if s.pos >= int64(len(s.data)) {
		return 0
	}
	return len(s.data) - int(s.pos)
}

// Tell returns the current byte position.
func (s *Stream) Tell() int64 {
	return s.pos
}

// Seek implements io.Seeker. Seeking past the end is allowed; the gap is
// only materialized by a subsequent Write.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = int64(len(s.data)) + offset
	default:
		return s.pos, fmt.Errorf("stream: invalid whence %d", whence)
	}
	if abs < 0 {
		return s.pos, ErrNegativeSeek
	}
	s.pos = abs
	return abs, nil
}

// SeekTo moves to an absolute position.
func (s *Stream) SeekTo(pos int64) error {
	_, err := s.Seek(pos, io.SeekStart)
	return err
}

// Read returns a copy of the next n bytes. When fewer are available it
// returns what is left together with io.ErrUnexpectedEOF and leaves the
// position unchanged.
func (s *Stream) Read(n int) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if n < 0 {
		return nil, fmt.Errorf("stream: negative read %d", n)
	}
	if n > s.Remaining() {
		rest := make([]byte, s.Remaining())
		copy(rest, s.data[min(s.pos, int64(len(s.data))):])
		return rest, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	copy(out, s.data[s.pos:])
	s.pos += int64(n)
	return out, nil
}

// ReadByte implements io.ByteReader.
func (s *Stream) ReadByte() (byte, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

// ReadAll returns a copy of every byte after the current position.
func (s *Stream) ReadAll() ([]byte, error) {
	return s.Read(s.Remaining())
}

// Write writes p at the current position, overwriting and growing as needed.
// Caller-supplied and mapped data is copied to the heap before the first write.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if err := s.detach(); err != nil {
		return 0, err
	}
	end := s.pos + int64(len(p))
	if end > int64(len(s.data)) {
		if end > int64(cap(s.data)) {
			grown := make([]byte, end, max(end, 2*int64(cap(s.data))))
			copy(grown, s.data)
			s.data = grown
		} else {
			tail := s.data[len(s.data):end]
			clear(tail)
			s.data = s.data[:end]
		}
	}
	copy(s.data[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *Stream) detach() error {
	if s.unmap == nil && !s.shared {
		return nil
	}
	owned := make([]byte, len(s.data))
	copy(owned, s.data)
	var err error
	if s.unmap != nil {
		err = s.unmap(s.data)
	}
	s.data, s.unmap, s.shared = owned, nil, false
	return err
}

// Mark pushes the current position.
func (s *Stream) Mark() {
	s.marks = append(s.marks, s.pos)
}

// Reset pops the most recent mark and seeks back to it.
func (s *Stream) Reset() error {
	if len(s.marks) == 0 {
		return ErrNoMark
	}
	s.pos = s.marks[len(s.marks)-1]
	s.marks = s.marks[:len(s.marks)-1]
	return nil
}

// Peek runs fn and restores the position afterwards.
func (s *Stream) Peek(fn func() error) error {
	s.Mark()
	err := fn()
	if rerr := s.Reset(); err == nil {
		err = rerr
	}
	return err
}

// Bytes returns the stream contents. The slice aliases the stream and,
// for mapped streams, becomes invalid after Close.
func (s *Stream) Bytes() []byte {
	return s.data
}

// Close releases a file mapping. Further reads and writes fail.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.unmap != nil {
		err = s.unmap(s.data)
		s.unmap = nil
	}
	s.data = nil
	s.marks = nil
	return err
}
