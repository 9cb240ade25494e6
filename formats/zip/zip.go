// Package zip declares the PKZIP records: local file headers, central
// directory headers and the end of central directory record.
//
// An archive is read back to front: the end record locates the central
// directory, whose entries locate each local header.
package zip

import (
	"bytes"
	"strconv"

	"github.com/wippyai/abstruct/codec"
	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/schema"
	"github.com/wippyai/abstruct/stream"
)

var (
	LocalSignature   = []byte("PK\x03\x04")
	CentralSignature = []byte("PK\x01\x02")
	EndSignature     = []byte("PK\x05\x06")
)

const (
	// FlagDataDescriptor marks entries whose CRC and sizes follow the
	// data instead of the local header.
	FlagDataDescriptor = 0x8

	// the end record is 22 bytes plus a comment of up to 64KiB
	maxEndRecordLength = 22 + 0xffff
)

var Compression = schema.NewEnum("Compression", map[string]uint64{
	"STORED":    0,
	"SHRUNK":    1,
	"IMPLODED":  6,
	"DEFLATED":  8,
	"DEFLATE64": 9,
	"BZIP2":     12,
	"LZMA":      14,
	"ZSTD":      93,
	"XZ":        95,
})

var (
	Header = schema.Define("ZIPHeader",
		schema.Bytes("signature", 4, schema.Default(LocalSignature), schema.Magic()),
		schema.U16("version", schema.Default(20)),
		schema.U16("flags"),
		schema.U16("compression", schema.WithEnum(Compression)),
		schema.U16("modification_time"),
		schema.U16("modification_date"),
		schema.U32("crc32"),
		schema.U32("compressed_size"),
		schema.U32("uncompressed_size"),
		schema.U16("filename_length"),
		schema.U16("extra_length"),
		schema.BytesLen("filename", ".filename_length"),
		schema.BytesLen("extra_field", ".extra_length"),
	)

	// LocalFile is a local header followed by its data. The crc32 field
	// is checked against the data, which holds the compressed bytes.
	LocalFile = Header.Extend("ZIPLocalFile",
		schema.Checksum("crc32", codec.U32, []string{"data"}, schema.CRC32),
		schema.BytesLen("data", ".compressed_size"),
	)

	CentralHeader = schema.Define("ZIPCentralHeader",
		schema.Bytes("signature", 4, schema.Default(CentralSignature), schema.Magic()),
		schema.U16("version_made_by", schema.Default(20)),
		schema.U16("version_needed", schema.Default(20)),
		schema.U16("flags"),
		schema.U16("compression", schema.WithEnum(Compression)),
		schema.U16("modification_time"),
		schema.U16("modification_date"),
		schema.U32("crc32"),
		schema.U32("compressed_size"),
		schema.U32("uncompressed_size"),
		schema.U16("filename_length"),
		schema.U16("extra_length"),
		schema.U16("comment_length"),
		schema.U16("disk_start"),
		schema.U16("internal_attributes"),
		schema.U32("external_attributes"),
		schema.U32("local_header_offset"),
		schema.BytesLen("filename", ".filename_length"),
		schema.BytesLen("extra_field", ".extra_length"),
		schema.BytesLen("comment", ".comment_length"),
	)

	EndOfDirectory = schema.Define("ZIPEndOfCentralDirectory",
		schema.Bytes("signature", 4, schema.Default(EndSignature), schema.Magic()),
		schema.U16("disk_number"),
		schema.U16("directory_disk"),
		schema.U16("disk_entries"),
		schema.U16("total_entries"),
		schema.U32("directory_size"),
		schema.U32("directory_offset"),
		schema.U16("comment_length"),
		schema.BytesLen("comment", ".comment_length"),
	)
)

// Entry is one archive member.
type Entry struct {
	Central *schema.Chunk
	// Local is a ZIPLocalFile, or a bare ZIPHeader when the entry uses a
	// data descriptor.
	Local *schema.Chunk
	Data  []byte
}

// Name returns the member's file name.
func (e Entry) Name() string {
	return string(e.Central.Bytes("filename").Bytes())
}

// Archive is a decoded ZIP file.
type Archive struct {
	End     *schema.Chunk
	Entries []Entry
}

// FindEnd returns the offset of the end of central directory record,
// searching backwards from the end of data.
func FindEnd(data []byte) (int64, error) {
	lo := max(len(data)-maxEndRecordLength, 0)
	i := bytes.LastIndex(data[lo:], EndSignature)
	if i < 0 {
		return 0, errors.Unresolved("end", "no end of central directory record")
	}
	return int64(lo + i), nil
}

// Read decodes every entry of the archive in data.
func Read(data []byte, opts ...schema.Option) (*Archive, error) {
	at, err := FindEnd(data)
	if err != nil {
		return nil, err
	}
	end, err := schema.Unpack(EndOfDirectory, data, with(opts, at)...)
	if err != nil {
		return nil, errors.Prepend(err, "end")
	}
	a := &Archive{End: end}

	st := stream.New(data)
	if err := st.SeekTo(int64(end.Scalar("directory_offset").Uint())); err != nil {
		return a, errors.Wrap(errors.PhaseUnpack, errors.KindTruncated, err, "seek to central directory")
	}
	total := int(end.Scalar("total_entries").Uint())
	for i := range total {
		name := strconv.Itoa(i)
		central, err := schema.UnpackStream(CentralHeader, st, with(opts, st.Tell())...)
		if err != nil {
			return a, errors.Prepend(errors.Prepend(err, name), "directory")
		}
		e, err := readLocal(data, central, opts)
		if err != nil {
			return a, errors.Prepend(errors.Prepend(err, name), "files")
		}
		a.Entries = append(a.Entries, e)
	}
	return a, nil
}

func readLocal(data []byte, central *schema.Chunk, opts []schema.Option) (Entry, error) {
	off := int64(central.Scalar("local_header_offset").Uint())
	e := Entry{Central: central}
	if central.Scalar("flags").Uint()&FlagDataDescriptor == 0 {
		local, err := schema.Unpack(LocalFile, data, with(opts, off)...)
		if err != nil {
			return e, err
		}
		e.Local, e.Data = local, local.Bytes("data").Bytes()
		return e, nil
	}

	local, err := schema.Unpack(Header, data, with(opts, off)...)
	if err != nil {
		return e, err
	}
	start := off + int64(local.Size())
	end := start + int64(central.Scalar("compressed_size").Uint())
	if end > int64(len(data)) {
		return e, errors.Truncated(errors.PhaseUnpack, int(end-start), len(data)-int(start), nil)
	}
	e.Local, e.Data = local, data[start:end]
	return e, nil
}

func with(opts []schema.Option, at int64) []schema.Option {
	return append(append([]schema.Option(nil), opts...), schema.StartAt(at))
}

// NewStored builds a local file entry holding data uncompressed.
func NewStored(name string, data []byte) (*schema.Chunk, error) {
	c, err := LocalFile.New()
	if err != nil {
		return nil, err
	}
	if err := c.Bytes("filename").SetValue(name); err != nil {
		return nil, err
	}
	if err := c.Bytes("data").SetValue(data); err != nil {
		return nil, err
	}
	if err := c.Scalar("uncompressed_size").SetInt(int64(len(data))); err != nil {
		return nil, err
	}
	return c, nil
}
