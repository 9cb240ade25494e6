// Package stk500 declares the STK500v2 serial framing used by AVR
// programmers and the sign-on exchange carried inside it.
package stk500

import (
	"strconv"

	"github.com/wippyai/abstruct/codec"
	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/schema"
	"github.com/wippyai/abstruct/stream"
)

const (
	MessageStart = 0x1b
	Token        = 0x0e
)

// Command identifies the request a message body carries or answers.
var Command = schema.NewEnum("Command", map[string]uint64{
	"CMD_SIGN_ON":               0x01,
	"CMD_SET_PARAMETER":         0x02,
	"CMD_GET_PARAMETER":         0x03,
	"CMD_SET_DEVICE_PARAMETERS": 0x04,
	"CMD_OSCCAL":                0x05,
	"CMD_LOAD_ADDRESS":          0x06,
	"CMD_FIRMWARE_UPGRADE":      0x07,
	"CMD_ENTER_PROGMODE_ISP":    0x10,
	"CMD_LEAVE_PROGMODE_ISP":    0x11,
	"CMD_CHIP_ERASE_ISP":        0x12,
	"CMD_PROGRAM_FLASH_ISP":     0x13,
	"CMD_READ_FLASH_ISP":        0x14,
	"CMD_PROGRAM_EEPROM_ISP":    0x15,
	"CMD_READ_EEPROM_ISP":       0x16,
	"CMD_PROGRAM_FUSE_ISP":      0x17,
	"CMD_READ_FUSE_ISP":         0x18,
	"CMD_PROGRAM_LOCK_ISP":      0x19,
	"CMD_READ_LOCK_ISP":         0x1a,
	"CMD_READ_SIGNATURE_ISP":    0x1b,
	"CMD_READ_OSCCAL_ISP":       0x1c,
	"CMD_SPI_MULTI":             0x1d,
})

// Status is the second byte of every answer.
var Status = schema.NewEnum("Status", map[string]uint64{
	"STATUS_CMD_OK":            0x00,
	"STATUS_CMD_TOUT":          0x80,
	"STATUS_RDY_BSY_TOUT":      0x81,
	"STATUS_SET_PARAM_MISSING": 0x82,
	"STATUS_CMD_FAILED":        0xc0,
	"STATUS_CKSUM_ERROR":       0xc1,
	"STATUS_CMD_UNKNOWN":       0xc9,
})

var (
	// Packet is the transport frame. The checksum is the XOR of every
	// preceding byte.
	Packet = schema.Define("STK500Packet",
		schema.U8("message_start", schema.Default(MessageStart), schema.Magic()),
		schema.U8("sequence_number"),
		schema.Struct("message_size", ">H"),
		schema.U8("token", schema.Default(Token), schema.Magic()),
		schema.BytesLen("message_body", ".message_size"),
		schema.Checksum("checksum", codec.U8,
			[]string{"message_start", "sequence_number", "message_size", "token", "message_body"}, schema.XOR8),
	)

	SignOnResponse = schema.Define("STK500CmdSignOnResponse",
		schema.U8("answer_id", schema.Default(0x01), schema.WithEnum(Command)),
		schema.U8("status", schema.WithEnum(Status)),
		schema.U8("signature_length"),
		schema.BytesLen("signature", ".signature_length"),
	)
)

// Session frames message bodies with consecutive sequence numbers.
type Session struct {
	seq uint8
}

// Frame wraps body in a packet carrying the next sequence number.
func (s *Session) Frame(body []byte) (*schema.Chunk, error) {
	if len(body) > 0xffff {
		return nil, errors.InvalidInput(errors.PhaseValidate, "message body exceeds 65535 bytes")
	}
	p, err := Packet.New()
	if err != nil {
		return nil, err
	}
	if err := p.Scalar("sequence_number").SetUint(uint64(s.seq)); err != nil {
		return nil, err
	}
	if err := p.Bytes("message_body").SetValue(body); err != nil {
		return nil, err
	}
	s.seq++
	return p, nil
}

// Encode frames body and returns the packet bytes.
func (s *Session) Encode(body []byte) ([]byte, error) {
	p, err := s.Frame(body)
	if err != nil {
		return nil, err
	}
	return schema.Pack(p)
}

// Split decodes back-to-back packets until data is exhausted.
func Split(data []byte, opts ...schema.Option) ([]*schema.Chunk, error) {
	st := stream.New(data)
	var out []*schema.Chunk
	for st.Remaining() > 0 {
		at := append(append([]schema.Option(nil), opts...), schema.StartAt(st.Tell()))
		p, err := schema.UnpackStream(Packet, st, at...)
		if err != nil {
			return out, errors.Prepend(err, strconv.Itoa(len(out)))
		}
		out = append(out, p)
	}
	return out, nil
}

// Body returns a packet's message body.
func Body(p *schema.Chunk) []byte {
	return p.Bytes("message_body").Bytes()
}
