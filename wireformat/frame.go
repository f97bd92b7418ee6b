package wireformat

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/reglet-dev/luabridge/domain/errors"
)

// HeaderSize is the length of the fixed frame header.
const HeaderSize = 4

// MaxFrameSize is the largest payload the 16-bit size field can describe.
const MaxFrameSize = 0xffff

// Header is the fixed four byte uwsgi packet header.
type Header struct {
	Modifier1 uint8
	Size      uint16
	Modifier2 uint8
}

// Marshal returns the wire representation of h.
func (h Header) Marshal() [HeaderSize]byte {
	var b [HeaderSize]byte
	b[0] = h.Modifier1
	binary.LittleEndian.PutUint16(b[1:3], h.Size)
	b[3] = h.Modifier2
	return b
}

// ParseHeader decodes a header from the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, &errors.ProtocolError{Reason: fmt.Sprintf("short header (%d bytes)", len(b))}
	}
	return Header{
		Modifier1: b[0],
		Size:      binary.LittleEndian.Uint16(b[1:3]),
		Modifier2: b[3],
	}, nil
}

// ReadHeader reads exactly one header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Header{}, err
	}
	return ParseHeader(b[:])
}

// ReadPacket reads a header and its payload from r.
func ReadPacket(r io.Reader) (Header, []byte, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	payload := make([]byte, h.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return h, nil, err
	}
	return h, payload, nil
}

// AppendFrame appends a complete frame (header and payload) to dst.
// The payload must fit MaxFrameSize.
func AppendFrame(dst []byte, modifier1, modifier2 uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxFrameSize {
		return dst, &errors.FrameError{Size: len(payload), Max: MaxFrameSize}
	}
	h := Header{Modifier1: modifier1, Size: uint16(len(payload)), Modifier2: modifier2}
	hb := h.Marshal()
	dst = append(dst, hb[:]...)
	return append(dst, payload...), nil
}

// WriteFrame writes one frame to w with a single Write call.
func WriteFrame(w io.Writer, modifier1, modifier2 uint8, payload []byte) error {
	frame, err := AppendFrame(make([]byte, 0, HeaderSize+len(payload)), modifier1, modifier2, payload)
	if err != nil {
		return err
	}
	n, err := w.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return io.ErrShortWrite
	}
	return nil
}
