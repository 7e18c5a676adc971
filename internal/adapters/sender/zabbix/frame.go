package zabbix

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vshulcz/zbxreporter/internal/domain"
)

const (
	magic      = "ZBXD"
	flagZabbix = 0x01
	headerLen  = len(magic) + 1 + 8

	// maxFrame bounds the payload accepted from the trapper.
	maxFrame = 16 << 20
)

// writeFrame appends the framed payload to buf.
func writeFrame(buf *bytes.Buffer, payload []byte) {
	var hdr [headerLen]byte
	copy(hdr[:], magic)
	hdr[len(magic)] = flagZabbix
	binary.LittleEndian.PutUint64(hdr[len(magic)+1:], uint64(len(payload)))
	buf.Grow(headerLen + len(payload))
	buf.Write(hdr[:])
	buf.Write(payload)
}

// readFrame reads one uncompressed frame from r and returns its payload.
func readFrame(r io.Reader) ([]byte, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if string(hdr[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad header %q", domain.ErrBadResponse, hdr[:len(magic)])
	}
	if flags := hdr[len(magic)]; flags != flagZabbix {
		return nil, fmt.Errorf("%w: unsupported flags 0x%02x", domain.ErrBadResponse, flags)
	}
	n := binary.LittleEndian.Uint64(hdr[len(magic)+1:])
	if n > maxFrame {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", domain.ErrBadResponse, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}
