package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const recordFormatVersionCurrent = 1

var errFieldTooLong = errors.New("field exceeds 65535 bytes")

// Encode serializes r into the versioned binary format stored in Redis.
func Encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(1 + 8 + 2 + len(r.Device) + 2 + len(r.Token) + 16)

	buf.WriteByte(recordFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, r.UserID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, r.Device); err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	if err := writeString(&buf, r.Token); err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, r.IssuedAt.Unix()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt.Unix()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersionCurrent {
		return nil, fmt.Errorf("unsupported session record version %d", version)
	}

	r := &Record{}
	if err := binary.Read(reader, binary.BigEndian, &r.UserID); err != nil {
		return nil, err
	}
	if r.Device, err = readString(reader); err != nil {
		return nil, err
	}
	if r.Token, err = readString(reader); err != nil {
		return nil, err
	}

	var issued, expires int64
	if err := binary.Read(reader, binary.BigEndian, &issued); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expires); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes after session record")
	}
	r.IssuedAt = time.Unix(issued, 0).UTC()
	r.ExpiresAt = time.Unix(expires, 0).UTC()

	return r, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return errFieldTooLong
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", err
	}
	return string(out), nil
}
