package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v4"
)

// Blob layout:
//
//	[0:4]   signature "vosh"
//	[4]     version
//	[8:16]  packing bits, big endian (bit 0 lz4, bit 1 xxhash)
//	[16:24] xxhash64 of the payload, present when bit 1 is set
//	[...]   JSON payload, lz4 framed when bit 0 is set
const (
	signature = "vosh"
	version   = 1
	prefLen   = 16
	sumLen    = 8

	packCompress = 1 << 0
	packChecksum = 1 << 1
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CodecOptions selects the envelope features used by Encode. Decode reads them
// back from the blob prefix.
type CodecOptions struct {
	Compress bool
	Checksum bool
}

// Encode serializes v as JSON inside a signed envelope.
func Encode(v any, opts CodecOptions) ([]byte, error) {
	var (
		payload bytes.Buffer
		w       io.Writer = &payload
		zw      *lz4.Writer
	)
	if opts.Compress {
		zw = lz4.NewWriter(&payload)
		w = zw
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
	}

	var packing uint64
	if opts.Compress {
		packing |= packCompress
	}
	if opts.Checksum {
		packing |= packChecksum
	}
	out := make([]byte, prefLen, prefLen+sumLen+payload.Len())
	copy(out, signature)
	out[len(signature)] = version
	binary.BigEndian.PutUint64(out[8:prefLen], packing)
	if opts.Checksum {
		out = binary.BigEndian.AppendUint64(out, xxhash.Sum64(payload.Bytes()))
	}
	return append(out, payload.Bytes()...), nil
}

// Decode validates the envelope and unmarshals its payload into v.
func Decode(blob []byte, v any) error {
	l := len(signature)
	if len(blob) < prefLen || string(blob[:l]) != signature {
		return fmt.Errorf("%w: bad signature", ErrCorrupt)
	}
	if blob[l] != version {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, blob[l])
	}
	packing := binary.BigEndian.Uint64(blob[8:prefLen])
	body := blob[prefLen:]
	if packing&packChecksum != 0 {
		if len(body) < sumLen {
			return fmt.Errorf("%w: truncated checksum", ErrCorrupt)
		}
		expected := binary.BigEndian.Uint64(body[:sumLen])
		body = body[sumLen:]
		if actual := xxhash.Sum64(body); actual != expected {
			return fmt.Errorf("%w: checksum mismatch (expected %x, got %x)", ErrCorrupt, expected, actual)
		}
	}
	var r io.Reader = bytes.NewReader(body)
	if packing&packCompress != 0 {
		r = lz4.NewReader(r)
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}
