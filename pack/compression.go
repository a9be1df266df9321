package pack

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Frames that shrink by less than this ratio are stored uncompressed.
const minRatio = 0.9

var (
	zstdDecoderOnce sync.Once
	zstdDecoder     *zstd.Decoder
	zstdDecoderErr  error
)

// sharedDecoder returns a process-wide zstd decoder; DecodeAll is safe for
// concurrent use.
func sharedDecoder() (*zstd.Decoder, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, zstdDecoderErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdDecoder, zstdDecoderErr
}

// compressor encodes frames for one Write call.
type compressor struct {
	codec Codec
	enc   *zstd.Encoder
}

func newCompressor(codec Codec, level int) (*compressor, error) {
	c := &compressor{codec: codec}
	if codec == CodecZstd {
		lvl := zstd.SpeedDefault
		if level > 0 {
			lvl = zstd.EncoderLevelFromZstd(level)
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(lvl))
		if err != nil {
			return nil, err
		}
		c.enc = enc
	}
	return c, nil
}

func (c *compressor) Close() error {
	if c.enc != nil {
		return c.enc.Close()
	}
	return nil
}

// compress returns the frame header followed by the stored payload.
func (c *compressor) compress(raw []byte) ([]byte, error) {
	var payload []byte
	switch c.codec {
	case CodecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, err
		}
		payload = dst[:n] // n == 0: incompressible
	case CodecZstd:
		payload = c.enc.EncodeAll(raw, nil)
	}

	stored := uint32(len(payload))
	if len(payload) == 0 || float64(len(payload)) > float64(len(raw))*minRatio {
		payload, stored = raw, 0
	}

	out := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[4:], stored)
	copy(out[frameHeaderSize:], payload)
	return out, nil
}

// decompress decodes one frame, header included, into a buffer of rawSize bytes.
func decompress(codec Codec, frame []byte, rawSize int) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("%w: frame too small for header", ErrCorrupt)
	}
	raw := binary.LittleEndian.Uint32(frame[0:])
	stored := binary.LittleEndian.Uint32(frame[4:])
	if int64(raw) != int64(rawSize) {
		return nil, fmt.Errorf("%w: frame holds %d bytes, want %d", ErrCorrupt, raw, rawSize)
	}
	payload := frame[frameHeaderSize:]

	if stored == 0 {
		if len(payload) != rawSize {
			return nil, fmt.Errorf("%w: stored frame is %d bytes, want %d", ErrCorrupt, len(payload), rawSize)
		}
		return payload, nil
	}
	if int64(len(payload)) != int64(stored) {
		return nil, fmt.Errorf("%w: compressed frame is %d bytes, want %d", ErrCorrupt, len(payload), stored)
	}

	out := make([]byte, rawSize)
	switch codec {
	case CodecLZ4:
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if n != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	case CodecZstd:
		dec, err := sharedDecoder()
		if err != nil {
			return nil, err
		}
		decoded, err := dec.DecodeAll(payload, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if len(decoded) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compressed frame with codec %s", ErrCorrupt, codec)
	}
}
