package cache

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

// Codec converts between decoded images and their persisted encoding.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Decode/Encode failures are treated by the coordinator as a miss.
type Codec interface {
	// Decode turns encoded bytes into an image.
	Decode(data []byte) (image.Image, error)

	// Encode turns an image into bytes suitable for persistence.
	Encode(img image.Image) ([]byte, error)
}

// PNGCodec is a lossless codec; a decoded image is pixel-equal to the
// encoded one.
type PNGCodec struct {
	// CompressionLevel is passed to the PNG encoder.
	// Default: png.DefaultCompression
	CompressionLevel png.CompressionLevel
}

// Decode implements Codec.
func (c PNGCodec) Decode(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return img, nil
}

// Encode implements Codec.
func (c PNGCodec) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, ErrNilImage)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: c.CompressionLevel}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return buf.Bytes(), nil
}

// JPEGCodec is a lossy codec for photographic content.
type JPEGCodec struct {
	// Quality ranges from 1 to 100.
	// Default: jpeg.DefaultQuality
	Quality int
}

// Decode implements Codec.
func (c JPEGCodec) Decode(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return img, nil
}

// Encode implements Codec.
func (c JPEGCodec) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, ErrNilImage)
	}
	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return buf.Bytes(), nil
}

var (
	_ Codec = PNGCodec{}
	_ Codec = JPEGCodec{}
)
