package nhale

import (
	"image/png"

	"github.com/klauspost/compress/zstd"

	"github.com/OhanaFS/nhale/errorx"
)

// compress zstd compresses data at a level on the 0-9 compression scale.
func compress(data []byte, level int) ([]byte, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encoding, "failed to create zstd encoder")
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxPayloadSize),
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encoding, "failed to create zstd decoder")
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.InvalidData, "failed to decompress payload")
	}
	return out, nil
}

// pngLevel maps the 0-9 compression scale to a PNG encoder level.
func pngLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	}
	return png.BestCompression
}
