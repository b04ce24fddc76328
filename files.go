package nhale

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"

	"github.com/OhanaFS/nhale/blockparity"
	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/pdf"
)

// readCarrier reads input and resolves its format. The "format" parameter
// overrides detection, and a MediaType in cfg must agree with the result.
func (e *Encoder) readCarrier(input string, cfg *EmbeddingConfig) ([]byte, Format, error) {
	data, err := afero.ReadFile(e.fs, input)
	if err != nil {
		return nil, FormatUnknown, errorx.Wrap(err, errorx.Io, "failed to read %s", input)
	}

	format := DetectFormat(input, data)
	if name := cfg.Parameters[ParamFormat]; name != "" {
		if format, err = ParseFormat(name); err != nil {
			return nil, FormatUnknown, err
		}
	}
	if cfg.MediaType != MediaUnknown && cfg.MediaType != format.MediaType() {
		return nil, FormatUnknown, errorx.New(errorx.InvalidInput,
			"media type %v does not match %v carrier", cfg.MediaType, format)
	}
	return data, format, nil
}

func (e *Encoder) writeFile(path string, data []byte) error {
	if err := afero.WriteFile(e.fs, path, data, 0o644); err != nil {
		return errorx.Wrap(err, errorx.Io, "failed to write %s", path)
	}
	return nil
}

func unsupported(f Format) error {
	switch f.MediaType() {
	case MediaAudio:
		return errorx.New(errorx.NotImplemented, "audio steganography not yet implemented")
	case MediaVideo:
		return errorx.New(errorx.NotImplemented, "video steganography not yet implemented")
	}
	return errorx.New(errorx.InvalidInput, "unsupported file format")
}

// Extract reads the payload hidden in the carrier at input.
func (e *Encoder) Extract(input string, cfg *EmbeddingConfig) ([]byte, error) {
	cfg = orDefault(cfg)
	carrier, format, err := e.readCarrier(input, cfg)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatPNG, FormatBMP, FormatGIF:
		img, _, err := image.Decode(bytes.NewReader(carrier))
		if err != nil {
			return nil, errorx.Wrap(err, errorx.InvalidInput, "failed to decode %v image", format)
		}
		return e.ExtractImage(img, cfg)
	case FormatJPEG:
		plane, err := blockparity.DecodeJPEG(bytes.NewReader(carrier))
		if err != nil {
			return nil, err
		}
		return e.ExtractBlocks(plane, cfg)
	case FormatPDF:
		doc, err := pdf.Load(bytes.NewReader(carrier))
		if err != nil {
			return nil, err
		}
		return e.ExtractPDF(doc, cfg)
	}
	return nil, unsupported(format)
}
