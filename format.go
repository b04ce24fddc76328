package nhale

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/OhanaFS/nhale/errorx"
)

// Format is a concrete carrier file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatPNG
	FormatJPEG
	FormatBMP
	FormatGIF
	FormatWAV
	FormatMP3
	FormatMP4
	FormatPDF
)

var formatNames = map[Format]string{
	FormatUnknown: "unknown",
	FormatPNG:     "png",
	FormatJPEG:    "jpeg",
	FormatBMP:     "bmp",
	FormatGIF:     "gif",
	FormatWAV:     "wav",
	FormatMP3:     "mp3",
	FormatMP4:     "mp4",
	FormatPDF:     "pdf",
}

var extensions = map[string]Format{
	".png":  FormatPNG,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".bmp":  FormatBMP,
	".gif":  FormatGIF,
	".wav":  FormatWAV,
	".mp3":  FormatMP3,
	".mp4":  FormatMP4,
	".pdf":  FormatPDF,
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return formatNames[FormatUnknown]
}

// MediaType returns the media class of f.
func (f Format) MediaType() MediaType {
	switch f {
	case FormatPNG, FormatJPEG, FormatBMP, FormatGIF:
		return MediaImage
	case FormatWAV, FormatMP3:
		return MediaAudio
	case FormatMP4:
		return MediaVideo
	case FormatPDF:
		return MediaPDF
	}
	return MediaUnknown
}

// ParseFormat parses a format name or file extension.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(s)
	if !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	if f, ok := extensions[s]; ok {
		return f, nil
	}
	return FormatUnknown, errorx.New(errorx.InvalidInput, "unsupported format %q", strings.TrimPrefix(s, "."))
}

// FormatFromPath returns the format implied by the extension of path.
func FormatFromPath(path string) Format {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// DetectFormat identifies a carrier by the extension of path, falling back
// to the magic bytes at the start of head.
func DetectFormat(path string, head []byte) Format {
	if f := FormatFromPath(path); f != FormatUnknown {
		return f
	}
	return sniff(head)
}

func sniff(head []byte) Format {
	if len(head) < 8 {
		return FormatUnknown
	}
	switch {
	case bytes.HasPrefix(head, []byte("\x89PNG")):
		return FormatPNG
	case bytes.HasPrefix(head, []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG
	case bytes.HasPrefix(head, []byte("BM")):
		return FormatBMP
	case bytes.HasPrefix(head, []byte("GIF87a")), bytes.HasPrefix(head, []byte("GIF89a")):
		return FormatGIF
	case bytes.HasPrefix(head, []byte("RIFF")) && len(head) >= 12 && string(head[8:12]) == "WAVE":
		return FormatWAV
	case bytes.HasPrefix(head, []byte("ID3")), bytes.HasPrefix(head, []byte{0xFF, 0xFB}):
		return FormatMP3
	case string(head[4:8]) == "ftyp", string(head[4:8]) == "moov":
		return FormatMP4
	case bytes.HasPrefix(head, []byte("%PDF")):
		return FormatPDF
	}
	return FormatUnknown
}
