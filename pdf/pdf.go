// Package pdf stores a single opaque blob inside a PDF document. The blob is
// kept in an embedded file stream referenced from the document catalog.
package pdf

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/OhanaFS/nhale/errorx"
)

const (
	// Slot is the catalog key holding the blob reference.
	Slot = "NhaleData"
	// legacySlot is checked when Slot is absent.
	legacySlot = "Metadata"
)

var ErrNoBlob = errors.New("no embedded data found")

func init() {
	// Keep pdfcpu from creating a configuration directory.
	model.ConfigPath = "disable"
}

// Store holds one blob for a carrier.
type Store interface {
	PutBlob(blob []byte) error
	GetBlob() ([]byte, error)
}

// Document is a parsed PDF.
type Document struct {
	ctx *model.Context
}

var _ Store = &Document{}

// Load parses a PDF.
func Load(rs io.ReadSeeker) (*Document, error) {
	ctx, err := api.ReadContext(rs, model.NewDefaultConfiguration())
	if err != nil {
		return nil, errorx.Wrap(err, errorx.InvalidInput, "failed to load PDF")
	}
	return &Document{ctx: ctx}, nil
}

// PutBlob implements Store. An existing blob is replaced.
func (d *Document) PutBlob(blob []byte) error {
	sd, err := d.ctx.NewStreamDictForBuf(blob)
	if err != nil {
		return errorx.Wrap(err, errorx.Encoding, "failed to create stream")
	}
	sd.InsertName("Type", "EmbeddedFile")
	if err := sd.Encode(); err != nil {
		return errorx.Wrap(err, errorx.Encoding, "failed to encode stream")
	}

	ir, err := d.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return errorx.Wrap(err, errorx.Encoding, "failed to add stream object")
	}
	root, err := d.ctx.Catalog()
	if err != nil {
		return errorx.Wrap(err, errorx.InvalidInput, "failed to get PDF catalog")
	}
	root.Update(Slot, *ir)
	return nil
}

// GetBlob implements Store.
func (d *Document) GetBlob() ([]byte, error) {
	root, err := d.ctx.Catalog()
	if err != nil {
		return nil, errorx.Wrap(err, errorx.InvalidInput, "failed to get PDF catalog")
	}

	o, found := root.Find(Slot)
	if !found {
		if o, found = root.Find(legacySlot); !found {
			return nil, errorx.Wrap(ErrNoBlob, errorx.InvalidInput, "failed to read PDF")
		}
	}
	if _, ok := o.(types.IndirectRef); !ok {
		return nil, errorx.New(errorx.InvalidInput, "embedded data is not a reference")
	}

	obj, err := d.ctx.Dereference(o)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.InvalidInput, "failed to get embedded data object")
	}
	sd, ok := obj.(types.StreamDict)
	if !ok {
		return nil, errorx.New(errorx.InvalidInput, "embedded data is not a stream")
	}
	if err := sd.Decode(); err != nil {
		return nil, errorx.Wrap(err, errorx.InvalidInput, "failed to decode stream")
	}
	return sd.Content, nil
}

// Write serialises the document.
func (d *Document) Write(w io.Writer) error {
	if err := api.WriteContext(d.ctx, w); err != nil {
		return errorx.Wrap(err, errorx.Io, "failed to write PDF")
	}
	return nil
}

// MemoryStore is a Store kept in memory.
type MemoryStore struct {
	mu   sync.Mutex
	blob []byte
}

var _ Store = &MemoryStore{}

// PutBlob implements Store.
func (m *MemoryStore) PutBlob(blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), blob...)
	return nil
}

// GetBlob implements Store.
func (m *MemoryStore) GetBlob() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, errorx.Wrap(ErrNoBlob, errorx.InvalidInput, "failed to read store")
	}
	return append([]byte(nil), m.blob...), nil
}

// WriteBlank writes a minimal single page A4 document.
func WriteBlank(w io.Writer) error {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << >> >>",
	}

	buf := []byte("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = len(buf)
		buf = append(buf, fmt.Sprintf("%d 0 obj\n%s\nendobj\n", i+1, obj)...)
	}
	xref := len(buf)
	buf = append(buf, fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)...)
	for _, off := range offsets {
		buf = append(buf, fmt.Sprintf("%010d 00000 n \n", off)...)
	}
	buf = append(buf, fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xref)...)

	if _, err := w.Write(buf); err != nil {
		return errorx.Wrap(err, errorx.Io, "failed to write PDF")
	}
	return nil
}
