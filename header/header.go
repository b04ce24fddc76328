// Package header implements the self-describing headers that prefix the
// erasure-coded frames hidden in a carrier.
package header

import (
	"encoding"
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// FlagChecksum marks a header that carries a CRC-32 of the original data.
const FlagChecksum = 1 << 0

// RSHeader describes a Reed-Solomon frame.
type RSHeader struct {
	// Version is the version of the frame format.
	Version uint8
	// DataShards is the number of data shards in the frame.
	DataShards uint8
	// ParityShards is the number of parity shards in the frame.
	ParityShards uint8
	// Flags holds feature bits, see FlagChecksum.
	Flags uint8
	// OriginalLength is the length of the data before padding.
	OriginalLength uint32
	// Checksum is the CRC-32 of the original data. It is only present on the
	// wire when Flags has FlagChecksum set.
	Checksum uint32
	// ShardSize is the size of every shard in the body.
	ShardSize uint32
}

// ParityHeader describes an XOR parity frame.
type ParityHeader struct {
	// Ratio is the number of data bytes protected by each parity byte.
	Ratio uint8
	// Flags holds feature bits, see FlagChecksum.
	Flags uint8
	// OriginalLength is the length of the protected data.
	OriginalLength uint32
	// Checksum is the CRC-32 of the data, present when FlagChecksum is set.
	Checksum uint32
}

const (
	// CurrentVersion is the only Reed-Solomon frame version understood.
	CurrentVersion = 1

	rsBaseSize     = 1 + 1 + 1 + 1 + 4 + 4
	parityBaseSize = 1 + 1 + 4
)

var _ encoding.BinaryMarshaler = (*RSHeader)(nil)
var _ encoding.BinaryUnmarshaler = (*RSHeader)(nil)
var _ encoding.BinaryMarshaler = (*ParityHeader)(nil)
var _ encoding.BinaryUnmarshaler = (*ParityHeader)(nil)

var (
	ErrInvalidHeaderSize = errors.New("invalid header size")
	ErrVersionMismatch   = errors.New("version mismatch")
	ErrInvalidShards     = errors.New("invalid shard configuration")
	ErrInvalidRatio      = errors.New("parity ratio must be non-zero")
)

// Checksum returns the CRC-32 (IEEE) of data.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// NewRSHeader returns a header for the given layout. The checksum is computed
// over data when useChecksum is set.
func NewRSHeader(data []byte, dataShards, parityShards uint8, shardSize uint32,
	useChecksum bool) *RSHeader {
	h := &RSHeader{
		Version:        CurrentVersion,
		DataShards:     dataShards,
		ParityShards:   parityShards,
		OriginalLength: uint32(len(data)),
		ShardSize:      shardSize,
	}
	if useChecksum {
		h.Flags |= FlagChecksum
		h.Checksum = Checksum(data)
	}
	return h
}

// HasChecksum reports whether the checksum field is present.
func (h *RSHeader) HasChecksum() bool {
	return h.Flags&FlagChecksum != 0
}

// Size returns the encoded size of the header.
func (h *RSHeader) Size() int {
	if h.HasChecksum() {
		return rsBaseSize + 4
	}
	return rsBaseSize
}

// TotalShards returns the number of data and parity shards.
func (h *RSHeader) TotalShards() int {
	return int(h.DataShards) + int(h.ParityShards)
}

// BodySize returns the length of the shard body following the header.
func (h *RSHeader) BodySize() int {
	return h.TotalShards() * int(h.ShardSize)
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (h *RSHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, h.Size())
	buf[0] = h.Version
	buf[1] = h.DataShards
	buf[2] = h.ParityShards
	buf[3] = h.Flags
	binary.BigEndian.PutUint32(buf[4:8], h.OriginalLength)
	off := 8
	if h.HasChecksum() {
		binary.BigEndian.PutUint32(buf[off:off+4], h.Checksum)
		off += 4
	}
	binary.BigEndian.PutUint32(buf[off:off+4], h.ShardSize)
	return buf, nil
}

// UnmarshalBinary implements the encoding.BinaryUnmarshaler interface. Data
// may be longer than the header; use Size to find where the body starts.
func (h *RSHeader) UnmarshalBinary(data []byte) error {
	// Make sure the fixed part is there before looking at the flags.
	if len(data) < rsBaseSize {
		return ErrInvalidHeaderSize
	}
	if data[0] != CurrentVersion {
		return ErrVersionMismatch
	}

	flags := data[3]
	size := rsBaseSize
	if flags&FlagChecksum != 0 {
		size += 4
	}
	if len(data) < size {
		return ErrInvalidHeaderSize
	}

	h.Version = data[0]
	h.DataShards = data[1]
	h.ParityShards = data[2]
	h.Flags = flags
	h.OriginalLength = binary.BigEndian.Uint32(data[4:8])
	off := 8
	h.Checksum = 0
	if h.HasChecksum() {
		h.Checksum = binary.BigEndian.Uint32(data[off : off+4])
		off += 4
	}
	h.ShardSize = binary.BigEndian.Uint32(data[off : off+4])

	if h.DataShards == 0 || h.ParityShards == 0 || h.TotalShards() > 256 {
		return ErrInvalidShards
	}
	if h.ShardSize == 0 && h.OriginalLength > 0 {
		return ErrInvalidShards
	}
	if uint64(h.ShardSize)*uint64(h.DataShards) < uint64(h.OriginalLength) {
		return ErrInvalidShards
	}
	return nil
}

// NewParityHeader returns an XOR parity header for data.
func NewParityHeader(data []byte, ratio uint8, useChecksum bool) *ParityHeader {
	h := &ParityHeader{
		Ratio:          ratio,
		OriginalLength: uint32(len(data)),
	}
	if useChecksum {
		h.Flags |= FlagChecksum
		h.Checksum = Checksum(data)
	}
	return h
}

// HasChecksum reports whether the checksum field is present.
func (h *ParityHeader) HasChecksum() bool {
	return h.Flags&FlagChecksum != 0
}

// Size returns the encoded size of the header.
func (h *ParityHeader) Size() int {
	if h.HasChecksum() {
		return parityBaseSize + 4
	}
	return parityBaseSize
}

// BodySize returns the length of the block body for the original length.
func (h *ParityHeader) BodySize() int {
	n := int(h.OriginalLength)
	if h.Ratio == 0 {
		return n
	}
	return n + (n+int(h.Ratio)-1)/int(h.Ratio)
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (h *ParityHeader) MarshalBinary() ([]byte, error) {
	if h.Ratio == 0 {
		return nil, ErrInvalidRatio
	}
	buf := make([]byte, h.Size())
	buf[0] = h.Ratio
	buf[1] = h.Flags
	binary.BigEndian.PutUint32(buf[2:6], h.OriginalLength)
	if h.HasChecksum() {
		binary.BigEndian.PutUint32(buf[6:10], h.Checksum)
	}
	return buf, nil
}

// UnmarshalBinary implements the encoding.BinaryUnmarshaler interface.
func (h *ParityHeader) UnmarshalBinary(data []byte) error {
	if len(data) < parityBaseSize {
		return ErrInvalidHeaderSize
	}
	if data[0] == 0 {
		return ErrInvalidRatio
	}
	flags := data[1]
	if flags&FlagChecksum != 0 && len(data) < parityBaseSize+4 {
		return ErrInvalidHeaderSize
	}

	h.Ratio = data[0]
	h.Flags = flags
	h.OriginalLength = binary.BigEndian.Uint32(data[2:6])
	h.Checksum = 0
	if h.HasChecksum() {
		h.Checksum = binary.BigEndian.Uint32(data[6:10])
	}
	return nil
}
