// Package reedsolomon implements the self-describing Reed-Solomon frame used
// to protect payloads hidden in lossy carriers.
//
// A frame is a header.RSHeader followed by DataShards+ParityShards shards of
// ShardSize bytes each, data shards first.
package reedsolomon

import (
	"errors"
	"fmt"

	rs "github.com/klauspost/reedsolomon"
	"github.com/sirupsen/logrus"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/header"
	"github.com/OhanaFS/nhale/logging"
)

// maxRepairAttempts bounds the number of erasure sets tried when searching
// for corrupted shards.
const maxRepairAttempts = 4096

var (
	ErrInsufficientShards = errors.New("not enough shards to reconstruct the data")
	ErrEmptyData          = errors.New("no data to encode")
)

// Options specifies the layout of an encoded frame.
type Options struct {
	// DataShards is the number of shards the data is split into.
	DataShards uint8
	// ParityShards is the number of parity shards to create. This also
	// determines the maximum number of shards that can be lost or corrupted
	// before the data cannot be recovered.
	ParityShards uint8
	// UseChecksum stores a CRC-32 of the data in the header, which lets the
	// decoder locate corrupted shards.
	UseChecksum bool
}

// DefaultOptions returns the 10 data / 4 parity layout with a checksum.
func DefaultOptions() *Options {
	return &Options{
		DataShards:   10,
		ParityShards: 4,
		UseChecksum:  true,
	}
}

// Decoded is the result of decoding a frame.
type Decoded struct {
	// Data is the recovered data, truncated to the original length.
	Data []byte
	// Missing lists shards that were cut off from the frame.
	Missing []int
	// Repaired lists present shards that were found corrupted and rebuilt.
	Repaired []int
	// ChecksumOK is true when the frame had no checksum or the checksum of
	// Data matches it.
	ChecksumOK bool
	// Warnings describes every recoverable problem found while decoding.
	Warnings []string
}

// Encode splits data into shards, computes the parity shards and returns the
// complete frame.
func Encode(data []byte, opts *Options) ([]byte, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.DataShards == 0 || opts.ParityShards == 0 {
		return nil, errorx.Wrap(header.ErrInvalidShards, errorx.Encoding,
			"data and parity shards must be non-zero, got %d/%d",
			opts.DataShards, opts.ParityShards)
	}
	if len(data) == 0 {
		return nil, errorx.Wrap(ErrEmptyData, errorx.InvalidData, "failed to encode frame")
	}

	dataShards := int(opts.DataShards)
	parityShards := int(opts.ParityShards)
	enc, err := rs.New(dataShards, parityShards)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encoding, "failed to create Reed-Solomon encoder")
	}

	// Zero-pad the data to a whole number of shards.
	shardSize := (len(data) + dataShards - 1) / dataShards
	shards := make([][]byte, dataShards+parityShards)
	for i := range shards {
		shards[i] = make([]byte, shardSize)
	}
	for i := 0; i < dataShards; i++ {
		start := i * shardSize
		if start >= len(data) {
			break
		}
		copy(shards[i], data[start:])
	}

	if err := enc.Encode(shards); err != nil {
		return nil, errorx.Wrap(err, errorx.Encoding, "failed to encode parity")
	}

	hdr := header.NewRSHeader(data, opts.DataShards, opts.ParityShards,
		uint32(shardSize), opts.UseChecksum)
	frame, err := hdr.MarshalBinary()
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encoding, "failed to encode header")
	}
	for _, shard := range shards {
		frame = append(frame, shard...)
	}
	return frame, nil
}

// Decode parses a frame and recovers its data. Missing and corrupted shards
// are repaired where the parity allows it. Failures to repair and checksum
// mismatches are reported as warnings on the result and to log, never as
// errors. A malformed header or fewer than DataShards shards is an error.
func Decode(frame []byte, log logrus.FieldLogger) (*Decoded, error) {
	log = logging.Or(log)

	hdr := &header.RSHeader{}
	if err := hdr.UnmarshalBinary(frame); err != nil {
		return nil, errorx.Wrap(err, errorx.InvalidInput, "failed to parse frame header")
	}

	d := &decoder{
		hdr: hdr,
		log: log.WithFields(logrus.Fields{
			"data_shards":   hdr.DataShards,
			"parity_shards": hdr.ParityShards,
			"shard_size":    hdr.ShardSize,
		}),
		result: &Decoded{ChecksumOK: true},
	}

	if hdr.OriginalLength == 0 {
		d.result.Data = []byte{}
		return d.result, nil
	}

	d.slice(frame[hdr.Size():])
	if len(d.shards)-len(d.result.Missing) < int(hdr.DataShards) {
		return nil, errorx.Wrap(ErrInsufficientShards, errorx.InvalidData,
			"only %d of %d shards present", len(d.shards)-len(d.result.Missing),
			hdr.TotalShards())
	}

	enc, err := rs.New(int(hdr.DataShards), int(hdr.ParityShards))
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encoding, "failed to create Reed-Solomon decoder")
	}
	d.enc = enc

	d.repair()
	return d.result, nil
}

type decoder struct {
	hdr    *header.RSHeader
	enc    rs.Encoder
	log    logrus.FieldLogger
	shards [][]byte
	result *Decoded
}

func (d *decoder) warn(fields logrus.Fields, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	d.result.Warnings = append(d.result.Warnings, msg)
	d.log.WithFields(fields).Warn(msg)
}

// slice cuts the body into shards. A shard is present only if its whole byte
// range is in the body.
func (d *decoder) slice(body []byte) {
	size := int(d.hdr.ShardSize)
	d.shards = make([][]byte, d.hdr.TotalShards())
	for i := range d.shards {
		start := i * size
		end := start + size
		if end > len(body) {
			d.result.Missing = append(d.result.Missing, i)
			continue
		}
		d.shards[i] = append([]byte(nil), body[start:end]...)
	}
	if len(d.result.Missing) > 0 {
		d.warn(logrus.Fields{"missing": d.result.Missing},
			"frame truncated, %d shards missing", len(d.result.Missing))
	}
}

// verify checks a complete shard set against the checksum, or against the
// parity when the frame has no checksum.
func (d *decoder) verify(shards [][]byte) bool {
	if d.hdr.HasChecksum() {
		return header.Checksum(d.join(shards)) == d.hdr.Checksum
	}
	ok, err := d.enc.Verify(shards)
	return err == nil && ok
}

func (d *decoder) join(shards [][]byte) []byte {
	data := make([]byte, 0, int(d.hdr.DataShards)*int(d.hdr.ShardSize))
	for _, shard := range shards[:d.hdr.DataShards] {
		data = append(data, shard...)
	}
	return data[:d.hdr.OriginalLength]
}

// reconstruct rebuilds the shards listed in erase plus the missing ones on a
// copy of the shard set.
func (d *decoder) reconstruct(erase []int) ([][]byte, error) {
	shards := make([][]byte, len(d.shards))
	copy(shards, d.shards)
	for _, i := range erase {
		shards[i] = nil
	}
	if err := d.enc.Reconstruct(shards); err != nil {
		return nil, err
	}
	return shards, nil
}

func (d *decoder) repair() {
	baseline, err := d.reconstruct(nil)
	if err != nil {
		d.warn(logrus.Fields{"error": err}, "reconstruction failed: %v", err)
		d.bestEffort(nil)
		return
	}
	if d.verify(baseline) {
		d.result.Data = d.join(baseline)
		return
	}

	// Some present shard is corrupted. Treat growing sets of present shards
	// as erasures until the result verifies. Without a checksum only the
	// parity can confirm a candidate, which is unambiguous up to half of the
	// remaining parity shards.
	budget := int(d.hdr.ParityShards) - len(d.result.Missing)
	if !d.hdr.HasChecksum() {
		budget /= 2
	}
	present := make([]int, 0, len(d.shards))
	for i, shard := range d.shards {
		if shard != nil {
			present = append(present, i)
		}
	}

	attempts := 0
	for k := 1; k <= budget; k++ {
		found := false
		combinations(len(present), k, func(idx []int) bool {
			attempts++
			if attempts > maxRepairAttempts {
				return false
			}
			erase := make([]int, k)
			for j, n := range idx {
				erase[j] = present[n]
			}
			shards, err := d.reconstruct(erase)
			if err != nil || !d.verify(shards) {
				return true
			}
			d.result.Repaired = erase
			d.result.Data = d.join(shards)
			found = true
			return false
		})
		if found {
			d.log.WithField("repaired", d.result.Repaired).Info("repaired corrupted shards")
			return
		}
		if attempts > maxRepairAttempts {
			d.warn(logrus.Fields{"attempts": maxRepairAttempts},
				"gave up searching for corrupted shards")
			break
		}
	}

	d.warn(nil, "unable to locate corrupted shards, returning best-effort data")
	d.bestEffort(baseline)
}

// bestEffort joins whatever shards are available, zero-filling data shards
// that could not be rebuilt, and records the checksum state.
func (d *decoder) bestEffort(shards [][]byte) {
	if shards == nil {
		shards = make([][]byte, len(d.shards))
		for i, shard := range d.shards {
			if shard == nil {
				shard = make([]byte, d.hdr.ShardSize)
			}
			shards[i] = shard
		}
	}
	d.result.Data = d.join(shards)
	if !d.hdr.HasChecksum() {
		return
	}
	if actual := header.Checksum(d.result.Data); actual != d.hdr.Checksum {
		d.result.ChecksumOK = false
		d.warn(logrus.Fields{
			"expected": d.hdr.Checksum,
			"actual":   actual,
		}, "checksum mismatch")
	}
}

// combinations calls fn with every k-sized subset of [0, n) in lexicographic
// order until fn returns false.
func combinations(n, k int, fn func([]int) bool) {
	if k > n || k <= 0 {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		if !fn(idx) {
			return
		}
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
