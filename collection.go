package agc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	agcerrors "github.com/pjotrp/agc/errors"
)

// Segment kinds. A reference segment stores its symbols outright; a
// delta segment stores an LZ-diff token stream against another segment.
const (
	segRaw   = uint8(0)
	segDelta = uint8(1)
)

// noRef marks a segment without a reference segment.
const noRef = ^uint32(0)

// segmentMeta locates one stored segment inside the data region.
type segmentMeta struct {
	Offset   uint64 `cbor:"1,keyasint"` // offset of the blob within the data region
	Size     uint32 `cbor:"2,keyasint"` // compressed blob size
	RawLen   uint32 `cbor:"3,keyasint"` // decoded symbol count
	Kind     uint8  `cbor:"4,keyasint"`
	Ref      uint32 `cbor:"5,keyasint"` // reference segment id (noRef for raw)
	GroupKey uint64 `cbor:"6,keyasint"` // splitter-pair key used for routing
}

// contigMeta names one contig and the segments that concatenate to it.
type contigMeta struct {
	Name     string   `cbor:"1,keyasint"`
	Length   uint64   `cbor:"2,keyasint"`
	Segments []uint32 `cbor:"3,keyasint"`
}

// sampleMeta names one sample and its contigs in input order.
type sampleMeta struct {
	Name    string       `cbor:"1,keyasint"`
	Contigs []contigMeta `cbor:"2,keyasint"`
}

// collection is the archive directory: every sample, contig and segment.
// It is CBOR-encoded, zstd-compressed and stored between the data region
// and the footer. The first sample is the reference sample.
type collection struct {
	Samples  []sampleMeta  `cbor:"1,keyasint"`
	Segments []segmentMeta `cbor:"2,keyasint"`
	CmdLines []string      `cbor:"3,keyasint,omitempty"`
}

func (col *collection) sample(name string) *sampleMeta {
	for i := range col.Samples {
		if col.Samples[i].Name == name {
			return &col.Samples[i]
		}
	}
	return nil
}

func (s *sampleMeta) contig(name string) *contigMeta {
	for i := range s.Contigs {
		if s.Contigs[i].Name == name {
			return &s.Contigs[i]
		}
	}
	return nil
}

// encodeCollection serializes and compresses the directory.
func encodeCollection(col *collection, zenc *zstd.Encoder) ([]byte, error) {
	raw, err := cbor.Marshal(col)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return zenc.EncodeAll(raw, make([]byte, 0, len(raw)/2+64)), nil
}

// decodeCollection decompresses and parses the directory block.
func decodeCollection(blob []byte, zdec *zstd.Decoder) (*collection, error) {
	raw, err := zdec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: collection block: %v", agcerrors.ErrCorruptedData, err)
	}
	col := &collection{}
	if err := cbor.Unmarshal(raw, col); err != nil {
		return nil, fmt.Errorf("%w: collection directory: %v", agcerrors.ErrCorruptedData, err)
	}
	for _, seg := range col.Segments {
		if seg.Kind != segRaw && seg.Kind != segDelta {
			return nil, agcerrors.ErrCorruptedData
		}
		if seg.Kind == segDelta && seg.Ref == noRef {
			return nil, agcerrors.ErrCorruptedData
		}
	}
	return col, nil
}

// contentKey hashes raw segment symbols for content-level deduplication:
// identical segments across samples are stored once.
func contentKey(seq []byte) uint64 {
	return xxh3.Hash(seq)
}
