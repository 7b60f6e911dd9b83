package agc

import (
	"encoding/binary"

	agcerrors "github.com/pjotrp/agc/errors"
)

const (
	// magic number for agc archive files: "AGC1" in little-endian.
	magic = uint32(0x31434741)

	// formatVersion is the current container version.
	formatVersion = uint16(0x0001)

	// headerSize is the exact size of the serialized header (48 bytes).
	headerSize = 48

	// footerSize is the exact size of the serialized footer (48 bytes).
	footerSize = 48
)

// header is the 48-byte file header.
//
// Layout:
//
//	Offset  Size  Field        Type
//	0       4     Magic        0x31434741 ("AGC1")
//	4       2     Version      0x0001
//	6       1     Dialect      LZ stream dialect (1 or 2)
//	7       1     Reserved     zero
//	8       4     MinMatchLen  uint32_le
//	12      4     KmerLength   uint32_le (splitter k-mer length)
//	16      4     SegmentSize  uint32_le (expected segment size)
//	20      4     MinNRunLen   uint32_le
//	24      24    Reserved     [24]byte (zero)
//
// The codec parameters live in the header because decoding any segment
// requires them; per-segment metadata lives in the collection.
type header struct {
	Magic       uint32
	Version     uint16
	Dialect     uint8
	MinMatchLen uint32
	KmerLength  uint32
	SegmentSize uint32
	MinNRunLen  uint32
	Reserved    [24]byte
}

// encodeTo serializes the header to an existing buffer.
func (h *header) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = h.Dialect
	buf[7] = 0
	binary.LittleEndian.PutUint32(buf[8:12], h.MinMatchLen)
	binary.LittleEndian.PutUint32(buf[12:16], h.KmerLength)
	binary.LittleEndian.PutUint32(buf[16:20], h.SegmentSize)
	binary.LittleEndian.PutUint32(buf[20:24], h.MinNRunLen)
	copy(buf[24:48], h.Reserved[:])
}

// decodeHeader parses a 48-byte header.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, agcerrors.ErrTruncatedFile
	}

	h := &header{
		Magic:       binary.LittleEndian.Uint32(buf[0:4]),
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		Dialect:     buf[6],
		MinMatchLen: binary.LittleEndian.Uint32(buf[8:12]),
		KmerLength:  binary.LittleEndian.Uint32(buf[12:16]),
		SegmentSize: binary.LittleEndian.Uint32(buf[16:20]),
		MinNRunLen:  binary.LittleEndian.Uint32(buf[20:24]),
	}
	copy(h.Reserved[:], buf[24:48])

	if h.Magic != magic {
		return nil, agcerrors.ErrInvalidMagic
	}
	if h.Version != formatVersion {
		return nil, agcerrors.ErrInvalidVersion
	}
	if h.Dialect != 1 && h.Dialect != 2 {
		return nil, agcerrors.ErrCorruptedData
	}
	if h.MinMatchLen == 0 || h.SegmentSize == 0 || h.KmerLength == 0 {
		return nil, agcerrors.ErrCorruptedData
	}

	return h, nil
}

// footer is the 48-byte file footer.
//
// Layout:
//
//	Offset  Size  Field             Type
//	0       8     DataHash          uint64_le (xxHash64 of the data region)
//	8       8     CollectionHash    uint64_le (xxHash64 of the compressed collection)
//	16      8     CollectionOffset  uint64_le (file offset of the collection block)
//	24      8     CollectionSize    uint64_le (compressed collection size)
//	32      16    Reserved          [16]byte (zero)
type footer struct {
	DataHash         uint64
	CollectionHash   uint64
	CollectionOffset uint64
	CollectionSize   uint64
	Reserved         [16]byte
}

// encodeTo serializes the footer into an existing buffer.
func (f *footer) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.DataHash)
	binary.LittleEndian.PutUint64(buf[8:16], f.CollectionHash)
	binary.LittleEndian.PutUint64(buf[16:24], f.CollectionOffset)
	binary.LittleEndian.PutUint64(buf[24:32], f.CollectionSize)
	copy(buf[32:48], f.Reserved[:])
}

// decodeFooter parses a 48-byte footer.
func decodeFooter(buf []byte) (*footer, error) {
	if len(buf) < footerSize {
		return nil, agcerrors.ErrTruncatedFile
	}

	f := &footer{
		DataHash:         binary.LittleEndian.Uint64(buf[0:8]),
		CollectionHash:   binary.LittleEndian.Uint64(buf[8:16]),
		CollectionOffset: binary.LittleEndian.Uint64(buf[16:24]),
		CollectionSize:   binary.LittleEndian.Uint64(buf[24:32]),
	}
	copy(f.Reserved[:], buf[32:48])

	return f, nil
}
