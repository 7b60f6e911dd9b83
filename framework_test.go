// framework_test.go tests the framework infrastructure of the agc
// package: header/footer serialization, the collection directory codec,
// splitter segmentation and group routing. These are functions that
// don't individually warrant separate files but share the same test
// binary.
package agc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/zstd"

	agcerrors "github.com/pjotrp/agc/errors"
	"github.com/pjotrp/agc/lzdiff"
)

// =============================================================================
// Header / footer serialization
// =============================================================================

func TestHeaderRoundTrip(t *testing.T) {
	h := &header{
		Magic:       magic,
		Version:     formatVersion,
		Dialect:     2,
		MinMatchLen: 20,
		KmerLength:  21,
		SegmentSize: 60000,
		MinNRunLen:  4,
	}

	var buf [headerSize]byte
	h.encodeTo(buf[:])

	got, err := decodeHeader(buf[:])
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if *got != *h {
		t.Errorf("header round trip: got %+v, want %+v", got, h)
	}
}

func TestHeaderValidation(t *testing.T) {
	valid := header{
		Magic: magic, Version: formatVersion, Dialect: 2,
		MinMatchLen: 20, KmerLength: 21, SegmentSize: 60000, MinNRunLen: 4,
	}

	cases := []struct {
		name    string
		mutate  func(*header)
		wantErr error
	}{
		{"bad_magic", func(h *header) { h.Magic = 0xDEAD }, agcerrors.ErrInvalidMagic},
		{"bad_version", func(h *header) { h.Version = 99 }, agcerrors.ErrInvalidVersion},
		{"bad_dialect", func(h *header) { h.Dialect = 7 }, agcerrors.ErrCorruptedData},
		{"zero_match_len", func(h *header) { h.MinMatchLen = 0 }, agcerrors.ErrCorruptedData},
		{"zero_kmer", func(h *header) { h.KmerLength = 0 }, agcerrors.ErrCorruptedData},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := valid
			tc.mutate(&h)
			var buf [headerSize]byte
			h.encodeTo(buf[:])
			if _, err := decodeHeader(buf[:]); !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}

	if _, err := decodeHeader(make([]byte, 10)); !errors.Is(err, agcerrors.ErrTruncatedFile) {
		t.Errorf("short header: got %v", err)
	}
}

func TestFooterRoundTrip(t *testing.T) {
	f := &footer{
		DataHash:         0x0123456789ABCDEF,
		CollectionHash:   0xFEDCBA9876543210,
		CollectionOffset: 123456,
		CollectionSize:   7890,
	}

	var buf [footerSize]byte
	f.encodeTo(buf[:])

	got, err := decodeFooter(buf[:])
	if err != nil {
		t.Fatalf("decodeFooter: %v", err)
	}
	if *got != *f {
		t.Errorf("footer round trip: got %+v, want %+v", got, f)
	}
}

// =============================================================================
// Collection directory
// =============================================================================

func TestCollectionRoundTrip(t *testing.T) {
	col := &collection{
		Samples: []sampleMeta{
			{Name: "ref", Contigs: []contigMeta{
				{Name: "chr1", Length: 12345, Segments: []uint32{0, 1, 2}},
				{Name: "chr2", Length: 42, Segments: []uint32{3}},
			}},
			{Name: "sample1", Contigs: []contigMeta{
				{Name: "chr1", Length: 12340, Segments: []uint32{4, 1, 5}},
			}},
		},
		Segments: []segmentMeta{
			{Offset: 0, Size: 100, RawLen: 5000, Kind: segRaw, Ref: noRef, GroupKey: 11},
			{Offset: 100, Size: 80, RawLen: 5000, Kind: segRaw, Ref: noRef, GroupKey: 22},
			{Offset: 180, Size: 60, RawLen: 2345, Kind: segRaw, Ref: noRef, GroupKey: 33},
			{Offset: 240, Size: 30, RawLen: 42, Kind: segRaw, Ref: noRef, GroupKey: 44},
			{Offset: 270, Size: 12, RawLen: 4995, Kind: segDelta, Ref: 0, GroupKey: 11},
			{Offset: 282, Size: 9, RawLen: 2345, Kind: segDelta, Ref: 2, GroupKey: 33},
		},
		CmdLines: []string{"agc create -o col.agc ref.fa"},
	}

	zenc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer zenc.Close()
	zdec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer zdec.Close()

	blob, err := encodeCollection(col, zenc)
	if err != nil {
		t.Fatalf("encodeCollection: %v", err)
	}
	got, err := decodeCollection(blob, zdec)
	if err != nil {
		t.Fatalf("decodeCollection: %v", err)
	}

	if len(got.Samples) != 2 || got.Samples[0].Name != "ref" ||
		got.Samples[1].Contigs[0].Length != 12340 {
		t.Errorf("samples round trip: %+v", got.Samples)
	}
	if len(got.Segments) != 6 || got.Segments[4] != col.Segments[4] {
		t.Errorf("segments round trip: %+v", got.Segments)
	}
	if len(got.CmdLines) != 1 || got.CmdLines[0] != col.CmdLines[0] {
		t.Errorf("cmd lines round trip: %+v", got.CmdLines)
	}

	if _, err := decodeCollection([]byte("junk"), zdec); !errors.Is(err, agcerrors.ErrCorruptedData) {
		t.Errorf("junk collection: got %v", err)
	}
}

// =============================================================================
// Segmentation
// =============================================================================

func TestSplitCoversSequence(t *testing.T) {
	rng := newTestRNG(t)
	sg := newSegmenter(15, 1000)

	for _, n := range []int{0, 1, 14, 999, 1000, 5000, 50000} {
		seq := lzdiff.EncodeSeq(randomDNA(rng, n))
		segs := sg.split(seq)

		if len(segs) == 0 {
			t.Errorf("n=%d: no segments", n)
			continue
		}
		var joined []byte
		for _, seg := range segs {
			joined = append(joined, seg.seq...)
		}
		if !bytes.Equal(joined, seq) {
			t.Errorf("n=%d: segments do not concatenate to the input", n)
		}
		for i, seg := range segs[:len(segs)-1] {
			if len(seg.seq) < sg.kmerLen {
				t.Errorf("n=%d: segment %d shorter than a splitter k-mer (%d)", n, i, len(seg.seq))
			}
		}
	}
}

func TestSplitIsContentDeterministic(t *testing.T) {
	// The same content must split the same way regardless of which
	// sample it arrives in; group keys route homologous segments
	// together.
	rng := newTestRNG(t)
	sg := newSegmenter(15, 1000)
	seq := lzdiff.EncodeSeq(randomDNA(rng, 20000))

	a := sg.split(seq)
	b := sg.split(append([]byte(nil), seq...))

	if len(a) != len(b) {
		t.Fatalf("split of identical content differs: %d vs %d segments", len(a), len(b))
	}
	for i := range a {
		if !bytes.Equal(a[i].seq, b[i].seq) || a[i].group != b[i].group {
			t.Errorf("segment %d differs between identical inputs", i)
		}
	}
}

func TestSplitGroupsMutatedContent(t *testing.T) {
	// A lightly mutated copy should produce mostly the same groups, so
	// its segments find their references.
	rng := newTestRNG(t)
	sg := newSegmenter(15, 1000)
	base := lzdiff.EncodeSeq(randomDNA(rng, 30000))
	variant := lzdiff.EncodeSeq(mutateDNA(rng, lzdiff.DecodeSeq(base), 30))

	groups := make(map[uint64]bool)
	for _, seg := range sg.split(base) {
		groups[seg.group] = true
	}

	shared := 0
	segs := sg.split(variant)
	for _, seg := range segs {
		if groups[seg.group] {
			shared++
		}
	}
	if shared*2 < len(segs) {
		t.Errorf("only %d of %d variant segments share a group with the base", shared, len(segs))
	}
}

func TestSplitNeverSplitsInNRuns(t *testing.T) {
	rng := newTestRNG(t)
	sg := newSegmenter(15, 200)

	seq := lzdiff.EncodeSeq(randomDNA(rng, 1000))
	nrun := bytes.Repeat([]byte{lzdiff.NCode}, 3000)
	seq = append(append(seq, nrun...), lzdiff.EncodeSeq(randomDNA(rng, 1000))...)

	// Every cut ends a splitter k-mer, and windows containing N never
	// hash, so the k symbols before each boundary must all be packable.
	segs := sg.split(seq)
	pos := 0
	for i, seg := range segs[:len(segs)-1] {
		pos += len(seg.seq)
		for _, sym := range seq[pos-sg.kmerLen : pos] {
			if sym > 3 {
				t.Errorf("cut after segment %d lies inside an N run", i)
				break
			}
		}
	}
}
