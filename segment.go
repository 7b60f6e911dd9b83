package agc

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"

	"github.com/pjotrp/agc/lzdiff"
)

// Contigs are cut into segments at splitter k-mers so that homologous
// stretches of different samples fall into the same segment group. A
// k-mer is a splitter when the murmur3 hash of its packed form is below
// a threshold that admits about one k-mer in segment-size; since no cut
// is taken within half a segment size of the previous one, segments
// average about one and a half times the configured size. The same
// contig content therefore always splits the same way, no matter which
// sample it arrives in.

// splitter holds one segmentation cut: the position right after the
// splitter k-mer and the k-mer's packed code.
type splitter struct {
	pos  int
	code uint64
}

// noSplitter is the boundary code used at contig ends, where no k-mer
// anchors the cut.
const noSplitter = ^uint64(0)

// segmenter cuts symbol sequences into routed segments.
type segmenter struct {
	kmerLen     int
	segmentSize int
	threshold   uint64
}

func newSegmenter(kmerLen, segmentSize int) *segmenter {
	// One splitter every segmentSize positions on average.
	threshold := ^uint64(0) / uint64(segmentSize)
	return &segmenter{
		kmerLen:     kmerLen,
		segmentSize: segmentSize,
		threshold:   threshold,
	}
}

// hashKmer mixes a packed k-mer code through murmur3.
func hashKmer(code uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], code)
	return murmur3.Sum64(buf[:])
}

// groupKey routes a segment by its flanking splitter codes. Segments of
// different samples that sit between the same pair of splitters share a
// group and are delta-encoded against the group's reference.
func groupKey(front, back uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], front)
	binary.LittleEndian.PutUint64(buf[8:16], back)
	return murmur3.Sum64(buf[:])
}

// rawSegment is one cut of a contig, not yet encoded.
type rawSegment struct {
	seq   []byte
	group uint64
}

// split cuts seq into segments. Cuts happen after splitter k-mers that
// are at least segmentSize/2 past the previous cut; windows containing
// N or other unpackable symbols never split.
func (sg *segmenter) split(seq []byte) []rawSegment {
	minSpan := sg.segmentSize / 2
	if minSpan < sg.kmerLen {
		minSpan = sg.kmerLen
	}

	var cuts []splitter
	last := 0
	for i := 0; i+sg.kmerLen <= len(seq); i++ {
		if i-last < minSpan {
			continue
		}
		code := lzdiff.KmerCode(seq[i:], sg.kmerLen)
		if code == lzdiff.NoKey {
			continue
		}
		if hashKmer(code) < sg.threshold {
			cut := i + sg.kmerLen
			cuts = append(cuts, splitter{pos: cut, code: code})
			last = cut
		}
	}

	front := noSplitter
	var segs []rawSegment
	start := 0
	for _, c := range cuts {
		segs = append(segs, rawSegment{
			seq:   seq[start:c.pos],
			group: groupKey(front, c.code),
		})
		start = c.pos
		front = c.code
	}
	if start < len(seq) || len(segs) == 0 {
		segs = append(segs, rawSegment{
			seq:   seq[start:],
			group: groupKey(front, noSplitter),
		})
	}
	return segs
}
