package agc

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"

	agcerrors "github.com/pjotrp/agc/errors"
	"github.com/pjotrp/agc/lzdiff"
)

// Builder writes a new archive. Samples are declared with AddSample and
// filled with AddContig in streaming order; each sample is segmented,
// routed into cross-sample groups and compressed when the next sample
// starts (or at Finish). The first sample added is the reference sample.
//
// Usage:
//
//	builder, err := agc.NewBuilder(ctx, "out.agc", agc.WithWorkers(8))
//	if err != nil { return err }
//	defer builder.Close() // Clean up on error
//
//	for _, sample := range samples {
//	    if err := builder.AddSample(sample.Name); err != nil { return err }
//	    for _, ctg := range sample.Contigs {
//	        if err := builder.AddContig(ctg.Name, ctg.Seq); err != nil { return err }
//	    }
//	}
//	return builder.Finish()
//
// A Builder is not safe for concurrent use.
type Builder struct {
	ctx context.Context
	cfg *buildConfig

	w   *archiveWriter
	col *collection
	sg  *segmenter

	// Cross-sample segment routing state.
	groups  map[uint64][]uint32 // splitter-pair key -> candidate reference segment ids
	dedup   map[uint64]uint32   // content hash -> raw segment id
	refSeqs map[uint32][]byte   // raw symbols of reference segments

	// Current sample accumulation.
	pending []pendingContig

	zenc *zstd.Encoder
	zdec *zstd.Decoder

	appended bool
	finished bool
	closed   bool
}

type pendingContig struct {
	name string
	seq  []byte // internal symbols
}

// NewBuilder creates a builder writing to path.
func NewBuilder(ctx context.Context, path string, opts ...BuildOption) (*Builder, error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.segmentSize <= 0 {
		return nil, agcerrors.ErrBadSegmentSize
	}
	if _, err := lzdiff.New(lzdiff.WithMinMatchLen(cfg.minMatchLen)); err != nil {
		return nil, err
	}
	if cfg.kmerLength < 1 || cfg.kmerLength > 32 {
		return nil, agcerrors.ErrKeyTooLong
	}

	hdr := &header{
		Magic:       magic,
		Version:     formatVersion,
		Dialect:     uint8(cfg.dialect),
		MinMatchLen: uint32(cfg.minMatchLen),
		KmerLength:  uint32(cfg.kmerLength),
		SegmentSize: uint32(cfg.segmentSize),
		MinNRunLen:  4,
	}
	w, err := newArchiveWriter(path, hdr)
	if err != nil {
		return nil, err
	}

	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		w.abort()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	zdec, err := zstd.NewReader(nil)
	if err != nil {
		w.abort()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	col := &collection{}
	if cfg.cmdLine != "" {
		col.CmdLines = append(col.CmdLines, cfg.cmdLine)
	}

	return &Builder{
		ctx:     ctx,
		cfg:     cfg,
		w:       w,
		col:     col,
		sg:      newSegmenter(cfg.kmerLength, cfg.segmentSize),
		groups:  make(map[uint64][]uint32),
		dedup:   make(map[uint64]uint32),
		refSeqs: make(map[uint32][]byte),
		zenc:    zenc,
		zdec:    zdec,
	}, nil
}

// AppendArchive imports every sample of an existing open archive, so
// that new samples appended afterwards join its segment groups. The
// stored blobs are copied verbatim; nothing is re-encoded. It must be
// called before the first AddSample.
func (b *Builder) AppendArchive(a *Archive) error {
	if b.closed || b.finished {
		return agcerrors.ErrBuilderClosed
	}
	if b.appended || len(b.col.Samples) > 0 || len(b.pending) > 0 {
		return fmt.Errorf("agc: AppendArchive must come before any sample")
	}
	if a.header.Dialect != uint8(b.cfg.dialect) ||
		a.header.MinMatchLen != uint32(b.cfg.minMatchLen) ||
		a.header.KmerLength != uint32(b.cfg.kmerLength) ||
		a.header.SegmentSize != uint32(b.cfg.segmentSize) {
		return fmt.Errorf("agc: append parameters differ from the source archive " +
			"(match length, k-mer length and segment size must be kept)")
	}

	// The data region is copied as one piece, so every stored segment
	// keeps its offset.
	if _, err := b.w.appendBlob(a.dataRegion()); err != nil {
		return err
	}

	b.col.Samples = append(b.col.Samples, a.col.Samples...)
	b.col.Segments = append(b.col.Segments, a.col.Segments...)
	merged := append([]string(nil), a.col.CmdLines...)
	b.col.CmdLines = append(merged, b.col.CmdLines...)

	// Rebuild the routing state from the imported raw segments.
	for id := range b.col.Segments {
		meta := &b.col.Segments[id]
		if meta.Kind != segRaw {
			continue
		}
		seq, err := a.segmentSymbols(uint32(id))
		if err != nil {
			return err
		}
		b.registerReference(uint32(id), meta.GroupKey, seq)
	}

	b.appended = true
	return nil
}

// AddSample starts a new sample. The previous sample, if any, is
// segmented and written out first.
func (b *Builder) AddSample(name string) error {
	if b.closed || b.finished {
		return agcerrors.ErrBuilderClosed
	}
	if b.col.sample(name) != nil {
		return agcerrors.ErrDuplicateName
	}
	if err := b.flushSample(); err != nil {
		return err
	}
	b.col.Samples = append(b.col.Samples, sampleMeta{Name: name})
	return nil
}

// AddContig adds one contig of DNA text to the current sample. The
// sequence is translated to internal symbols on entry; seq itself is
// not retained.
func (b *Builder) AddContig(name string, seq []byte) error {
	if b.closed || b.finished {
		return agcerrors.ErrBuilderClosed
	}
	if len(b.col.Samples) == 0 {
		return agcerrors.ErrNoSample
	}
	if err := b.ctx.Err(); err != nil {
		return err
	}
	b.pending = append(b.pending, pendingContig{name: name, seq: lzdiff.EncodeSeq(seq)})
	return nil
}

// Finish writes the last sample, the collection directory and the
// footer. The builder cannot be used afterwards.
func (b *Builder) Finish() error {
	if b.closed || b.finished {
		return agcerrors.ErrBuilderClosed
	}
	if len(b.col.Samples) == 0 {
		return agcerrors.ErrEmptyArchive
	}
	if err := b.flushSample(); err != nil {
		return err
	}

	colBlob, err := encodeCollection(b.col, b.zenc)
	if err != nil {
		return err
	}
	if err := b.w.finish(colBlob); err != nil {
		return err
	}
	b.finished = true
	b.releaseCompressors()
	return nil
}

// Close releases resources. If Finish has not run, the half-written
// archive file is removed. Close after Finish is a no-op.
func (b *Builder) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if !b.finished {
		b.w.abort()
	}
	b.releaseCompressors()
	return nil
}

func (b *Builder) releaseCompressors() {
	if b.zenc != nil {
		b.zenc.Close()
		b.zenc = nil
	}
	if b.zdec != nil {
		b.zdec.Close()
		b.zdec = nil
	}
}

// registerReference makes a raw segment available as a delta target for
// its group and for content-level deduplication.
func (b *Builder) registerReference(id uint32, group uint64, seq []byte) {
	b.groups[group] = append(b.groups[group], id)
	b.refSeqs[id] = seq
	if _, taken := b.dedup[contentKey(seq)]; !taken {
		b.dedup[contentKey(seq)] = id
	}
}

// flushSample segments and writes the pending contigs of the current
// sample. Routing is serial; the per-segment compression fans out to
// the worker pool.
func (b *Builder) flushSample() error {
	if len(b.pending) == 0 {
		return nil
	}
	if err := b.ctx.Err(); err != nil {
		return err
	}
	sample := &b.col.Samples[len(b.col.Samples)-1]

	var tasks []*encodeTask
	for _, ctg := range b.pending {
		meta := contigMeta{Name: ctg.name, Length: uint64(len(ctg.seq))}

		for _, seg := range b.sg.split(ctg.seq) {
			id, task := b.routeSegment(seg)
			meta.Segments = append(meta.Segments, id)
			if task != nil {
				tasks = append(tasks, task)
			}
		}
		sample.Contigs = append(sample.Contigs, meta)
	}
	b.pending = b.pending[:0]

	if err := b.runEncodeTasks(tasks); err != nil {
		return err
	}

	// Poorly matching segments that the adaptive pass stored raw become
	// fresh references for their groups.
	for _, t := range tasks {
		if t.kind == segRaw && len(t.candidates) > 0 {
			b.registerReference(t.segID, b.col.Segments[t.segID].GroupKey, t.seq)
		}
	}

	// Blobs are appended in segment-id order so offsets stay monotonic.
	for _, t := range tasks {
		offset, err := b.w.appendBlob(t.blob)
		if err != nil {
			return err
		}
		meta := &b.col.Segments[t.segID]
		meta.Offset = offset
		meta.Size = uint32(len(t.blob))
		meta.Kind = t.kind
		meta.Ref = t.ref
	}
	return nil
}

// routeSegment decides how one segment is stored: reused verbatim when
// an identical raw segment exists, delta-encoded when its group has a
// reference, stored raw otherwise. It returns the segment id and the
// compression task (nil when an existing segment is reused).
func (b *Builder) routeSegment(seg rawSegment) (uint32, *encodeTask) {
	if id, ok := b.dedup[contentKey(seg.seq)]; ok && bytes.Equal(b.refSeqs[id], seg.seq) {
		return id, nil
	}

	id := uint32(len(b.col.Segments))
	b.col.Segments = append(b.col.Segments, segmentMeta{
		RawLen:   uint32(len(seg.seq)),
		Kind:     segRaw,
		Ref:      noRef,
		GroupKey: seg.group,
	})

	task := &encodeTask{segID: id, seq: seg.seq, kind: segRaw, ref: noRef}

	if len(seg.seq) == 0 {
		// An empty V2 delta would decode to the reference: store raw.
		return id, task
	}

	if candidates := b.groups[seg.group]; len(candidates) > 0 {
		task.kind = segDelta
		task.candidates = candidates
		if len(task.candidates) > maxAdaptiveCandidates {
			task.candidates = task.candidates[:maxAdaptiveCandidates]
		}
	} else {
		// First of its group: a reference other samples will diff against.
		b.registerReference(id, seg.group, seg.seq)
	}
	return id, task
}
