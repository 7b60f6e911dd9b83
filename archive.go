package agc

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"

	agcerrors "github.com/pjotrp/agc/errors"
	"github.com/pjotrp/agc/lzdiff"
)

// minFileSize is a conservative lower bound for valid archives:
// header + footer + a non-empty collection block.
const minFileSize = headerSize + footerSize + 1

// Archive is a read-only genome collection opened for querying.
//
// Thread safety:
//   - All query methods are safe for concurrent use
//   - Close is NOT safe to call concurrently with queries
//   - After Close returns, no methods may be called on the Archive
type Archive struct {
	// Memory map (no file handle needed after mmap)
	mmap mmap.MMap
	data []byte

	header *header
	footer *footer
	col    *collection

	// Name lookup built at open time.
	samples map[string]*sampleMeta

	zdec *zstd.Decoder

	// Decoded raw segments, cached because many delta segments decode
	// against the same reference segment.
	refMu    sync.RWMutex
	refCache map[uint32][]byte

	closed atomic.Bool
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	prefetch bool
}

// WithPrefetch asks the kernel to fault the whole archive in at open
// time and to read ahead sequentially. Worth it before extracting many
// samples; wasteful for a single contig query.
func WithPrefetch(enabled bool) OpenOption {
	return func(c *openConfig) { c.prefetch = enabled }
}

// Open opens an archive file for querying.
// It opens the file, memory-maps it, and closes the file descriptor.
func Open(path string, opts ...OpenOption) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()
	return OpenFile(file, opts...)
}

// OpenFile opens an archive by memory-mapping the given file. The
// caller is responsible for closing f; per POSIX mmap(2), f may be
// closed immediately after OpenFile returns.
func OpenFile(f *os.File, opts ...OpenOption) (*Archive, error) {
	cfg := &openConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	fileSize := stat.Size()
	if fileSize < minFileSize {
		return nil, agcerrors.ErrTruncatedFile
	}

	if cfg.prefetch {
		fadviseSequential(int(f.Fd()), 0, fileSize)
	} else {
		fadviseRandom(int(f.Fd()), 0, fileSize)
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap archive: %w", err)
	}

	a := &Archive{
		mmap:     mm,
		data:     []byte(mm),
		refCache: make(map[uint32][]byte),
	}
	if err := a.parse(); err != nil {
		a.mmap.Unmap()
		return nil, err
	}

	if cfg.prefetch {
		prefaultRegion(a.data)
	}
	return a, nil
}

// parse validates the envelope and loads the collection directory.
func (a *Archive) parse() error {
	hdr, err := decodeHeader(a.data[:headerSize])
	if err != nil {
		return err
	}
	ftr, err := decodeFooter(a.data[len(a.data)-footerSize:])
	if err != nil {
		return err
	}

	end := ftr.CollectionOffset + ftr.CollectionSize
	if ftr.CollectionOffset < headerSize || end < ftr.CollectionOffset || end > uint64(len(a.data)-footerSize) {
		return agcerrors.ErrTruncatedFile
	}
	colBlob := a.data[ftr.CollectionOffset:end]
	if xxhash.Sum64(colBlob) != ftr.CollectionHash {
		return agcerrors.ErrChecksumFailed
	}

	zdec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("create zstd decoder: %w", err)
	}
	col, err := decodeCollection(colBlob, zdec)
	if err != nil {
		zdec.Close()
		return err
	}

	dataLen := ftr.CollectionOffset - headerSize
	for i := range col.Segments {
		seg := &col.Segments[i]
		if seg.Offset+uint64(seg.Size) > dataLen {
			zdec.Close()
			return agcerrors.ErrCorruptedData
		}
		if seg.Kind == segDelta && (seg.Ref >= uint32(len(col.Segments)) ||
			col.Segments[seg.Ref].Kind != segRaw) {
			zdec.Close()
			return agcerrors.ErrCorruptedData
		}
	}

	samples := make(map[string]*sampleMeta, len(col.Samples))
	for i := range col.Samples {
		samples[col.Samples[i].Name] = &col.Samples[i]
	}

	a.header = hdr
	a.footer = ftr
	a.col = col
	a.samples = samples
	a.zdec = zdec
	return nil
}

// dataRegion returns the segment data between header and collection.
func (a *Archive) dataRegion() []byte {
	return a.data[headerSize:a.footer.CollectionOffset]
}

// Verify recomputes the data-region checksum against the footer. The
// collection checksum is already verified at open time.
func (a *Archive) Verify() error {
	if a.closed.Load() {
		return agcerrors.ErrArchiveClosed
	}
	if xxhash.Sum64(a.dataRegion()) != a.footer.DataHash {
		return agcerrors.ErrChecksumFailed
	}
	return nil
}

// Close unmaps the archive. Not safe to call while queries are running.
func (a *Archive) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	a.zdec.Close()
	return a.mmap.Unmap()
}

// NumSamples returns the number of samples in the archive.
func (a *Archive) NumSamples() int { return len(a.col.Samples) }

// ReferenceSample returns the name of the reference sample (the first
// sample the archive was created from).
func (a *Archive) ReferenceSample() (string, error) {
	if len(a.col.Samples) == 0 {
		return "", agcerrors.ErrEmptyArchive
	}
	return a.col.Samples[0].Name, nil
}

// ListSamples returns every sample name in archive order.
func (a *Archive) ListSamples() []string {
	names := make([]string, len(a.col.Samples))
	for i := range a.col.Samples {
		names[i] = a.col.Samples[i].Name
	}
	return names
}

// NumContigs returns the number of contigs in a sample.
func (a *Archive) NumContigs(sample string) (int, error) {
	s, ok := a.samples[sample]
	if !ok {
		return 0, agcerrors.ErrSampleNotFound
	}
	return len(s.Contigs), nil
}

// ListContigs returns the contig names of a sample in input order.
func (a *Archive) ListContigs(sample string) ([]string, error) {
	s, ok := a.samples[sample]
	if !ok {
		return nil, agcerrors.ErrSampleNotFound
	}
	names := make([]string, len(s.Contigs))
	for i := range s.Contigs {
		names[i] = s.Contigs[i].Name
	}
	return names, nil
}

// findContig resolves a contig by name. An empty sample name searches
// every sample and returns the first match, which is how queries name
// contigs whose sample is unambiguous.
func (a *Archive) findContig(sample, name string) (*contigMeta, error) {
	if sample != "" {
		s, ok := a.samples[sample]
		if !ok {
			return nil, agcerrors.ErrSampleNotFound
		}
		if ctg := s.contig(name); ctg != nil {
			return ctg, nil
		}
		return nil, agcerrors.ErrContigNotFound
	}
	for i := range a.col.Samples {
		if ctg := a.col.Samples[i].contig(name); ctg != nil {
			return ctg, nil
		}
	}
	return nil, agcerrors.ErrContigNotFound
}

// ContigLen returns the length of a contig in bases. sample may be
// empty when the contig name is unique in the archive.
func (a *Archive) ContigLen(sample, name string) (int, error) {
	if a.closed.Load() {
		return 0, agcerrors.ErrArchiveClosed
	}
	ctg, err := a.findContig(sample, name)
	if err != nil {
		return 0, err
	}
	return int(ctg.Length), nil
}

// ContigSeq returns contig bases [from, to) as uppercase DNA text.
// A negative to means the contig end. Only the segments covering the
// range are decompressed.
func (a *Archive) ContigSeq(sample, name string, from, to int) ([]byte, error) {
	if a.closed.Load() {
		return nil, agcerrors.ErrArchiveClosed
	}
	ctg, err := a.findContig(sample, name)
	if err != nil {
		return nil, err
	}
	if to < 0 {
		to = int(ctg.Length)
	}
	if from < 0 || from > to || to > int(ctg.Length) {
		return nil, agcerrors.ErrBadRange
	}

	out := make([]byte, 0, to-from)
	base := 0
	for _, id := range ctg.Segments {
		segLen := int(a.col.Segments[id].RawLen)
		if base >= to {
			break
		}
		if base+segLen > from {
			syms, err := a.segmentSymbols(id)
			if err != nil {
				return nil, err
			}
			lo := max(from-base, 0)
			hi := min(to-base, segLen)
			out = append(out, syms[lo:hi]...)
		}
		base += segLen
	}
	return lzdiff.DecodeSeq(out), nil
}

// segmentSymbols decodes one stored segment into internal symbols.
// Raw segments are cached; delta segments decode their token stream
// against the cached reference segment.
func (a *Archive) segmentSymbols(id uint32) ([]byte, error) {
	meta := &a.col.Segments[id]

	if meta.Kind == segRaw {
		return a.rawSegmentSymbols(id, meta)
	}

	ref, err := a.rawSegmentSymbols(meta.Ref, &a.col.Segments[meta.Ref])
	if err != nil {
		return nil, err
	}

	var enc []byte
	if meta.Size > 0 {
		blob := a.dataRegion()[meta.Offset : meta.Offset+uint64(meta.Size)]
		enc, err = a.zdec.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: %v", agcerrors.ErrCorruptedData, id, err)
		}
	}

	syms, err := lzdiff.Decode(lzdiff.Version(a.header.Dialect),
		int(a.header.MinMatchLen), int(a.header.MinNRunLen), ref, enc)
	if err != nil {
		return nil, fmt.Errorf("%w: segment %d: %v", agcerrors.ErrCorruptedData, id, err)
	}
	if len(syms) != int(meta.RawLen) {
		return nil, agcerrors.ErrCorruptedData
	}
	return syms, nil
}

func (a *Archive) rawSegmentSymbols(id uint32, meta *segmentMeta) ([]byte, error) {
	if meta.Size == 0 {
		if meta.RawLen != 0 {
			return nil, agcerrors.ErrCorruptedData
		}
		return nil, nil
	}

	a.refMu.RLock()
	syms, ok := a.refCache[id]
	a.refMu.RUnlock()
	if ok {
		return syms, nil
	}

	blob := a.dataRegion()[meta.Offset : meta.Offset+uint64(meta.Size)]
	syms, err := a.zdec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: segment %d: %v", agcerrors.ErrCorruptedData, id, err)
	}
	if len(syms) != int(meta.RawLen) {
		return nil, agcerrors.ErrCorruptedData
	}

	a.refMu.Lock()
	a.refCache[id] = syms
	a.refMu.Unlock()
	return syms, nil
}
