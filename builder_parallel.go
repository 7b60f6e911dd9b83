package agc

import (
	"golang.org/x/sync/errgroup"

	"github.com/pjotrp/agc/lzdiff"
)

// encodeTask is one segment awaiting compression. Workers fill in blob
// and may flip a delta task to raw when no group reference matches it
// well enough.
type encodeTask struct {
	segID      uint32
	seq        []byte
	kind       uint8
	ref        uint32
	candidates []uint32
	blob       []byte
}

// runEncodeTasks compresses the flushed segments. Routing state is
// frozen while workers run: they only read refSeqs and the collection,
// so no locks are needed.
func (b *Builder) runEncodeTasks(tasks []*encodeTask) error {
	if len(tasks) == 0 {
		return nil
	}

	if b.cfg.workers <= 1 {
		codecs := make(map[uint32]*lzdiff.Codec)
		for _, t := range tasks {
			if err := b.ctx.Err(); err != nil {
				return err
			}
			if err := b.encodeSegment(t, codecs); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(b.ctx)
	taskCh := make(chan *encodeTask)

	for w := 0; w < b.cfg.workers; w++ {
		g.Go(func() error {
			// Each worker keeps its own prepared codecs: a codec owns a
			// mutable index and is single-threaded by design.
			codecs := make(map[uint32]*lzdiff.Codec)
			for t := range taskCh {
				if err := b.encodeSegment(t, codecs); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(taskCh)
		for _, t := range tasks {
			select {
			case taskCh <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return g.Wait()
}

// codecFor returns a worker-local codec prepared over the raw symbols
// of reference segment id.
func (b *Builder) codecFor(id uint32, codecs map[uint32]*lzdiff.Codec) (*lzdiff.Codec, error) {
	if c, ok := codecs[id]; ok {
		return c, nil
	}
	c, err := lzdiff.New(
		lzdiff.WithVersion(b.cfg.dialect),
		lzdiff.WithMinMatchLen(b.cfg.minMatchLen))
	if err != nil {
		return nil, err
	}
	c.Prepare(b.refSeqs[id])
	codecs[id] = c
	return c, nil
}

// encodeSegment produces the stored blob for one task. Raw segments
// zstd their symbols directly. Delta segments pick the cheapest group
// reference (bounded estimation, adaptive mode ranks several) and zstd
// the token stream; in adaptive mode a segment whose best delta is no
// smaller than the segment itself falls back to raw storage.
func (b *Builder) encodeSegment(t *encodeTask, codecs map[uint32]*lzdiff.Codec) error {
	if t.kind == segRaw {
		t.blob = b.zenc.EncodeAll(t.seq, nil)
		return nil
	}

	candidates := t.candidates
	if !b.cfg.adaptive {
		candidates = candidates[:1]
	}

	bestRef := candidates[0]
	bestCost := -1
	for _, id := range candidates {
		c, err := b.codecFor(id, codecs)
		if err != nil {
			return err
		}
		bound := bestCost
		if bound < 0 {
			bound = len(t.seq)
		}
		cost := c.Estimate(t.seq, bound)
		if bestCost < 0 || cost < bestCost {
			bestRef = id
			bestCost = cost
		}
	}

	if b.cfg.adaptive && bestCost >= len(t.seq) {
		t.kind = segRaw
		t.ref = noRef
		t.blob = b.zenc.EncodeAll(t.seq, nil)
		return nil
	}

	c, err := b.codecFor(bestRef, codecs)
	if err != nil {
		return err
	}
	// A segment equal to its reference encodes to an empty stream and
	// is stored as an empty blob.
	t.ref = bestRef
	t.blob = b.zenc.EncodeAll(c.Encode(t.seq), nil)
	return nil
}
