// Package lzdiff implements the reference-relative LZ codec at the heart
// of the agc archive format. A Codec is bound to one reference contig,
// builds a hash index over it once, and then encodes any number of query
// contigs into a compact token stream of literals, N-run tokens and
// back-references. Decoding is a pure function of (reference, encoded)
// and needs no index.
//
// Two stream dialects exist: V1 is read-compatibility for old archives,
// V2 is written by current versions and adds the identity literal '!',
// the open-ended match form, and the empty encoding for a query equal to
// the reference. Both dialects share the matcher; they differ only at
// the token-emission points.
//
// Usage:
//
//	c, err := lzdiff.New(lzdiff.WithMinMatchLen(20))
//	if err != nil { return err }
//	c.Prepare(refSymbols)
//	enc := c.Encode(querySymbols)
//	...
//	dec, err := lzdiff.Decode(lzdiff.V2, 20, 4, refSymbols, enc)
//
// Contigs enter and leave the codec as internal symbols (see EncodeSeq
// and DecodeSeq). A Codec is not safe for concurrent use; Decode is.
package lzdiff

import (
	agcerrors "github.com/pjotrp/agc/errors"
)

// Version selects the token-stream dialect.
type Version uint8

const (
	// V1 is the original dialect, kept for reading old archives.
	V1 Version = 1
	// V2 is the current dialect.
	V2 Version = 2
)

// String returns the dialect name.
func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return "unknown"
	}
}

const (
	// DefaultMinMatchLen is the default minimum back-reference length.
	DefaultMinMatchLen = 18

	// defaultMaxNoTries caps the linear-probe chain walked per lookup
	// and per insertion. Keys that find no free slot within the chain
	// are dropped, which biases lookups toward earlier reference
	// positions and bounds the worst case.
	defaultMaxNoTries = 16

	// defaultMinNRunLen is the shortest run of N emitted as a single
	// N-run token; shorter runs encode as plain literals.
	defaultMinNRunLen = 4

	// maxLoadFactor bounds the occupied fraction of the hash table.
	maxLoadFactor = 0.6

	// short16Limit selects the 16-bit table variant: positions divided
	// by the hashing step must stay below the 16-bit empty sentinel.
	short16Limit = 65535
)

// Codec encodes query contigs against a single reference contig.
//
// Lifecycle: configure via New (or SetMinMatchLen), attach a reference
// with Prepare, then call Encode, Estimate or CodingCostVector; the
// first of those builds the index. SetMinMatchLen is rejected once a
// reference is attached or the index exists.
type Codec struct {
	version     Version
	minMatchLen int
	keyLen      int
	keyMask     uint64
	hashingStep int
	maxNoTries  int
	minNRunLen  int

	// reference holds the attached contig plus keyLen bytes of
	// invalidSym padding, so fixed-width window reads past the last
	// k-mer stay in bounds and never match.
	reference []byte

	ht16       []uint16
	ht32       []uint32
	htMask     uint64
	shortHT    bool
	indexReady bool
}

// Option configures a Codec.
type Option func(*Codec)

// WithVersion selects the stream dialect. Default is V2.
func WithVersion(v Version) Option {
	return func(c *Codec) { c.version = v }
}

// WithMinMatchLen sets the minimum back-reference length. It also fixes
// the key length: keyLen = minMatchLen - hashingStep + 1.
func WithMinMatchLen(n int) Option {
	return func(c *Codec) { c.minMatchLen = n }
}

// WithHashingStep selects the index stride. Step 1 indexes every
// reference position (dense). Steps above 1 build a sparse index that
// trades memory for lookup quality; the matcher recovers sub-step
// alignment by extending matches backward over recent literals.
func WithHashingStep(step int) Option {
	return func(c *Codec) { c.hashingStep = step }
}

// WithMaxNoTries sets the probe-chain cap.
func WithMaxNoTries(n int) Option {
	return func(c *Codec) { c.maxNoTries = n }
}

// WithMinNRunLen sets the shortest N run emitted as an N-run token.
func WithMinNRunLen(n int) Option {
	return func(c *Codec) { c.minNRunLen = n }
}

// New creates a Codec with the given options.
func New(opts ...Option) (*Codec, error) {
	c := &Codec{
		version:     V2,
		minMatchLen: DefaultMinMatchLen,
		hashingStep: 1,
		maxNoTries:  defaultMaxNoTries,
		minNRunLen:  defaultMinNRunLen,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hashingStep < 1 {
		return nil, agcerrors.ErrBadHashingStep
	}
	if err := c.setKeyLen(c.minMatchLen); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Codec) setKeyLen(minMatchLen int) error {
	if minMatchLen < c.hashingStep {
		return agcerrors.ErrBadMatchLen
	}
	keyLen := minMatchLen - c.hashingStep + 1
	if keyLen > 32 {
		return agcerrors.ErrKeyTooLong
	}
	c.minMatchLen = minMatchLen
	c.keyLen = keyLen
	c.keyMask = ^uint64(0) >> (64 - 2*keyLen)
	return nil
}

// SetMinMatchLen changes the minimum back-reference length. It fails
// with ErrConfigLocked once a reference is attached or the index has
// been built, because the key length is baked into both.
func (c *Codec) SetMinMatchLen(n int) error {
	if len(c.reference) > 0 || c.indexReady {
		return agcerrors.ErrConfigLocked
	}
	return c.setKeyLen(n)
}

// Version returns the configured stream dialect.
func (c *Codec) Version() Version { return c.version }

// MinMatchLen returns the configured minimum back-reference length.
func (c *Codec) MinMatchLen() int { return c.minMatchLen }

// Prepare attaches the reference contig. The contig is copied and padded
// with keyLen invalid symbols; the table width (16 vs 32 bit cells) is
// chosen from the reference size. The index itself is built lazily on
// the first Encode, Estimate or CodingCostVector call.
func (c *Codec) Prepare(reference []byte) {
	c.shortHT = len(reference)/c.hashingStep < short16Limit

	c.reference = make([]byte, len(reference)+c.keyLen)
	copy(c.reference, reference)
	for i := len(reference); i < len(c.reference); i++ {
		c.reference[i] = invalidSym
	}
}

// AssureIndex builds the hash index if it does not exist yet.
// It is idempotent.
func (c *Codec) AssureIndex() {
	if !c.indexReady {
		c.prepareIndex()
	}
}

// Reference returns a copy of the attached reference without its pad,
// or nil if no reference is attached.
func (c *Codec) Reference() []byte {
	if len(c.reference) == 0 {
		return nil
	}
	ref := c.reference[:len(c.reference)-c.keyLen]
	return append([]byte(nil), ref...)
}

// refSize is the reference length without the pad.
func (c *Codec) refSize() int { return len(c.reference) - c.keyLen }

// sparse reports whether the index stride skips positions, which is
// what makes literal retraction and window-code reuse worthwhile.
func (c *Codec) sparse() bool { return c.hashingStep > 1 }

// prepareIndex sizes and fills the hash table.
//
// Sizing counts the reference positions whose window holds only
// packable symbols (restricted to the stored stride in sparse mode),
// divides by the load factor, rounds the result down to a power of two
// and doubles it, with a floor of 8.
func (c *Codec) prepareIndex() {
	var eligible uint64
	run := 0

	if c.sparse() {
		cntMod := 0
		keyLenMod := c.keyLen % c.hashingStep
		for _, s := range c.reference {
			if s < NCode {
				run++
			} else {
				run = 0
			}
			cntMod++
			if cntMod == c.hashingStep {
				cntMod = 0
			}
			if cntMod == keyLenMod && run >= c.keyLen {
				eligible++
			}
		}
	} else {
		for _, s := range c.reference {
			if s < NCode {
				run++
			} else {
				run = 0
			}
			if run >= c.keyLen {
				eligible++
			}
		}
	}

	htSize := uint64(float64(eligible) / maxLoadFactor)
	for htSize&(htSize-1) != 0 {
		htSize &= htSize - 1
	}
	htSize <<= 1
	if htSize < 8 {
		htSize = 8
	}
	c.htMask = htSize - 1

	if c.shortHT {
		c.ht16 = newTable[uint16](htSize)
		fillIndex(c, c.ht16)
	} else {
		c.ht32 = newTable[uint32](htSize)
		fillIndex(c, c.ht32)
	}

	c.indexReady = true
}

func (c *Codec) findBestMatch(slot uint64, text []byte, i, maxLen, noPrevLiterals int) (refPos, lenBck, lenFwd int, ok bool) {
	if c.shortHT {
		return findBestMatchIn(c, c.ht16, slot, text, i, maxLen, noPrevLiterals)
	}
	return findBestMatchIn(c, c.ht32, slot, text, i, maxLen, noPrevLiterals)
}
