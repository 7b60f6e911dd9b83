package lzdiff

// The index is an open-addressed table of reference positions divided by
// the hashing step. Cell width follows the reference size: 16-bit cells
// when every stored position fits below the 16-bit sentinel, 32-bit
// otherwise. The all-ones cell value marks an empty slot.

type htCell interface {
	~uint16 | ~uint32
}

// newTable allocates a table of size cells, all empty.
func newTable[C htCell](size uint64) []C {
	ht := make([]C, size)
	empty := ^C(0)
	for i := range ht {
		ht[i] = empty
	}
	return ht
}

// fillIndex inserts every eligible reference position. The slot is the
// mixed window code masked to the table; insertion linear-probes up to
// maxNoTries slots and drops the key if none is free.
func fillIndex[C htCell](c *Codec, ht []C) {
	empty := ^C(0)
	ref := c.reference

	for i := 0; i+c.keyLen < len(ref); i += c.hashingStep {
		x := kmerCode(ref[i:], c.keyLen)
		if x == noKey {
			continue
		}
		slot := fmix64(x) & c.htMask
		for j := 0; j < c.maxNoTries; j++ {
			p := (slot + uint64(j)) & c.htMask
			if ht[p] == empty {
				ht[p] = C(i / c.hashingStep)
				break
			}
		}
	}
}

// findBestMatchIn probes the chain starting at slot for the best match
// covering text[i:]. For each stored candidate it extends forward while
// bytes agree, and, when the window itself matched, backward over up to
// noPrevLiterals recently emitted literals. A candidate replaces the
// best only when strictly longer, so earlier probe-chain entries win
// ties. The initial threshold equals the minimum match length; the
// search succeeds iff the kept total reaches it.
func findBestMatchIn[C htCell](c *Codec, ht []C, slot uint64, text []byte, i, maxLen, noPrevLiterals int) (refPos, lenBck, lenFwd int, ok bool) {
	empty := ^C(0)
	minToUpdate := c.minMatchLen
	ref := c.reference

	for t := 0; t < c.maxNoTries; t++ {
		cell := ht[slot]
		if cell == empty {
			break
		}

		hPos := int(cell) * c.hashingStep
		fLen := compareFwd(text[i:], ref[hPos:], maxLen)

		if fLen >= c.keyLen {
			bMax := min(noPrevLiterals, hPos)
			bLen := 0
			for ; bLen < bMax; bLen++ {
				if text[i-bLen-1] != ref[hPos-bLen-1] {
					break
				}
			}

			if bLen+fLen > minToUpdate {
				lenBck = bLen
				lenFwd = fLen
				refPos = hPos
				minToUpdate = bLen + fLen
			}
		}

		slot = (slot + 1) & c.htMask
	}

	return refPos, lenBck, lenFwd, lenBck+lenFwd >= c.minMatchLen
}

// compareFwd counts the leading bytes on which s and p agree, up to max.
// The reference pad never equals a text symbol, so the count stops
// before running off the reference buffer.
func compareFwd(s, p []byte, max int) int {
	if max > len(p) {
		max = len(p)
	}
	n := 0
	for n < max && s[n] == p[n] {
		n++
	}
	return n
}
