package lzdiff

import "bytes"

// Estimate returns the size in bytes that Encode would produce for
// text, stopping early once the running total exceeds bound. The
// returned value is byte-exact against V2 Encode unless the bound cut
// the scan short, in which case it is a lower bound on the true size.
// Estimation never fails; an over-bound result is a normal return.
//
// Under V1 the estimator simply encodes and measures.
func (c *Codec) Estimate(text []byte, bound int) int {
	c.AssureIndex()

	if c.version == V1 {
		return len(c.Encode(text))
	}

	textSize := len(text)

	if textSize == c.refSize() && bytes.Equal(text, c.reference[:textSize]) {
		return 0
	}

	estCost := 0
	i := 0
	predPos := 0
	noPrevLiterals := 0
	xPrev := noKey

	for i+c.keyLen < textSize {
		if estCost > bound {
			return estCost
		}

		var x uint64
		if xPrev != noKey && noPrevLiterals > 0 {
			x = kmerCodeSkip1(xPrev, text[i:], c.keyLen, c.keyMask)
		} else {
			x = kmerCode(text[i:], c.keyLen)
		}
		xPrev = x

		if x == noKey {
			runLen := nRunLen(text[i:], textSize-i)

			if runLen >= c.minNRunLen {
				estCost += c.costNRun(runLen)
				i += runLen
				noPrevLiterals = 0
			} else {
				estCost += literalCost(text[i])
				i++
				predPos++
				if c.sparse() {
					noPrevLiterals++
				}
			}
			continue
		}

		slot := fmix64(x) & c.htMask
		matchPos, lenBck, lenFwd, ok := c.findBestMatch(slot, text, i, textSize-i, noPrevLiterals)

		if !ok {
			estCost += literalCost(text[i])
			i++
			predPos++
			if c.sparse() {
				noPrevLiterals++
			}
			continue
		}

		if lenBck > 0 {
			// Retract the literals the backward extension covers, as
			// Encode does; each cost one byte.
			estCost -= lenBck
			matchPos -= lenBck
			predPos -= lenBck
			i -= lenBck
		}

		length := lenBck + lenFwd
		if i+length == textSize && matchPos+length == c.refSize() {
			estCost += c.costMatch(matchPos, openEnded, predPos)
		} else {
			estCost += c.costMatch(matchPos, length, predPos)
		}

		predPos = matchPos + length
		i += length
		noPrevLiterals = 0
	}

	for ; i < textSize; i++ {
		estCost += literalCost(text[i])
	}

	return estCost
}

// CodingCostVector returns a per-base cost vector of len(text): the
// byte cost of each emission is placed at its first covered base when
// prefixCosts is true (zeros after), or at its last covered base
// otherwise (zeros before). The segmentation planner consumes this to
// choose break points. Match costs always use the closed-length form.
func (c *Codec) CodingCostVector(text []byte, prefixCosts bool) []uint32 {
	c.AssureIndex()

	textSize := len(text)
	vCosts := make([]uint32, 0, textSize)

	i := 0
	predPos := 0
	noPrevLiterals := 0
	xPrev := noKey

	for i+c.keyLen < textSize {
		var x uint64
		if xPrev != noKey && noPrevLiterals > 0 {
			x = kmerCodeSkip1(xPrev, text[i:], c.keyLen, c.keyMask)
		} else {
			x = kmerCode(text[i:], c.keyLen)
		}
		xPrev = x

		if x == noKey {
			runLen := nRunLen(text[i:], textSize-i)

			if runLen >= c.minNRunLen {
				vCosts = appendSpanCost(vCosts, uint32(c.costNRun(runLen)), runLen, prefixCosts)
				i += runLen
				noPrevLiterals = 0
			} else {
				vCosts = append(vCosts, uint32(literalCost(text[i])))
				i++
				predPos++
				if c.sparse() {
					noPrevLiterals++
				}
			}
			continue
		}

		slot := fmix64(x) & c.htMask
		matchPos, lenBck, lenFwd, ok := c.findBestMatch(slot, text, i, textSize-i, noPrevLiterals)

		if !ok {
			vCosts = append(vCosts, uint32(literalCost(text[i])))
			i++
			predPos++
			if c.sparse() {
				noPrevLiterals++
			}
			continue
		}

		if lenBck > 0 {
			vCosts = vCosts[:len(vCosts)-lenBck]
			matchPos -= lenBck
			predPos -= lenBck
			i -= lenBck
		}

		length := lenBck + lenFwd
		vCosts = appendSpanCost(vCosts, uint32(c.costMatch(matchPos, length, predPos)), length, prefixCosts)

		predPos = matchPos + length
		i += length
		noPrevLiterals = 0
	}

	for ; i < textSize; i++ {
		vCosts = append(vCosts, uint32(literalCost(text[i])))
	}

	return vCosts
}

// appendSpanCost places one emission cost over a span of bases.
func appendSpanCost(v []uint32, tc uint32, span int, prefix bool) []uint32 {
	if prefix {
		v = append(v, tc)
		for k := 1; k < span; k++ {
			v = append(v, 0)
		}
		return v
	}
	for k := 1; k < span; k++ {
		v = append(v, 0)
	}
	return append(v, tc)
}
