package lzdiff

import "bytes"

// Token bytes. Literals occupy 'A'..'Z' (symbol plus 'A'); everything
// else is reserved by the grammar.
const (
	tokIdentity  = '!' // V2: literal equal to the reference base at the predicted position
	tokEscape    = '%' // literal escape: next byte is the raw symbol
	tokNRun      = 'n' // N-run tag
	tokLenSep    = ',' // separates match offset from match length
	tokTerm      = '.' // terminates match and N-run tokens
	literalFirst = 'A'
	literalLast  = 'Z'
)

// Encode produces the token stream for text against the attached
// reference, building the index first if needed. Well-formed input has
// no error path; the stream round-trips through Decode with the same
// dialect and minimum match length.
//
// Under V2, a text byte-equal to the reference encodes to an empty
// stream. An empty text against a non-empty reference also encodes to
// an empty stream, which V2 decodes to the reference, so that one case
// does not round-trip.
func (c *Codec) Encode(text []byte) []byte {
	c.AssureIndex()

	textSize := len(text)

	if c.version == V2 {
		if textSize == c.refSize() && bytes.Equal(text, c.reference[:textSize]) {
			return []byte{}
		}
	}

	encoded := make([]byte, 0, textSize/64+16)

	i := 0
	predPos := 0
	noPrevLiterals := 0
	xPrev := noKey

	for i+c.keyLen < textSize {
		var x uint64
		if c.version == V2 && xPrev != noKey && noPrevLiterals > 0 {
			x = kmerCodeSkip1(xPrev, text[i:], c.keyLen, c.keyMask)
		} else {
			x = kmerCode(text[i:], c.keyLen)
		}
		xPrev = x

		if x == noKey {
			runLen := nRunLen(text[i:], textSize-i)

			if runLen >= c.minNRunLen {
				encoded = c.appendNRun(encoded, runLen)
				i += runLen
				noPrevLiterals = 0
			} else {
				encoded = appendLiteral(encoded, text[i])
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
			encoded = appendLiteral(encoded, text[i])
			i++
			predPos++
			if c.sparse() {
				noPrevLiterals++
			}
			continue
		}

		if lenBck > 0 {
			// The backward extension covers literals already emitted;
			// retract them and fold the span into the match.
			encoded = encoded[:len(encoded)-lenBck]
			matchPos -= lenBck
			predPos -= lenBck
			i -= lenBck
		}

		length := lenBck + lenFwd

		if c.version == V2 {
			if matchPos == predPos {
				c.rewriteIdentityLiterals(encoded, matchPos)
			}
			if i+length == textSize && matchPos+length == c.refSize() {
				encoded = c.appendMatch(encoded, matchPos, openEnded, predPos)
			} else {
				encoded = c.appendMatch(encoded, matchPos, length, predPos)
			}
		} else {
			encoded = c.appendMatch(encoded, matchPos, length, predPos)
		}

		predPos = matchPos + length
		i += length
		noPrevLiterals = 0
	}

	for ; i < textSize; i++ {
		encoded = appendLiteral(encoded, text[i])
	}

	return encoded
}

// openEnded marks a match whose length is implied by the reference end.
const openEnded = -1

// rewriteIdentityLiterals walks back over the literal bytes preceding a
// match that starts exactly at the predicted position. Every literal
// that spells the reference base it lines up with becomes the identity
// byte; the walk stops at the first non-literal. The first byte of the
// stream and a literal lined up with reference position 0 are never
// rewritten.
func (c *Codec) rewriteIdentityLiterals(encoded []byte, matchPos int) {
	eSize := len(encoded)
	for k := 1; k < eSize && k < matchPos; k++ {
		b := encoded[eSize-k]
		if b < literalFirst || b > literalLast {
			break
		}
		if b-literalFirst == c.reference[matchPos-k] {
			encoded[eSize-k] = tokIdentity
		}
	}
}

// appendLiteral emits a single-symbol token. Symbols beyond the letter
// range take the escape form; the alphabet tables never produce them,
// but the stream grammar reserves the form so foreign symbol sets
// round-trip too.
func appendLiteral(encoded []byte, sym byte) []byte {
	if sym < numSymbols {
		return append(encoded, literalFirst+sym)
	}
	return append(encoded, tokEscape, sym)
}

// literalCost returns the emitted size of a literal token.
func literalCost(sym byte) int {
	if sym < numSymbols {
		return 1
	}
	return 2
}

// appendNRun emits an N-run token: tag, run length above the minimum,
// terminator.
func (c *Codec) appendNRun(encoded []byte, runLen int) []byte {
	encoded = append(encoded, tokNRun)
	encoded = appendInt(encoded, runLen-c.minNRunLen)
	return append(encoded, tokTerm)
}

// costNRun returns the emitted size of an N-run token.
func (c *Codec) costNRun(runLen int) int {
	return 2 + intLen(runLen-c.minNRunLen)
}

// appendMatch emits a match token: the position delta against the
// predicted position, then (unless open-ended) the length above the
// minimum, then the terminator. V1 always writes the length.
func (c *Codec) appendMatch(encoded []byte, refPos, length, predPos int) []byte {
	encoded = appendInt(encoded, refPos-predPos)
	if length != openEnded {
		encoded = append(encoded, tokLenSep)
		encoded = appendInt(encoded, length-c.minMatchLen)
	}
	return append(encoded, tokTerm)
}

// costMatch returns the emitted size of a match token.
func (c *Codec) costMatch(refPos, length, predPos int) int {
	cost := intLen(refPos-predPos) + 1
	if length != openEnded {
		cost += 1 + intLen(length-c.minMatchLen)
	}
	return cost
}
