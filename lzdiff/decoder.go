package lzdiff

import (
	agcerrors "github.com/pjotrp/agc/errors"
)

// Decode reconstructs a contig from its token stream. It is a pure
// function of (reference, encoded) plus the dialect and minimum lengths
// the stream was encoded with, needs no index, and is safe to call
// concurrently on a shared reference.
//
// reference is the contig without any padding. Under V2 an empty stream
// decodes to a copy of the reference; under V1 it decodes to an empty
// contig.
//
// Malformed streams surface as sentinel errors from the errors package:
// truncation mid-token, a match that points past the reference, a
// missing digit, an unknown token byte.
func Decode(v Version, minMatchLen, minNRunLen int, reference, encoded []byte) ([]byte, error) {
	if v == V2 && len(encoded) == 0 {
		return append([]byte(nil), reference...), nil
	}

	decoded := make([]byte, 0, len(reference))
	predPos := 0

	for p := 0; p < len(encoded); {
		b := encoded[p]
		switch {
		case b >= literalFirst && b <= literalLast:
			decoded = append(decoded, b-literalFirst)
			predPos++
			p++

		case b == tokIdentity && v == V2:
			if predPos >= len(reference) {
				return nil, agcerrors.ErrRefOutOfRange
			}
			decoded = append(decoded, reference[predPos])
			predPos++
			p++

		case b == tokEscape:
			if p+1 >= len(encoded) {
				return nil, agcerrors.ErrTruncatedEncoding
			}
			decoded = append(decoded, encoded[p+1])
			predPos++
			p += 2

		case b == tokNRun:
			raw, next, err := readInt(encoded, p+1)
			if err != nil {
				return nil, err
			}
			p = next
			if p >= len(encoded) {
				return nil, agcerrors.ErrTruncatedEncoding
			}
			if encoded[p] != tokTerm || raw < 0 {
				return nil, agcerrors.ErrBadToken
			}
			p++
			runLen := raw + minNRunLen
			for k := 0; k < runLen; k++ {
				decoded = append(decoded, NCode)
			}
			// The predicted position does not advance over an N-run;
			// the encoder behaves the same way.

		case b == '-' || (b >= '0' && b <= '9'):
			refPos, length, next, err := decodeMatch(v, minMatchLen, reference, encoded, p, predPos)
			if err != nil {
				return nil, err
			}
			p = next
			decoded = append(decoded, reference[refPos:refPos+length]...)
			predPos = refPos + length

		default:
			return nil, agcerrors.ErrInvalidLiteral
		}
	}

	return decoded, nil
}

// decodeMatch parses one match token starting at encoded[p] and bounds-
// checks the named reference slice. V1 requires the length field; V2
// interprets a missing one as a copy to the reference end.
func decodeMatch(v Version, minMatchLen int, reference, encoded []byte, p, predPos int) (refPos, length, next int, err error) {
	dif, p, err := readInt(encoded, p)
	if err != nil {
		return 0, 0, p, err
	}
	refPos = predPos + dif

	if p >= len(encoded) {
		return 0, 0, p, agcerrors.ErrTruncatedEncoding
	}

	switch encoded[p] {
	case tokLenSep:
		var raw int
		raw, p, err = readInt(encoded, p+1)
		if err != nil {
			return 0, 0, p, err
		}
		if p >= len(encoded) {
			return 0, 0, p, agcerrors.ErrTruncatedEncoding
		}
		if encoded[p] != tokTerm {
			return 0, 0, p, agcerrors.ErrBadToken
		}
		p++
		length = raw + minMatchLen

	case tokTerm:
		if v != V2 {
			return 0, 0, p, agcerrors.ErrBadToken
		}
		p++
		length = len(reference) - refPos

	default:
		return 0, 0, p, agcerrors.ErrBadToken
	}

	if refPos < 0 || refPos > len(reference) || length < 0 || length > len(reference)-refPos {
		return 0, 0, p, agcerrors.ErrRefOutOfRange
	}
	return refPos, length, p, nil
}

// Decode runs the package-level Decode with the codec's configuration.
// It does not touch the codec's reference or index.
func (c *Codec) Decode(reference, encoded []byte) ([]byte, error) {
	return Decode(c.version, c.minMatchLen, c.minNRunLen, reference, encoded)
}
