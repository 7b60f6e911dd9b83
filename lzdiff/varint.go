package lzdiff

import agcerrors "github.com/pjotrp/agc/errors"

// Integers inside the token stream are written as minimal decimal ASCII
// with a '-' prefix for negative values. The form is part of the on-disk
// archive contract.

// appendInt appends the signed decimal form of x to dst.
func appendInt(dst []byte, x int) []byte {
	if x == 0 {
		return append(dst, '0')
	}
	if x < 0 {
		dst = append(dst, '-')
		x = -x
	}
	var buf [20]byte
	n := 0
	for x > 0 {
		buf[n] = '0' + byte(x%10)
		n++
		x /= 10
	}
	for n > 0 {
		n--
		dst = append(dst, buf[n])
	}
	return dst
}

// readInt parses a signed decimal integer starting at enc[p]. It stops
// at the first non-digit and returns the value with the next unread
// position. A missing digit is a malformed-integer error; running out
// of bytes before any digit is a truncation error.
func readInt(enc []byte, p int) (val, next int, err error) {
	if p >= len(enc) {
		return 0, p, agcerrors.ErrTruncatedEncoding
	}
	neg := false
	if enc[p] == '-' {
		neg = true
		p++
	}
	start := p
	for p < len(enc) && enc[p] >= '0' && enc[p] <= '9' {
		val = val*10 + int(enc[p]-'0')
		p++
	}
	if p == start {
		if p >= len(enc) {
			return 0, p, agcerrors.ErrTruncatedEncoding
		}
		return 0, p, agcerrors.ErrMalformedInt
	}
	if neg {
		val = -val
	}
	return val, p, nil
}

// intLen returns the number of bytes appendInt would emit for x.
func intLen(x int) int {
	n := 1
	if x < 0 {
		n++
		x = -x
	}
	for x > 9 {
		n++
		x /= 10
	}
	return n
}
