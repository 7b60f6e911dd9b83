// Package errors defines all exported error sentinels for the agc library.
//
// This is the single source of truth for error values. Both the top-level
// agc package and the lzdiff codec package import from here, ensuring
// errors.Is checks work across package boundaries.
package errors

import "errors"

// Codec configuration errors
var (
	ErrConfigLocked   = errors.New("agc: min match length cannot change after a reference is attached")
	ErrBadMatchLen    = errors.New("agc: min match length must be at least the hashing step")
	ErrBadHashingStep = errors.New("agc: hashing step must be positive")
	ErrKeyTooLong     = errors.New("agc: key length exceeds 32 symbols (2-bit packing limit)")
)

// Decoder errors. The archive layer treats any of these as a
// corrupt-archive condition.
var (
	ErrTruncatedEncoding = errors.New("agc: encoded stream ends mid-token")
	ErrRefOutOfRange     = errors.New("agc: match token points past the reference")
	ErrMalformedInt      = errors.New("agc: digit expected in encoded stream")
	ErrInvalidLiteral    = errors.New("agc: unknown literal byte in encoded stream")
	ErrBadToken          = errors.New("agc: unexpected byte in encoded stream")
)

// Archive build errors
var (
	ErrBuilderClosed  = errors.New("agc: builder is closed")
	ErrNoSample       = errors.New("agc: AddContig called before any AddSample")
	ErrDuplicateName  = errors.New("agc: duplicate sample name")
	ErrEmptyArchive   = errors.New("agc: archive contains no samples")
	ErrBadSegmentSize = errors.New("agc: segment size must be positive")
)

// Archive read errors
var (
	ErrInvalidMagic   = errors.New("agc: invalid magic number")
	ErrInvalidVersion = errors.New("agc: unsupported archive version")
	ErrTruncatedFile  = errors.New("agc: archive file is truncated")
	ErrChecksumFailed = errors.New("agc: archive checksum verification failed")
	ErrCorruptedData  = errors.New("agc: archive data is corrupted")
	ErrSampleNotFound = errors.New("agc: sample not found")
	ErrContigNotFound = errors.New("agc: contig not found")
	ErrBadRange       = errors.New("agc: contig range out of bounds")
	ErrArchiveClosed  = errors.New("agc: archive is closed")
)
