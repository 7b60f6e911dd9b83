// decoder_test.go exercises the decoder's error surface on malformed
// streams: every failure kind the archive layer treats as corruption.
package lzdiff

import (
	"bytes"
	"errors"
	"testing"

	agcerrors "github.com/pjotrp/agc/errors"
)

func TestDecodeMalformedStreams(t *testing.T) {
	ref := syms("ACGTACGTACGT")

	cases := []struct {
		name    string
		version Version
		encoded string
		wantErr error
	}{
		{"match_past_reference", V2, "99,2.", agcerrors.ErrRefOutOfRange},
		{"match_len_past_reference", V2, "0,99.", agcerrors.ErrRefOutOfRange},
		{"match_before_reference", V2, "-3,0.", agcerrors.ErrRefOutOfRange},
		{"open_match_past_reference", V2, "99.", agcerrors.ErrRefOutOfRange},
		{"identity_past_reference", V2, "0.!", agcerrors.ErrRefOutOfRange},
		{"truncated_match_delta", V2, "12", agcerrors.ErrTruncatedEncoding},
		{"truncated_match_len", V2, "0,", agcerrors.ErrTruncatedEncoding},
		{"truncated_after_sign", V2, "-", agcerrors.ErrTruncatedEncoding},
		{"truncated_nrun", V2, "n", agcerrors.ErrTruncatedEncoding},
		{"truncated_nrun_len", V2, "n12", agcerrors.ErrTruncatedEncoding},
		{"truncated_escape", V2, "%", agcerrors.ErrTruncatedEncoding},
		{"missing_digit_in_len", V2, "0,x.", agcerrors.ErrMalformedInt},
		{"missing_digit_after_sign", V2, "-x,0.", agcerrors.ErrMalformedInt},
		{"bad_match_terminator", V2, "0,2x", agcerrors.ErrBadToken},
		{"bad_nrun_terminator", V2, "n2x", agcerrors.ErrBadToken},
		{"negative_nrun", V2, "n-9.", agcerrors.ErrBadToken},
		{"unknown_token", V2, "@", agcerrors.ErrInvalidLiteral},
		{"identity_in_v1", V1, "!", agcerrors.ErrInvalidLiteral},
		{"open_match_in_v1", V1, "0.", agcerrors.ErrBadToken},
		{"v1_len_omitted", V1, "0,.", agcerrors.ErrMalformedInt},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.version, 6, defaultMinNRunLen, ref, []byte(tc.encoded))
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Decode(%q): got %v, want %v", tc.encoded, err, tc.wantErr)
			}
		})
	}
}

func TestDecodeCorruptedValidStream(t *testing.T) {
	// Scenario from the format contract: take a valid stream and bend
	// its match offset past the reference end.
	c := newCodec(t, WithMinMatchLen(6))
	ref := syms("ACGTACGTACGT")
	c.Prepare(ref)

	enc := c.Encode(syms("ACGTACGT"))
	if string(enc) != "0,2." {
		t.Fatalf("unexpected baseline stream %q", enc)
	}

	corrupt := []byte("9,2.")
	if _, err := c.Decode(ref, corrupt); !errors.Is(err, agcerrors.ErrRefOutOfRange) {
		t.Errorf("corrupted stream: got %v, want ErrRefOutOfRange", err)
	}
}

func TestDecodeWellFormedTokens(t *testing.T) {
	ref := syms("ACGTACGTACGT")

	cases := []struct {
		name    string
		version Version
		encoded string
		want    string
	}{
		{"literals", V2, "ABCD", "ACGT"},
		{"identity_literals", V2, "!!!!", "ACGT"},
		{"escape", V2, "%\x02", "G"},
		{"nrun", V2, "n0.", "NNNN"},
		{"closed_match", V2, "4,0.", "ACGTAC"},
		{"open_match", V2, "4.", "ACGTACGT"},
		{"match_then_literal", V2, "0,0.E", "ACGTACN"},
		{"v1_closed_match", V1, "4,0.", "ACGTAC"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.version, 6, defaultMinNRunLen, ref, []byte(tc.encoded))
			if err != nil {
				t.Fatalf("Decode(%q): %v", tc.encoded, err)
			}
			if !bytes.Equal(got, syms(tc.want)) {
				t.Errorf("Decode(%q): got %q, want %q", tc.encoded, DecodeSeq(got), tc.want)
			}
		})
	}
}

func TestDecodeNRunDoesNotAdvancePrediction(t *testing.T) {
	// An N-run leaves the predicted position untouched; a following
	// zero-delta match therefore continues where the last literal or
	// match left off.
	ref := syms("ACGTACGTACGT")

	got, err := Decode(V2, 6, defaultMinNRunLen, ref, []byte("ABn0.0,0."))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := syms("ACNNNNGTACGT")
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", DecodeSeq(got), DecodeSeq(want))
	}
}
