// corruption_context_test.go tests failure modes and operational
// safety: corruption detection (byte-level archive tampering), context
// cancellation through the build pipeline, and envelope validation.
package agc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	agcerrors "github.com/pjotrp/agc/errors"
)

// buildValidArchive returns the bytes of a small valid archive.
func buildValidArchive(t *testing.T) []byte {
	t.Helper()
	rng := newTestRNG(t)
	path := filepath.Join(t.TempDir(), "valid.agc")
	buildArchive(t, path, makeCollection(rng, 3))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func openCorrupted(t *testing.T, data []byte) (*Archive, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corrupt.agc")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return Open(path)
}

func TestCorruptionDetection(t *testing.T) {
	valid := buildValidArchive(t)

	t.Run("DataRegionBitFlip", func(t *testing.T) {
		corrupted := append([]byte(nil), valid...)
		corrupted[headerSize+len(corrupted)/3] ^= 0xFF

		a, err := openCorrupted(t, corrupted)
		if err != nil {
			return // Collection overlap or parse caught it early
		}
		defer a.Close()
		if err := a.Verify(); err == nil {
			t.Error("expected Verify to detect a data-region bit flip")
		}
	})

	t.Run("CollectionBitFlip", func(t *testing.T) {
		// The collection sits between the data region and the footer;
		// flip a byte just before the footer.
		corrupted := append([]byte(nil), valid...)
		corrupted[len(corrupted)-footerSize-2] ^= 0xFF

		if _, err := openCorrupted(t, corrupted); !errors.Is(err, agcerrors.ErrChecksumFailed) {
			t.Errorf("collection corruption: got %v, want ErrChecksumFailed", err)
		}
	})

	t.Run("BadMagic", func(t *testing.T) {
		corrupted := append([]byte(nil), valid...)
		corrupted[0] ^= 0xFF

		if _, err := openCorrupted(t, corrupted); !errors.Is(err, agcerrors.ErrInvalidMagic) {
			t.Errorf("bad magic: got %v, want ErrInvalidMagic", err)
		}
	})

	t.Run("BadVersion", func(t *testing.T) {
		corrupted := append([]byte(nil), valid...)
		corrupted[4] = 0x7F

		if _, err := openCorrupted(t, corrupted); !errors.Is(err, agcerrors.ErrInvalidVersion) {
			t.Errorf("bad version: got %v, want ErrInvalidVersion", err)
		}
	})

	t.Run("TruncatedFile", func(t *testing.T) {
		for _, keep := range []int{0, 10, headerSize, len(valid) - footerSize, len(valid) - 1} {
			if _, err := openCorrupted(t, valid[:keep]); err == nil {
				t.Errorf("truncation to %d bytes accepted", keep)
			}
		}
	})

	t.Run("FooterOffsetsOutOfRange", func(t *testing.T) {
		corrupted := append([]byte(nil), valid...)
		// CollectionOffset field of the footer.
		footerStart := len(corrupted) - footerSize
		for i := 0; i < 8; i++ {
			corrupted[footerStart+16+i] = 0xFF
		}

		if _, err := openCorrupted(t, corrupted); !errors.Is(err, agcerrors.ErrTruncatedFile) {
			t.Errorf("wild collection offset: got %v, want ErrTruncatedFile", err)
		}
	})
}

func TestBuildCancellation(t *testing.T) {
	rng := newTestRNG(t)
	ctx, cancel := context.WithCancel(context.Background())

	builder, err := NewBuilder(ctx, filepath.Join(t.TempDir(), "x.agc"),
		WithSegmentSize(500), WithKmerLength(11), WithMinMatchLen(15), WithWorkers(4))
	if err != nil {
		t.Fatal(err)
	}
	defer builder.Close()

	if err := builder.AddSample("s1"); err != nil {
		t.Fatal(err)
	}
	if err := builder.AddContig("chr1", randomDNA(rng, 5000)); err != nil {
		t.Fatal(err)
	}

	cancel()

	if err := builder.AddContig("chr2", randomDNA(rng, 100)); !errors.Is(err, context.Canceled) {
		t.Errorf("AddContig after cancel: got %v", err)
	}

	// The flush triggered by the next AddSample (or by Finish) must
	// observe the cancelled context before reaching the file.
	err = builder.AddSample("s2")
	if err == nil {
		err = builder.Finish()
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("build continued after cancel: %v", err)
	}
}

func TestOpenRejectsForeignFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "random.bin")
	rng := newTestRNG(t)
	junk := make([]byte, 4096)
	for i := range junk {
		junk[i] = byte(rng.IntN(256))
	}
	if err := os.WriteFile(path, junk, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); err == nil {
		t.Error("expected an error opening junk bytes")
	}
}
