// benchmark_test.go measures the hot paths: index construction, encode,
// decode and bounded estimation over genome-scale inputs.
package lzdiff

import (
	"encoding/binary"
	"hash/fnv"
	randv2 "math/rand/v2"
	"testing"
)

func benchRNG(name string) *randv2.Rand {
	h := fnv.New128a()
	h.Write([]byte(name))
	sum := h.Sum(nil)
	return randv2.New(randv2.NewPCG(
		binary.LittleEndian.Uint64(sum[:8]),
		binary.LittleEndian.Uint64(sum[8:])))
}

func benchSetup(b *testing.B, refLen int, opts ...Option) (*Codec, []byte, []byte) {
	b.Helper()
	rng := benchRNG(b.Name())

	ref := make([]byte, refLen)
	for i := range ref {
		ref[i] = byte(rng.IntN(4))
	}
	text := append([]byte(nil), ref...)
	for k := 0; k < refLen/200; k++ {
		text[rng.IntN(len(text))] = byte(rng.IntN(4))
	}

	c, err := New(opts...)
	if err != nil {
		b.Fatal(err)
	}
	c.Prepare(ref)
	c.AssureIndex()
	return c, ref, text
}

func BenchmarkIndexBuild(b *testing.B) {
	rng := benchRNG(b.Name())
	ref := make([]byte, 1<<20)
	for i := range ref {
		ref[i] = byte(rng.IntN(4))
	}

	b.SetBytes(int64(len(ref)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, err := New()
		if err != nil {
			b.Fatal(err)
		}
		c.Prepare(ref)
		c.AssureIndex()
	}
}

func BenchmarkEncode(b *testing.B) {
	c, _, text := benchSetup(b, 1<<20)

	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Encode(text)
	}
}

func BenchmarkEncodeSparse(b *testing.B) {
	c, _, text := benchSetup(b, 1<<20, WithHashingStep(2))

	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Encode(text)
	}
}

func BenchmarkDecode(b *testing.B) {
	c, ref, text := benchSetup(b, 1<<20)
	enc := c.Encode(text)

	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Decode(ref, enc); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEstimate(b *testing.B) {
	c, _, text := benchSetup(b, 1<<20)

	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Estimate(text, len(text))
	}
}

func BenchmarkEstimateBounded(b *testing.B) {
	c, _, text := benchSetup(b, 1<<20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Estimate(text, 512)
	}
}

func BenchmarkCodingCostVector(b *testing.B) {
	c, _, text := benchSetup(b, 1<<18)

	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.CodingCostVector(text, true)
	}
}
