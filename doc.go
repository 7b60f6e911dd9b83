// Package agc implements a compressed genome-collection archive: many
// related DNA assemblies stored in one file by exploiting their mutual
// similarity, with fast random access to any named contig or sub-range
// without decompressing the rest.
//
// Contigs are cut into segments at splitter k-mers; segments from
// different samples that fall between the same splitters form a group
// and are delta-encoded against the group's reference segment with the
// LZ codec in the lzdiff package. Segment blobs, a CBOR directory of
// samples/contigs/segments and checksummed framing make up the on-disk
// format (see header.go for the exact layout).
//
// # Building an archive
//
//	builder, err := agc.NewBuilder(ctx, "out.agc", agc.WithWorkers(8))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer builder.Close()
//	builder.AddSample("ref")
//	builder.AddContig("chr1", seq)
//	...
//	if err := builder.Finish(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Querying an archive
//
//	a, err := agc.Open("out.agc")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	seq, err := a.ContigSeq("sample1", "chr1", 1000, 2000)
//
// # Package structure
//
//   - Public API: builder.go (NewBuilder, AddSample, AddContig, Finish),
//     archive.go (Open, ContigSeq, ListSamples, ...)
//   - Configuration: builder_options.go (BuildOption, With* functions)
//   - Serialization: header.go (header, footer), collection.go (directory)
//   - Segmentation: segment.go (splitter k-mers, group routing)
//   - Core codec: lzdiff/ (reference-relative LZ encoder/decoder)
//   - Platform: fadvise_*.go, prefault_*.go (OS-specific read hints)
package agc
