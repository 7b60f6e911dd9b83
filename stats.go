package agc

// Stats summarizes an open archive for the info query.
type Stats struct {
	NumSamples    int
	NumContigs    int
	NumSegments   int
	RawSegments   int
	DeltaSegments int
	TotalBases    uint64
	DataBytes     uint64
	ArchiveBytes  int64
	Dialect       int
	MinMatchLen   int
	KmerLength    int
	SegmentSize   int
	CmdLines      []string
}

// Stats returns archive statistics.
func (a *Archive) Stats() Stats {
	st := Stats{
		NumSamples:   len(a.col.Samples),
		NumSegments:  len(a.col.Segments),
		DataBytes:    a.footer.CollectionOffset - headerSize,
		ArchiveBytes: int64(len(a.data)),
		Dialect:      int(a.header.Dialect),
		MinMatchLen:  int(a.header.MinMatchLen),
		KmerLength:   int(a.header.KmerLength),
		SegmentSize:  int(a.header.SegmentSize),
		CmdLines:     append([]string(nil), a.col.CmdLines...),
	}
	for i := range a.col.Samples {
		st.NumContigs += len(a.col.Samples[i].Contigs)
		for _, ctg := range a.col.Samples[i].Contigs {
			st.TotalBases += ctg.Length
		}
	}
	for i := range a.col.Segments {
		if a.col.Segments[i].Kind == segRaw {
			st.RawSegments++
		} else {
			st.DeltaSegments++
		}
	}
	return st
}
