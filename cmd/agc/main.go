// Agc stores collections of related genomes in a single compressed
// archive and extracts samples, contigs or sub-ranges from it.
//
// Usage:
//
//	agc <command> [options]
//
// Commands:
//
//	create   - create archive from FASTA files
//	append   - add FASTA files to an existing archive
//	getcol   - extract all samples from archive
//	getset   - extract samples from archive
//	getctg   - extract contigs from archive
//	listref  - list reference sample name in archive
//	listset  - list sample names in archive
//	listctg  - list sample and contig names in archive
//	info     - show statistics of the compressed data
//
// Run agc <command> with no arguments to see command-specific options.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/pjotrp/agc"
	"github.com/pjotrp/agc/internal/fasta"
)

const version = "agc (Go) 1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "create":
		err = cmdCreate(ctx, os.Args[2:], false)
	case "append":
		err = cmdCreate(ctx, os.Args[2:], true)
	case "getcol":
		err = cmdGet(os.Args[2:], getColMode)
	case "getset":
		err = cmdGet(os.Args[2:], getSetMode)
	case "getctg":
		err = cmdGet(os.Args[2:], getCtgMode)
	case "listref":
		err = cmdListRef(os.Args[2:])
	case "listset":
		err = cmdListSet(os.Args[2:])
	case "listctg":
		err = cmdListCtg(os.Args[2:])
	case "info":
		err = cmdInfo(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "agc: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, version)
	fmt.Fprintln(os.Stderr, "Usage: agc <command> [options]")
	fmt.Fprintln(os.Stderr, "Command:")
	fmt.Fprintln(os.Stderr, "   create   - create archive from FASTA files")
	fmt.Fprintln(os.Stderr, "   append   - add FASTA files to existing archive")
	fmt.Fprintln(os.Stderr, "   getcol   - extract all samples from archive")
	fmt.Fprintln(os.Stderr, "   getset   - extract sample from archive")
	fmt.Fprintln(os.Stderr, "   getctg   - extract contig from archive")
	fmt.Fprintln(os.Stderr, "   listref  - list reference sample name in archive")
	fmt.Fprintln(os.Stderr, "   listset  - list sample names in archive")
	fmt.Fprintln(os.Stderr, "   listctg  - list sample and contig names in archive")
	fmt.Fprintln(os.Stderr, "   info     - show some statistics of the compressed data")
	fmt.Fprintln(os.Stderr, "Note: run agc <command> to see command-specific options")
}

// sampleName derives a sample name from a FASTA path.
func sampleName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".fasta", ".fa", ".fna"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

func cmdCreate(ctx context.Context, args []string, appendMode bool) error {
	cmd := "create"
	if appendMode {
		cmd = "append"
	}
	flags := flag.NewFlagSet(cmd, flag.ContinueOnError)
	output := flags.StringP("output", "o", "", "output archive file (required)")
	threads := flags.IntP("threads", "t", 4, "no of threads")
	segSize := flags.IntP("segment-size", "s", 60000, "expected segment size")
	kmerLen := flags.IntP("kmer-length", "k", 21, "k-mer length")
	minMatch := flags.IntP("min-match-length", "l", 20, "min. match length")
	adaptive := flags.BoolP("adaptive", "a", false, "adaptive mode")
	concat := flags.BoolP("concatenated", "c", false, "concatenated genomes in a single file")
	noCmdLine := flags.BoolP("no-cmd-line", "d", false, "do not store cmd-line")
	fileList := flags.StringP("file-list", "i", "", "file with FASTA file names")
	verbose := flags.CountP("verbose", "v", "verbosity level")
	if err := flags.Parse(args); err != nil {
		return err
	}

	inputs := flags.Args()
	if *fileList != "" {
		listed, err := readFileList(*fileList)
		if err != nil {
			return err
		}
		inputs = append(inputs, listed...)
	}
	if appendMode {
		if len(inputs) < 1 {
			flags.Usage()
			return fmt.Errorf("append needs an input archive and FASTA files")
		}
	} else if len(inputs) == 0 {
		flags.Usage()
		return fmt.Errorf("create needs at least a reference FASTA file")
	}
	if *output == "" {
		return fmt.Errorf("%s needs -o <output archive>", cmd)
	}

	opts := []agc.BuildOption{
		agc.WithWorkers(*threads),
		agc.WithSegmentSize(*segSize),
		agc.WithKmerLength(*kmerLen),
		agc.WithMinMatchLen(*minMatch),
		agc.WithAdaptive(*adaptive),
	}
	if !*noCmdLine {
		opts = append(opts, agc.WithCmdLine(strings.Join(os.Args, " ")))
	}

	var src *agc.Archive
	if appendMode {
		var err error
		if src, err = agc.Open(inputs[0], agc.WithPrefetch(true)); err != nil {
			return err
		}
		defer src.Close()

		st := src.Stats()
		opts = append(opts,
			agc.WithSegmentSize(st.SegmentSize),
			agc.WithKmerLength(st.KmerLength),
			agc.WithMinMatchLen(st.MinMatchLen))
		inputs = inputs[1:]
	}

	builder, err := agc.NewBuilder(ctx, *output, opts...)
	if err != nil {
		return err
	}
	defer builder.Close()

	if appendMode {
		if err := builder.AppendArchive(src); err != nil {
			return err
		}
	}

	for _, path := range inputs {
		if err := addFile(builder, path, *concat, *verbose); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return builder.Finish()
}

// addFile streams one FASTA file into the builder. Normally the file is
// one sample; in concatenated mode every record is its own sample named
// by its header.
func addFile(builder *agc.Builder, path string, concat bool, verbose int) error {
	r, err := fasta.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	if !concat {
		if err := builder.AddSample(sampleName(path)); err != nil {
			return err
		}
	}
	if verbose > 0 {
		fmt.Fprintf(os.Stderr, "Processing %s\n", path)
	}

	for {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if concat {
			if err := builder.AddSample(rec.Name); err != nil {
				return err
			}
		}
		if err := builder.AddContig(rec.Name, rec.Seq); err != nil {
			return err
		}
		if verbose > 1 {
			fmt.Fprintf(os.Stderr, "  %s (%d bases)\n", rec.Name, len(rec.Seq))
		}
	}
}

func readFileList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

type getMode int

const (
	getColMode getMode = iota
	getSetMode
	getCtgMode
)

func cmdGet(args []string, mode getMode) error {
	name := [...]string{"getcol", "getset", "getctg"}[mode]
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	output := flags.StringP("output", "o", "", "output to file (default: stdout)")
	gzLevel := flags.IntP("gzip-level", "z", -1, "gzip output with the given level")
	width := flags.IntP("line-length", "w", 80, "output FASTA line length")
	prefetch := flags.BoolP("prefetch", "p", false, "prefetch the whole archive")
	if err := flags.Parse(args); err != nil {
		return err
	}

	rest := flags.Args()
	if len(rest) < 1 {
		flags.Usage()
		return fmt.Errorf("%s needs an input archive", name)
	}
	if mode != getColMode && len(rest) < 2 {
		return fmt.Errorf("%s needs names to extract", name)
	}

	a, err := agc.Open(rest[0], agc.WithPrefetch(*prefetch || mode == getColMode))
	if err != nil {
		return err
	}
	defer a.Close()

	out, closeOut, err := openOutput(*output)
	if err != nil {
		return err
	}
	defer closeOut()

	var w *fasta.Writer
	if *gzLevel >= 0 {
		if w, err = fasta.NewGzipWriter(out, *width, *gzLevel); err != nil {
			return err
		}
	} else {
		w = fasta.NewWriter(out, *width)
	}

	switch mode {
	case getColMode:
		for _, sample := range a.ListSamples() {
			if err := writeSample(a, w, sample); err != nil {
				return err
			}
		}
	case getSetMode:
		for _, sample := range rest[1:] {
			if err := writeSample(a, w, sample); err != nil {
				return err
			}
		}
	case getCtgMode:
		for _, query := range rest[1:] {
			if err := writeContig(a, w, query); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

func writeSample(a *agc.Archive, w *fasta.Writer, sample string) error {
	contigs, err := a.ListContigs(sample)
	if err != nil {
		return err
	}
	for _, name := range contigs {
		seq, err := a.ContigSeq(sample, name, 0, -1)
		if err != nil {
			return err
		}
		if err := w.Write(&fasta.Record{Name: name, Seq: seq}); err != nil {
			return err
		}
	}
	return nil
}

// writeContig handles one getctg query of the form
// contig[@sample][:from-to], with an inclusive base range.
func writeContig(a *agc.Archive, w *fasta.Writer, query string) error {
	name := query
	sample := ""
	from, to := 0, -1

	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		rangeSpec := name[i+1:]
		lo, hi, ok := strings.Cut(rangeSpec, "-")
		if !ok {
			return fmt.Errorf("bad range in %q", query)
		}
		var err error
		if from, err = strconv.Atoi(lo); err != nil {
			return fmt.Errorf("bad range in %q", query)
		}
		if to, err = strconv.Atoi(hi); err != nil {
			return fmt.Errorf("bad range in %q", query)
		}
		to++ // inclusive on the command line
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '@'); i >= 0 {
		sample = name[i+1:]
		name = name[:i]
	}

	seq, err := a.ContigSeq(sample, name, from, to)
	if err != nil {
		return err
	}
	return w.Write(&fasta.Record{Name: query, Seq: seq})
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func openArchiveArg(name string, args []string) (*agc.Archive, []string, error) {
	if len(args) < 1 {
		return nil, nil, fmt.Errorf("%s needs an input archive", name)
	}
	a, err := agc.Open(args[0])
	if err != nil {
		return nil, nil, err
	}
	return a, args[1:], nil
}

func cmdListRef(args []string) error {
	a, _, err := openArchiveArg("listref", args)
	if err != nil {
		return err
	}
	defer a.Close()

	ref, err := a.ReferenceSample()
	if err != nil {
		return err
	}
	fmt.Println(ref)
	return nil
}

func cmdListSet(args []string) error {
	a, _, err := openArchiveArg("listset", args)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, name := range a.ListSamples() {
		fmt.Println(name)
	}
	return nil
}

func cmdListCtg(args []string) error {
	a, rest, err := openArchiveArg("listctg", args)
	if err != nil {
		return err
	}
	defer a.Close()

	samples := rest
	if len(samples) == 0 {
		samples = a.ListSamples()
	}
	for _, sample := range samples {
		contigs, err := a.ListContigs(sample)
		if err != nil {
			return err
		}
		fmt.Println(sample)
		for _, name := range contigs {
			fmt.Printf("   %s\n", name)
		}
	}
	return nil
}

func cmdInfo(args []string) error {
	a, _, err := openArchiveArg("info", args)
	if err != nil {
		return err
	}
	defer a.Close()

	st := a.Stats()
	fmt.Printf("No. of samples   : %d\n", st.NumSamples)
	fmt.Printf("No. of contigs   : %d\n", st.NumContigs)
	fmt.Printf("No. of segments  : %d (%d raw, %d delta)\n",
		st.NumSegments, st.RawSegments, st.DeltaSegments)
	fmt.Printf("Total bases      : %d\n", st.TotalBases)
	fmt.Printf("Archive size     : %d bytes\n", st.ArchiveBytes)
	fmt.Printf("Stream dialect   : v%d\n", st.Dialect)
	fmt.Printf("Min match length : %d\n", st.MinMatchLen)
	fmt.Printf("K-mer length     : %d\n", st.KmerLength)
	fmt.Printf("Segment size     : %d\n", st.SegmentSize)
	for _, line := range st.CmdLines {
		fmt.Printf("Cmd line         : %s\n", line)
	}
	if err := a.Verify(); err != nil {
		return err
	}
	fmt.Println("Checksums        : ok")
	return nil
}
