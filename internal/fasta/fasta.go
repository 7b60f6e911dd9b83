// Package fasta reads and writes FASTA files, transparently handling
// gzip-compressed input and optionally gzip-compressing output.
package fasta

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// Record is one FASTA entry. Name is the first whitespace-delimited
// token of the header line; Seq holds the concatenated sequence lines.
type Record struct {
	Name string
	Seq  []byte
}

// Reader iterates over the records of a FASTA stream.
type Reader struct {
	br      *bufio.Reader
	gz      *gzip.Reader
	closer  io.Closer
	pending []byte // header line of the next record, without '>'
	done    bool
}

// gzipMagic is the two-byte gzip signature used for input sniffing.
var gzipMagic = []byte{0x1f, 0x8b}

// NewReader wraps r, sniffing for gzip compression.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	head, err := br.Peek(2)
	if err == nil && bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("fasta: open gzip stream: %w", err)
		}
		return &Reader{br: bufio.NewReaderSize(gz, 1<<20), gz: gz}, nil
	}
	return &Reader{br: br}, nil
}

// Open opens a FASTA file, gzipped or plain.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fasta: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (*Record, error) {
	if r.done {
		return nil, io.EOF
	}

	if r.pending == nil {
		line, err := r.readLine()
		if err != nil {
			r.done = true
			return nil, err
		}
		if len(line) == 0 || line[0] != '>' {
			return nil, fmt.Errorf("fasta: expected header line, got %q", truncateLine(line))
		}
		r.pending = line[1:]
	}

	rec := &Record{Name: headerName(r.pending)}
	r.pending = nil

	for {
		line, err := r.readLine()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			r.pending = line[1:]
			break
		}
		rec.Seq = append(rec.Seq, line...)
	}
	return rec, nil
}

// readLine reads one line without its terminator.
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if len(line) == 0 && err != nil {
		return nil, err
	}
	line = bytes.TrimRight(line, "\r\n")
	return line, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.gz != nil {
		if err := r.gz.Close(); err != nil && r.closer != nil {
			r.closer.Close()
			return err
		}
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// headerName extracts the record name: the header up to the first
// whitespace.
func headerName(header []byte) string {
	if i := bytes.IndexAny(header, " \t"); i >= 0 {
		header = header[:i]
	}
	return string(header)
}

func truncateLine(line []byte) []byte {
	if len(line) > 40 {
		return append(append([]byte(nil), line[:40]...), "..."...)
	}
	return line
}

// DefaultLineWidth is the sequence wrap width used when none is set.
const DefaultLineWidth = 80

// Writer emits FASTA records with wrapped sequence lines, optionally
// through a gzip stream.
type Writer struct {
	w     *bufio.Writer
	gz    *gzip.Writer
	width int
}

// NewWriter writes plain FASTA to w wrapped at width columns
// (DefaultLineWidth if width <= 0).
func NewWriter(w io.Writer, width int) *Writer {
	if width <= 0 {
		width = DefaultLineWidth
	}
	return &Writer{w: bufio.NewWriterSize(w, 1<<20), width: width}
}

// NewGzipWriter writes gzip-compressed FASTA at the given compression
// level (gzip.DefaultCompression when level is 0).
func NewGzipWriter(w io.Writer, width, level int) (*Writer, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	gz, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, fmt.Errorf("fasta: gzip level %d: %w", level, err)
	}
	fw := NewWriter(gz, width)
	fw.gz = gz
	return fw, nil
}

// Write emits one record.
func (w *Writer) Write(rec *Record) error {
	if err := w.w.WriteByte('>'); err != nil {
		return err
	}
	if _, err := w.w.WriteString(rec.Name); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	for off := 0; off < len(rec.Seq); off += w.width {
		end := min(off+w.width, len(rec.Seq))
		if _, err := w.w.Write(rec.Seq[off:end]); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

// Flush drains buffered output and finishes the gzip stream, if any.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if w.gz != nil {
		return w.gz.Close()
	}
	return nil
}
