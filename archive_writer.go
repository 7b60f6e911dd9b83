package agc

import (
	"bufio"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
)

// archiveWriter handles the sequential write path: header first, then
// the data region blob by blob, then the collection block and footer.
// Region checksums are folded while the data is hot instead of with a
// second pass over the file.
type archiveWriter struct {
	file *os.File
	buf  *bufio.Writer
	path string

	dataHash *xxhash.Digest
	dataLen  uint64
}

// newArchiveWriter creates the archive file and writes its header.
func newArchiveWriter(path string, hdr *header) (*archiveWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	w := &archiveWriter{
		file:     file,
		buf:      bufio.NewWriterSize(file, 1<<20),
		path:     path,
		dataHash: xxhash.New(),
	}

	var buf [headerSize]byte
	hdr.encodeTo(buf[:])
	if _, err := w.buf.Write(buf[:]); err != nil {
		w.abort()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// appendBlob writes one segment blob to the data region and returns its
// offset relative to the region start.
func (w *archiveWriter) appendBlob(blob []byte) (uint64, error) {
	offset := w.dataLen
	if _, err := w.buf.Write(blob); err != nil {
		return 0, fmt.Errorf("write segment: %w", err)
	}
	w.dataHash.Write(blob)
	w.dataLen += uint64(len(blob))
	return offset, nil
}

// finish writes the collection block and footer, then flushes and
// closes the file.
func (w *archiveWriter) finish(colBlob []byte) error {
	if _, err := w.buf.Write(colBlob); err != nil {
		return fmt.Errorf("write collection: %w", err)
	}

	ftr := footer{
		DataHash:         w.dataHash.Sum64(),
		CollectionHash:   xxhash.Sum64(colBlob),
		CollectionOffset: headerSize + w.dataLen,
		CollectionSize:   uint64(len(colBlob)),
	}
	var buf [footerSize]byte
	ftr.encodeTo(buf[:])
	if _, err := w.buf.Write(buf[:]); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush archive: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync archive: %w", err)
	}
	return w.file.Close()
}

// abort closes and removes a half-written archive.
func (w *archiveWriter) abort() {
	w.file.Close()
	os.Remove(w.path)
}
