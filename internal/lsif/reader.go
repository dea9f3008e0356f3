package lsif

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compressed dumps are detected by their magic bytes, so callers never need
// to declare the encoding up front.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

const (
	readerBufSize = 64 * 1024
	// A single line holds a whole element, hover payloads included.
	maxElementBytes = 32 * 1024 * 1024
)

// Reader decodes dump elements one line at a time, transparently
// decompressing gzip and zstd input. Blank lines are skipped.
type Reader struct {
	scanner *bufio.Scanner
	closeFn func() error
	count   int
}

// NewReader sniffs the stream encoding and wraps r accordingly. Close must be
// called to release decompressor resources.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, readerBufSize)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peek stream: %w", err)
	}

	var src io.Reader = br
	var closeFn func() error
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		src = zr
		closeFn = zr.Close
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		src = zr
		closeFn = func() error {
			zr.Close()
			return nil
		}
	}

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, readerBufSize), maxElementBytes)
	return &Reader{scanner: sc, closeFn: closeFn}, nil
}

// Read returns the next element in the stream. io.EOF signals a cleanly
// exhausted stream; any other error means the stream cannot be continued.
func (r *Reader) Read() (*Element, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		r.count++
		el, err := decodeElement(line)
		if err != nil {
			return nil, &MalformedElementError{Element: r.count, Err: err}
		}
		return el, nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &MalformedElementError{Element: r.count + 1, Err: err}
		}
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return nil, io.EOF
}

// Count reports how many non-blank elements have been consumed so far.
func (r *Reader) Count() int { return r.count }

// Close releases any decompressor resources. Safe to call on plain streams.
func (r *Reader) Close() error {
	if r.closeFn != nil {
		return r.closeFn()
	}
	return nil
}
