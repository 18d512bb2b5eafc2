package parsers

import (
	"bytes"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/neumann-mlucas/BWGI/pkg/errors"
)

// DefaultPreviewBufferSize is the chunk size for the backwards scan
const DefaultPreviewBufferSize = 8192

// ReverseLineReader reads the lines of a file in reverse order, last line
// first, scanning backwards in fixed-size chunks. Previewing the tail of a
// large ledger this way never loads the whole file.
type ReverseLineReader struct {
	file    *os.File
	pos     int64 // lower bound of the region not yet scanned
	size    int64
	bufSize int
	carry   []byte   // partial line crossing the current chunk boundary
	pending []string // complete lines in file order; emitted back to front
	tail    bool     // the next chunk ends at the file end
	atStart bool     // the first line of the file has been emitted
}

// NewReverseLineReader opens a file for backwards line reading
func NewReverseLineReader(path string, bufSize int) (*ReverseLineReader, error) {
	if bufSize <= 0 {
		bufSize = DefaultPreviewBufferSize
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileUnreadable, path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.FileError(errors.CodeFileUnreadable, path, err)
	}

	return &ReverseLineReader{
		file:    file,
		pos:     info.Size(),
		size:    info.Size(),
		bufSize: bufSize,
		tail:    true,
	}, nil
}

// Next returns the next line moving towards the start of the file, with
// line endings stripped and invalid UTF-8 replaced. It returns io.EOF
// after the first line of the file has been emitted.
func (r *ReverseLineReader) Next() (string, error) {
	for len(r.pending) == 0 {
		if r.pos == 0 {
			if r.atStart {
				return "", io.EOF
			}
			r.atStart = true
			if r.size == 0 {
				return "", io.EOF
			}

			line := r.carry
			r.carry = nil
			return cleanLine(line), nil
		}

		if err := r.fill(); err != nil {
			return "", err
		}
	}

	line := r.pending[len(r.pending)-1]
	r.pending = r.pending[:len(r.pending)-1]
	return line, nil
}

// fill scans one more chunk backwards and splits it into lines
func (r *ReverseLineReader) fill() error {
	readSize := int64(r.bufSize)
	if r.pos < readSize {
		readSize = r.pos
	}
	offset := r.pos - readSize

	chunk := make([]byte, readSize)
	if _, err := r.file.ReadAt(chunk, offset); err != nil && err != io.EOF {
		return errors.FileError(errors.CodeFileUnreadable, r.file.Name(), err)
	}
	r.pos = offset

	data := append(chunk, r.carry...)
	segments := bytes.Split(data, []byte{'\n'})

	// the byte run after the file's final newline is not a line
	if r.tail {
		r.tail = false
		if len(segments) > 1 && len(segments[len(segments)-1]) == 0 {
			segments = segments[:len(segments)-1]
		}
	}

	r.carry = segments[0]
	for _, segment := range segments[1:] {
		r.pending = append(r.pending, cleanLine(segment))
	}

	return nil
}

// Close releases the underlying file
func (r *ReverseLineReader) Close() error {
	return r.file.Close()
}

// cleanLine strips a carriage return and replaces invalid UTF-8
func cleanLine(raw []byte) string {
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}

// ReadLastLines returns up to n lines from the end of the file, last line
// first
func ReadLastLines(path string, n, bufSize int) ([]string, error) {
	reader, err := NewReverseLineReader(path, bufSize)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var lines []string
	for len(lines) < n {
		line, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, nil
}
