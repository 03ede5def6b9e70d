// Package eventlog provides the typed append-only run record log, a JSON-lines
// writer and reader for it, and in-memory sinks.
package eventlog

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Writer writes records as JSON lines. Paths ending in .zst are zstd-compressed.
// The digest covers the uncompressed lines, so a plain and a compressed log of
// the same run hash the same.
type Writer struct {
	file   *os.File
	zw     *zstd.Encoder
	writer *bufio.Writer
	digest hash.Hash
	count  uint64
}

// NewWriter creates a new record log writer at the given path.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create event log")
	}
	w := &Writer{file: f, digest: sha256.New()}
	var out io.Writer = f
	if strings.HasSuffix(path, ".zst") {
		w.zw, err = zstd.NewWriter(f, zstd.WithEncoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "create zstd encoder")
		}
		out = w.zw
	}
	w.writer = bufio.NewWriterSize(io.MultiWriter(out, w.digest), 64*1024)
	return w, nil
}

// Write appends a record to the log.
func (w *Writer) Write(r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}
	if _, err = w.writer.Write(data); err != nil {
		return err
	}
	if err = w.writer.WriteByte('\n'); err != nil {
		return err
	}
	w.count++
	return nil
}

// Close flushes and closes the log file.
func (w *Writer) Close() error {
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			w.file.Close()
			return err
		}
	}
	return w.file.Close()
}

// Count returns the number of records written.
func (w *Writer) Count() uint64 {
	return w.count
}

// Digest returns the hex SHA-256 of every line written so far. Call after Close.
func (w *Writer) Digest() string {
	return hex.EncodeToString(w.digest.Sum(nil))
}

// Reader reads records from a JSON-lines log, compressed or not.
type Reader struct {
	file    *os.File
	zr      *zstd.Decoder
	scanner *bufio.Scanner
}

// NewReader opens a record log for reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open event log")
	}
	r := &Reader{file: f}
	var in io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		r.zr, err = zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "create zstd decoder")
		}
		in = r.zr
	}
	r.scanner = bufio.NewScanner(in)
	r.scanner.Buffer(make([]byte, 256*1024), 4*1024*1024)
	return r, nil
}

// Next reads the next record. Returns nil, io.EOF at end of log.
func (r *Reader) Next() (*Record, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	var rec Record
	if err := json.Unmarshal(r.scanner.Bytes(), &rec); err != nil {
		return nil, errors.Wrap(err, "unmarshal record")
	}
	return &rec, nil
}

// ReadAll reads all records from the log.
func (r *Reader) ReadAll() ([]*Record, error) {
	var records []*Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// Close closes the log file.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return r.file.Close()
}

// HashFile returns the hex SHA-256 of a log's uncompressed contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var in io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return "", errors.Wrap(err, "create zstd decoder")
		}
		defer zr.Close()
		in = zr
	}
	h := sha256.New()
	if _, err := io.Copy(h, in); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
