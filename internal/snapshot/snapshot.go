// Package snapshot encodes model storable forms as JSON documents,
// optionally gzip-compressed. Decoding detects compression by the gzip
// magic number, so callers never need to know how a snapshot was written.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/model"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Options controls encoding.
type Options struct {
	// Compress gzips the JSON document.
	Compress bool

	// Indent pretty-prints the JSON document. Ignored when compressing.
	Indent bool
}

// Marshal encodes form.
func Marshal(form *model.StorableForm, opts Options) ([]byte, error) {
	if form == nil {
		return nil, fmt.Errorf("storable form cannot be nil")
	}

	var (
		data []byte
		err  error
	)
	if opts.Indent && !opts.Compress {
		data, err = json.MarshalIndent(form, "", "  ")
	} else {
		data, err = json.Marshal(form)
	}
	if err != nil {
		return nil, fmt.Errorf("serialize snapshot: %w", err)
	}
	if !opts.Compress {
		return data, nil
	}
	return compress(data)
}

// Unmarshal decodes a snapshot written by Marshal. The format version
// must match the running model.
func Unmarshal(data []byte) (*model.StorableForm, error) {
	if bytes.HasPrefix(data, gzipMagic) {
		var err error
		if data, err = decompress(data); err != nil {
			return nil, err
		}
	}

	var form model.StorableForm
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("deserialize snapshot: %w", err)
	}
	if form.FormatVersion != ir.FormatVersion {
		return nil, fmt.Errorf("snapshot format version %q, want %q", form.FormatVersion, ir.FormatVersion)
	}
	return &form, nil
}

// Encode writes form to w.
func Encode(w io.Writer, form *model.StorableForm, opts Options) error {
	data, err := Marshal(form, opts)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Decode reads one snapshot from r.
func Decode(r io.Reader) (*model.StorableForm, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Unmarshal(data)
}

// WriteFile writes form to path, creating parent directories.
func WriteFile(path string, form *model.StorableForm, opts Options) error {
	if path == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	data, err := Marshal(form, opts)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot to %s: %w", path, err)
	}
	return nil
}

// ReadFile reads the snapshot at path.
func ReadFile(path string) (*model.StorableForm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Unmarshal(data)
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	defer func() { _ = zr.Close() }()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	return out, nil
}
