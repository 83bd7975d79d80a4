package utils

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Compression is the on-disk encoding of an index file.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = ".gz"
	CompressionXz   Compression = ".xz"
)

// CompressionFromPath derives the compression from a file extension.
func CompressionFromPath(path string) Compression {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(path, ".xz"):
		return CompressionXz
	default:
		return CompressionNone
	}
}

// GzipCompress compresses data using gzip
func GzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// XzCompress compresses data using xz
func XzCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Compress encodes data with the given compression.
func Compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionGzip:
		return GzipCompress(data)
	case CompressionXz:
		return XzCompress(data)
	case CompressionNone:
		return data, nil
	default:
		return nil, errors.Newf("unsupported compression %q", c)
	}
}

// ReadIndexFile reads a possibly compressed index file and returns the
// decoded content. The compression is taken from the file extension.
func ReadIndexFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	switch CompressionFromPath(path) {
	case CompressionGzip:
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "gzip %s", path)
		}
		defer gr.Close()
		r = gr
	case CompressionXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "xz %s", path)
		}
		r = xr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}
