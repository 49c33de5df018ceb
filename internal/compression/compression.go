// Package compression wraps readers and writers with the codecs accepted for
// uploads and exports.
package compression

import (
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/nao1215/dataexplorer/domain/model"
)

// ErrBZ2Write is returned when bzip2 output is requested.
var ErrBZ2Write = errors.New("bzip2 compression is not supported for writing")

// Handler wraps streams for a single compression type.
type Handler interface {
	// NewReader wraps r with a decompression reader if needed
	NewReader(r io.Reader) (io.Reader, func() error, error)
	// NewWriter wraps w with a compression writer if needed. The returned
	// close function flushes the codec but does not close w.
	NewWriter(w io.Writer) (io.Writer, func() error, error)
}

type handler struct {
	typ model.CompressionType
}

// New returns the Handler for typ.
func New(typ model.CompressionType) Handler {
	return &handler{typ: typ}
}

func nop() error { return nil }

// NewReader creates a decompression reader based on the compression type
func (h *handler) NewReader(r io.Reader) (io.Reader, func() error, error) {
	switch h.typ {
	case model.CompressionNone:
		return r, nop, nil
	case model.CompressionGZ:
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzReader, gzReader.Close, nil
	case model.CompressionBZ2:
		return bzip2.NewReader(r), nop, nil
	case model.CompressionXZ:
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzReader, nop, nil
	case model.CompressionZSTD:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, func() error {
			decoder.Close()
			return nil
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression type for reading: %v", h.typ)
	}
}

// NewWriter creates a compression writer based on the compression type
func (h *handler) NewWriter(w io.Writer) (io.Writer, func() error, error) {
	switch h.typ {
	case model.CompressionNone:
		return w, nop, nil
	case model.CompressionGZ:
		gzWriter := gzip.NewWriter(w)
		return gzWriter, gzWriter.Close, nil
	case model.CompressionBZ2:
		return nil, nil, ErrBZ2Write
	case model.CompressionXZ:
		xzWriter, err := xz.NewWriter(w)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return xzWriter, xzWriter.Close, nil
	case model.CompressionZSTD:
		zstdWriter, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zstdWriter, zstdWriter.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression type for writing: %v", h.typ)
	}
}

// OpenFile opens path and returns a reader that decompresses it per typ.
// The close function releases both the codec and the file.
func OpenFile(path string, typ model.CompressionType) (io.Reader, func() error, error) {
	f, err := os.Open(path) //nolint:gosec // path is a scratch file created by the upload workflow
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	r, closeCodec, err := New(typ).NewReader(f)
	if err != nil {
		return nil, nil, errors.Join(err, f.Close())
	}
	return r, func() error {
		return errors.Join(closeCodec(), f.Close())
	}, nil
}
