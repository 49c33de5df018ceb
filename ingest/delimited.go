package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"

	"github.com/nao1215/dataexplorer/domain/model"
)

var errInvalidUTF8 = errors.New("invalid UTF-8 byte sequence")

// Encoding decodes raw bytes into UTF-8 text.
type Encoding struct {
	Name   string
	Decode func([]byte) ([]byte, error)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// UTF8 accepts only valid UTF-8, dropping a leading byte order mark.
var UTF8 = Encoding{
	Name: "utf-8",
	Decode: func(b []byte) ([]byte, error) {
		b = bytes.TrimPrefix(b, utf8BOM)
		if !utf8.Valid(b) {
			return nil, errInvalidUTF8
		}
		return b, nil
	},
}

// Latin1 decodes ISO 8859-1.
var Latin1 = Encoding{
	Name: "latin-1",
	Decode: func(b []byte) ([]byte, error) {
		return charmap.ISO8859_1.NewDecoder().Bytes(b)
	},
}

// Windows1252 decodes Windows code page 1252.
var Windows1252 = Encoding{
	Name: "cp1252",
	Decode: func(b []byte) ([]byte, error) {
		return charmap.Windows1252.NewDecoder().Bytes(b)
	},
}

// DefaultEncodings returns the encodings tried for delimited text, in order.
func DefaultEncodings() []Encoding {
	return []Encoding{UTF8, Latin1, Windows1252}
}

// decodeText returns data decoded with the first encoding that accepts it.
func decodeText(data []byte, encodings []Encoding, logger *zerolog.Logger) ([]byte, error) {
	var errs []error
	for _, enc := range encodings {
		out, err := enc.Decode(data)
		if err != nil {
			errs = append(errs, err)
			logger.Debug().Str("encoding", enc.Name).Err(err).Msg("decode attempt failed")
			continue
		}
		logger.Info().Str("encoding", enc.Name).Msg("decoded delimited text")
		return out, nil
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no encodings configured"))
	}
	return nil, model.E("", model.KindDecodeError, errors.Join(errs...))
}

func parseDelimited(data []byte, delimiter rune, encodings []Encoding, logger *zerolog.Logger) (*model.Table, error) {
	text, err := decodeText(data, encodings, logger)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.ES("", model.KindUnsupportedStructure, "no columns to parse from file")
	}
	if err != nil {
		return nil, model.E("", model.KindUnsupportedStructure, err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, model.E("", model.KindUnsupportedStructure, err)
		}
		if isBlankRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	return newTable(header, records)
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if v != "" {
			return false
		}
	}
	return true
}
