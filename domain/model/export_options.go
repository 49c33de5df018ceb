package model

import "strings"

// ExportFormat is the file format a stored table is exported to.
type ExportFormat int

const (
	// ExportCSV exports comma separated values
	ExportCSV ExportFormat = iota
	// ExportTSV exports tab separated values
	ExportTSV
	// ExportLTSV exports labeled tab separated values
	ExportLTSV
	// ExportXLSX exports an Excel workbook with a single sheet
	ExportXLSX
	// ExportParquet exports an Apache Parquet file
	ExportParquet
)

var exportFormats = map[string]ExportFormat{
	"csv":     ExportCSV,
	"tsv":     ExportTSV,
	"ltsv":    ExportLTSV,
	"xlsx":    ExportXLSX,
	"parquet": ExportParquet,
}

// ParseExportFormat parses a format name. The empty string selects CSV.
func ParseExportFormat(s string) (ExportFormat, error) {
	if s == "" {
		return ExportCSV, nil
	}
	f, ok := exportFormats[strings.ToLower(s)]
	if !ok {
		return ExportCSV, ES("model.ParseExportFormat", KindInvalidArgument, "unknown export format %q", s)
	}
	return f, nil
}

// String returns the format name.
func (f ExportFormat) String() string {
	switch f {
	case ExportTSV:
		return "tsv"
	case ExportLTSV:
		return "ltsv"
	case ExportXLSX:
		return "xlsx"
	case ExportParquet:
		return "parquet"
	default:
		return "csv"
	}
}

// Extension returns the file extension for the format
func (f ExportFormat) Extension() string {
	return "." + f.String()
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportTSV, ExportLTSV:
		return "text/tab-separated-values"
	case ExportXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv"
	}
}

// CompressionType represents the compression type
type CompressionType int

const (
	// CompressionNone represents no compression
	CompressionNone CompressionType = iota
	// CompressionGZ represents gzip compression
	CompressionGZ
	// CompressionBZ2 represents bzip2 compression. It can be read but not written.
	CompressionBZ2
	// CompressionXZ represents xz compression
	CompressionXZ
	// CompressionZSTD represents zstd compression
	CompressionZSTD
)

// ParseCompression parses a compression name. The empty string selects none.
func ParseCompression(s string) (CompressionType, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "gz", "gzip":
		return CompressionGZ, nil
	case "bz2", "bzip2":
		return CompressionBZ2, nil
	case "xz":
		return CompressionXZ, nil
	case "zst", "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, ES("model.ParseCompression", KindInvalidArgument, "unknown compression %q", s)
	}
}

// String returns the string representation of CompressionType
func (c CompressionType) String() string {
	switch c {
	case CompressionGZ:
		return "gz"
	case CompressionBZ2:
		return "bz2"
	case CompressionXZ:
		return "xz"
	case CompressionZSTD:
		return "zstd"
	default:
		return "none"
	}
}

// Extension returns the file extension for the compression type
func (c CompressionType) Extension() string {
	switch c {
	case CompressionGZ:
		return ExtGZ
	case CompressionBZ2:
		return ExtBZ2
	case CompressionXZ:
		return ExtXZ
	case CompressionZSTD:
		return ExtZSTD
	default:
		return ""
	}
}

// ExportOptions selects the format and compression of an export.
type ExportOptions struct {
	Format      ExportFormat
	Compression CompressionType
}

// NewExportOptions creates ExportOptions with default values (CSV format, no compression)
func NewExportOptions() ExportOptions {
	return ExportOptions{Format: ExportCSV, Compression: CompressionNone}
}

// WithFormat sets the output format
func (o ExportOptions) WithFormat(format ExportFormat) ExportOptions {
	o.Format = format
	return o
}

// WithCompression sets the compression type
func (o ExportOptions) WithCompression(compression CompressionType) ExportOptions {
	o.Compression = compression
	return o
}

// FileName returns the download file name for table.
func (o ExportOptions) FileName(table string) string {
	return table + o.Format.Extension() + o.Compression.Extension()
}

// ContentType returns the MIME type of the export body.
func (o ExportOptions) ContentType() string {
	switch o.Compression {
	case CompressionGZ:
		return "application/gzip"
	case CompressionXZ:
		return "application/x-xz"
	case CompressionZSTD:
		return "application/zstd"
	case CompressionBZ2:
		return "application/x-bzip2"
	default:
		return o.Format.ContentType()
	}
}
