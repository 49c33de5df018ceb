package model

import (
	"path/filepath"
	"strings"
)

// FileType represents supported upload formats
type FileType int

const (
	// FileTypeUnsupported represents unsupported file type
	FileTypeUnsupported FileType = iota
	// FileTypeCSV represents CSV file type
	FileTypeCSV
	// FileTypeTSV represents TSV file type
	FileTypeTSV
	// FileTypeJSON represents JSON file type
	FileTypeJSON
	// FileTypePDF represents PDF file type
	FileTypePDF
	// FileTypeXLSX represents Excel 2007+ workbooks
	FileTypeXLSX
	// FileTypeXLS represents legacy Excel 97-2003 workbooks
	FileTypeXLS
	// FileTypeParquet represents Apache Parquet files
	FileTypeParquet
)

// File extensions
const (
	ExtCSV     = ".csv"
	ExtTSV     = ".tsv"
	ExtJSON    = ".json"
	ExtPDF     = ".pdf"
	ExtXLSX    = ".xlsx"
	ExtXLS     = ".xls"
	ExtParquet = ".parquet"
	ExtGZ      = ".gz"
	ExtBZ2     = ".bz2"
	ExtXZ      = ".xz"
	ExtZSTD    = ".zst"
)

var fileTypeByExt = map[string]FileType{
	ExtCSV:     FileTypeCSV,
	ExtTSV:     FileTypeTSV,
	ExtJSON:    FileTypeJSON,
	ExtPDF:     FileTypePDF,
	ExtXLSX:    FileTypeXLSX,
	ExtXLS:     FileTypeXLS,
	ExtParquet: FileTypeParquet,
}

// String returns the format name.
func (ft FileType) String() string {
	switch ft {
	case FileTypeCSV:
		return "csv"
	case FileTypeTSV:
		return "tsv"
	case FileTypeJSON:
		return "json"
	case FileTypePDF:
		return "pdf"
	case FileTypeXLSX:
		return "xlsx"
	case FileTypeXLS:
		return "xls"
	case FileTypeParquet:
		return "parquet"
	default:
		return "unsupported"
	}
}

// NeedsRandomAccess reports whether the parser needs the whole body in a seekable buffer.
func (ft FileType) NeedsRandomAccess() bool {
	switch ft {
	case FileTypePDF, FileTypeXLSX, FileTypeXLS, FileTypeParquet:
		return true
	default:
		return false
	}
}

// FileInfo is the result of detecting an upload's format from its name.
type FileInfo struct {
	Name        string
	Type        FileType
	Compression CompressionType
}

// DetectFile detects the file type from the lowercased extension, looking
// through one compression suffix.
func DetectFile(fileName string) FileInfo {
	info := FileInfo{Name: fileName}
	lower := strings.ToLower(filepath.Base(fileName))
	for _, c := range []CompressionType{CompressionGZ, CompressionBZ2, CompressionXZ, CompressionZSTD} {
		if strings.HasSuffix(lower, c.Extension()) {
			info.Compression = c
			lower = strings.TrimSuffix(lower, c.Extension())
			break
		}
	}
	info.Type = fileTypeByExt[filepath.Ext(lower)]
	return info
}

// Supported reports whether the file can be ingested.
func (fi FileInfo) Supported() bool {
	return fi.Type != FileTypeUnsupported
}

// IsSupportedFile reports whether fileName has a supported extension.
func IsSupportedFile(fileName string) bool {
	return DetectFile(fileName).Supported()
}

// SupportedExtensions returns the accepted format extensions.
func SupportedExtensions() []string {
	return []string{ExtCSV, ExtTSV, ExtJSON, ExtPDF, ExtXLSX, ExtXLS, ExtParquet}
}
