package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors wrapped by Error values.
var (
	// ErrDuplicateColumnName is returned when a table contains duplicate column names
	ErrDuplicateColumnName = errors.New("duplicate column name")
	// ErrColumnLength is returned when columns of a table differ in length
	ErrColumnLength = errors.New("column length mismatch")
	// ErrNoColumns is returned when a parsed file yields no columns
	ErrNoColumns = errors.New("no columns")
)

// Kind classifies an Error as one of a fixed set of conditions.
type Kind uint16

const (
	KindOther                Kind = iota // not classified
	KindUnsupportedFormat                // file extension is not handled
	KindDecodeError                      // bytes could not be decoded in any supported encoding
	KindUnsupportedStructure             // content parsed but its shape cannot become a table
	KindNoExtractableContent             // PDF with neither tables nor text
	KindNoNonEmptySheet                  // workbook without a non-empty sheet
	KindEngineError                      // failure reported by the SQL engine
	KindNotFound                         // operation on an absent table
	KindInvalidArgument                  // caller supplied an invalid argument
)

var kindNames = [...]string{
	KindOther:                "Other",
	KindUnsupportedFormat:    "UnsupportedFormat",
	KindDecodeError:          "DecodeError",
	KindUnsupportedStructure: "UnsupportedStructure",
	KindNoExtractableContent: "NoExtractableContent",
	KindNoNonEmptySheet:      "NoNonEmptySheet",
	KindEngineError:          "EngineError",
	KindNotFound:             "NotFound",
	KindInvalidArgument:      "InvalidArgument",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Kind sentinels for use with errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrUnsupportedFormat    error = &Error{Kind: KindUnsupportedFormat}
	ErrDecode               error = &Error{Kind: KindDecodeError}
	ErrUnsupportedStructure error = &Error{Kind: KindUnsupportedStructure}
	ErrNoExtractableContent error = &Error{Kind: KindNoExtractableContent}
	ErrNoNonEmptySheet      error = &Error{Kind: KindNoNonEmptySheet}
	ErrEngine               error = &Error{Kind: KindEngineError}
	ErrNotFound             error = &Error{Kind: KindNotFound}
	ErrInvalidArgument      error = &Error{Kind: KindInvalidArgument}
)

// Error is the error type returned by every public operation in dataexplorer.
type Error struct {
	// Op is the operation being performed, e.g. "store.Describe".
	Op string
	// Kind classifies the failure.
	Kind Kind
	// File is the uploaded file name, if any.
	File string
	// Table is the sanitized table name, if any.
	Table string
	// Statement is the SQL text that failed, if any.
	Statement string
	// Err is the wrapped lower-level error.
	Err error
}

// E constructs an Error. err may be nil.
func E(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// ES constructs an Error from a format string.
func ES(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WithFile sets the file name.
func (e *Error) WithFile(file string) *Error {
	e.File = file
	return e
}

// WithTable sets the table name.
func (e *Error) WithTable(table string) *Error {
	e.Table = table
	return e
}

// WithStatement sets the SQL statement.
func (e *Error) WithStatement(stmt string) *Error {
	e.Statement = stmt
	return e
}

// Error returns a formatted error message
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("dataexplorer: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" failed")
	} else {
		b.WriteString("operation failed")
	}
	b.WriteString(" (")
	b.WriteString(e.Kind.String())
	b.WriteString(")")
	if e.File != "" {
		fmt.Fprintf(&b, ", file: %s", e.File)
	}
	if e.Table != "" {
		fmt.Fprintf(&b, ", table: %s", e.Table)
	}
	if e.Statement != "" {
		fmt.Fprintf(&b, ", statement: %s", e.Statement)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target with
// KindOther matches nothing so that Is never collapses unrelated errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind != KindOther && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindOther.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
