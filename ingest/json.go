package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/nao1215/dataexplorer/domain/model"
)

// object is a decoded JSON object that remembers key order.
type object struct {
	keys   []string
	values map[string]any
}

// MarshalJSON renders the object with keys in source order.
func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &object{values: map[string]any{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				v, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.values[key]; !dup {
					obj.keys = append(obj.keys, key)
				}
				obj.values[key] = v
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return tok, nil
	}
}

// parseJSON accepts three shapes: an array of objects, an object holding at
// least one non-empty array (the longest is used, earliest key on ties), or a
// flat object which becomes a single row.
func parseJSON(data []byte) (*model.Table, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.UseNumber()
	doc, err := decodeOrdered(dec)
	if err != nil {
		return nil, model.E("", model.KindDecodeError, fmt.Errorf("invalid JSON: %w", err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, model.ES("", model.KindDecodeError, "invalid JSON: trailing data after document")
	}

	switch v := doc.(type) {
	case []any:
		return rowsToTable(v)
	case *object:
		if rows, ok := longestArray(v); ok {
			return rowsToTable(rows)
		}
		return rowsToTable([]any{v})
	default:
		return nil, model.ES("", model.KindUnsupportedStructure, "unsupported JSON structure: top-level %T", doc)
	}
}

func longestArray(obj *object) ([]any, bool) {
	var (
		best  []any
		found bool
	)
	for _, k := range obj.keys {
		arr, ok := obj.values[k].([]any)
		if ok && len(arr) > len(best) {
			best, found = arr, true
		}
	}
	return best, found
}

// rowsToTable converts a sequence of objects into columns, taking the union
// of keys in first-seen order. Missing keys become null.
func rowsToTable(rows []any) (*model.Table, error) {
	var keys []string
	seen := map[string]struct{}{}
	objs := make([]*object, len(rows))
	for i, r := range rows {
		obj, ok := r.(*object)
		if !ok {
			return nil, model.ES("", model.KindUnsupportedStructure, "unsupported JSON structure: row %d is %s, want object", i, jsonKind(r))
		}
		objs[i] = obj
		for _, k := range obj.keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	if len(keys) == 0 {
		return nil, model.E("", model.KindUnsupportedStructure, model.ErrNoColumns)
	}

	columns := make([]model.Column, len(keys))
	for i, k := range keys {
		raw := make([]any, len(objs))
		for j, obj := range objs {
			raw[j] = jsonScalar(obj.values[k])
		}
		columns[i] = model.ColumnFromValues(k, raw)
	}
	return model.NewTable(columns...)
}

// jsonScalar renders nested values as JSON text and leaves scalars alone.
func jsonScalar(v any) any {
	switch x := v.(type) {
	case *object, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return x
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
