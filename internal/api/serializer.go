package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEApplicationMsgpack selects MessagePack responses through the Accept header.
const MIMEApplicationMsgpack = "application/msgpack"

// JSONSerializer implements echo.JSONSerializer with goccy/go-json.
type JSONSerializer struct{}

// Serialize encodes i as JSON.
func (JSONSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

// Deserialize decodes the request body into i.
func (JSONSerializer) Deserialize(c echo.Context, i any) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	if ute, ok := err.(*json.UnmarshalTypeError); ok { //nolint:errorlint // mirrors echo's DefaultJSONSerializer
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Unmarshal type error: expected=%v, got=%v, field=%v, offset=%v", ute.Type, ute.Value, ute.Field, ute.Offset)).SetInternal(err)
	} else if se, ok := err.(*json.SyntaxError); ok { //nolint:errorlint // mirrors echo's DefaultJSONSerializer
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Syntax error: offset=%v, error=%v", se.Offset, se.Error())).SetInternal(err)
	}
	return err
}

func wantsMsgpack(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack)
}

// respond writes v as MessagePack when the client asks for it and as JSON otherwise.
func respond(c echo.Context, status int, v any) error {
	if !wantsMsgpack(c) {
		return c.JSON(status, v)
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode msgpack: %w", err)
	}
	return c.Blob(status, MIMEApplicationMsgpack, data)
}
