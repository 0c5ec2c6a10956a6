package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// ErrInvalidCursor means a client-supplied token failed structural decoding.
var ErrInvalidCursor = errors.New("invalid cursor token")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Cursor binds a row offset to the dataset fingerprint it was computed
// against. The family is carried redundantly for validation and debugging.
type Cursor struct {
	Offset      int    `json:"offset"`
	Fingerprint string `json:"file_hash"`
	Family      string `json:"report_type"`
}

// Encode renders the cursor as an opaque URL-safe token.
func Encode(c Cursor) string {
	payload, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(payload)
}

// Decode parses a client-supplied token. Any structural failure (encoding,
// JSON, missing or negative fields) yields ErrInvalidCursor; staleness is
// not checked here.
func Decode(token string) (Cursor, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.Offset < 0 || c.Fingerprint == "" || c.Family == "" {
		return Cursor{}, fmt.Errorf("%w: missing fields", ErrInvalidCursor)
	}
	return c, nil
}

// Advance returns the cursor for the next page. The step is the number of
// rows actually returned, not the limit; the final page may be short.
func (c Cursor) Advance(rowsReturned int) Cursor {
	return Cursor{
		Offset:      c.Offset + rowsReturned,
		Fingerprint: c.Fingerprint,
		Family:      c.Family,
	}
}
