package pagination

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{Offset: 150, Fingerprint: "abc123", Family: "actions"}

	decoded, err := Decode(Encode(original))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Errorf("cursor mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsBadEncoding(t *testing.T) {
	if _, err := Decode("not base64 at all!!!"); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("expected ErrInvalidCursor, got %v", err)
	}
}

func TestDecodeRejectsBadJSON(t *testing.T) {
	token := base64.URLEncoding.EncodeToString([]byte("{broken"))
	if _, err := Decode(token); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("expected ErrInvalidCursor, got %v", err)
	}
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	cases := []string{
		`{"offset":5}`,
		`{"offset":5,"file_hash":"abc"}`,
		`{"offset":-1,"file_hash":"abc","report_type":"actions"}`,
		`{}`,
	}

	for _, payload := range cases {
		token := base64.URLEncoding.EncodeToString([]byte(payload))
		if _, err := Decode(token); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("payload %s: expected ErrInvalidCursor, got %v", payload, err)
		}
	}
}

func TestAdvanceAddsRowsReturned(t *testing.T) {
	c := Cursor{Offset: 10, Fingerprint: "abc", Family: "permissions"}

	next := c.Advance(3)
	if next.Offset != 13 {
		t.Errorf("expected offset 13, got %d", next.Offset)
	}
	if next.Fingerprint != c.Fingerprint || next.Family != c.Family {
		t.Error("Advance must preserve fingerprint and family")
	}
}
