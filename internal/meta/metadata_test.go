package meta

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSessionFields(t *testing.T) {
	id := uuid.New()
	s := Session(id, "budi@example.com")
	got, err := s.AccountID()
	if err != nil || got != id {
		t.Fatalf("account id: got %v %v", got, err)
	}
	if s.Email() != "budi@example.com" {
		t.Fatalf("email: %q", s.Email())
	}
	if _, err := New(map[string]string{KeyAccountID: "nope"}).AccountID(); err == nil {
		t.Fatalf("expected invalid account id")
	}
	if _, err := New(nil).AccountID(); err == nil {
		t.Fatalf("expected missing account id")
	}
}

func TestValidationLimits(t *testing.T) {
	pairs := make(map[string]string)
	for i := 0; i < MaxPairs+1; i++ {
		pairs[string(rune('a'+i))+"k"] = "v"
	}
	if err := New(pairs).Validate(); err == nil {
		t.Fatalf("expected too many pairs")
	}
	if err := New(map[string]string{strings.Repeat("k", MaxKeyLen+1): "v"}).Validate(); err == nil {
		t.Fatalf("expected key too long")
	}
	if err := New(map[string]string{"k": strings.Repeat("v", MaxValLen+1)}).Validate(); err == nil {
		t.Fatalf("expected value too long")
	}
	if err := Session(uuid.New(), "a@b.co").Validate(); err != nil {
		t.Fatalf("session should validate: %v", err)
	}
}

func TestStableJSONAndRoundtrip(t *testing.T) {
	m := New(map[string]string{"email": "a@b.co", "account_id": "1"})
	b, _ := m.MarshalStableJSON()
	if string(b) != `{"account_id":"1","email":"a@b.co"}` {
		t.Fatalf("unexpected stable json: %s", string(b))
	}
	var back Metadata
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Email() != "a@b.co" {
		t.Fatalf("roundtrip lost email: %+v", back)
	}
	if err := json.Unmarshal([]byte("null"), &back); err != nil || len(back) != 0 {
		t.Fatalf("null should decode to empty: %+v %v", back, err)
	}
}
