package canon

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tin", "tin"},
		{"Tin", "tin"},
		{"TIN", "tin"},
		{"TaxType", "taxType"},
		{"taxType", "taxType"},
		{"DueDate", "dueDate"},
		{"ID", "id"},
		{"Id", "id"},
		{"VATRate", "vatRate"},
		{"TINNumber", "tinNumber"},
		{"BlockchainTxId", "blockchainTxId"},
		{"URL2", "url2"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Key(tt.in); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPascal(t *testing.T) {
	if got := Pascal("taxType"); got != "TaxType" {
		t.Errorf("Pascal(taxType) = %q", got)
	}
	if got := Pascal(""); got != "" {
		t.Errorf("Pascal(\"\") = %q", got)
	}
}

func TestNormalize_Nested(t *testing.T) {
	in := map[string]any{
		"Tin":     "123456789",
		"TaxType": "VAT",
		"Items": []any{
			map[string]any{"Amount": 10.0, "DueDate": "2025-06-01"},
		},
		"Meta": map[string]any{"CreatedBy": "officer"},
	}
	want := map[string]any{
		"tin":     "123456789",
		"taxType": "VAT",
		"items": []any{
			map[string]any{"amount": 10.0, "dueDate": "2025-06-01"},
		},
		"meta": map[string]any{"createdBy": "officer"},
	}

	if diff := cmp.Diff(want, Normalize(in)); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_CanonicalKeyWins(t *testing.T) {
	in := map[string]any{"Tin": "old", "tin": "new"}
	got := Normalize(in).(map[string]any)

	if got["tin"] != "new" {
		t.Errorf("tin = %v, want new", got["tin"])
	}
	if len(got) != 1 {
		t.Errorf("expected a single key, got %v", got)
	}
}

func TestNormalize_AliasPrecedenceIsStable(t *testing.T) {
	in := map[string]any{"TIN": "upper", "Tin": "pascal", "VATRate": 18, "VatRate": 16}

	for i := 0; i < 100; i++ {
		got := Normalize(in).(map[string]any)
		if got["tin"] != "pascal" {
			t.Fatalf("run %d: tin = %v, want pascal", i, got["tin"])
		}
		if got["vatRate"] != 16 {
			t.Fatalf("run %d: vatRate = %v, want 16", i, got["vatRate"])
		}
	}
}

func TestPrecedes(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"tin", "Tin", true},
		{"Tin", "tin", false},
		{"Tin", "TIN", true},
		{"TIN", "Tin", false},
		{"VATRate", "VatRate", false},
		{"taxType", "TaxType", true},
	}
	for _, tt := range tests {
		if got := Precedes(tt.a, tt.b); got != tt.want {
			t.Errorf("Precedes(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	type assessment struct {
		ID      string  `json:"id"`
		TIN     string  `json:"tin"`
		TaxType string  `json:"taxType"`
		Amount  float64 `json:"amount"`
	}

	var a assessment
	err := Decode([]byte(`{"Id":"a-1","TIN":"123456789","TaxType":"VAT","Amount":1500000.5}`), &a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := assessment{ID: "a-1", TIN: "123456789", TaxType: "VAT", Amount: 1500000.5}
	if a != want {
		t.Errorf("Decode = %+v, want %+v", a, want)
	}
}

func TestDecode_EmptyBody(t *testing.T) {
	var v map[string]any
	if err := Decode(nil, &v); err != nil {
		t.Errorf("empty body should decode to nothing, got %v", err)
	}
}

func TestDigest_IgnoresCasingAndKeyOrder(t *testing.T) {
	a, err := DigestJSON([]byte(`{"Tin":"123456789","Amount":1000,"TaxType":"VAT"}`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Digest(map[string]any{"taxType": "VAT", "tin": "123456789", "amount": 1000.0})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("digests differ: %s vs %s", a, b)
	}

	c, err := Digest(map[string]any{"taxType": "VAT", "tin": "123456789", "amount": 1001})
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Error("different records must not share a digest")
	}
}

func TestDecode_KeepsDataMapKeys(t *testing.T) {
	type level struct {
		Count int `json:"count"`
	}
	type analytics struct {
		RiskDistribution map[string]int   `json:"riskDistribution"`
		Levels           map[string]level `json:"levels"`
		Details          map[string]any   `json:"details"`
		Record           map[string]any   `json:"record" canon:"record"`
	}

	body := `{
		"RiskDistribution": {"LOW": 3, "MEDIUM": 2, "HIGH": 1},
		"Levels": {"HIGH": {"Count": 7}},
		"Details": {"OldStatus": "DRAFT", "NEW": {"Status": "FILED"}},
		"Record": {"TIN": "123456789", "TaxType": "VAT"}
	}`

	var got analytics
	if err := Decode([]byte(body), &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := analytics{
		RiskDistribution: map[string]int{"LOW": 3, "MEDIUM": 2, "HIGH": 1},
		Levels:           map[string]level{"HIGH": {Count: 7}},
		Details: map[string]any{
			"OldStatus": "DRAFT",
			"NEW":       map[string]any{"Status": "FILED"},
		},
		Record: map[string]any{"tin": "123456789", "taxType": "VAT"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_EmbeddedAndSliceFields(t *testing.T) {
	type base struct {
		TIN string `json:"tin"`
	}
	type row struct {
		base
		Scores map[string]float64 `json:"scores"`
	}

	var got []row
	err := Decode([]byte(`[{"TIN":"1","Scores":{"FILING":0.5}},{"Tin":"2","scores":{}}]`), &got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 || got[0].TIN != "1" || got[1].TIN != "2" {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if got[0].Scores["FILING"] != 0.5 {
		t.Errorf("Scores = %v, want FILING key kept", got[0].Scores)
	}
}
