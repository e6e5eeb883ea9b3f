package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/tra-portal/tra-portal/internal/httpclient"
	"github.com/tra-portal/tra-portal/internal/logger"
	"github.com/tra-portal/tra-portal/internal/retry"
)

var testPolicy = retry.Policy{
	MaxAttempts: 3,
	Base:        time.Millisecond,
	Retryable:   httpclient.IsRetryable,
}

func newTestService(t *testing.T, handler http.Handler, policy retry.Policy) *Service {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := httpclient.New(httpclient.Config{
		BaseURL: ts.URL,
		Timeout: 5 * time.Second,
		Logger:  logger.Discard(),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return New(client, policy, logger.Discard())
}

// countingSender records calls without touching the network.
type countingSender struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSender) Send(context.Context, httpclient.Request) (*httpclient.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &httpclient.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
}

func TestNormalizeTIN(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"123-456-789", "123456789", false},
		{"123456789", "123456789", false},
		{" 123 456 789 ", "123456789", false},
		{"TIN:123.456.789", "123456789", false},
		{"12345", "", true},
		{"1234567890", "", true},
		{"", "", true},
		{"١٢٣٤٥٦٧٨٩", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTIN(tt.in)
			if tt.wantErr {
				if httpclient.CodeOf(err) != httpclient.CodeInvalidTIN {
					t.Errorf("NormalizeTIN(%q) error code = %q, want %q", tt.in, httpclient.CodeOf(err), httpclient.CodeInvalidTIN)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeTIN(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegisterTaxpayer_InvalidTINNeverSent(t *testing.T) {
	sender := &countingSender{}
	svc := New(sender, testPolicy, logger.Discard())

	_, err := svc.RegisterTaxpayer(context.Background(), TaxpayerRegistration{TIN: "12345", Name: "Acme"})

	if httpclient.CodeOf(err) != httpclient.CodeInvalidTIN {
		t.Fatalf("error code = %q, want %q", httpclient.CodeOf(err), httpclient.CodeInvalidTIN)
	}
	if sender.calls != 0 {
		t.Errorf("expected no request to be sent, got %d", sender.calls)
	}
}

func TestRegisterTaxpayer(t *testing.T) {
	router := chi.NewRouter()
	router.Post("/api/taxpayers", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if got := string(body); got != `{"tin":"123456789","name":"Acme Ltd","taxpayerType":"COMPANY"}` {
			t.Errorf("unexpected body %s", got)
		}
		if r.Header.Get(httpclient.HeaderIdempotencyKey) == "" {
			t.Error("POST requests must carry an idempotency key")
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"Tin":"123456789","Name":"Acme Ltd","TaxpayerType":"COMPANY","Status":"ACTIVE"},"blockchainTxId":"0xfeed"}`))
	})
	svc := newTestService(t, router, testPolicy)

	res, err := svc.RegisterTaxpayer(context.Background(), TaxpayerRegistration{
		TIN:          "123-456-789",
		Name:         "Acme Ltd",
		TaxpayerType: "COMPANY",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Taxpayer{TIN: "123456789", Name: "Acme Ltd", TaxpayerType: "COMPANY", Status: TaxpayerActive}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Errorf("taxpayer mismatch (-want +got):\n%s", diff)
	}
	if res.BlockchainTxID != "0xfeed" {
		t.Errorf("BlockchainTxID = %q, want 0xfeed", res.BlockchainTxID)
	}
	if res.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestSend_RetriesTransientFailuresWithStableIdempotencyKey(t *testing.T) {
	var mu sync.Mutex
	var keys []string

	router := chi.NewRouter()
	router.Post("/api/vat/transactions", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get(httpclient.HeaderIdempotencyKey))
		n := len(keys)
		mu.Unlock()

		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"busy"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"v-1","tin":"123456789","netAmount":"1000.50"}}`))
	})
	svc := newTestService(t, router, testPolicy)

	res, err := svc.RecordVATTransaction(context.Background(), VATTransactionInput{TIN: "123456789", NetAmount: 1000.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Data.NetAmount != 1000.5 {
		t.Errorf("NetAmount = %v, want 1000.5", res.Data.NetAmount)
	}
	if len(keys) != 3 {
		t.Fatalf("attempts = %d, want 3", len(keys))
	}
	if keys[0] == "" || keys[0] != keys[1] || keys[1] != keys[2] {
		t.Errorf("idempotency key must be the same on every attempt, got %v", keys)
	}
}

func TestSend_RetryClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		policy    retry.Policy
		wantCalls int
	}{
		{"4xx not retried by default", http.StatusBadRequest, testPolicy, 1},
		{"5xx retried", http.StatusInternalServerError, testPolicy, 3},
		{"4xx retried with retry-all", http.StatusBadRequest, retry.Policy{MaxAttempts: 3, Base: time.Millisecond, Retryable: retry.RetryAll}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			calls := 0
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				calls++
				mu.Unlock()
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"rejected","code":"REJECTED"}}`))
			})
			svc := newTestService(t, handler, tt.policy)

			_, err := svc.GetBlockchainStats(context.Background())

			var apiErr *httpclient.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Message != "rejected" || apiErr.Code != "REJECTED" {
				t.Errorf("unexpected error %+v", apiErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	var nilPtr *string
	region := "Arusha"
	q := buildQuery(Filters{
		"status":  "ACTIVE",
		"region":  &region,
		"search":  "",
		"page":    2,
		"limit":   nil,
		"unknown": "dropped",
		"sector":  nilPtr,
	}, "status", "region", "search", "page", "limit", "sector")

	want := url.Values{"status": {"ACTIVE"}, "region": {"Arusha"}, "page": {"2"}}
	if diff := cmp.Diff(want, q); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
}

func TestPick(t *testing.T) {
	got := pick(Payload{"amount": 10.0, "penalties": nil, "hacker": true}, AssessmentFields...)
	want := Payload{"amount": 10.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pick mismatch (-want +got):\n%s", diff)
	}
}

func TestListTaxpayers(t *testing.T) {
	var gotQuery url.Values
	router := chi.NewRouter()
	router.Get("/api/taxpayers", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{
			"data": [
				{"TIN": "123456789", "Name": "Acme Ltd", "Status": "ACTIVE"},
				{"tin": "987654321", "name": "Beta Traders", "status": "SUSPENDED"}
			],
			"pagination": {"total": 42, "page": 2, "limit": 2}
		}`))
	})
	svc := newTestService(t, router, testPolicy)

	list, err := svc.ListTaxpayers(context.Background(), Filters{"region": "Dodoma", "page": 2, "limit": 2, "bogus": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery.Get("bogus") != "" {
		t.Error("unrecognized filters must not be sent")
	}
	if gotQuery.Get("region") != "Dodoma" || gotQuery.Get("page") != "2" {
		t.Errorf("unexpected query %v", gotQuery)
	}
	if list.Total != 42 || list.Page != 2 || list.Limit != 2 {
		t.Errorf("pagination = %d/%d/%d, want 42/2/2", list.Total, list.Page, list.Limit)
	}
	if len(list.Items) != 2 || list.Items[0].TIN != "123456789" || list.Items[1].Name != "Beta Traders" {
		t.Errorf("unexpected items %+v", list.Items)
	}
}

func TestDecodeList_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantLen   int
		wantTotal int
		wantErr   bool
	}{
		{"bare array", `[{"id":"1"},{"id":"2"}]`, 2, 2, false},
		{"data array", `{"data":[{"id":"1"}],"total":10}`, 1, 10, false},
		{"data items", `{"data":{"items":[{"id":"1"}],"total":5}}`, 1, 5, false},
		{"empty body", ``, 0, 0, false},
		{"pascal envelope", `{"Data":{"Items":[{"Id":"1"},{"Id":"2"}],"Pagination":{"Total":7}}}`, 2, 7, false},
		{"object without list", `{"data":{"id":"1"}}`, 0, 0, true},
		{"invalid json", `{"data":[`, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := decodeList[Audit]([]byte(tt.body), "/api/compliance/audits")
			if tt.wantErr {
				if httpclient.CodeOf(err) != httpclient.CodeDecode {
					t.Errorf("error code = %q, want %q", httpclient.CodeOf(err), httpclient.CodeDecode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(list.Items) != tt.wantLen || list.Total != tt.wantTotal {
				t.Errorf("got %d items, total %d; want %d, %d", len(list.Items), list.Total, tt.wantLen, tt.wantTotal)
			}
		})
	}
}

func TestGetTaxAssessment_NormalizesCasing(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/api/tax-assessments/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{
			"Id": "` + chi.URLParam(r, "id") + `",
			"Tin": "123456789",
			"TaxType": "VAT",
			"Year": "2025",
			"Quarter": 2,
			"Period": "2025-Q2",
			"Amount": "1500000",
			"Penalties": 5000,
			"Interest": "",
			"DueDate": "2025-07-31",
			"BlockchainTxId": "0xabc"
		}}`))
	})
	svc := newTestService(t, router, testPolicy)

	a, err := svc.GetTaxAssessment(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &Assessment{
		ID:             "a-1",
		TIN:            "123456789",
		TaxType:        "VAT",
		Year:           2025,
		Quarter:        2,
		Period:         "2025-Q2",
		Amount:         1500000,
		Penalties:      5000,
		DueDate:        "2025-07-31",
		BlockchainTxID: "0xabc",
	}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("assessment mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateTaxAssessment(t *testing.T) {
	var gotMethod, gotBody string
	router := chi.NewRouter()
	router.Patch("/api/tax-assessments/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{"data":{"Id":"a-1","Penalties":0}}`))
	})
	svc := newTestService(t, router, testPolicy)

	_, err := svc.UpdateTaxAssessment(context.Background(), "a-1", Payload{"penalties": 0.0, "createdBy": "me"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if gotBody != `{"penalties":0}` {
		t.Errorf("body = %s, want only the recognized field", gotBody)
	}

	if _, err := svc.UpdateTaxAssessment(context.Background(), "a-1", Payload{"createdBy": "me"}); httpclient.CodeOf(err) != httpclient.CodeValidation {
		t.Errorf("update without recognized fields should fail validation, got %v", err)
	}
}

func TestDeleteTaxAssessment(t *testing.T) {
	deleted := ""
	router := chi.NewRouter()
	router.Delete("/api/tax-assessments/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted = chi.URLParam(r, "id")
		w.WriteHeader(http.StatusNoContent)
	})
	svc := newTestService(t, router, testPolicy)

	if err := svc.DeleteTaxAssessment(context.Background(), "a-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "a-9" {
		t.Errorf("deleted = %q, want a-9", deleted)
	}
}

func TestGetComplianceScore(t *testing.T) {
	t.Run("primary endpoint", func(t *testing.T) {
		router := chi.NewRouter()
		router.Get("/api/compliance/score/{tin}", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"Tin":"123456789","Score":91.5,"Rating":"A"}}`))
		})
		svc := newTestService(t, router, testPolicy)

		score, err := svc.GetComplianceScore(context.Background(), "123456789")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if score.Score != 91.5 || score.Rating != "A" {
			t.Errorf("unexpected score %+v", score)
		}
	})

	t.Run("falls back to legacy endpoint", func(t *testing.T) {
		legacyCalled := false
		router := chi.NewRouter()
		router.Get("/api/compliance/score/{tin}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not found"}`))
		})
		router.Get("/api/compliance/{tin}/score", func(w http.ResponseWriter, r *http.Request) {
			legacyCalled = true
			_, _ = w.Write([]byte(`{"tin":"` + chi.URLParam(r, "tin") + `","score":72,"rating":"C"}`))
		})
		svc := newTestService(t, router, testPolicy)

		score, err := svc.GetComplianceScore(context.Background(), "123456789")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !legacyCalled {
			t.Error("legacy endpoint was not called")
		}
		if score.TIN != "123456789" || score.Score != 72 {
			t.Errorf("unexpected score %+v", score)
		}
	})

	t.Run("both fail", func(t *testing.T) {
		router := chi.NewRouter()
		router.NotFound(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"` + r.URL.Path + `"}}`))
		})
		svc := newTestService(t, router, testPolicy)

		_, err := svc.GetComplianceScore(context.Background(), "123456789")
		if httpclient.Message(err) != "/api/compliance/123456789/score" {
			t.Errorf("expected the legacy endpoint's error, got %v", err)
		}
	})
}

func TestGetComplianceAnalytics_KeepsRiskLevels(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/api/compliance/analytics", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Data":{
			"Period": "2025-Q2",
			"ComplianceRate": 87.5,
			"RiskDistribution": {"LOW": 3, "MEDIUM": "2", "HIGH": 1}
		}}`))
	})
	svc := newTestService(t, router, testPolicy)

	a, err := svc.GetComplianceAnalytics(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &Analytics{
		Period:           "2025-Q2",
		ComplianceRate:   87.5,
		RiskDistribution: map[string]Int{"LOW": 3, "MEDIUM": 2, "HIGH": 1},
	}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("analytics mismatch (-want +got):\n%s", diff)
	}
}

func TestGetComplianceScore_KeepsFactorNames(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/api/compliance/score/{tin}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"TIN":"123456789","Tin":"987654321","Score":80,"Factors":{"FILING_TIMELINESS":0.9,"PaymentHistory":0.7}}}`))
	})
	svc := newTestService(t, router, testPolicy)

	score, err := svc.GetComplianceScore(context.Background(), "123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.TIN != "987654321" {
		t.Errorf("TIN = %q, want the Tin alias", score.TIN)
	}
	want := map[string]float64{"FILING_TIMELINESS": 0.9, "PaymentHistory": 0.7}
	if diff := cmp.Diff(want, score.Factors); diff != "" {
		t.Errorf("factors mismatch (-want +got):\n%s", diff)
	}
}

func TestExportAuditLogs(t *testing.T) {
	var gotContentType string
	var gotFormat string
	router := chi.NewRouter()
	router.Get("/api/audit-logs/export", func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotFormat = r.URL.Query().Get("format")
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-2025.csv"`)
		_, _ = w.Write([]byte("id,action\n"))
	})
	svc := newTestService(t, router, testPolicy)

	exp, err := svc.ExportAuditLogs(context.Background(), Filters{"format": "csv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotContentType != "" {
		t.Errorf("export request must not set Content-Type, got %q", gotContentType)
	}
	if gotFormat != "csv" {
		t.Errorf("format = %q, want csv", gotFormat)
	}
	if exp.Filename != "audit-2025.csv" || exp.ContentType != "text/csv" || string(exp.Data) != "id,action\n" {
		t.Errorf("unexpected export %+v", exp)
	}
}

func TestVerificationResult_Matches(t *testing.T) {
	record := map[string]any{"Tin": "123456789", "Amount": 1000}
	hash, err := RecordDigest(map[string]any{"amount": 1000, "tin": "123456789"})
	if err != nil {
		t.Fatal(err)
	}

	v := &VerificationResult{TxID: "0x1", Verified: true, DataHash: hash}
	ok, err := v.Matches(record)
	if err != nil || !ok {
		t.Errorf("Matches = (%v, %v), want (true, nil)", ok, err)
	}

	ok, _ = v.Matches(map[string]any{"tin": "123456789", "amount": 999})
	if ok {
		t.Error("a modified record must not match")
	}

	ok, _ = (&VerificationResult{}).Matches(record)
	if ok {
		t.Error("a result without a hash never matches")
	}
}

func TestInterop_RequiresIdentifiers(t *testing.T) {
	sender := &countingSender{}
	svc := New(sender, testPolicy, logger.Discard())

	if _, err := svc.VerifyNIDA(context.Background(), "  "); httpclient.CodeOf(err) != httpclient.CodeValidation {
		t.Errorf("VerifyNIDA: got %v, want validation error", err)
	}
	if _, err := svc.SyncBRELA(context.Background(), ""); httpclient.CodeOf(err) != httpclient.CodeValidation {
		t.Errorf("SyncBRELA: got %v, want validation error", err)
	}
	if sender.calls != 0 {
		t.Errorf("expected no requests, got %d", sender.calls)
	}
}
