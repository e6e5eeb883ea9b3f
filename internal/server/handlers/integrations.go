package handlers

import (
	"math"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/server/api"
	"github.com/tra-portal/tra-portal/internal/services"
)

// NationalIDLength is the number of digits in a NIDA national identification number.
const NationalIDLength = 20

const (
	syncCompleted = "COMPLETED"
	syncNoMatch   = "NO_MATCH"
)

// HandleVerifyNIDA checks a national ID against the registered taxpayers.
//
//	POST /api/integrations/nida/verify
//
// An ID is verified when it has 20 digits and belongs to a registered taxpayer.
func HandleVerifyNIDA(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			NationalID string `json:"nationalId"`
		}
		if err := decodeCanonical(r, &req); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		id := strings.TrimSpace(req.NationalID)
		if id == "" {
			api.RespondWithError(w, r, api.NewValidationError("nationalId is required"))
			return
		}

		res := services.NIDAVerification{NationalID: id}
		if len(id) == NationalIDLength && strings.IndexFunc(id, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
			taxpayers, err := loadAll[services.Taxpayer](r.Context(), st, database.KindTaxpayer)
			if err != nil {
				api.RespondWithError(w, r, err)
				return
			}
			for _, t := range taxpayers {
				if t.NationalID == id {
					res.Verified = true
					res.FullName = t.Name
					break
				}
			}
		}
		st.audit(r, "VERIFY_NIDA", "integration", "nida", map[string]any{"verified": res.Verified})
		api.RespondWithData(w, http.StatusOK, res, "")
	}
}

// HandleSyncTISS applies a TISS payment to the taxpayer's outstanding assessments.
//
//	POST /api/integrations/tiss/sync
//
// The payment settles the oldest unpaid assessment of the same amount.
func HandleSyncTISS(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TIN              string          `json:"tin"`
			PaymentReference string          `json:"paymentReference"`
			Amount           services.Amount `json:"amount"`
			Currency         string          `json:"currency"`
			PaymentDate      string          `json:"paymentDate"`
		}
		if err := decodeCanonical(r, &req); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		if strings.TrimSpace(req.PaymentReference) == "" {
			api.RespondWithError(w, r, api.NewValidationError("paymentReference is required"))
			return
		}
		if req.Amount <= 0 {
			api.RespondWithError(w, r, api.NewValidationError("amount must be greater than 0"))
			return
		}

		assessments, err := loadAll[Assessment](r.Context(), st, database.KindAssessment)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		res := services.SyncResult{System: "TISS", Status: syncNoMatch, Reference: req.PaymentReference, SyncedAt: st.now()}
		// loadAll is newest first; walk backwards for the oldest match
		for i := len(assessments) - 1; i >= 0; i-- {
			a := assessments[i]
			if a.TIN != req.TIN || a.Status == services.AssessmentPaid || math.Abs(a.Amount-float64(req.Amount)) > 0.005 {
				continue
			}
			if req.Currency != "" && !strings.EqualFold(req.Currency, a.Currency) {
				continue
			}

			before := a
			a.Status = services.AssessmentPaid
			a.UpdatedAt = st.now()
			a.BlockchainTxID = ""
			tx, err := st.ledger.Record(r.Context(), "PAYMENT", "tax_assessment", a.ID, a)
			if err != nil {
				api.RespondWithError(w, r, err)
				return
			}
			a.BlockchainTxID = tx.TxID
			if err := st.save(r.Context(), database.KindAssessment, a.ID, "", a, a.CreatedAt); err != nil {
				api.RespondWithError(w, r, err)
				return
			}
			st.recordHistory(r, a.ID, "UPDATED", assessmentChanges(before, a), tx.TxID)

			res.Status = syncCompleted
			res.RecordsSynced = 1
			break
		}

		st.audit(r, "SYNC_TISS", "integration", req.PaymentReference, map[string]any{"tin": req.TIN, "status": res.Status})
		api.RespondWithData(w, http.StatusOK, res, "")
	}
}

// HandleSyncBRELA refreshes taxpayers registered under a BRELA business registration number.
//
//	POST /api/integrations/brela/sync
func HandleSyncBRELA(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RegistrationNumber string `json:"registrationNumber"`
		}
		if err := decodeCanonical(r, &req); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		number := strings.TrimSpace(req.RegistrationNumber)
		if number == "" {
			api.RespondWithError(w, r, api.NewValidationError("registrationNumber is required"))
			return
		}

		taxpayers, err := loadAll[services.Taxpayer](r.Context(), st, database.KindTaxpayer)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		res := services.SyncResult{System: "BRELA", Status: syncNoMatch, Reference: uuid.NewString(), SyncedAt: st.now()}
		for _, t := range taxpayers {
			if strings.EqualFold(t.BusinessRegistrationNumber, number) {
				res.RecordsSynced++
			}
		}
		if res.RecordsSynced > 0 {
			res.Status = syncCompleted
		}

		st.audit(r, "SYNC_BRELA", "integration", number, map[string]any{"recordsSynced": int(res.RecordsSynced)})
		api.RespondWithData(w, http.StatusOK, res, "")
	}
}
