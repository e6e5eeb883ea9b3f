package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/server/api"
	"github.com/tra-portal/tra-portal/internal/services"
)

var taxpayerStatuses = []string{services.TaxpayerActive, services.TaxpayerInactive, services.TaxpayerSuspended}

// HandleRegisterTaxpayer registers a taxpayer.
//
//	POST /api/taxpayers
//
// The TIN must contain exactly 9 digits; a TIN that is already registered is a 409.
func HandleRegisterTaxpayer(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reg services.TaxpayerRegistration
		if err := decodeCanonical(r, &reg); err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		tin, err := services.NormalizeTIN(reg.TIN)
		if err != nil {
			api.RespondWithError(w, r, api.NewInvalidTINError("TIN must contain exactly 9 digits"))
			return
		}
		missing := map[string]string{}
		if strings.TrimSpace(reg.Name) == "" {
			missing["name"] = "Name is required"
		}
		if strings.TrimSpace(reg.TaxpayerType) == "" {
			missing["taxpayerType"] = "Taxpayer type is required"
		}
		if len(missing) > 0 {
			api.RespondWithError(w, r, api.NewValidationError("Invalid taxpayer registration").WithDetails(missing))
			return
		}

		if _, err := st.repo.Get(r.Context(), database.KindTaxpayer, tin); err == nil {
			api.RespondWithError(w, r, api.NewConflictError(fmt.Sprintf("Taxpayer %s is already registered", tin)))
			return
		} else if !errors.Is(err, database.ErrNotFound) {
			api.RespondWithError(w, r, err)
			return
		}

		t := services.Taxpayer{
			TIN:                        tin,
			Name:                       strings.TrimSpace(reg.Name),
			TaxpayerType:               strings.TrimSpace(reg.TaxpayerType),
			Region:                     reg.Region,
			Sector:                     reg.Sector,
			Status:                     services.TaxpayerActive,
			Email:                      reg.Email,
			Phone:                      reg.Phone,
			Address:                    reg.Address,
			NationalID:                 reg.NationalID,
			BusinessRegistrationNumber: reg.BusinessRegistrationNumber,
			ComplianceScore:            100,
			RegisteredAt:               st.now(),
		}

		tx, err := st.ledger.Record(r.Context(), "REGISTER", "taxpayer", t.TIN, t)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		t.BlockchainTxID = tx.TxID

		if err := st.save(r.Context(), database.KindTaxpayer, t.TIN, "", t, t.RegisteredAt); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		st.audit(r, "REGISTER_TAXPAYER", "taxpayer", t.TIN, map[string]any{"name": t.Name})

		api.RespondWithData(w, http.StatusCreated, t, tx.TxID)
	}
}

// HandleListTaxpayers lists taxpayers.
//
//	GET /api/taxpayers?status&taxpayerType&region&search&page&limit
//
// search matches the name or TIN, ignoring case.
func HandleListTaxpayers(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := loadAll[services.Taxpayer](r.Context(), st, database.KindTaxpayer)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))
		items := filter(all, func(t services.Taxpayer) bool {
			if search != "" && !strings.Contains(strings.ToLower(t.Name), search) && !strings.Contains(t.TIN, search) {
				return false
			}
			return matches(r, "status", t.Status) &&
				matches(r, "taxpayerType", t.TaxpayerType) &&
				matches(r, "region", t.Region)
		})

		pageItems, p := page(r, items)
		api.RespondWithList(w, pageItems, p)
	}
}

// HandleGetTaxpayer returns one taxpayer.
//
//	GET /api/taxpayers/{tin}
func HandleGetTaxpayer(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := load[services.Taxpayer](r.Context(), st, database.KindTaxpayer, chi.URLParam(r, "tin"), "Taxpayer")
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		api.RespondWithData(w, http.StatusOK, t, "")
	}
}

// HandleUpdateTaxpayer changes a taxpayer's details.
//
//	PUT /api/taxpayers/{tin}
//
// Fields not in the body are left unchanged. The TIN cannot be changed.
func HandleUpdateTaxpayer(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tin := chi.URLParam(r, "tin")
		t, err := load[services.Taxpayer](r.Context(), st, database.KindTaxpayer, tin, "Taxpayer")
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		fields, err := decodeFields(r)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		targets := map[string]*string{
			"name":         &t.Name,
			"taxpayerType": &t.TaxpayerType,
			"region":       &t.Region,
			"sector":       &t.Sector,
			"status":       &t.Status,
			"email":        &t.Email,
			"phone":        &t.Phone,
			"address":      &t.Address,
		}
		changes := map[string]any{}
		for name, v := range fields {
			target, ok := targets[name]
			if !ok {
				continue
			}
			s, ok := v.(string)
			if !ok {
				api.RespondWithError(w, r, api.NewValidationError(fmt.Sprintf("%s must be a string", name)))
				return
			}
			*target = strings.TrimSpace(s)
			changes[name] = *target
		}
		if len(changes) == 0 {
			api.RespondWithError(w, r, api.NewValidationError("No updatable fields in request"))
			return
		}
		if !slices.Contains(taxpayerStatuses, t.Status) {
			api.RespondWithError(w, r, api.NewValidationError("Invalid status").
				WithDetails(map[string]any{"status": t.Status, "allowed": taxpayerStatuses}))
			return
		}
		if t.Name == "" {
			api.RespondWithError(w, r, api.NewValidationError("Name cannot be empty"))
			return
		}

		t.BlockchainTxID = ""
		tx, err := st.ledger.Record(r.Context(), "UPDATE", "taxpayer", t.TIN, t)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		t.BlockchainTxID = tx.TxID

		if err := st.save(r.Context(), database.KindTaxpayer, t.TIN, "", t, t.RegisteredAt); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		st.audit(r, "UPDATE_TAXPAYER", "taxpayer", t.TIN, changes)

		api.RespondWithData(w, http.StatusOK, t, tx.TxID)
	}
}
