package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/tra-portal/tra-portal/internal/httpclient"
)

// Integrations with other government systems: NIDA (national identity),
// TISS (interbank settlement) and BRELA (business registrations). The backend
// proxies all three.
const integrationsPath = "/api/integrations"

// VerifyNIDA checks a national id against the national identity register.
func (s *Service) VerifyNIDA(ctx context.Context, nationalID string) (*Result[NIDAVerification], error) {
	nationalID = strings.TrimSpace(nationalID)
	if nationalID == "" {
		return nil, httpclient.NewValidationError(httpclient.CodeValidation, integrationsPath+"/nida/verify", "national id is required")
	}
	body := Payload{"nationalId": nationalID}
	return write[NIDAVerification](ctx, s, http.MethodPost, integrationsPath+"/nida/verify", "", body)
}

// SyncTISS pushes a payment to the settlement system.
// Recognized fields: tin, paymentReference, amount, currency, paymentDate.
func (s *Service) SyncTISS(ctx context.Context, p Payload) (*Result[SyncResult], error) {
	body := pick(p, "tin", "paymentReference", "amount", "currency", "paymentDate")
	return write[SyncResult](ctx, s, http.MethodPost, integrationsPath+"/tiss/sync", "", body)
}

// SyncBRELA pulls a business registration into the taxpayer register.
func (s *Service) SyncBRELA(ctx context.Context, registrationNumber string) (*Result[SyncResult], error) {
	registrationNumber = strings.TrimSpace(registrationNumber)
	if registrationNumber == "" {
		return nil, httpclient.NewValidationError(httpclient.CodeValidation, integrationsPath+"/brela/sync", "registration number is required")
	}
	body := Payload{"registrationNumber": registrationNumber}
	return write[SyncResult](ctx, s, http.MethodPost, integrationsPath+"/brela/sync", "", body)
}
