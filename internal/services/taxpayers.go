package services

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/tra-portal/tra-portal/internal/httpclient"
)

const taxpayersPath = "/api/taxpayers"

// TINLength is the number of digits in a Taxpayer Identification Number.
const TINLength = 9

// NormalizeTIN strips everything but digits from tin ("123-456-789" becomes
// "123456789") and checks that exactly TINLength digits remain.
func NormalizeTIN(tin string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		if unicode.IsDigit(r) {
			// non-ASCII digits are not valid in a TIN
			return 'x'
		}
		return -1
	}, tin)

	if len(digits) != TINLength || strings.ContainsRune(digits, 'x') {
		return "", httpclient.NewValidationError(httpclient.CodeInvalidTIN, taxpayersPath,
			"TIN must contain exactly 9 digits")
	}
	return digits, nil
}

// RegisterTaxpayer registers a new taxpayer. The TIN is normalized and
// checked before anything is sent.
func (s *Service) RegisterTaxpayer(ctx context.Context, reg TaxpayerRegistration) (*Result[Taxpayer], error) {
	tin, err := NormalizeTIN(reg.TIN)
	if err != nil {
		return nil, err
	}
	reg.TIN = tin
	return write[Taxpayer](ctx, s, http.MethodPost, taxpayersPath, "", reg)
}

// ListTaxpayers returns a page of taxpayers.
// Filters: status, taxpayerType, region, search, page, limit.
func (s *Service) ListTaxpayers(ctx context.Context, f Filters) (*List[Taxpayer], error) {
	q := buildQuery(f, "status", "taxpayerType", "region", "search", "page", "limit")
	return getList[Taxpayer](ctx, s, taxpayersPath, "", q)
}

// GetTaxpayer returns the taxpayer with the given TIN.
func (s *Service) GetTaxpayer(ctx context.Context, tin string) (*Taxpayer, error) {
	var t Taxpayer
	if err := s.get(ctx, taxpayersPath+"/"+escape(tin), taxpayersPath+"/{tin}", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTaxpayer changes the given fields of a taxpayer.
// Recognized fields: name, taxpayerType, region, sector, status, email, phone, address.
func (s *Service) UpdateTaxpayer(ctx context.Context, tin string, patch Payload) (*Result[Taxpayer], error) {
	body := pick(patch, "name", "taxpayerType", "region", "sector", "status", "email", "phone", "address")
	return write[Taxpayer](ctx, s, http.MethodPut, taxpayersPath+"/"+escape(tin), taxpayersPath+"/{tin}", body)
}
