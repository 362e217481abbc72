package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"leadgenBack/internal/billing"
	"leadgenBack/internal/enrichment"
	"leadgenBack/internal/models"
	"leadgenBack/internal/payouts"
)

const maxJSONBody = 1 << 20

var validate = validator.New()

// ErrorLogger receives unexpected handler errors.
type ErrorLogger interface {
	Errorf(string, ...interface{})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a bounded JSON body into dst and runs its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid body: %s", describeValidation(verrs))
		}
		var inv *validator.InvalidValidationError
		if !errors.As(err, &inv) {
			return err
		}
	}
	return nil
}

func describeValidation(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// errorStatus maps service and vendor errors to an HTTP status. Vendor 4xx answers are
// passed through; any other vendor failure is a bad gateway.
func errorStatus(err error) int {
	var stripeErr *billing.StripeError
	var apiErr *enrichment.APIError
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, payouts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateLead), errors.Is(err, models.ErrDuplicateRecord),
		errors.Is(err, models.ErrListingUnavailable), errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, payouts.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidUpload),
		errors.Is(err, models.ErrOwnListing):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrFeatureDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &stripeErr):
		return vendorStatus(stripeErr.StatusCode)
	case errors.As(err, &apiErr):
		return vendorStatus(apiErr.StatusCode)
	}
	return http.StatusInternalServerError
}

// vendorStatus passes client errors of an upstream API through, except auth failures,
// which mean our own credentials were rejected.
func vendorStatus(code int) int {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return http.StatusBadGateway
	case code >= 400 && code < 500:
		return code
	}
	return http.StatusBadGateway
}

// writeServiceError answers with the mapped status. Internal errors are logged and
// hidden from the caller.
func writeServiceError(w http.ResponseWriter, logger ErrorLogger, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Errorf("handlers: %v", err)
		}
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, publicMessage(err))
}

// publicMessage strips the package prefix of sentinel errors.
func publicMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{"models: ", "payouts: "} {
		msg = strings.ReplaceAll(msg, prefix, "")
	}
	return msg
}

// requirePrincipal answers 401 when no caller is attached.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return p, ok
}
