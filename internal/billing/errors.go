package billing

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v80"
)

// ErrInvalidSignature is returned when a webhook payload fails Stripe signature checks.
var ErrInvalidSignature = errors.New("billing: invalid webhook signature")

// StripeError is a failed Stripe API call.
type StripeError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("stripe: %d: %s", e.StatusCode, e.Message)
}

func wrapStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Errorf("%s: %w", op, &StripeError{StatusCode: se.HTTPStatusCode, Code: string(se.Code), Message: se.Msg})
	}
	return fmt.Errorf("%s: %w", op, err)
}
