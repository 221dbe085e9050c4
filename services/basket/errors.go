package basket

import (
	"errors"
	"fmt"
)

// Failure is an expected outcome that the storefront receives as state "error".
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

var (
	ErrBasketNotFound         = &Failure{Message: "No matching open basket found"}
	ErrPositionNotFound       = &Failure{Message: "No matching position found in basket"}
	ErrCatalogIncomplete      = &Failure{Message: "Shop configuration incomplete"}
	ErrPaymentSessionMismatch = &Failure{Message: "Payment session does not match basket"}
	ErrUnknownDeliveryMethod  = &Failure{Message: "Unknown delivery method"}
	ErrUnknownPaymentMethod   = &Failure{Message: "Unknown payment method"}
)

func catalogIncomplete(what string) error {
	return fmt.Errorf("%w: %s", ErrCatalogIncomplete, what)
}

// AsFailure reports whether err is, or wraps, a Failure.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}
