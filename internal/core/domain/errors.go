package domain

import "errors"

// Error taxonomy shared by every ledger service. Callers wrap these with
// context and match them with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrMovementLimitReached = errors.New("monthly movement limit reached")
	ErrWithdrawalNotAllowed = errors.New("withdrawal not allowed")
	ErrInvalidOperation     = errors.New("invalid operation")
	ErrNotEligible          = errors.New("not eligible")
	ErrServiceUnavailable   = errors.New("service unavailable")
)

var rejections = []error{
	ErrNotFound,
	ErrInvalidArgument,
	ErrInsufficientFunds,
	ErrMovementLimitReached,
	ErrWithdrawalNotAllowed,
	ErrInvalidOperation,
	ErrNotEligible,
}

// IsRejection reports whether err is a business outcome rather than an
// infrastructure failure. Saga steps publish rejections on their -failed
// channel and let infrastructure failures be redelivered.
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
