package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/iou-backend/internal/lock"
	repo "github.com/baharkarakas/iou-backend/internal/repository"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

var errIdemInFlight = fmt.Errorf("%w: a request with this idempotency key is in flight", ErrConcurrencyConflict)

// AmountScale is the number of fractional digits of the smallest currency unit.
const AmountScale = 2

// numeric(18,2)
var maxAmount = decimal.New(1, 16)

// Exponent and coefficient bounds checked before any rescaling; past them
// Truncate and Cmp would build huge powers of ten.
const (
	minExponent  = -AmountScale - 18
	maxExponent  = 18
	maxCoeffBits = 128
)

// ValidationError is returned before any store write. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// IsRetryable reports whether the caller may retry the whole operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrConcurrencyConflict)
}

// ParseAmount parses a user supplied amount and validates it.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, invalid("amount", "must be a number")
	}
	if err := validateAmount(d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

func validateAmount(d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return invalid("amount", "must be greater than zero")
	case d.Exponent() > maxExponent, d.Coefficient().BitLen() > maxCoeffBits:
		return invalid("amount", "too large")
	case d.Exponent() < minExponent:
		return invalid("amount", fmt.Sprintf("at most %d decimal places", AmountScale))
	case !d.Equal(d.Truncate(AmountScale)):
		return invalid("amount", fmt.Sprintf("at most %d decimal places", AmountScale))
	case d.GreaterThanOrEqual(maxAmount):
		return invalid("amount", "too large")
	}
	return nil
}

// storeErr classifies an error returned by a store call made under ctx.
func storeErr(ctx context.Context, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repo.ErrConflict):
		return fmt.Errorf("%s: %w: %w", op, ErrConcurrencyConflict, err)
	case ctx.Err() != nil:
		// the caller went away; not a store fault
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func lockErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, lock.ErrTimeout) {
		return fmt.Errorf("%w: pair is busy", ErrConcurrencyConflict)
	}
	return fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
}

// errKind is the label used for failure metrics and logs.
func errKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "internal"
}
