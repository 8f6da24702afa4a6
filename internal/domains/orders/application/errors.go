package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant or query rule.
	ErrInvalidInput = errors.New("invalid order input")
	// ErrNotFound signals the order id could not be resolved.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidState signals the operation is not allowed in the order's current state.
	ErrInvalidState = errors.New("order state does not allow this operation")
	// ErrConflict signals a concurrent modification of the same order.
	ErrConflict = errors.New("order was modified concurrently")
	// ErrDependencyFailure signals the store, inventory or another collaborator failed.
	ErrDependencyFailure = errors.New("order dependency failure")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrConflict), errors.Is(err, ErrDependencyFailure):
		return err
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPaymentStatus),
		errors.Is(err, domain.ErrInvalidLineItem),
		errors.Is(err, pipeline.ErrInvalidQuery):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, domain.ErrNotDeletable):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	case errors.Is(err, ports.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, ports.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", ErrDependencyFailure, err)
	}
}
