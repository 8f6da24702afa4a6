package ordershttp

import (
	"errors"
	"fmt"

	"github.com/Apurer/go-order-admin/internal/domains/orders/adapters/http/mapper"
	"github.com/Apurer/go-order-admin/internal/domains/orders/application"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
	apierrors "github.com/Apurer/go-order-admin/internal/shared/errors"
)

// NewResponder returns a problem responder that understands order service errors.
func NewResponder() *apierrors.ChainedResponder {
	return apierrors.NewChainedResponder("", MapOrderError)
}

// MapOrderError translates application error kinds into problem details.
func MapOrderError(err error) (apierrors.ProblemDetail, bool) {
	var qerr *pipeline.QueryError
	switch {
	case errors.As(err, &qerr):
		return apierrors.NewValidationProblem(queryFieldErrors(qerr)), true
	case errors.Is(err, application.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(err.Error()), true
	case errors.Is(err, application.ErrNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()).WithExtension("resourceType", "order"), true
	case errors.Is(err, application.ErrInvalidState):
		return apierrors.ErrInvalidState.WithDetail(err.Error()), true
	case errors.Is(err, application.ErrConflict):
		return apierrors.ErrConflict.WithDetail(err.Error()), true
	case errors.Is(err, application.ErrDependencyFailure):
		return apierrors.ErrDependency.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}

func queryFieldErrors(qerr *pipeline.QueryError) map[string]string {
	fields := make(map[string]string, len(qerr.Fields))
	for field, rule := range qerr.Fields {
		name, ok := mapper.QueryFields[field]
		if !ok {
			name = field
		}
		fields[name] = fmt.Sprintf("failed %s", rule)
	}
	return fields
}
