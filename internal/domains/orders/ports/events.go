package ports

import (
	"context"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
)

// EventSink records business events. Emit is fire-and-forget: implementations
// handle their own failures and never block the caller on them.
type EventSink interface {
	Emit(ctx context.Context, event domain.Event)
}
