package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
)

// orderRecord maps the order aggregate header to the orders table.
type orderRecord struct {
	ID                  string                `gorm:"primaryKey;column:id"`
	BuyerID             string                `gorm:"column:buyer_id;index"`
	TotalPrice          decimal.Decimal       `gorm:"column:total_price;type:numeric(14,2)"`
	Status              string                `gorm:"column:status;type:varchar(32);index"`
	PaymentStatus       string                `gorm:"column:payment_status;type:varchar(32);index"`
	IsPaid              bool                  `gorm:"column:is_paid"`
	PaidAt              *time.Time            `gorm:"column:paid_at"`
	IsDelivered         bool                  `gorm:"column:is_delivered"`
	DeliveredAt         *time.Time            `gorm:"column:delivered_at"`
	TransactionID       string                `gorm:"column:transaction_id"`
	Version             int64                 `gorm:"column:version"`
	PendingCompensation []domain.LineItem     `gorm:"column:pending_compensation;serializer:json"`
	History             []domain.StatusChange `gorm:"column:history;serializer:json"`
	CreatedAt           time.Time             `gorm:"column:created_at;index;autoCreateTime:false"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (orderRecord) TableName() string { return "orders" }

// orderItemRecord is one line item; Position keeps the original item order.
type orderItemRecord struct {
	ID        int64           `gorm:"primaryKey;column:id"`
	OrderID   string          `gorm:"column:order_id;index"`
	Position  int             `gorm:"column:position"`
	ProductID string          `gorm:"column:product_id"`
	Quantity  int             `gorm:"column:quantity"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2)"`
}

func (orderItemRecord) TableName() string { return "order_items" }

type buyerRecord struct {
	ID    string `gorm:"primaryKey;column:id"`
	Name  string `gorm:"column:name"`
	Email string `gorm:"column:email"`
	Phone string `gorm:"column:phone"`
}

func (buyerRecord) TableName() string { return "buyers" }

type productRecord struct {
	ID        string    `gorm:"primaryKey;column:id"`
	Name      string    `gorm:"column:name"`
	Stock     int       `gorm:"column:stock"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (productRecord) TableName() string { return "products" }

func toRecords(order *domain.Order) (orderRecord, []orderItemRecord) {
	rec := orderRecord{
		ID:                  order.ID,
		BuyerID:             order.BuyerID,
		TotalPrice:          order.TotalPrice,
		Status:              string(order.Status),
		PaymentStatus:       string(order.PaymentStatus),
		IsPaid:              order.IsPaid,
		PaidAt:              order.PaidAt,
		IsDelivered:         order.IsDelivered,
		DeliveredAt:         order.DeliveredAt,
		TransactionID:       order.TransactionID,
		Version:             order.Version,
		PendingCompensation: order.PendingCompensation,
		History:             order.History,
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
	items := make([]orderItemRecord, 0, len(order.Items))
	for i, item := range order.Items {
		items = append(items, orderItemRecord{
			OrderID:   order.ID,
			Position:  i,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return rec, items
}

func (r orderRecord) toDomain(items []orderItemRecord, buyer *buyerRecord) *domain.Order {
	order := &domain.Order{
		ID:                  r.ID,
		BuyerID:             r.BuyerID,
		TotalPrice:          r.TotalPrice,
		Status:              domain.Status(r.Status),
		PaymentStatus:       domain.PaymentStatus(r.PaymentStatus),
		IsPaid:              r.IsPaid,
		PaidAt:              r.PaidAt,
		IsDelivered:         r.IsDelivered,
		DeliveredAt:         r.DeliveredAt,
		TransactionID:       r.TransactionID,
		Version:             r.Version,
		PendingCompensation: r.PendingCompensation,
		History:             r.History,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if len(items) > 0 {
		order.Items = make([]domain.LineItem, 0, len(items))
		for _, item := range items {
			order.Items = append(order.Items, domain.LineItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}
	}
	if buyer != nil {
		order.Buyer = &domain.BuyerSummary{ID: buyer.ID, Name: buyer.Name, Email: buyer.Email, Phone: buyer.Phone}
	}
	return order
}
