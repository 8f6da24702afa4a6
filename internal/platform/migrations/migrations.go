package migrations

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Run applies the order administration schema.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&buyerRecord{},
		&productRecord{},
		&orderRecord{},
		&orderItemRecord{},
	)
}

// Buyer schema mirrors the buyer summary joined onto orders.
type buyerRecord struct {
	ID    string `gorm:"primaryKey;column:id"`
	Name  string `gorm:"column:name"`
	Email string `gorm:"column:email;index"`
	Phone string `gorm:"column:phone"`
}

func (buyerRecord) TableName() string { return "buyers" }

// Product schema backs the inventory adapter.
type productRecord struct {
	ID        string    `gorm:"primaryKey;column:id"`
	Name      string    `gorm:"column:name"`
	Stock     int       `gorm:"column:stock;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (productRecord) TableName() string { return "products" }

// Order schema mirrors the orders Postgres store.
type orderRecord struct {
	ID                  string          `gorm:"primaryKey;column:id"`
	BuyerID             string          `gorm:"column:buyer_id;index"`
	TotalPrice          decimal.Decimal `gorm:"column:total_price;type:numeric(14,2);not null"`
	Status              string          `gorm:"column:status;type:varchar(32);index:idx_orders_status_created,priority:1"`
	PaymentStatus       string          `gorm:"column:payment_status;type:varchar(32);index"`
	IsPaid              bool            `gorm:"column:is_paid"`
	PaidAt              *time.Time      `gorm:"column:paid_at"`
	IsDelivered         bool            `gorm:"column:is_delivered"`
	DeliveredAt         *time.Time      `gorm:"column:delivered_at"`
	TransactionID       string          `gorm:"column:transaction_id"`
	Version             int64           `gorm:"column:version;not null;default:1"`
	PendingCompensation json.RawMessage `gorm:"column:pending_compensation;type:jsonb"`
	History             json.RawMessage `gorm:"column:history;type:jsonb"`
	CreatedAt           time.Time       `gorm:"column:created_at;index;index:idx_orders_status_created,priority:2"`
	UpdatedAt           time.Time       `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

// Order item schema; position preserves line order within an order.
type orderItemRecord struct {
	ID        int64           `gorm:"primaryKey;column:id"`
	OrderID   string          `gorm:"column:order_id;index"`
	Position  int             `gorm:"column:position"`
	ProductID string          `gorm:"column:product_id;index"`
	Quantity  int             `gorm:"column:quantity"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2)"`
}

func (orderItemRecord) TableName() string { return "order_items" }
