package models

import "time"

// OrderItem is a single line of an order: one catalog item bound to a
// quantity. Its identity is the (order, item) pair; a line with quantity
// zero is never stored, the row is deleted instead.
type OrderItem struct {
	OrderID  string  `json:"order_id" gorm:"primaryKey;type:varchar(36)"`
	ItemID   string  `json:"item_id" gorm:"primaryKey;type:varchar(36)"`
	Quantity int     `json:"quantity" gorm:"not null;check:quantity > 0"`
	Subtotal float64 `json:"subtotal" gorm:"not null"` // quantity x unit price when the quantity was last set
}

// Order is a customer order owning its line items. Deleting an order
// cascades to its lines. TotalPrice always equals the sum of the line
// subtotals outside an open transaction.
type Order struct {
	ID                string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID            string      `json:"user_id" gorm:"type:varchar(36);index;not null"`
	DeliveryAddressID string      `json:"delivery_address_id" gorm:"type:varchar(36);not null"`
	Items             []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	TotalPrice        float64     `json:"total_price"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// ItemFor returns the order's line for the given catalog item, or nil if
// the order has none.
func (o *Order) ItemFor(itemID string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ItemID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// RecomputeTotal re-derives TotalPrice from the current line subtotals.
func (o *Order) RecomputeTotal() {
	var total float64
	for i := range o.Items {
		total += o.Items[i].Subtotal
	}
	o.TotalPrice = total
}
