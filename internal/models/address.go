package models

import "gorm.io/gorm"

// Address is a delivery address in a user's address book. Orders reference
// an address by ID; the address must exist when the order is created or
// updated.
type Address struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	UserID     string `json:"user_id" gorm:"type:varchar(36);index" validate:"required"`
	Country    string `json:"country" validate:"required,max=100"`
	City       string `json:"city" validate:"required,max=100"`
	PostCode   string `json:"post_code" validate:"required,max=20"`
	Address    string `json:"address" validate:"required,max=255"`
	Phone      string `json:"phone" validate:"omitempty,max=30"`
	gorm.Model        // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
