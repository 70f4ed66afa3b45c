package models

import "gorm.io/gorm"

// Item is a catalog entry with a free-stock counter.
// Availability is only mutated by the order service while it holds the
// item's row lock; it never goes below zero.
type Item struct {
	ID           string  `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name         string  `json:"name" validate:"required,min=3,max=100"`
	Description  string  `json:"description" validate:"required,max=500"`
	Price        float64 `json:"price" validate:"required,gt=0"`
	Availability int     `json:"availability" validate:"gte=0"`
	gorm.Model           // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
