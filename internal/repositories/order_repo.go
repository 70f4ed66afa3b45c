package repositories

import (
	"storefront/internal/models"
)

// OrderRepository defines the interface for reading orders. Order mutation
// is transactional and lives in the order service, which works on the
// transaction handle directly.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
}
