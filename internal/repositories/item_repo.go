package repositories

import (
	"storefront/internal/models"
)

// ItemRepository defines the interface for catalog item data access.
// Stock reservation and release are not part of this interface: they are
// transactional operations owned by the order service.
type ItemRepository interface {
	GetAll() ([]models.Item, error)
	GetByID(id string) (*models.Item, error)
	GetByIDs(ids []string) ([]models.Item, error)
	Create(item *models.Item) error
	Update(item *models.Item) error
	Delete(id string) error
}
