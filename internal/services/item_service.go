package services

import (
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// ItemService handles business logic related to catalog items. Stock
// movements are not part of this service: only the order service touches
// availability, and only under a transaction.
type ItemService struct {
	repo repositories.ItemRepository
}

// NewItemService creates a new ItemService.
func NewItemService(repo repositories.ItemRepository) *ItemService {
	return &ItemService{
		repo: repo,
	}
}

// GetAllItems retrieves all catalog items.
func (s *ItemService) GetAllItems() ([]models.Item, error) {
	return s.repo.GetAll()
}

// GetItemByID retrieves a single item by its ID.
func (s *ItemService) GetItemByID(id string) (*models.Item, error) {
	item, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: item %s", ErrNotFound, id)
		}
		return nil, err
	}
	return item, nil
}

// CreateItem creates a new catalog item.
func (s *ItemService) CreateItem(item *models.Item) error {
	if item.Availability < 0 {
		return fmt.Errorf("%w: availability must not be negative", ErrValidation)
	}
	return s.repo.Create(item)
}

// UpdateItem updates an existing item's display fields and price.
func (s *ItemService) UpdateItem(item *models.Item) error {
	if item.Availability < 0 {
		return fmt.Errorf("%w: availability must not be negative", ErrValidation)
	}
	if err := s.repo.Update(item); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: item %s", ErrNotFound, item.ID)
		}
		return err
	}
	return nil
}

// DeleteItem deletes an item by its ID.
func (s *ItemService) DeleteItem(id string) error {
	if err := s.repo.Delete(id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: item %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}
