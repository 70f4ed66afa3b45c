package services

import (
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// AddressService handles a user's delivery address book.
type AddressService struct {
	repo repositories.AddressRepository
}

// NewAddressService creates a new AddressService.
func NewAddressService(repo repositories.AddressRepository) *AddressService {
	return &AddressService{
		repo: repo,
	}
}

// CreateAddress creates a new delivery address.
func (s *AddressService) CreateAddress(address *models.Address) error {
	return s.repo.Create(address)
}

// GetAddressByID retrieves a single address by its ID.
func (s *AddressService) GetAddressByID(id string) (*models.Address, error) {
	address, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: address %s", ErrNotFound, id)
		}
		return nil, err
	}
	return address, nil
}

// GetUserAddresses retrieves all addresses belonging to a user.
func (s *AddressService) GetUserAddresses(userID string) ([]models.Address, error) {
	return s.repo.GetByUserID(userID)
}
