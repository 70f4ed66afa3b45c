package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/rabbitmq"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemQuantity is one (item, quantity) pair of a desired order state.
type ItemQuantity struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// OrderService owns every order mutation. Each mutation runs inside one
// database transaction: stock is reserved with a row lock on the item, and
// any failure rolls the whole unit back, so availability counters and line
// items can never drift apart.
type OrderService struct {
	db        *gorm.DB
	orderRepo repositories.OrderRepository
	itemRepo  repositories.ItemRepository
	addrRepo  repositories.AddressRepository
	mqClient  *rabbitmq.Client // RabbitMQ client, may be nil
}

// NewOrderService creates a new OrderService.
func NewOrderService(db *gorm.DB, orderRepo repositories.OrderRepository, itemRepo repositories.ItemRepository, addrRepo repositories.AddressRepository, mqClient *rabbitmq.Client) *OrderService {
	return &OrderService{
		db:        db,
		orderRepo: orderRepo,
		itemRepo:  itemRepo,
		addrRepo:  addrRepo,
		mqClient:  mqClient,
	}
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		}
		return nil, err
	}
	return order, nil
}

// CreateOrder creates a new order for the user and reserves stock for every
// requested item. On any failure nothing is persisted and no stock moves.
func (s *OrderService) CreateOrder(userID, addressID string, targets []ItemQuantity) (*models.Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}
	if addressID == "" {
		return nil, fmt.Errorf("%w: delivery address is required", ErrValidation)
	}
	if err := validateTargets(targets); err != nil {
		return nil, err
	}
	if _, err := s.addrRepo.GetByID(addressID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: delivery address %s does not exist", ErrValidation, addressID)
		}
		return nil, err
	}
	if err := s.checkItemsExist(targets); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:                uuid.New().String(),
		UserID:            userID,
		DeliveryAddressID: addressID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		for _, t := range targets {
			if err := s.addItem(tx, order, t.ItemID, t.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishOrderEvent("order.created", order)
	return order, nil
}

// ReplaceOrderItems replaces an order's entire item set with the target
// list and moves the order to the given delivery address. The order is
// emptied (all reserved stock released) and refilled pair by pair, each
// target pair applied exactly once, all inside one transaction; if any
// reservation fails the order and the catalog are restored to their
// pre-call state.
func (s *OrderService) ReplaceOrderItems(orderID, addressID string, targets []ItemQuantity) (*models.Order, error) {
	if addressID == "" {
		return nil, fmt.Errorf("%w: delivery address is required", ErrValidation)
	}
	if err := validateTargets(targets); err != nil {
		return nil, err
	}
	if _, err := s.GetOrderByID(orderID); err != nil {
		return nil, err
	}
	if _, err := s.addrRepo.GetByID(addressID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: address %s", ErrNotFound, addressID)
		}
		return nil, err
	}
	if err := s.checkItemsExist(targets); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if err := s.emptyOrder(tx, order); err != nil {
			return err
		}
		for _, t := range targets {
			if err := s.addItem(tx, order, t.ItemID, t.Quantity); err != nil {
				return err
			}
		}
		res := tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("delivery_address_id", addressID)
		if res.Error != nil {
			return fmt.Errorf("failed to update delivery address: %w", res.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrderByID(orderID)
	if err != nil {
		return nil, err
	}
	s.publishOrderEvent("order.updated", order)
	return order, nil
}

// DeleteOrder deletes an order, releasing all of its reserved stock back to
// the catalog. A failure partway leaves the order, its lines and the
// catalog untouched.
func (s *OrderService) DeleteOrder(orderID string) error {
	snapshot, err := s.GetOrderByID(orderID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if err := s.emptyOrder(tx, order); err != nil {
			return err
		}
		if err := tx.Delete(&models.Order{}, "id = ?", order.ID).Error; err != nil {
			return fmt.Errorf("failed to delete order %s: %w", order.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishOrderEvent("order.deleted", snapshot)
	return nil
}

// AddOrderItem adds quantity units of a catalog item to an existing order
// in its own transaction.
func (s *OrderService) AddOrderItem(orderID, itemID string, quantity int) (*models.Order, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: item_id is required", ErrValidation)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		return s.addItem(tx, order, itemID, quantity)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrderByID(orderID)
	if err != nil {
		return nil, err
	}
	s.publishOrderEvent("order.updated", order)
	return order, nil
}

// RemoveOrderItem removes up to quantity units of a catalog item from an
// order in its own transaction. Removing an item the order does not hold
// is a no-op, not an error.
func (s *OrderService) RemoveOrderItem(orderID, itemID string, quantity int) (*models.Order, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: item_id is required", ErrValidation)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		return s.removeItem(tx, order, itemID, quantity)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrderByID(orderID)
	if err != nil {
		return nil, err
	}
	s.publishOrderEvent("order.updated", order)
	return order, nil
}

// addItem reserves quantity units of the item and adds them to the order.
// If the order already has a line for the item, only the additional
// quantity is reserved and the line's subtotal is recomputed at the item's
// current price. Any failure leaves order and catalog untouched (the
// caller rolls back the transaction).
func (s *OrderService) addItem(tx *gorm.DB, order *models.Order, itemID string, quantity int) error {
	item, err := reserveStock(tx, itemID, quantity)
	if err != nil {
		return err
	}

	if line := order.ItemFor(itemID); line != nil {
		line.Quantity += quantity
		line.Subtotal = float64(line.Quantity) * item.Price
		err = tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND item_id = ?", order.ID, itemID).
			Updates(map[string]interface{}{"quantity": line.Quantity, "subtotal": line.Subtotal}).Error
		if err != nil {
			return fmt.Errorf("failed to update order line for item %s: %w", itemID, err)
		}
	} else {
		newLine := models.OrderItem{
			OrderID:  order.ID,
			ItemID:   itemID,
			Quantity: quantity,
			Subtotal: float64(quantity) * item.Price,
		}
		if err := tx.Create(&newLine).Error; err != nil {
			return fmt.Errorf("failed to create order line for item %s: %w", itemID, err)
		}
		order.Items = append(order.Items, newLine)
	}

	return s.saveTotal(tx, order)
}

// removeItem removes up to quantity units of the item from the order and
// releases them back to the catalog. Removing from an order that has no
// line for the item is a no-op. Removing more than the line holds clamps
// to the full line: the line is deleted and only its actual quantity is
// released.
func (s *OrderService) removeItem(tx *gorm.DB, order *models.Order, itemID string, quantity int) error {
	line := order.ItemFor(itemID)
	if line == nil {
		return nil
	}
	if quantity > line.Quantity {
		quantity = line.Quantity
	}

	item, err := releaseStock(tx, itemID, quantity)
	if err != nil {
		return err
	}

	if quantity == line.Quantity {
		err = tx.Where("order_id = ? AND item_id = ?", order.ID, itemID).
			Delete(&models.OrderItem{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete order line for item %s: %w", itemID, err)
		}
		for i := range order.Items {
			if order.Items[i].ItemID == itemID {
				order.Items = append(order.Items[:i], order.Items[i+1:]...)
				break
			}
		}
	} else {
		line.Quantity -= quantity
		line.Subtotal = float64(line.Quantity) * item.Price
		err = tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND item_id = ?", order.ID, itemID).
			Updates(map[string]interface{}{"quantity": line.Quantity, "subtotal": line.Subtotal}).Error
		if err != nil {
			return fmt.Errorf("failed to update order line for item %s: %w", itemID, err)
		}
	}

	return s.saveTotal(tx, order)
}

// emptyOrder releases every line's full quantity back to the catalog and
// deletes all of the order's lines, leaving the order with a zero total.
func (s *OrderService) emptyOrder(tx *gorm.DB, order *models.Order) error {
	for i := range order.Items {
		if _, err := releaseStock(tx, order.Items[i].ItemID, order.Items[i].Quantity); err != nil {
			return err
		}
	}
	if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear order %s: %w", order.ID, err)
	}
	order.Items = nil
	return s.saveTotal(tx, order)
}

// saveTotal re-derives the order total from its lines and persists it.
func (s *OrderService) saveTotal(tx *gorm.DB, order *models.Order) error {
	order.RecomputeTotal()
	err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("total_price", order.TotalPrice).Error
	if err != nil {
		return fmt.Errorf("failed to update total for order %s: %w", order.ID, err)
	}
	return nil
}

// reserveStock decrements the item's availability by quantity as an atomic
// check-and-decrement: the item row stays locked for the rest of the
// transaction, so two concurrent reservations can never both succeed when
// their combined demand exceeds the free stock.
func reserveStock(tx *gorm.DB, itemID string, quantity int) (*models.Item, error) {
	var item models.Item
	if err := lockForUpdate(tx).First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: item %s", ErrUnknownItem, itemID)
		}
		return nil, fmt.Errorf("failed to lock item %s: %w", itemID, err)
	}
	if item.Availability < quantity {
		return nil, fmt.Errorf("%w: item %s (requested %d, available %d)",
			ErrInsufficientAvailability, itemID, quantity, item.Availability)
	}
	item.Availability -= quantity
	if err := tx.Model(&item).Update("availability", item.Availability).Error; err != nil {
		return nil, fmt.Errorf("failed to reserve stock for item %s: %w", itemID, err)
	}
	return &item, nil
}

// releaseStock increments the item's availability by quantity. There is no
// upper bound: availability counts free-to-sell units, not a capacity.
func releaseStock(tx *gorm.DB, itemID string, quantity int) (*models.Item, error) {
	var item models.Item
	if err := lockForUpdate(tx).First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: item %s", ErrUnknownItem, itemID)
		}
		return nil, fmt.Errorf("failed to lock item %s: %w", itemID, err)
	}
	item.Availability += quantity
	if err := tx.Model(&item).Update("availability", item.Availability).Error; err != nil {
		return nil, fmt.Errorf("failed to release stock for item %s: %w", itemID, err)
	}
	return &item, nil
}

// lockOrder loads the order and its lines inside the transaction, holding
// the order's row lock so concurrent mutations of the same order serialize.
func lockOrder(tx *gorm.DB, orderID string) (*models.Order, error) {
	var order models.Order
	if err := lockForUpdate(tx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to lock order %s: %w", orderID, err)
	}
	return &order, nil
}

// lockForUpdate adds a row-level lock to the query on stores that support
// it. SQLite has no FOR UPDATE; its database-wide write lock already
// serializes writers.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// validateTargets rejects an empty target list and malformed pairs before
// any transaction is opened.
func validateTargets(targets []ItemQuantity) error {
	if len(targets) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for _, t := range targets {
		if t.ItemID == "" {
			return fmt.Errorf("%w: item_id is required", ErrValidation)
		}
		if t.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for item %s must be positive", ErrValidation, t.ItemID)
		}
	}
	return nil
}

// checkItemsExist resolves every target item against the catalog before
// the transaction starts, so an unknown ID fails the whole request without
// moving any stock.
func (s *OrderService) checkItemsExist(targets []ItemQuantity) error {
	ids := make([]string, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if !seen[t.ItemID] {
			seen[t.ItemID] = true
			ids = append(ids, t.ItemID)
		}
	}
	items, err := s.itemRepo.GetByIDs(ids)
	if err != nil {
		return fmt.Errorf("failed to resolve items: %w", err)
	}
	found := make(map[string]bool, len(items))
	for i := range items {
		found[items[i].ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return fmt.Errorf("%w: item %s", ErrUnknownItem, id)
		}
	}
	return nil
}

// publishOrderEvent publishes an order lifecycle event after a successful
// commit. Publication failures are logged, never propagated: the message
// bus must not be able to roll back stock.
func (s *OrderService) publishOrderEvent(event string, order *models.Order) {
	if s.mqClient == nil {
		log.Println("RabbitMQ client is not initialized. Skipping message publication.")
		return
	}

	payload := map[string]interface{}{
		"orderID": order.ID,
		"userID":  order.UserID,
		"total":   order.TotalPrice,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal order event to JSON: %v", err)
		return
	}
	if err := s.mqClient.Publish(event, body); err != nil {
		log.Printf("Warning: Failed to publish %s event for order %s: %v", event, order.ID, err)
	} else {
		log.Printf("Successfully published %s event for order %s", event, order.ID)
	}
}
