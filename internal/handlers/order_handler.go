package handlers

import (
	"fmt"
	"log"

	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service     *services.OrderService
	authService *services.AuthService
	validate    *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, authService *services.AuthService) *OrderHandler {
	return &OrderHandler{
		service:     service,
		authService: authService,
		validate:    validator.New(),
	}
}

// OrderRequest is the payload for order creation and replacement: the
// desired final state of the order.
type OrderRequest struct {
	DeliveryAddressID string                  `json:"delivery_address_id" validate:"required"`
	Items             []services.ItemQuantity `json:"items" validate:"required,min=1,dive"`
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Put("/:id", h.HandleReplaceOrder)
	orderRoutes.Delete("/:id", h.HandleDeleteOrder)
	orderRoutes.Post("/:id/items", h.HandleAddOrderItem)
	orderRoutes.Delete("/:id/items/:itemID", h.HandleRemoveOrderItem)
}

// HandleGetOrders retrieves all orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAllOrders()
	if err != nil {
		log.Printf("Error getting all orders: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrderByID(orderID)
	if err != nil {
		log.Printf("Error getting order by ID %s: %v", orderID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not retrieve order",
			"error":   err.Error(),
		})
	}
	return c.JSON(order)
}

// HandleCreateOrder creates a new order for the authenticated user.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req OrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create order request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	userID, _ := c.Locals("user_id").(string)
	order, err := h.service.CreateOrder(userID, req.DeliveryAddressID, req.Items)
	if err != nil {
		log.Printf("Error creating order for user %s: %v", userID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not create order",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleReplaceOrder replaces an order's entire item set and delivery
// address. Only the order's owner or an admin may do this.
func (h *OrderHandler) HandleReplaceOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	var req OrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing replace order request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	if err := h.checkOrderAccess(c, orderID); err != nil {
		log.Printf("Access to order %s denied: %v", orderID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not update order",
			"error":   err.Error(),
		})
	}

	order, err := h.service.ReplaceOrderItems(orderID, req.DeliveryAddressID, req.Items)
	if err != nil {
		log.Printf("Error replacing items of order %s: %v", orderID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not update order",
			"error":   err.Error(),
		})
	}

	return c.JSON(order)
}

// HandleDeleteOrder deletes an order, restoring its reserved stock. Only
// the order's owner or an admin may do this.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	if err := h.checkOrderAccess(c, orderID); err != nil {
		log.Printf("Access to order %s denied: %v", orderID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not delete order",
			"error":   err.Error(),
		})
	}

	if err := h.service.DeleteOrder(orderID); err != nil {
		log.Printf("Error deleting order %s: %v", orderID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not delete order",
			"error":   err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// OrderItemRequest is the payload for adding units of one item to an order.
type OrderItemRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,gt=0"`
}

// HandleAddOrderItem adds units of a single item to an existing order.
// Quantity defaults to one.
func (h *OrderHandler) HandleAddOrderItem(c *fiber.Ctx) error {
	orderID := c.Params("id")

	var req OrderItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if err := h.checkOrderAccess(c, orderID); err != nil {
		log.Printf("Access to order %s denied: %v", orderID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not add item to order",
			"error":   err.Error(),
		})
	}

	order, err := h.service.AddOrderItem(orderID, req.ItemID, req.Quantity)
	if err != nil {
		log.Printf("Error adding item %s to order %s: %v", req.ItemID, orderID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not add item to order",
			"error":   err.Error(),
		})
	}

	return c.JSON(order)
}

// HandleRemoveOrderItem removes units of a single item from an order.
// Quantity comes from the query string and defaults to one; removing more
// than the order holds removes the whole line.
func (h *OrderHandler) HandleRemoveOrderItem(c *fiber.Ctx) error {
	orderID := c.Params("id")
	itemID := c.Params("itemID")
	quantity := c.QueryInt("quantity", 1)

	if err := h.checkOrderAccess(c, orderID); err != nil {
		log.Printf("Access to order %s denied: %v", orderID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not remove item from order",
			"error":   err.Error(),
		})
	}

	order, err := h.service.RemoveOrderItem(orderID, itemID, quantity)
	if err != nil {
		log.Printf("Error removing item %s from order %s: %v", itemID, orderID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not remove item from order",
			"error":   err.Error(),
		})
	}

	return c.JSON(order)
}

// checkOrderAccess loads the order and checks that the authenticated
// caller owns it or is an admin. It returns ErrNotFound for a missing
// order and ErrUnauthorized for a foreign one.
func (h *OrderHandler) checkOrderAccess(c *fiber.Ctx, orderID string) error {
	order, err := h.service.GetOrderByID(orderID)
	if err != nil {
		return err
	}

	userID, _ := c.Locals("user_id").(string)
	admin, _ := c.Locals("admin").(bool)
	return h.authService.CanModifyOrder(userID, admin, order)
}

// validationErrorResponse renders validator errors as a field -> reason map.
func validationErrorResponse(c *fiber.Ctx, err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
