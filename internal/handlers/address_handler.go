package handlers

import (
	"log"

	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AddressHandler handles HTTP requests for delivery addresses.
type AddressHandler struct {
	service  *services.AddressService
	validate *validator.Validate
}

// NewAddressHandler creates a new AddressHandler.
func NewAddressHandler(service *services.AddressService) *AddressHandler {
	return &AddressHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the address routes with the Fiber app.
func (h *AddressHandler) RegisterRoutes(router fiber.Router) {
	addressRoutes := router.Group("/addresses")
	addressRoutes.Get("/", h.HandleGetAddresses)
	addressRoutes.Get("/:id", h.HandleGetAddressByID)
	addressRoutes.Post("/", h.HandleCreateAddress)
}

// HandleGetAddresses retrieves the authenticated user's addresses.
func (h *AddressHandler) HandleGetAddresses(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	addresses, err := h.service.GetUserAddresses(userID)
	if err != nil {
		log.Printf("Error getting addresses for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve addresses",
			"error":   err.Error(),
		})
	}
	return c.JSON(addresses)
}

// HandleGetAddressByID retrieves a single address by its ID.
func (h *AddressHandler) HandleGetAddressByID(c *fiber.Ctx) error {
	addressID := c.Params("id")
	address, err := h.service.GetAddressByID(addressID)
	if err != nil {
		log.Printf("Error getting address by ID %s: %v", addressID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not retrieve address",
			"error":   err.Error(),
		})
	}
	return c.JSON(address)
}

// HandleCreateAddress creates a new address for the authenticated user.
func (h *AddressHandler) HandleCreateAddress(c *fiber.Ctx) error {
	var address models.Address
	if err := c.BodyParser(&address); err != nil {
		log.Printf("Error parsing create address request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	// Addresses always belong to the caller.
	address.UserID, _ = c.Locals("user_id").(string)
	if err := h.validate.Struct(address); err != nil {
		return validationErrorResponse(c, err)
	}

	if err := h.service.CreateAddress(&address); err != nil {
		log.Printf("Error creating address: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create address",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(address)
}
