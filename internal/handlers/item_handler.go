package handlers

import (
	"log"

	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ItemHandler handles HTTP requests for catalog items.
type ItemHandler struct {
	service  *services.ItemService
	validate *validator.Validate
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(service *services.ItemService) *ItemHandler {
	return &ItemHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the item routes with the Fiber app.
func (h *ItemHandler) RegisterRoutes(router fiber.Router) {
	itemRoutes := router.Group("/items")
	itemRoutes.Get("/", h.HandleGetItems)
	itemRoutes.Get("/:id", h.HandleGetItemByID)
	itemRoutes.Post("/", h.HandleCreateItem)
	itemRoutes.Put("/:id", h.HandleUpdateItem)
	itemRoutes.Delete("/:id", h.HandleDeleteItem)
}

// HandleGetItems retrieves all catalog items.
func (h *ItemHandler) HandleGetItems(c *fiber.Ctx) error {
	items, err := h.service.GetAllItems()
	if err != nil {
		log.Printf("Error getting all items: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve items",
			"error":   err.Error(),
		})
	}
	return c.JSON(items)
}

// HandleGetItemByID retrieves a single item by its ID.
func (h *ItemHandler) HandleGetItemByID(c *fiber.Ctx) error {
	itemID := c.Params("id")
	item, err := h.service.GetItemByID(itemID)
	if err != nil {
		log.Printf("Error getting item by ID %s: %v", itemID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not retrieve item",
			"error":   err.Error(),
		})
	}
	return c.JSON(item)
}

// HandleCreateItem creates a new catalog item.
func (h *ItemHandler) HandleCreateItem(c *fiber.Ctx) error {
	var item models.Item
	if err := c.BodyParser(&item); err != nil {
		log.Printf("Error parsing create item request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(item); err != nil {
		return validationErrorResponse(c, err)
	}

	if err := h.service.CreateItem(&item); err != nil {
		log.Printf("Error creating item: %v", err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not create item",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(item)
}

// HandleUpdateItem updates an existing item's display fields and price.
func (h *ItemHandler) HandleUpdateItem(c *fiber.Ctx) error {
	itemID := c.Params("id")

	item, err := h.service.GetItemByID(itemID)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not retrieve item",
			"error":   err.Error(),
		})
	}

	if err := c.BodyParser(item); err != nil {
		log.Printf("Error parsing update item request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	item.ID = itemID
	if err := h.validate.Struct(item); err != nil {
		return validationErrorResponse(c, err)
	}

	if err := h.service.UpdateItem(item); err != nil {
		log.Printf("Error updating item %s: %v", itemID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not update item",
			"error":   err.Error(),
		})
	}

	return c.JSON(item)
}

// HandleDeleteItem deletes an item by its ID.
func (h *ItemHandler) HandleDeleteItem(c *fiber.Ctx) error {
	itemID := c.Params("id")
	if err := h.service.DeleteItem(itemID); err != nil {
		log.Printf("Error deleting item %s: %v", itemID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not delete item",
			"error":   err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
