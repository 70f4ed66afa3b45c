package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "test_jwt_secret"

// setupApp builds the full Fiber app over a fresh in-memory SQLite
// database, wired the same way as main: auth and catalog public,
// addresses and orders behind the JWT middleware.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(&models.User{}, &models.Address{}, &models.Item{}, &models.Order{}, &models.OrderItem{})
	assert.NoError(t, err)

	itemRepo := repositories.NewGORMItemRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	addressRepo := repositories.NewGORMAddressRepository(db)

	itemService := services.NewItemService(itemRepo)
	addressService := services.NewAddressService(addressRepo)
	authService := services.NewAuthService(userRepo, testJWTSecret)
	orderService := services.NewOrderService(db, orderRepo, itemRepo, addressRepo, nil) // nil for RabbitMQ client

	itemHandler := handlers.NewItemHandler(itemService)
	addressHandler := handlers.NewAddressHandler(addressService)
	authHandler := handlers.NewAuthHandler(authService)
	orderHandler := handlers.NewOrderHandler(orderService, authService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	authHandler.RegisterRoutes(apiV1)
	itemHandler.RegisterRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	addressHandler.RegisterRoutes(protected)
	orderHandler.RegisterRoutes(protected)

	return app, db
}

// doJSON performs a request with an optional JSON body and bearer token.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1) // -1 for no timeout
	assert.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	resp.Body.Close()
}

// registerAndLogin creates a user through the API and returns a token.
func registerAndLogin(t *testing.T, app *fiber.App, username, email string) string {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "password123",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp map[string]string
	decodeBody(t, resp, &loginResp)
	assert.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

// createAddress creates a delivery address for the token's user.
func createAddress(t *testing.T, app *fiber.App, token string) string {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/api/v1/addresses", token, map[string]string{
		"country":   "Italy",
		"city":      "Florence",
		"post_code": "50132",
		"address":   "Via dei Servi 12",
		"phone":     "3939393939",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var address models.Address
	decodeBody(t, resp, &address)
	assert.NotEmpty(t, address.ID)
	return address.ID
}

// createItem creates a catalog item through the API.
func createItem(t *testing.T, app *fiber.App, name string, price float64, availability int) models.Item {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/api/v1/items", "", map[string]interface{}{
		"name":         name,
		"description":  name + " description",
		"price":        price,
		"availability": availability,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var item models.Item
	decodeBody(t, resp, &item)
	assert.NotEmpty(t, item.ID)
	return item
}

// getItemAvailability fetches an item through the API and returns its stock.
func getItemAvailability(t *testing.T, app *fiber.App, itemID string) int {
	t.Helper()

	resp := doJSON(t, app, http.MethodGet, "/api/v1/items/"+itemID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var item models.Item
	decodeBody(t, resp, &item)
	return item.Availability
}

func orderBody(addressID string, items ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"delivery_address_id": addressID,
		"items":               items,
	}
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, _ := setupApp(t)

	userToRegister := map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "password123",
	}
	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var registerResp map[string]interface{}
	decodeBody(t, resp, &registerResp)
	assert.Equal(t, "User registered successfully", registerResp["message"])

	// Duplicate registration (username)
	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Login
	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp map[string]string
	decodeBody(t, resp, &loginResp)
	assert.NotEmpty(t, loginResp["token"])

	// Wrong password
	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "wrongpassword",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestItemEndpoints(t *testing.T) {
	app, _ := setupApp(t)

	created := createItem(t, app, "Moka pot", 29.0, 15)

	// List
	resp := doJSON(t, app, http.MethodGet, "/api/v1/items", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var items []models.Item
	decodeBody(t, resp, &items)
	assert.Len(t, items, 1)

	// Get by ID
	resp = doJSON(t, app, http.MethodGet, "/api/v1/items/"+created.ID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched models.Item
	decodeBody(t, resp, &fetched)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "Moka pot", fetched.Name)

	// Update
	resp = doJSON(t, app, http.MethodPut, "/api/v1/items/"+created.ID, "", map[string]interface{}{
		"name":         "Moka pot 6-cup",
		"description":  "Updated description",
		"price":        35.0,
		"availability": 12,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Item
	decodeBody(t, resp, &updated)
	assert.Equal(t, "Moka pot 6-cup", updated.Name)
	assert.Equal(t, 35.0, updated.Price)

	// Negative availability is rejected
	resp = doJSON(t, app, http.MethodPut, "/api/v1/items/"+created.ID, "", map[string]interface{}{
		"name":         "Moka pot 6-cup",
		"description":  "Updated description",
		"price":        35.0,
		"availability": -3,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Delete, then verify it is gone
	resp = doJSON(t, app, http.MethodDelete, "/api/v1/items/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/items/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestOrderLifecycle(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer", "buyer@example.com")
	addressID := createAddress(t, app, token)
	first := createItem(t, app, "Espresso machine", 120.0, 10)
	second := createItem(t, app, "Grinder", 50.0, 5)

	// Create
	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders", token,
		orderBody(addressID, map[string]interface{}{"item_id": first.ID, "quantity": 2}))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var order models.Order
	decodeBody(t, resp, &order)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 240.0, order.TotalPrice)
	assert.Equal(t, 8, getItemAvailability(t, app, first.ID))

	// Get by ID
	resp = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+order.ID, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched models.Order
	decodeBody(t, resp, &fetched)
	assert.Len(t, fetched.Items, 1)

	// Replace the whole item set
	resp = doJSON(t, app, http.MethodPut, "/api/v1/orders/"+order.ID, token,
		orderBody(addressID,
			map[string]interface{}{"item_id": first.ID, "quantity": 1},
			map[string]interface{}{"item_id": second.ID, "quantity": 2}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var replaced models.Order
	decodeBody(t, resp, &replaced)
	assert.Len(t, replaced.Items, 2)
	assert.Equal(t, 220.0, replaced.TotalPrice)
	assert.Equal(t, 9, getItemAvailability(t, app, first.ID))
	assert.Equal(t, 3, getItemAvailability(t, app, second.ID))

	// Add units of an item
	resp = doJSON(t, app, http.MethodPost, "/api/v1/orders/"+order.ID+"/items", token,
		map[string]interface{}{"item_id": second.ID, "quantity": 1})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var afterAdd models.Order
	decodeBody(t, resp, &afterAdd)
	assert.Equal(t, 270.0, afterAdd.TotalPrice)
	assert.Equal(t, 2, getItemAvailability(t, app, second.ID))

	// Remove more units than held: the whole line goes
	resp = doJSON(t, app, http.MethodDelete, "/api/v1/orders/"+order.ID+"/items/"+second.ID+"?quantity=99", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var afterRemove models.Order
	decodeBody(t, resp, &afterRemove)
	assert.Len(t, afterRemove.Items, 1)
	assert.Equal(t, 120.0, afterRemove.TotalPrice)
	assert.Equal(t, 5, getItemAvailability(t, app, second.ID))

	// Delete restores all remaining stock
	resp = doJSON(t, app, http.MethodDelete, "/api/v1/orders/"+order.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, 10, getItemAvailability(t, app, first.ID))

	resp = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+order.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestOrderInsufficientStock(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer", "buyer@example.com")
	addressID := createAddress(t, app, token)
	item := createItem(t, app, "Limited vinyl", 35.0, 2)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders", token,
		orderBody(addressID, map[string]interface{}{"item_id": item.ID, "quantity": 3}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp map[string]string
	decodeBody(t, resp, &errResp)
	assert.Contains(t, errResp["error"], "insufficient availability")

	// Nothing was reserved
	assert.Equal(t, 2, getItemAvailability(t, app, item.ID))
}

func TestOrderUnknownItem(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer", "buyer@example.com")
	addressID := createAddress(t, app, token)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders", token,
		orderBody(addressID, map[string]interface{}{"item_id": uuid.New().String(), "quantity": 1}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp map[string]string
	decodeBody(t, resp, &errResp)
	assert.Contains(t, errResp["error"], "unknown item")
}

func TestOrderValidation(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer", "buyer@example.com")
	addressID := createAddress(t, app, token)
	item := createItem(t, app, "Mug", 12.0, 3)

	// Empty item list
	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders", token, map[string]interface{}{
		"delivery_address_id": addressID,
		"items":               []interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Missing delivery address
	resp = doJSON(t, app, http.MethodPost, "/api/v1/orders", token, map[string]interface{}{
		"items": []interface{}{map[string]interface{}{"item_id": item.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Non-positive quantity
	resp = doJSON(t, app, http.MethodPost, "/api/v1/orders", token,
		orderBody(addressID, map[string]interface{}{"item_id": item.ID, "quantity": 0}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, 3, getItemAvailability(t, app, item.ID))
}

// A user may read any order but only modify their own.
func TestOrderForeignAccess(t *testing.T) {
	app, _ := setupApp(t)
	ownerToken := registerAndLogin(t, app, "owner", "owner@example.com")
	otherToken := registerAndLogin(t, app, "other", "other@example.com")
	addressID := createAddress(t, app, ownerToken)
	item := createItem(t, app, "Teapot", 30.0, 10)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders", ownerToken,
		orderBody(addressID, map[string]interface{}{"item_id": item.ID, "quantity": 2}))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decodeBody(t, resp, &order)

	// Replace by a non-owner
	resp = doJSON(t, app, http.MethodPut, "/api/v1/orders/"+order.ID, otherToken,
		orderBody(addressID, map[string]interface{}{"item_id": item.ID, "quantity": 1}))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Delete by a non-owner
	resp = doJSON(t, app, http.MethodDelete, "/api/v1/orders/"+order.ID, otherToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The order and its reservation are untouched
	resp = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+order.ID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 8, getItemAvailability(t, app, item.ID))
}

func TestOrderNotFound(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer", "buyer@example.com")
	addressID := createAddress(t, app, token)
	item := createItem(t, app, "Kettle", 60.0, 4)
	missingID := uuid.New().String()

	resp := doJSON(t, app, http.MethodGet, "/api/v1/orders/"+missingID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPut, "/api/v1/orders/"+missingID, token,
		orderBody(addressID, map[string]interface{}{"item_id": item.ID, "quantity": 1}))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodDelete, "/api/v1/orders/"+missingID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestProtectedEndpointsWithoutAuth(t *testing.T) {
	app, _ := setupApp(t)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/addresses", "", map[string]string{
		"country": "Italy",
		"city":    "Florence",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestAddressEndpoints(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer", "buyer@example.com")

	addressID := createAddress(t, app, token)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/addresses", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var addresses []models.Address
	decodeBody(t, resp, &addresses)
	assert.Len(t, addresses, 1)
	assert.Equal(t, addressID, addresses[0].ID)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/addresses/"+addressID, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var address models.Address
	decodeBody(t, resp, &address)
	assert.Equal(t, "Florence", address.City)
}
