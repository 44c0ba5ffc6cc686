package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/domain"
	"storefront-service/internal/session"
)

// SessionHeader carries the shopping session ID on requests and responses.
const SessionHeader = "X-Session-ID"

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	catalog  *catalog.Catalog
	sessions *session.Registry
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(c *catalog.Catalog, sessions *session.Registry, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		catalog:  c,
		sessions: sessions,
		validate: validator.New(),
		logger:   logger,
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.logger.Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// requestError is a client mistake whose text is returned verbatim.
type requestError string

func (e requestError) Error() string { return string(e) }

// sessionCart resolves the caller's cart, starting a session when the
// request carries none, and echoes the session ID back.
func (h *HTTPHandler) sessionCart(w http.ResponseWriter, r *http.Request) *cart.Store {
	c, id, created := h.sessions.Get(r.Header.Get(SessionHeader))
	if created {
		h.logger.Debug("session started", zap.String("session_id", id))
	}
	w.Header().Set(SessionHeader, id)
	return c
}

// --- Catalog Handlers ---

// ProductListResponse is the shop page payload.
type ProductListResponse struct {
	Data       []domain.Product `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// Pagination matches the page metadata of list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// CategoryResponse is one entry of the category list.
type CategoryResponse struct {
	Name  domain.Category `json:"name"`
	Count int             `json:"count"`
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	counts := h.catalog.CategoryCounts()
	out := make([]CategoryResponse, 0, len(counts))
	out = append(out, CategoryResponse{Name: domain.AllProducts, Count: counts[domain.AllProducts]})
	for _, c := range h.catalog.Categories() {
		out = append(out, CategoryResponse{Name: c, Count: counts[c]})
	}
	h.respondWithJSON(w, http.StatusOK, out)
}

// parseFilter turns shop page query parameters into a FilterConfig.
func (h *HTTPHandler) parseFilter(r *http.Request) (domain.FilterConfig, error) {
	q := r.URL.Query()
	return BuildFilter(h.catalog, q.Get("category"), q.Get("q"), q.Get("min_price"), q.Get("max_price"), q.Get("sort"))
}

// BuildFilter validates raw filter values shared by the HTTP and gRPC
// surfaces. Empty values keep the catalog defaults: every category, the
// full price range and popularity ordering.
func BuildFilter(c *catalog.Catalog, category, query, minPrice, maxPrice, sort string) (domain.FilterConfig, error) {
	cfg := c.DefaultFilter()

	if category != "" {
		cat := domain.Category(category)
		if cat != domain.AllProducts && !cat.Valid() {
			return cfg, requestError("Invalid category")
		}
		cfg.Category = cat
	}
	cfg.Query = query

	if minPrice != "" {
		d, err := decimal.NewFromString(minPrice)
		if err != nil || d.IsNegative() {
			return cfg, requestError("Invalid min_price format")
		}
		cfg.PriceRange.Min = d
	}
	if maxPrice != "" {
		d, err := decimal.NewFromString(maxPrice)
		if err != nil || d.IsNegative() {
			return cfg, requestError("Invalid max_price format")
		}
		cfg.PriceRange.Max = d
	}
	// a single bound past the catalog range just narrows to nothing
	if minPrice != "" && maxPrice != "" && cfg.PriceRange.Min.GreaterThan(cfg.PriceRange.Max) {
		return cfg, requestError("min_price cannot exceed max_price")
	}

	policy, err := domain.ParseSortPolicy(sort)
	if err != nil {
		names := make([]string, 0, len(domain.SortPolicies()))
		for _, p := range domain.SortPolicies() {
			names = append(names, string(p))
		}
		return cfg, requestError("Invalid sort value. Allowed: " + strings.Join(names, ", "))
	}
	cfg.Sort = policy
	return cfg, nil
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.parseFilter(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 12
	}
	if limit > 100 {
		limit = 100
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}

	results := h.catalog.Search(cfg)
	total := len(results)
	totalPages := (total + limit - 1) / limit
	// pages past the end are empty; page is never multiplied unchecked
	start := total
	if page <= totalPages {
		start = (page - 1) * limit
	}
	end := min(start+limit, total)
	h.respondWithJSON(w, http.StatusOK, ProductListResponse{
		Data: results[start:end],
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			TotalItems: total,
			TotalPages: totalPages,
		},
	})
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	product, err := h.catalog.ProductByID(productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			h.respondWithError(w, http.StatusNotFound, catalog.ErrProductNotFound.Error())
		} else {
			h.logger.Error("product lookup failed", zap.String("product_id", productID), zap.Error(err))
			h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve product")
		}
		return
	}
	h.respondWithJSON(w, http.StatusOK, product)
}

// --- Cart Handlers ---

// CartResponse is the cart panel payload. Money is rendered with two
// fraction digits.
type CartResponse struct {
	Items      []CartLineResponse `json:"items"`
	TotalItems int                `json:"totalItems"`
	IsOpen     bool               `json:"isOpen"`
	Subtotal   string             `json:"subtotal"`
	Shipping   string             `json:"shipping"`
	Tax        string             `json:"tax"`
	Total      string             `json:"total"`
}

// CartLineResponse is one line of the cart panel.
type CartLineResponse struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	Image         string `json:"image"`
	Price         string `json:"price"`
	Quantity      int    `json:"quantity"`
	SelectedColor string `json:"selectedColor,omitempty"`
	SelectedSize  string `json:"selectedSize,omitempty"`
	LineTotal     string `json:"lineTotal"`
}

func newCartResponse(snap cart.Snapshot) CartResponse {
	sum := cart.Summarize(snap.TotalPrice)
	items := make([]CartLineResponse, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		items = append(items, CartLineResponse{
			ProductID:     l.ID,
			Name:          l.Name,
			Image:         l.Image(),
			Price:         cart.FormatMoney(l.Price),
			Quantity:      l.Quantity,
			SelectedColor: l.SelectedColor,
			SelectedSize:  l.SelectedSize,
			LineTotal:     cart.FormatMoney(l.LineTotal()),
		})
	}
	return CartResponse{
		Items:      items,
		TotalItems: snap.TotalItems,
		IsOpen:     snap.IsOpen,
		Subtotal:   cart.FormatMoney(sum.Subtotal),
		Shipping:   cart.FormatMoney(sum.Shipping),
		Tax:        cart.FormatMoney(sum.Tax),
		Total:      cart.FormatMoney(sum.Total),
	}
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	c := h.sessionCart(w, r)
	h.respondWithJSON(w, http.StatusOK, newCartResponse(c.Snapshot()))
}

// CartItemInput defines the expected input for adding a product to the cart.
type CartItemInput struct {
	ProductID     string `json:"productId" validate:"required"`
	SelectedColor string `json:"selectedColor" validate:"omitempty,max=64"`
	SelectedSize  string `json:"selectedSize" validate:"omitempty,max=32"`
}

func (h *HTTPHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var input CartItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	product, err := h.catalog.ProductByID(input.ProductID)
	if err != nil {
		h.logger.Warn("add to cart for unknown product", zap.String("product_id", input.ProductID))
		h.respondWithError(w, http.StatusNotFound, catalog.ErrProductNotFound.Error())
		return
	}
	if input.SelectedColor != "" && !slices.Contains(product.Colors, input.SelectedColor) {
		h.respondWithError(w, http.StatusBadRequest, "Invalid selectedColor for product")
		return
	}
	if input.SelectedSize != "" && !slices.Contains(product.Sizes, input.SelectedSize) {
		h.respondWithError(w, http.StatusBadRequest, "Invalid selectedSize for product")
		return
	}

	c := h.sessionCart(w, r)
	c.AddToCart(product, input.SelectedColor, input.SelectedSize)
	h.respondWithJSON(w, http.StatusOK, newCartResponse(c.Snapshot()))
}

// QuantityInput defines the expected input for updating a line quantity.
// Zero or negative quantities remove the product.
type QuantityInput struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func (h *HTTPHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var input QuantityInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	c := h.sessionCart(w, r)
	c.UpdateQuantity(productID, *input.Quantity)
	h.respondWithJSON(w, http.StatusOK, newCartResponse(c.Snapshot()))
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c := h.sessionCart(w, r)
	c.RemoveFromCart(chi.URLParam(r, "productId"))
	h.respondWithJSON(w, http.StatusOK, newCartResponse(c.Snapshot()))
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c := h.sessionCart(w, r)
	c.Clear()
	h.respondWithJSON(w, http.StatusOK, newCartResponse(c.Snapshot()))
}

// CartOpenInput toggles the cart panel.
type CartOpenInput struct {
	IsOpen *bool `json:"isOpen" validate:"required"`
}

func (h *HTTPHandler) SetCartOpen(w http.ResponseWriter, r *http.Request) {
	var input CartOpenInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	c := h.sessionCart(w, r)
	c.SetCartOpen(*input.IsOpen)
	h.respondWithJSON(w, http.StatusOK, newCartResponse(c.Snapshot()))
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/categories", h.ListCategories)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{productId}", h.GetProductByID)
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Put("/open", h.SetCartOpen)
		r.Post("/items", h.AddCartItem)
		r.Route("/items/{productId}", func(r chi.Router) {
			r.Put("/", h.UpdateCartItem)
			r.Delete("/", h.RemoveCartItem)
		})
	})
}
