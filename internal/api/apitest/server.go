// Package apitest hosts an in-process storefront backend with the same wire
// contract as the real one, for exercising the client packages in tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/greenmart/storefront/internal/api"
)

type account struct {
	password string
	token    string
	user     api.User
}

type ownedProduct struct {
	api.Product
	sellerID int
}

// Server is a seedable fake backend.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	products      map[int]*ownedProduct
	categories    []api.Category
	accounts      map[string]*account
	orders        []api.Order
	nextProductID int
	nextUserID    int
	nextOrderID   int
}

func NewServer() *Server {
	s := &Server{
		products:      make(map[int]*ownedProduct),
		accounts:      make(map[string]*account),
		nextProductID: 1,
		nextUserID:    1,
		nextOrderID:   1,
	}

	r := chi.NewRouter()
	r.Get("/products", s.handleListProducts)
	r.Get("/products/{id}", s.handleGetProduct)
	r.Get("/categories", s.handleListCategories)
	r.Post("/orders", s.handleCreateOrder)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/signup", s.handleSignup)
	r.Route("/seller", func(r chi.Router) {
		r.Get("/products", s.handleSellerList)
		r.Post("/products", s.handleSellerCreate)
		r.Put("/products/{id}", s.handleSellerUpdate)
		r.Delete("/products/{id}", s.handleSellerDelete)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Get("/products", s.handleAdminList)
		r.Post("/products", s.handleAdminCreate)
		r.Put("/products/{id}", s.handleAdminUpdate)
		r.Delete("/products/{id}", s.handleAdminDelete)
		r.Get("/orders", s.handleAdminOrders)
		r.Get("/categories", s.handleListCategories)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// AddCategory seeds a category and returns it.
func (s *Server) AddCategory(name, slug string) api.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat := api.Category{ID: len(s.categories) + 1, Name: name, Slug: slug}
	s.categories = append(s.categories, cat)
	return cat
}

// AddProduct seeds a catalog product and returns it with its assigned ID.
func (s *Server) AddProduct(p api.Product) api.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextProductID
	s.nextProductID++
	s.products[p.ID] = &ownedProduct{Product: p}
	return p
}

// RegisterUser seeds an account and returns it. The bearer token for the
// account is deterministic: "tok-<user id>".
func (s *Server) RegisterUser(email, password, fullName string, role api.Role) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerLocked(email, password, fullName, role)
}

func (s *Server) registerLocked(email, password, fullName string, role api.Role) api.User {
	user := api.User{ID: s.nextUserID, Email: email, FullName: fullName, Role: role}
	s.nextUserID++
	s.accounts[email] = &account{
		password: password,
		token:    "tok-" + strconv.Itoa(user.ID),
		user:     user,
	}
	return user
}

// TokenFor returns the bearer token of a seeded account.
func (s *Server) TokenFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[email]; ok {
		return acct.token
	}
	return ""
}

// Orders returns a copy of every accepted order.
func (s *Server) Orders() []api.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug := r.URL.Query().Get("category")
	var categoryID int
	if slug != "" {
		for _, cat := range s.categories {
			if cat.Slug == slug {
				categoryID = cat.ID
			}
		}
	}

	out := []api.Product{}
	for id := 1; id < s.nextProductID; id++ {
		p, ok := s.products[id]
		if !ok {
			continue
		}
		if slug != "" && (p.CategoryID == nil || *p.CategoryID != categoryID) {
			continue
		}
		out = append(out, p.Product)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	p, ok := s.products[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, p.Product)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.categories
	if out == nil {
		out = []api.Category{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var payload api.OrderCreate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid order payload")
		return
	}
	if len(payload.Items) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "Order must contain at least one item"}},
		})
		return
	}

	total := decimal.Zero
	for _, item := range payload.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	s.mu.Lock()
	order := api.Order{
		ID:           s.nextOrderID,
		CustomerName: payload.CustomerName,
		Email:        payload.Email,
		Total:        total,
		Status:       "pending",
	}
	s.nextOrderID++
	s.orders = append(s.orders, order)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid login payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[creds.Email]
	if !ok || acct.password != creds.Password {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, api.AuthResponse{AccessToken: acct.token, User: acct.user})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var params api.SignupParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid signup payload")
		return
	}
	if !params.Role.IsValid() {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "Role must be buyer or seller"}},
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[params.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	user := s.registerLocked(params.Email, params.Password, params.FullName, params.Role)
	writeJSON(w, http.StatusOK, api.AuthResponse{AccessToken: s.accounts[params.Email].token, User: user})
}

func (s *Server) authenticateSeller(w http.ResponseWriter, r *http.Request) (*account, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.token == token {
			if acct.user.Role != api.RoleSeller {
				writeDetail(w, http.StatusForbidden, "Seller role required")
				return nil, false
			}
			return acct, true
		}
	}
	writeDetail(w, http.StatusUnauthorized, "Not authenticated")
	return nil, false
}

func (s *Server) handleSellerList(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authenticateSeller(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Product{}
	for id := 1; id < s.nextProductID; id++ {
		if p, ok := s.products[id]; ok && p.sellerID == acct.user.ID {
			out = append(out, p.Product)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSellerCreate(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authenticateSeller(w, r)
	if !ok {
		return
	}
	var params api.ProductParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid product payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	product := &ownedProduct{sellerID: acct.user.ID}
	product.ID = s.nextProductID
	s.nextProductID++
	applyParams(&product.Product, params)
	s.products[product.ID] = product
	writeJSON(w, http.StatusOK, product.Product)
}

func (s *Server) handleSellerUpdate(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authenticateSeller(w, r)
	if !ok {
		return
	}
	var params api.ProductParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid product payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	product, okP := s.products[id]
	if !okP || product.sellerID != acct.user.ID {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	applyParams(&product.Product, params)
	writeJSON(w, http.StatusOK, product.Product)
}

func (s *Server) handleSellerDelete(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authenticateSeller(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	product, okP := s.products[id]
	if !okP || product.sellerID != acct.user.ID {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	delete(s.products, id)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Admin handlers see the whole catalog and skip the ownership checks.

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Product{}
	for id := 1; id < s.nextProductID; id++ {
		if p, ok := s.products[id]; ok {
			out = append(out, p.Product)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	var params api.ProductParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid product payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	product := &ownedProduct{}
	product.ID = s.nextProductID
	s.nextProductID++
	applyParams(&product.Product, params)
	s.products[product.ID] = product
	writeJSON(w, http.StatusOK, product.Product)
}

func (s *Server) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	var params api.ProductParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid product payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	product, ok := s.products[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	applyParams(&product.Product, params)
	writeJSON(w, http.StatusOK, product.Product)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	if _, ok := s.products[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	delete(s.products, id)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAdminOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		out = append(out, s.orders[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func applyParams(product *api.Product, params api.ProductParams) {
	if params.Name != nil {
		product.Name = *params.Name
	}
	if params.Description != nil {
		product.Description = params.Description
	}
	if params.Price != nil {
		product.Price = *params.Price
	}
	if params.ImageURL != nil {
		product.ImageURL = params.ImageURL
	}
	if params.CategoryID != nil {
		product.CategoryID = params.CategoryID
	}
	if params.Stock != nil {
		product.Stock = *params.Stock
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
