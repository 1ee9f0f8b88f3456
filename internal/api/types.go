package api

import "github.com/shopspring/decimal"

// Role distinguishes the two account kinds the backend knows about.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func (r Role) IsValid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// User is the account record returned by the auth endpoints.
type User struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    *string         `json:"image_url"`
	CategoryID  *int            `json:"category_id"`
	Stock       int             `json:"stock"`
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// OrderItem carries the add-time price snapshot, not the live catalog price.
type OrderItem struct {
	ProductID int             `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreate struct {
	CustomerName string      `json:"customer_name"`
	Email        string      `json:"email"`
	Phone        *string     `json:"phone,omitempty"`
	Address      string      `json:"address"`
	Items        []OrderItem `json:"items"`
}

type Order struct {
	ID           int             `json:"id"`
	CustomerName string          `json:"customer_name"`
	Email        string          `json:"email"`
	Total        decimal.Decimal `json:"total"`
	Status       string          `json:"status"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// AuthResponse is the success payload of both auth endpoints.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// ProductParams is the seller-facing create/update payload. Pointer fields
// are omitted when unset so partial updates stay partial.
type ProductParams struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	CategoryID  *int             `json:"category_id,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
}
