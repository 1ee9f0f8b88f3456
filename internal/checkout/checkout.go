// Package checkout turns the current cart into a backend order.
package checkout

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/greenmart/storefront/internal/api"
	"github.com/greenmart/storefront/internal/cart"
	pkgerrors "github.com/greenmart/storefront/pkg/errors"
	"github.com/greenmart/storefront/pkg/logger"
)

// Details is what the buyer fills in at checkout.
type Details struct {
	CustomerName string  `json:"customer_name" validate:"required"`
	Email        string  `json:"email" validate:"required,email"`
	Phone        *string `json:"phone,omitempty"`
	Address      string  `json:"address" validate:"required"`
}

type cartSource interface {
	Lines() []cart.Line
	Clear(ctx context.Context)
}

type orderPlacer interface {
	CreateOrder(ctx context.Context, order api.OrderCreate) (*api.Order, error)
}

type Service struct {
	cart     cartSource
	backend  orderPlacer
	logg     *logger.Logger
	validate *validator.Validate
}

func NewService(cartStore cartSource, backend orderPlacer, logg *logger.Logger) (*Service, error) {
	if cartStore == nil {
		return nil, fmt.Errorf("checkout cart is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("checkout backend client is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("checkout logger is required")
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{cart: cartStore, backend: backend, logg: logg, validate: validate}, nil
}

// PlaceOrder validates the buyer details, submits the cart as an order, and
// empties the cart only once the backend has accepted it.
func (s *Service) PlaceOrder(ctx context.Context, details Details) (*api.Order, error) {
	if err := s.validate.Struct(details); err != nil {
		return nil, validationError(err)
	}

	lines := s.cart.Lines()
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Your cart is empty")
	}

	items := make([]api.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, api.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.UnitPrice,
		})
	}

	ctx = s.logg.WithOperation(ctx, "place_order")
	order, err := s.backend.CreateOrder(ctx, api.OrderCreate{
		CustomerName: details.CustomerName,
		Email:        details.Email,
		Phone:        details.Phone,
		Address:      details.Address,
		Items:        items,
	})
	if err != nil {
		return nil, err
	}

	s.cart.Clear(ctx)
	s.logg.Info(s.logg.WithField(ctx, "order_id", order.ID), "order placed")
	return order, nil
}

func validationError(err error) error {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid checkout details")
	}

	fields := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	first := fieldErrs[0]
	message := fmt.Sprintf("Field %q failed %q validation", first.Field(), first.Tag())
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(fields)
}
