// Package cart holds the in-memory shopping cart and mirrors every mutation
// into the state store, so a restarted process resumes where it left off.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/greenmart/storefront/internal/storage"
	"github.com/greenmart/storefront/pkg/logger"
)

// Line is one cart entry. UnitPrice is the price snapshot captured when the
// product was added, not the live catalog price.
type Line struct {
	ProductID int             `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageURL  *string         `json:"image_url"`
}

// Store keeps the cart lines keyed by product identity. All reads and writes
// go through the mutex; persistence failures are logged and swallowed so a
// broken disk never blocks shopping.
type Store struct {
	mu    sync.Mutex
	lines []Line
	ready bool

	kv   storage.KV
	logg *logger.Logger
}

func NewStore(kv storage.KV, logg *logger.Logger) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("cart storage is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("cart logger is required")
	}
	return &Store{kv: kv, logg: logg}, nil
}

// Load rehydrates the cart from its slot. An absent or corrupt snapshot
// yields an empty cart; corruption is logged, never surfaced.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return
	}
	s.ready = true

	raw, err := s.kv.Get(ctx, storage.SlotCart)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logg.Warn(s.logg.WithOperation(ctx, "cart_load"), "reading cart snapshot failed, starting empty")
		}
		return
	}

	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		s.logg.Warn(s.logg.WithOperation(ctx, "cart_load"), "cart snapshot corrupt, starting empty")
		return
	}
	s.lines = lines
}

// Add merges by product identity: an existing line gains quantity, a new
// product appends a line. Quantities below one are treated as one.
func (s *Store) Add(ctx context.Context, line Line) {
	if line.Quantity < 1 {
		line.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].ProductID == line.ProductID {
			s.lines[i].Quantity += line.Quantity
			s.persistLocked(ctx)
			return
		}
	}
	s.lines = append(s.lines, line)
	s.persistLocked(ctx)
}

// Remove drops the line for a product. Removing an absent product is a no-op.
func (s *Store) Remove(ctx context.Context, productID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			s.persistLocked(ctx)
			return
		}
	}
}

// SetQuantity replaces a line's quantity. Zero or negative removes the line.
func (s *Store) SetQuantity(ctx context.Context, productID, quantity int) {
	if quantity <= 0 {
		s.Remove(ctx, productID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].Quantity = quantity
			s.persistLocked(ctx)
			return
		}
	}
}

// Clear empties the cart and persists the empty snapshot.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.persistLocked(ctx)
}

// Ready reports whether Load has run. Until then an empty cart only means
// "not rehydrated yet", not "confirmed empty".
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// TotalItems sums the quantities across every line.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

// Subtotal sums quantity times unit price across every line.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, line := range s.lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

func (s *Store) persistLocked(ctx context.Context) {
	snapshot := s.lines
	if snapshot == nil {
		snapshot = []Line{}
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		s.logg.Error(s.logg.WithOperation(ctx, "cart_persist"), "encoding cart snapshot failed", err)
		return
	}
	if err := s.kv.Set(ctx, storage.SlotCart, string(payload)); err != nil {
		s.logg.Warn(s.logg.WithOperation(ctx, "cart_persist"), "persisting cart failed, keeping in-memory state")
	}
}
