package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sodcloud/storefront/internal/domain"
	"go.uber.org/zap"
)

// CartService owns one cart per cart session. The in-process map is the
// source of truth for a running session; every mutation writes through to
// the cart repository. Sessions idle for longer than the cart TTL are
// evicted and restored from the store on their next use.
type CartService struct {
	plans  domain.PlanRepository
	store  domain.CartRepository
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*cartSession
	now      func() time.Time
}

type cartSession struct {
	cart    *domain.Cart
	touched time.Time
}

func NewCartService(plans domain.PlanRepository, store domain.CartRepository, ttl time.Duration, logger *zap.Logger) *CartService {
	return &CartService{
		plans:    plans,
		store:    store,
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*cartSession),
		now:      time.Now,
	}
}

// session returns the live cart for id, restoring it from the store on first use.
// Caller holds s.mu.
func (s *CartService) session(ctx context.Context, id string) *domain.Cart {
	if sess, ok := s.sessions[id]; ok {
		sess.touched = s.now()
		return sess.cart
	}

	cart := s.restore(ctx, id)
	s.sessions[id] = &cartSession{cart: cart, touched: s.now()}
	return cart
}

func (s *CartService) restore(ctx context.Context, id string) *domain.Cart {
	cart, err := s.store.Load(ctx, id)
	if err != nil {
		s.logger.Error("failed to restore cart, starting empty", zap.String("session", id), zap.Error(err))
		cart = nil
	}
	if cart == nil {
		cart = domain.NewCart()
	}
	return cart
}

// Get returns a copy of the session cart. A session with nothing in its cart
// is not kept in memory.
func (s *CartService) Get(ctx context.Context, sessionID string) *domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		return s.session(ctx, sessionID).Clone()
	}

	cart := s.restore(ctx, sessionID)
	if !cart.IsEmpty() {
		s.sessions[sessionID] = &cartSession{cart: cart, touched: s.now()}
	}
	return cart.Clone()
}

// AddItem snapshots the plan into the cart or increments its line
func (s *CartService) AddItem(ctx context.Context, sessionID, planID string) (*domain.Cart, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("plan %s: %w", planID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return s.mutate(ctx, sessionID, func(cart *domain.Cart) {
		cart.AddItem(*plan)
	})
}

// UpdateQuantity replaces a line quantity; zero or less removes the line
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, planID string, quantity int) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *domain.Cart) {
		cart.UpdateQuantity(planID, quantity)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID, planID string) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *domain.Cart) {
		cart.RemoveItem(planID)
	})
}

func (s *CartService) Clear(ctx context.Context, sessionID string) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *domain.Cart) {
		cart.Clear()
	})
}

// EndSession forgets the session and deletes its persisted cart
func (s *CartService) EndSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

// ActiveSessions reports how many sessions are held in memory
func (s *CartService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle drops sessions untouched for longer than the cart TTL and
// returns how many it dropped. Their persisted carts are left to expire.
func (s *CartService) EvictIdle() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		if sess.touched.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// RunJanitor evicts idle sessions on a quarter-TTL ticker, never more often
// than once a minute, until ctx ends
func (s *CartService) RunJanitor(ctx context.Context) {
	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				s.logger.Debug("evicted idle cart sessions", zap.Int("count", n))
			}
		}
	}
}

// mutate applies fn to the live cart and writes it through. On a failed write
// the mutated cart is still returned, alongside ErrCartNotPersisted.
func (s *CartService) mutate(ctx context.Context, sessionID string, fn func(*domain.Cart)) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.session(ctx, sessionID)
	fn(cart)
	cart.UpdatedAt = s.now().UTC()

	snapshot := cart.Clone()
	if err := s.store.Save(ctx, sessionID, snapshot, s.ttl); err != nil {
		s.logger.Warn("cart change not persisted", zap.String("session", sessionID), zap.Error(err))
		return snapshot, fmt.Errorf("%w: %v", domain.ErrCartNotPersisted, err)
	}
	return snapshot, nil
}
