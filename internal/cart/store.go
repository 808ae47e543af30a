package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"props-shop/internal/models"
)

// Store persists carts server-side, keyed by the authenticated user id when
// present, else by the anonymous visitor id. The client's local cart is a
// cache; this copy is the one checkout reads.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl}
}

func key(userID, visitorID string) string {
	if userID != "" {
		return "cart:user:" + userID
	}
	return "cart:visitor:" + visitorID
}

// Get returns the stored cart, or an empty cart when none exists.
func (s *Store) Get(ctx context.Context, userID, visitorID string) ([]models.CartLine, error) {
	data, err := s.Client.Get(ctx, key(userID, visitorID)).Result()
	if err == redis.Nil {
		return []models.CartLine{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	var lines []models.CartLine
	if err := json.Unmarshal([]byte(data), &lines); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return lines, nil
}

// Save overwrites the stored cart. The pricing engine calls this with
// corrected prices after a mismatch, so the server cart self-heals.
func (s *Store) Save(ctx context.Context, userID, visitorID string, lines []models.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.Client.Set(ctx, key(userID, visitorID), data, s.TTL).Err(); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Clear drops the cart after a successful capture.
func (s *Store) Clear(ctx context.Context, userID, visitorID string) error {
	if err := s.Client.Del(ctx, key(userID, visitorID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
