package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"props-shop/internal/cart"
	"props-shop/internal/models"
)

func setupStore(t *testing.T) (*cart.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return cart.NewStore(client, 30*24*time.Hour), mr
}

func testLines() []models.CartLine {
	return []models.CartLine{
		{SKU: "bonnet-sage-nb", ProductSlug: "classic-bonnet", UnitPrice: 24.50, Quantity: 2},
		{SKU: "wrap-cream", ProductSlug: "wrap-basic", UnitPrice: 15.00, Quantity: 1},
	}
}

func TestGetMissingCartIsEmpty(t *testing.T) {
	store, _ := setupStore(t)

	lines, err := store.Get(context.Background(), "", "visitor-1")

	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "", "visitor-1", testLines()))

	lines, err := store.Get(ctx, "", "visitor-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "bonnet-sage-nb", lines[0].SKU)
	assert.Equal(t, 24.50, lines[0].UnitPrice)
}

func TestUserAndVisitorCartsAreSeparate(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "user-1", "visitor-1", testLines()))

	// the user key wins when a user id is present; the visitor key is untouched
	visitorLines, err := store.Get(ctx, "", "visitor-1")
	require.NoError(t, err)
	assert.Empty(t, visitorLines)

	userLines, err := store.Get(ctx, "user-1", "visitor-1")
	require.NoError(t, err)
	assert.Len(t, userLines, 2)
}

func TestSaveOverwrites(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "", "visitor-1", testLines()))

	corrected := testLines()[:1]
	corrected[0].UnitPrice = 26.00
	require.NoError(t, store.Save(ctx, "", "visitor-1", corrected))

	lines, err := store.Get(ctx, "", "visitor-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 26.00, lines[0].UnitPrice)
}

func TestClear(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "", "visitor-1", testLines()))
	require.NoError(t, store.Clear(ctx, "", "visitor-1"))

	lines, err := store.Get(ctx, "", "visitor-1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	// clearing a missing cart is not an error
	assert.NoError(t, store.Clear(ctx, "", "visitor-1"))
}

func TestCartExpires(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "", "visitor-1", testLines()))

	mr.FastForward(31 * 24 * time.Hour)

	lines, err := store.Get(ctx, "", "visitor-1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}
