package broadcast

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawn-pos/internal/store"
)

func TestDecodeSkipsOwnAndMalformedMessages(t *testing.T) {
	b := NewBroadcaster(nil, "pos.test", "proc-a", nil)

	change, ok := b.decode([]byte(`{"session":"s1","key":"cartItems","origin":"proc-b"}`))
	require.True(t, ok)
	assert.Equal(t, store.Key{Session: "s1", Name: store.KeyCartItems}, change.Key)

	_, ok = b.decode([]byte(`{"session":"s1","key":"cartItems","origin":"proc-a"}`))
	assert.False(t, ok, "own message")

	_, ok = b.decode([]byte(`{"key":"cartItems","origin":"proc-b"}`))
	assert.False(t, ok, "missing session")

	_, ok = b.decode([]byte(`not json`))
	assert.False(t, ok, "malformed")
}

func TestBroadcasterDeliversToOtherProcesses(t *testing.T) {
	url := os.Getenv("TEST_AMQP_URL")
	if url == "" {
		t.Skip("TEST_AMQP_URL not set")
	}
	exchange := "pos.test." + uuid.NewString()

	pool, err := NewChannelPool(url, exchange, 2)
	require.NoError(t, err)
	defer pool.Close()

	sender := NewBroadcaster(pool, exchange, "sender", nil)
	receiver := NewBroadcaster(pool, exchange, "receiver", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan store.Change, 4)
	go receiver.Listen(ctx, func(c store.Change) { got <- c })
	go sender.Listen(ctx, func(c store.Change) { got <- c })

	key := store.Key{Session: "s1", Name: store.KeySelectedCustomer}
	require.Eventually(t, func() bool {
		if err := sender.Notify(ctx, store.Change{Key: key}); err != nil {
			return false
		}
		select {
		case c := <-got:
			return c.Key == key
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)
}
