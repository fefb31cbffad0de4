package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduper_MarkAndSeen(t *testing.T) {
	d := New()
	ctx := context.Background()

	seen, err := d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Mark(ctx, "evt_1", time.Minute))

	seen, err = d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.Seen(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestDeduper_Expiry(t *testing.T) {
	d := New()
	ctx := context.Background()

	require.NoError(t, d.Mark(ctx, "evt_1", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	seen, err := d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestDeduper_Concurrent(t *testing.T) {
	d := New()
	ctx := context.Background()

	const goroutines = 50
	done := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			_ = d.Mark(ctx, "evt_shared", time.Minute)
			_, _ = d.Seen(ctx, "evt_shared")
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}

	seen, err := d.Seen(ctx, "evt_shared")
	require.NoError(t, err)
	assert.True(t, seen)
}
