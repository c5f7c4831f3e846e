package alertlog

import (
	"context"
	"fmt"
	"testing"

	"SafeCircle/internal/models"
	"SafeCircle/internal/session"
	"SafeCircle/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(i int) models.AlertLogEntry {
	return models.AlertLogEntry{ContactID: fmt.Sprint(i), ContactName: "c", Timestamp: int64(i), Type: "sos"}
}

func TestAppendPushFrontAndCap(t *testing.T) {
	ctx := context.Background()
	l := New(3, nil)
	for i := 1; i <= 5; i++ {
		require.NoError(t, l.Append(ctx, entry(i)))
	}
	got := l.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, "5", got[0].ContactID)
	assert.Equal(t, "3", got[2].ContactID)

	// 副本
	got[0].ContactID = "x"
	assert.Equal(t, "5", l.Entries()[0].ContactID)
}

func TestDefaultCap(t *testing.T) {
	ctx := context.Background()
	l := New(0, nil)
	for i := 0; i < DefaultCap+20; i++ {
		require.NoError(t, l.Append(ctx, entry(i)))
	}
	assert.Equal(t, DefaultCap, l.Len())
}

func TestPersistAndClear(t *testing.T) {
	ctx := context.Background()
	store := session.New(cache.NewLocalCache(cache.LocalConfig{MaxSize: 16}), 0)

	l := New(10, store)
	require.NoError(t, l.Append(ctx, entry(1)))
	require.NoError(t, l.Append(ctx, entry(2)))

	restored := New(10, store)
	require.NoError(t, restored.Load(ctx))
	require.Equal(t, 2, restored.Len())
	assert.Equal(t, "2", restored.Entries()[0].ContactID)

	require.NoError(t, l.Clear(ctx))
	assert.Zero(t, l.Len())
	fresh := New(10, store)
	require.NoError(t, fresh.Load(ctx))
	assert.Zero(t, fresh.Len())
}

func TestRestoreTruncates(t *testing.T) {
	l := New(2, nil)
	l.Restore([]models.AlertLogEntry{entry(3), entry(2), entry(1)})
	got := l.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ContactID)
}
