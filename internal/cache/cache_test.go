package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitnet/internal/logging"
	"transitnet/internal/network"
	"transitnet/internal/storage"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestMemory() (*Memory, *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory()
	m.now = clk.now
	return m, clk
}

func TestMemory_SetGet(t *testing.T) {
	m, _ := newTestMemory()
	ctx := context.Background()

	got, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	value := []byte("v1")
	require.NoError(t, m.Set(ctx, "key", value, time.Minute))
	value[0] = 'x'

	got, err = m.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, m.Set(ctx, "key", []byte("v2"), time.Minute))
	got, _ = m.Get(ctx, "key")
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, m.Delete(ctx, "key"))
	got, _ = m.Get(ctx, "key")
	assert.Nil(t, got)
}

func TestMemory_Expiry(t *testing.T) {
	m, clk := newTestMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("b"), 0))
	assert.Equal(t, 2, m.Len())

	clk.t = clk.t.Add(2 * time.Minute)
	got, _ := m.Get(ctx, "short")
	assert.Nil(t, got)
	got, _ = m.Get(ctx, "forever")
	assert.Equal(t, []byte("b"), got)
	assert.Equal(t, 1, m.Len())

	// expired entries are dropped on the next write
	require.NoError(t, m.Set(ctx, "fresh", []byte("c"), time.Minute))
	m.mu.RLock()
	_, ok := m.entries["short"]
	m.mu.RUnlock()
	assert.False(t, ok)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			m.Set(ctx, "key", []byte{byte(n)}, time.Second)
		}(i)
		go func() {
			defer wg.Done()
			m.Get(ctx, "key")
		}()
	}
	wg.Wait()

	got, err := m.Get(ctx, "key")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestJSONCompressed(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	type payload struct {
		Name  string   `json:"name"`
		Codes []string `json:"codes"`
	}
	in := payload{Name: "bus", Codes: []string{"01012", "01013"}}
	require.NoError(t, SetJSONCompressed(ctx, m, "p", in, 0))

	var out payload
	ok, err := GetJSONCompressed(ctx, m, "p", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)

	ok, err = GetJSONCompressed(ctx, m, "absent", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "bad", []byte("not gzip"), 0))
	_, err = GetJSONCompressed(ctx, m, "bad", &out)
	assert.Error(t, err)
}

func TestNewRedis_ConnectionError(t *testing.T) {
	_, err := NewRedis("127.0.0.1:1", "", 0, logging.Discard())
	assert.Error(t, err)
}

func TestNetworks_LoadsFromDatabaseOnMiss(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	store := NewMemory()
	nets := NewNetworks(store, db, time.Hour, logging.Discard())

	_, err = nets.Get(ctx, "bus")
	assert.ErrorIs(t, err, storage.ErrNoBuild)

	nodes := []network.NodeRow{{ID: "01012", Services: "2", ServiceCount: 1}}
	b, err := db.SaveBuild(ctx, "bus", "multi", nodes, nil, nil)
	require.NoError(t, err)

	snap, err := nets.Get(ctx, "bus")
	require.NoError(t, err)
	assert.Equal(t, b.ID, snap.Build.ID)
	assert.Equal(t, nodes, snap.Nodes)

	cached, _ := store.Get(ctx, NetworkKey("bus"))
	assert.NotNil(t, cached)

	// a newer build stays hidden until the entry is replaced
	_, err = db.SaveBuild(ctx, "bus", "multi", nil, nil, nil)
	require.NoError(t, err)
	snap, err = nets.Get(ctx, "bus")
	require.NoError(t, err)
	assert.Equal(t, b.ID, snap.Build.ID)

	require.NoError(t, nets.Invalidate(ctx, "bus"))
	snap, err = nets.Get(ctx, "bus")
	require.NoError(t, err)
	assert.NotEqual(t, b.ID, snap.Build.ID)
}
