package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kylevidrine/portal/internal/config"
	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/internal/customers/sqlite"
)

func TestOpenCustomerStoreDrivers(t *testing.T) {
	ctx := context.Background()

	mem, err := OpenCustomerStore(ctx, &config.Config{Store: config.StoreConfig{Driver: "memory"}})
	require.NoError(t, err)
	require.IsType(t, &customers.MemoryRepository{}, mem.Repo)
	require.NoError(t, mem.Ping(ctx))
	require.NoError(t, mem.Close())

	path := filepath.Join(t.TempDir(), "c.db")
	sq, err := OpenCustomerStore(ctx, &config.Config{Store: config.StoreConfig{Driver: "sqlite", SQLitePath: path}})
	require.NoError(t, err)
	require.IsType(t, &sqlite.Store{}, sq.Repo)
	require.NoError(t, sq.Ping(ctx))
	require.NoError(t, sq.Close())

	_, err = OpenCustomerStore(ctx, &config.Config{Store: config.StoreConfig{Driver: "mongo"}})
	require.Error(t, err)
	_, err = OpenCustomerStore(ctx, &config.Config{Store: config.StoreConfig{Driver: "cassandra"}})
	require.Error(t, err)
}
