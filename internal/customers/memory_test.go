package customers_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/internal/customers/customerstest"
	"github.com/kylevidrine/portal/internal/database"
)

func TestMemoryRepository_Contract(t *testing.T) {
	customerstest.RunRepositoryContract(t, func(t *testing.T) customers.Repository {
		return customers.NewMemoryRepository()
	})
}

// Runs against a real server only when MONGODB_TEST_URI is set.
func TestMongoRepository_Contract(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx := context.Background()
	client, err := database.ConnectMongo(ctx, uri, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	customerstest.RunRepositoryContract(t, func(t *testing.T) customers.Repository {
		col := client.Database("portal_test").Collection("customers_" + time.Now().Format("150405.000000"))
		t.Cleanup(func() { _ = col.Drop(ctx) })
		repo, err := customers.NewMongoRepository(ctx, col)
		require.NoError(t, err)
		return repo
	})
}
