// Package bootstrap opens the process-wide dependencies selected by config.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kylevidrine/portal/internal/config"
	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/internal/customers/sqlite"
	"github.com/kylevidrine/portal/internal/database"
	"github.com/kylevidrine/portal/pkg/logger"
)

// CustomerStore is an opened customer repository plus its lifecycle hooks.
type CustomerStore struct {
	Repo   customers.Repository
	Driver string
	ping   func(ctx context.Context) error
	close  func() error
}

// Ping reports backend reachability; the memory driver is always reachable.
func (s *CustomerStore) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func (s *CustomerStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenCustomerStore opens the backend named by cfg.Store.Driver.
func OpenCustomerStore(ctx context.Context, cfg *config.Config) (*CustomerStore, error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warnf("customer store: in-memory, records are lost on restart")
		return &CustomerStore{Repo: customers.NewMemoryRepository(), Driver: "memory"}, nil
	case "", "sqlite":
		st, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Infof("customer store: sqlite at %s", cfg.Store.SQLitePath)
		return &CustomerStore{Repo: st, Driver: "sqlite", ping: st.Ping, close: st.Close}, nil
	case "mongo", "mongodb":
		return openMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
}

func openMongo(ctx context.Context, cfg *config.Config) (*CustomerStore, error) {
	if cfg.MongoDB.URI == "" {
		return nil, fmt.Errorf("STORE_DRIVER=mongo requires MONGODB_URI")
	}
	// Retry/backoff when connecting to MongoDB to tolerate startup races
	const maxAttempts = 5
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err == nil {
			col := client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
			repo, err := customers.NewMongoRepository(ctx, col)
			if err != nil {
				_ = client.Disconnect(context.Background())
				return nil, err
			}
			logger.Infof("customer store: mongo %s.%s", cfg.MongoDB.Database, cfg.MongoDB.Collection)
			return &CustomerStore{
				Repo:   repo,
				Driver: "mongo",
				ping:   func(ctx context.Context) error { return client.Ping(ctx, nil) },
				close:  func() error { return client.Disconnect(context.Background()) },
			}, nil
		}
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("could not connect to MongoDB after %d attempts: %w", maxAttempts, lastErr)
}
