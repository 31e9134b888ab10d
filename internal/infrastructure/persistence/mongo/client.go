// Package mongo stores ledger documents in MongoDB collections.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const defaultConnectTimeout = 10 * time.Second

var (
	// ErrEmptyURI is returned when no connection string is configured
	ErrEmptyURI = errors.New("mongo uri cannot be empty")
	// ErrEmptyDatabaseName is returned when no database is configured
	ErrEmptyDatabaseName = errors.New("database name cannot be empty")
)

// Client owns the driver connection and the ledger database handle
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// Connect dials MongoDB and verifies the connection with a ping
func Connect(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, ErrEmptyURI
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, ErrEmptyDatabaseName
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", cfg.Database))
	return &Client{client: client, db: client.Database(cfg.Database), logger: logger}, nil
}

// Database returns the ledger database handle
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Ping checks that the server is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// EnsureIndexes creates the unique and owner indexes of every ledger collection
func (c *Client) EnsureIndexes(ctx context.Context) error {
	for name, spec := range ledger.CollectionSpecs() {
		models := []mongo.IndexModel{{
			Keys:    bson.D{{Key: shared.FieldOwnerID, Value: 1}},
			Options: options.Index().SetName("owner_id_1"),
		}}
		for _, fields := range spec.UniqueFields {
			keys := bson.D{}
			for _, f := range fields {
				keys = append(keys, bson.E{Key: f, Value: 1})
			}
			models = append(models, mongo.IndexModel{
				Keys:    keys,
				Options: options.Index().SetUnique(true).SetName("unique_" + strings.Join(fields, "_")),
			})
		}
		if _, err := c.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo create index on %s failed: %w", name, err)
		}
		c.logger.Debug("Ensured indexes", zap.String("collection", name), zap.Int("count", len(models)))
	}
	return nil
}

// LedgerStore wires every ledger collection to this database
func (c *Client) LedgerStore() *ledger.Store {
	specs := ledger.CollectionSpecs()
	return &ledger.Store{
		Categories:    NewCollection[ledger.Category](c.db, specs[ledger.CollectionCategories]),
		Accounts:      NewCollection[ledger.Account](c.db, specs[ledger.CollectionAccounts]),
		Expenses:      NewCollection[ledger.Expense](c.db, specs[ledger.CollectionExpenses]),
		Incomes:       NewCollection[ledger.Income](c.db, specs[ledger.CollectionIncomes]),
		Budgets:       NewCollection[ledger.Budget](c.db, specs[ledger.CollectionBudgets]),
		BudgetHistory: NewCollection[ledger.BudgetHistoryEntry](c.db, specs[ledger.CollectionBudgetHistory]),
	}
}

// Close disconnects from the server
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect failed: %w", err)
	}
	return nil
}
