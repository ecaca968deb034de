// Package database owns the process-wide document store handles.
//
// Handles are opened on first use and reused afterwards. A failed attempt is
// not cached, so the next caller retries the connection.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig describes how to reach MongoDB.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// FirestoreConfig describes how to reach Firestore.
type FirestoreConfig struct {
	ProjectID    string
	Database     string
	EmulatorHost string
}

// Connector lazily opens and caches store clients.
type Connector struct {
	mongoCfg     MongoConfig
	firestoreCfg FirestoreConfig
	logger       *slog.Logger

	mu        sync.Mutex
	mongo     *mongo.Client
	firestore *firestore.Client
}

// NewConnector returns a Connector; nothing is dialled until a handle is requested.
func NewConnector(mongoCfg MongoConfig, firestoreCfg FirestoreConfig, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	if mongoCfg.ConnectTimeout <= 0 {
		mongoCfg.ConnectTimeout = 10 * time.Second
	}
	return &Connector{mongoCfg: mongoCfg, firestoreCfg: firestoreCfg, logger: logger}
}

// Mongo returns the configured database, connecting on first call.
func (c *Connector) Mongo(ctx context.Context) (*mongo.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mongo != nil {
		return c.mongo.Database(c.mongoCfg.Database), nil
	}
	if c.mongoCfg.URI == "" {
		return nil, errors.New("mongodb uri is required")
	}
	if c.mongoCfg.Database == "" {
		return nil, errors.New("mongodb database name is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.mongoCfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(c.mongoCfg.URI).
		SetServerSelectionTimeout(c.mongoCfg.ConnectTimeout).
		SetAppName("evently-user-service")
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	c.logger.Info("mongo connected", "database", c.mongoCfg.Database)
	c.mongo = client
	return client.Database(c.mongoCfg.Database), nil
}

// Firestore returns the shared Firestore client, creating it on first call.
func (c *Connector) Firestore(ctx context.Context) (*firestore.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.firestore != nil {
		return c.firestore, nil
	}
	if c.firestoreCfg.ProjectID == "" {
		return nil, errors.New("gcp project id is required for firestore")
	}
	if c.firestoreCfg.EmulatorHost != "" {
		if err := os.Setenv("FIRESTORE_EMULATOR_HOST", c.firestoreCfg.EmulatorHost); err != nil {
			return nil, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
		}
	}

	var (
		client *firestore.Client
		err    error
	)
	if c.firestoreCfg.Database != "" {
		client, err = firestore.NewClientWithDatabase(ctx, c.firestoreCfg.ProjectID, c.firestoreCfg.Database)
	} else {
		client, err = firestore.NewClient(ctx, c.firestoreCfg.ProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}

	c.logger.Info("firestore client created", "project", c.firestoreCfg.ProjectID, "database", c.firestoreCfg.Database)
	c.firestore = client
	return client, nil
}

// Close releases whichever clients were opened.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.mongo != nil {
		if err := c.mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongo disconnect: %w", err))
		}
		c.mongo = nil
	}
	if c.firestore != nil {
		if err := c.firestore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("firestore close: %w", err))
		}
		c.firestore = nil
	}
	return errors.Join(errs...)
}
