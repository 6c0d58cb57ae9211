package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig selects the database and collections backing the directory.
type MongoConfig struct {
	URI                 string
	Database            string
	UsersCollection     string
	AnalyticsCollection string
	Timeout             time.Duration
}

// Mongo is a long-lived client to the directory database.
type Mongo struct {
	client    *mongo.Client
	db        *mongo.Database
	cfg       MongoConfig
	users     *MongoCollection
	analytics *MongoCollection
}

// ConnectMongo creates a client. The driver connects lazily, so an unreachable
// server surfaces on the first query or Ping rather than here.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.Timeout).
		SetConnectTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	return &Mongo{
		client:    client,
		db:        db,
		cfg:       cfg,
		users:     &MongoCollection{coll: db.Collection(cfg.UsersCollection), timeout: cfg.Timeout},
		analytics: &MongoCollection{coll: db.Collection(cfg.AnalyticsCollection), timeout: cfg.Timeout},
	}, nil
}

// Users returns the profile collection.
func (m *Mongo) Users() *MongoCollection { return m.users }

// Analytics returns the analytics collection.
func (m *Mongo) Analytics() *MongoCollection { return m.analytics }

// Ping verifies the primary is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

// MongoCollection adapts *mongo.Collection to Collection.
type MongoCollection struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// FindOne returns the first document matching filter, or ErrNoDocument.
func (c *MongoCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var doc bson.M
	err := c.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}
