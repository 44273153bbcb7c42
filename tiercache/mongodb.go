package tiercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDoc mirrors the teacher's cacheEntry document shape.
type mongoDoc struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	CreatedAt time.Time `bson:"createdAt"`
}

type mongoBlobs struct {
	client     *mongo.Client
	collection *mongo.Collection
	keyPrefix  string
	timeout    time.Duration
}

func (c *mongoBlobs) mongoKey(key string) string {
	return c.keyPrefix + key
}

// MongoConfig configures the mongodb-backed Blobs tier.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	KeyPrefix  string
	Timeout    time.Duration
}

func (c MongoConfig) withDefaults() MongoConfig {
	if c.Collection == "" {
		c.Collection = "httpengine_cache"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "cache:"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// NewMongo connects to MongoDB per config and returns a Blobs tier
// backed by the configured collection.
func NewMongo(ctx context.Context, config MongoConfig) (Blobs, error) {
	if config.URI == "" || config.Database == "" {
		return nil, errors.New("tiercache: mongo URI and database are required")
	}
	config = config.withDefaults()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("tiercache: failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("tiercache: failed to ping mongodb: %w", err)
	}

	coll := client.Database(config.Database).Collection(config.Collection)
	return &mongoBlobs{client: client, collection: coll, keyPrefix: config.KeyPrefix, timeout: config.Timeout}, nil
}

func (c *mongoBlobs) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var doc mongoDoc
	err := c.collection.FindOne(ctx, bson.M{"_id": c.mongoKey(key)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("tiercache: mongo get failed for key %q: %w", key, err)
	}
	return doc.Data, true, nil
}

func (c *mongoBlobs) Set(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	doc := mongoDoc{Key: c.mongoKey(key), Data: data, CreatedAt: time.Now()}
	opts := options.Replace().SetUpsert(true)
	if _, err := c.collection.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, opts); err != nil {
		return fmt.Errorf("tiercache: mongo set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *mongoBlobs) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.collection.DeleteOne(ctx, bson.M{"_id": c.mongoKey(key)}); err != nil {
		return fmt.Errorf("tiercache: mongo delete failed for key %q: %w", key, err)
	}
	return nil
}

func (c *mongoBlobs) Close() error {
	return c.client.Disconnect(context.Background())
}
