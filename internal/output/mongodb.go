// internal/output/mongodb.go
package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoDatabase is used when neither the option nor the URI names a database
const DefaultMongoDatabase = "uiverify"

// MongoDBWriter inserts one document per row
type MongoDBWriter struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoDBWriter connects to MongoDB and selects the collection
func NewMongoDBWriter(connectionString, database, collection string) (*MongoDBWriter, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("MongoDB connection string is required")
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultTable
	}

	timeout := 30 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(connectionString).
		SetMaxPoolSize(10).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoDBWriter{
		client:     client,
		collection: client.Database(database).Collection(collection),
		timeout:    timeout,
	}, nil
}

// Write inserts data as documents
func (w *MongoDBWriter) Write(data []map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	docs := make([]interface{}, len(data))
	for i, row := range data {
		doc := make(bson.M, len(row)+1)
		for k, v := range row {
			doc[k] = v
		}
		doc["written_at"] = time.Now().UTC()
		docs[i] = doc
	}

	result, err := w.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to insert documents: %w", err)
	}
	if len(result.InsertedIDs) != len(docs) {
		return fmt.Errorf("inserted %d of %d documents", len(result.InsertedIDs), len(docs))
	}
	return nil
}

// Close disconnects from MongoDB
func (w *MongoDBWriter) Close() error {
	if w.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := w.client.Disconnect(ctx)
	w.client = nil
	return err
}
