package stats

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/matzehuels/octi/pkg/errors"
)

// Default MongoDB names.
const (
	DefaultDatabase   = "octi"
	DefaultCollection = "attempts"
)

const connectTimeout = 10 * time.Second

// MongoSink inserts records into a MongoDB collection.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoSink connects to the deployment at uri. Records go to the
// database named in the URI, or DefaultDatabase, and collection
// DefaultCollection.
func NewMongoSink(ctx context.Context, uri string) (*MongoSink, error) {
	cs := options.Client().ApplyURI(uri).SetConnectTimeout(connectTimeout)
	if err := cs.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid stats URI")
	}
	client, err := mongo.Connect(ctx, cs)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "connect stats database")
	}
	pctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "ping stats database")
	}
	return &MongoSink{
		client: client,
		coll:   client.Database(databaseName(uri)).Collection(DefaultCollection),
	}, nil
}

// Write inserts records in one batch.
func (s *MongoSink) Write(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = r
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "insert %d stats records", len(records))
	}
	return nil
}

// Close disconnects from the deployment.
func (s *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// databaseName returns the database named in uri, or DefaultDatabase.
func databaseName(uri string) string {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil || cs.Database == "" {
		return DefaultDatabase
	}
	return cs.Database
}
