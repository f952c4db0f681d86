package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultMongoDatabase is the only database the connection string may name
	DefaultMongoDatabase = "findus"
	// DefaultMongoCollection holds the credential records
	DefaultMongoCollection = "credentials"
)

// mongoCollection is the subset of *mongo.Collection used by MongoStore
type mongoCollection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// MongoStore reads and updates credential documents keyed by "provider"
type MongoStore struct {
	coll   mongoCollection
	client *mongo.Client
}

// OpenMongo connects to the database named in uri. The database must be
// expectedDB and the server must answer a ping.
func OpenMongo(ctx context.Context, uri, expectedDB string, timeout time.Duration) (*mongo.Client, *mongo.Database, error) {
	dbName, err := DatabaseFromURI(uri)
	if err != nil {
		return nil, nil, err
	}
	if expectedDB == "" {
		expectedDB = DefaultMongoDatabase
	}
	if dbName != expectedDB {
		return nil, nil, fmt.Errorf("invalid database in connection string: %q, expected %q", dbName, expectedDB)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("could not connect to the MongoDB server: %w", err)
	}

	return client, client.Database(dbName), nil
}

// NewMongoStore uses the named collection of db, which must already exist
func NewMongoStore(ctx context.Context, db *mongo.Database, collection string) (*MongoStore, error) {
	if collection == "" {
		collection = DefaultMongoCollection
	}

	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	if !slices.Contains(names, collection) {
		return nil, fmt.Errorf("the %q collection could not be found in database %q", collection, db.Name())
	}

	return &MongoStore{
		coll:   db.Collection(collection),
		client: db.Client(),
	}, nil
}

// Get returns the document whose provider field equals provider
func (s *MongoStore) Get(ctx context.Context, provider string) (*Credentials, error) {
	var c Credentials
	err := s.coll.FindOne(ctx, bson.D{{Key: "provider", Value: provider}}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: provider %q", ErrNotFound, provider)
		}
		return nil, fmt.Errorf("failed to find credentials: %w", err)
	}
	return &c, nil
}

// UpdateTokens sets the OAuth fields on the provider document, creating it
// when missing
func (s *MongoStore) UpdateTokens(ctx context.Context, provider string, update TokenUpdate) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "provider", Value: provider}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "expiresAt", Value: update.ExpiresAt},
			{Key: "accessToken", Value: update.AccessToken},
			{Key: "refreshToken", Value: update.RefreshToken},
		}}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	return nil
}

// Close disconnects the underlying client
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// DatabaseFromURI returns the database named in a mongodb:// or
// mongodb+srv:// connection string
func DatabaseFromURI(uri string) (string, error) {
	if strings.TrimSpace(uri) == "" {
		return "", fmt.Errorf("mongo connection string is empty or whitespace only")
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid mongo connection string: %w", err)
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return "", fmt.Errorf("invalid mongo connection string scheme: %q", u.Scheme)
	}

	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return "", fmt.Errorf("mongo connection string does not name a database")
	}
	return name, nil
}
