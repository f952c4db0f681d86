// Package orders reads the locally stored order records that the invoice
// export joins with Fortnox invoices by document number.
package orders

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollection holds the order documents
const DefaultCollection = "invoices"

// StatusCompleted is the order status that needs a manual refund check when
// the invoice was credited
const StatusCompleted = "completed"

// ErrNotFound is returned when no order has the requested document number
var ErrNotFound = errors.New("order not found")

// Order is the subset of a stored order used by the export
type Order struct {
	DocumentNumber  int    `bson:"DocumentNumber"`
	YourOrderNumber any    `bson:"YourOrderNumber"`
	OrderStatus     string `bson:"OrderStatus"`
	PaymentMethod   string `bson:"PaymentMethod"`
}

// OrderID returns YourOrderNumber as text, whether stored as string or number
func (o *Order) OrderID() string {
	if o.YourOrderNumber == nil {
		return ""
	}
	return fmt.Sprint(o.YourOrderNumber)
}

// Lookup finds the order booked under a Fortnox invoice number
type Lookup interface {
	FindByDocumentNumber(ctx context.Context, documentNumber int) (*Order, error)
}

type findOner interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// MongoLookup queries an orders collection
type MongoLookup struct {
	coll findOner
}

// NewMongoLookup uses the named collection of db
func NewMongoLookup(db *mongo.Database, collection string) *MongoLookup {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoLookup{coll: db.Collection(collection)}
}

// FindByDocumentNumber returns the order whose DocumentNumber matches
func (l *MongoLookup) FindByDocumentNumber(ctx context.Context, documentNumber int) (*Order, error) {
	var o Order
	err := l.coll.FindOne(ctx, bson.D{{Key: "DocumentNumber", Value: documentNumber}}).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: document number %d", ErrNotFound, documentNumber)
		}
		return nil, fmt.Errorf("failed to find order %d: %w", documentNumber, err)
	}
	return &o, nil
}
