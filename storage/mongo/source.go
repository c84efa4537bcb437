// Package mongo reads the medication catalog from a MongoDB collection holding
// documents of the form {name: string, vector: [number]}.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/poiesic/medimatch/core"
	"github.com/poiesic/medimatch/storage"
)

// DefaultCollection is the collection the catalog is read from.
const DefaultCollection = "medications"

// medicationDocument is the stored shape. Vectors are stored as doubles.
type medicationDocument struct {
	Name   string    `bson:"name"`
	Vector []float64 `bson:"vector"`
}

// Source implements storage.MedicationSource over a MongoDB collection.
type Source struct {
	collection *mongo.Collection
	client     *mongo.Client
	logger     *slog.Logger
}

var _ storage.MedicationSource = (*Source)(nil)

// NewSource wraps an existing collection. The caller owns the client.
func NewSource(collection *mongo.Collection) *Source {
	return &Source{
		collection: collection,
		logger:     slog.Default().With("component", "mongo-source"),
	}
}

// Connect dials uri and returns a Source over database.collection.
// An empty collection name selects DefaultCollection. Close disconnects the client.
func Connect(ctx context.Context, uri, database, collection string) (*Source, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	s := NewSource(client.Database(database).Collection(collection))
	s.client = client
	return s, nil
}

// LoadMedications reads every document with a projection of name and vector only.
// Documents that fail to decode are returned as empty medications so the
// catalog counts them as skipped.
func (s *Source) LoadMedications(ctx context.Context) ([]core.Medication, error) {
	opts := options.Find().SetProjection(bson.D{{Key: "name", Value: 1}, {Key: "vector", Value: 1}, {Key: "_id", Value: 0}})
	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find: %w", err)
	}
	defer cursor.Close(ctx)

	meds, undecodable, err := s.decodeAll(ctx, cursor)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded medications", "collection", s.collection.Name(), "count", len(meds), "undecodable", undecodable)
	return meds, nil
}

func (s *Source) decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]core.Medication, int, error) {
	var meds []core.Medication
	undecodable := 0
	for cursor.Next(ctx) {
		var doc medicationDocument
		if err := cursor.Decode(&doc); err != nil {
			s.logger.Warn("skipping undecodable document", "err", err)
			undecodable++
			meds = append(meds, core.Medication{})
			continue
		}
		meds = append(meds, toMedication(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, undecodable, fmt.Errorf("mongo: read cursor: %w", err)
	}
	return meds, undecodable, nil
}

// Close disconnects the client if this Source created it.
func (s *Source) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func toMedication(doc medicationDocument) core.Medication {
	var vector []float32
	if len(doc.Vector) > 0 {
		vector = make([]float32, len(doc.Vector))
		for i, v := range doc.Vector {
			vector[i] = float32(v)
		}
	}
	return core.Medication{
		Id:     core.IDFromContent(doc.Name),
		Name:   doc.Name,
		Vector: vector,
	}
}
