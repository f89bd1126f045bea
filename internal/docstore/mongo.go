package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	// URL is the MongoDB connection URL (e.g., "mongodb://localhost:27017")
	URL string

	// Database is the database name (defaults to "scaffold")
	Database string
}

// Connect connects to MongoDB and verifies the connection.
func Connect(ctx context.Context, cfg MongoConfig) (*mongo.Client, *mongo.Database, error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("MongoDB URL is required")
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = "scaffold"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, client.Database(dbName), nil
}

// Mongo implements Collection on a MongoDB collection. Documents key on a
// string "_id" assigned from a UUID at insert time.
type Mongo[T any, PT Doc[T]] struct {
	coll *mongo.Collection
}

// NewMongo wraps the named collection. Index creation failures are
// non-fatal; the indexes may already exist.
func NewMongo[T any, PT Doc[T]](database *mongo.Database, name string, indexes ...mongo.IndexModel) (*Mongo[T, PT], error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	coll := database.Collection(name)

	if len(indexes) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
			return nil, fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}

	return &Mongo[T, PT]{coll: coll}, nil
}

func (m *Mongo[T, PT]) Insert(ctx context.Context, record PT) error {
	if record.DocumentID() == "" {
		record.SetDocumentID(uuid.NewString())
	}
	if _, err := m.coll.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("insert into %s: %w", m.coll.Name(), err)
	}
	return nil
}

func (m *Mongo[T, PT]) FindByID(ctx context.Context, id string) (PT, error) {
	var out T
	err := m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s by id: %w", m.coll.Name(), err)
	}
	return PT(&out), nil
}

func (m *Mongo[T, PT]) Find(ctx context.Context, q Query) ([]PT, error) {
	opts := options.Find()
	if q.Sort != nil {
		dir := 1
		if q.Sort.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.Sort.Field, Value: dir}})
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := m.coll.Find(ctx, toFilter(q.Filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.coll.Name(), err)
	}
	defer cursor.Close(ctx)

	result := make([]PT, 0)
	for cursor.Next(ctx) {
		var row T
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", m.coll.Name(), err)
		}
		result = append(result, PT(&row))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s cursor: %w", m.coll.Name(), err)
	}
	return result, nil
}

func (m *Mongo[T, PT]) Count(ctx context.Context, filter map[string]any) (int64, error) {
	n, err := m.coll.CountDocuments(ctx, toFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", m.coll.Name(), err)
	}
	return n, nil
}

func (m *Mongo[T, PT]) UpdateByID(ctx context.Context, id string, fields map[string]any) (PT, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.D{{Key: "$set", Value: bson.M(fields)}}

	var out T
	err := m.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, opts).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("update %s by id: %w", m.coll.Name(), err)
	}
	return PT(&out), nil
}

func (m *Mongo[T, PT]) DeleteByID(ctx context.Context, id string) (PT, error) {
	var out T
	err := m.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("delete %s by id: %w", m.coll.Name(), err)
	}
	return PT(&out), nil
}

// IsDuplicateKey reports whether err is a uniqueness-constraint violation.
// The routing layer translates these into conflict responses.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || mongo.IsDuplicateKeyError(err)
}

func toFilter(filter map[string]any) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}
