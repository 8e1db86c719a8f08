package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/joseph-ayodele/medilink/internal/common"
)

// MongoConfig locates the drug collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

type mongoDrug struct {
	ID         any    `bson:"_id,omitempty"`
	Link       string `bson:"link"`
	Title      string `bson:"title"`
	Price      string `bson:"price"`
	Meta       string `bson:"meta"`
	Desc       string `bson:"desc"`
	Detail     string `bson:"detail"`
	SideEffect string `bson:"sideEffect"`
}

func (m mongoDrug) drug() Drug {
	d := Drug{
		Link:       m.Link,
		Title:      m.Title,
		Price:      m.Price,
		Meta:       m.Meta,
		Desc:       m.Desc,
		Detail:     m.Detail,
		SideEffect: m.SideEffect,
	}
	switch id := m.ID.(type) {
	case bson.ObjectID:
		d.ID = id.Hex()
	case string:
		d.ID = id
	case nil:
	default:
		d.ID = fmt.Sprint(id)
	}
	return d
}

// MongoStore reads and writes the catalog in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

var _ Store = (*MongoStore)(nil)

// OpenMongo connects, pings and ensures the link and title indexes.
func OpenMongo(ctx context.Context, cfg MongoConfig, logger *slog.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Database == "" {
		cfg.Database = "MediLink"
	}
	if cfg.Collection == "" {
		cfg.Collection = "Drugs"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w: %w", common.ErrDatabase, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		logger.Error("catalog.mongo.ping_failed", "error", err)
		return nil, fmt.Errorf("mongo ping: %w: %w", common.ErrDatabase, err)
	}

	s := NewMongoStore(client, cfg.Database, cfg.Collection, logger)
	if err := s.ensureIndexes(ctx); err != nil {
		logger.Warn("catalog.mongo.index_failed", "error", err)
	}
	logger.Info("successfully connected to database", "backend", "mongo", "database", cfg.Database, "collection", cfg.Collection)
	return s, nil
}

// NewMongoStore wraps an existing client.
func NewMongoStore(client *mongo.Client, database, collection string, logger *slog.Logger) *MongoStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
		logger: logger,
	}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "link", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "title", Value: 1}}},
	})
	return err
}

// titleFilter matches titles containing search, case-insensitively and literally.
func titleFilter(search string) bson.M {
	if search == "" {
		return bson.M{}
	}
	return bson.M{"title": bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}}
}

func (s *MongoStore) Search(ctx context.Context, q Query) (Page, error) {
	q = q.Normalize()
	filter := titleFilter(q.Search)

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("count drugs: %w: %w", common.ErrDatabase, err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Offset())).
		SetLimit(int64(q.Limit))
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return Page{}, fmt.Errorf("find drugs: %w: %w", common.ErrDatabase, err)
	}
	var docs []mongoDrug
	if err := cur.All(ctx, &docs); err != nil {
		return Page{}, fmt.Errorf("decode drugs: %w: %w", common.ErrDatabase, err)
	}

	drugs := make([]Drug, 0, len(docs))
	for _, d := range docs {
		drugs = append(drugs, d.drug())
	}
	return newPage(q, drugs, total), nil
}

// Get accepts either an ObjectID hex string or a raw string _id.
func (s *MongoStore) Get(ctx context.Context, id string) (*Drug, error) {
	filter := bson.M{"_id": id}
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		filter = bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}

	var doc mongoDrug
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("drug %q: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("find drug: %w: %w", common.ErrDatabase, err)
	}
	d := doc.drug()
	return &d, nil
}

func (s *MongoStore) Upsert(ctx context.Context, d Drug) error {
	if err := d.Validate(); err != nil {
		return err
	}
	set := mongoDrug{
		Link:       d.Link,
		Title:      d.Title,
		Price:      d.Price,
		Meta:       d.Meta,
		Desc:       d.Desc,
		Detail:     d.Detail,
		SideEffect: d.SideEffect,
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"link": d.Link},
		bson.M{"$set": set},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		s.logger.Error("catalog.upsert.failed", "link", d.Link, "error", err)
		return fmt.Errorf("upsert drug: %w: %w", common.ErrDatabase, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
