package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/feedstalk/internal/observability"
	"github.com/IshaanNene/feedstalk/internal/types"
)

const (
	sitesCollection = "sites"
	usersCollection = "users"
)

// Connect opens a MongoDB client and pings it. The caller owns the client
// and must Disconnect it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}
	return client, nil
}

// MongoStore implements Store on an already connected database handle.
type MongoStore struct {
	sites   *mongo.Collection
	users   *mongo.Collection
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewMongoStore wraps db. The handle's pool is not managed by the store.
func NewMongoStore(db *mongo.Database, metrics *observability.Metrics, logger *slog.Logger) *MongoStore {
	return &MongoStore{
		sites:   db.Collection(sitesCollection),
		users:   db.Collection(usersCollection),
		metrics: metrics,
		logger:  logger.With("component", "mongo_store"),
	}
}

// Site loads a site definition by id.
func (s *MongoStore) Site(ctx context.Context, id string) (*types.SiteDefinition, error) {
	var def types.SiteDefinition
	err := s.sites.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&def)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("site %q: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("find site %q: %w", id, err)}
	}
	return &def, nil
}

// SaveSite validates and upserts a site definition.
func (s *MongoStore) SaveSite(ctx context.Context, def *types.SiteDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	_, err := s.sites.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: def.ID}},
		def,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("save site %q: %w", def.ID, err)}
	}

	s.logger.Debug("site definition saved", "id", def.ID)
	return nil
}

// SaveUser upserts the cached copy of an aggregate.
func (s *MongoStore) SaveUser(ctx context.Context, site string, user *types.Aggregate) error {
	doc := types.CachedAggregate{
		Site:      site,
		Aggregate: user,
		FetchedAt: time.Now().UTC(),
	}

	_, err := s.users.ReplaceOne(ctx,
		userFilter(site, user.ID),
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("save user %s/%s: %w", site, user.ID, err)}
	}

	if s.metrics != nil {
		s.metrics.AggregatesStored.Add(1)
	}
	s.logger.Debug("aggregate cached", "site", site, "id", user.ID, "posts", user.Len())
	return nil
}

// CachedUser returns the cached aggregate for site/id.
func (s *MongoStore) CachedUser(ctx context.Context, site, id string) (*types.CachedAggregate, error) {
	var doc types.CachedAggregate
	err := s.users.FindOne(ctx, userFilter(site, id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("cached user %s/%s: %w", site, id, types.ErrNotFound)
	}
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("find user %s/%s: %w", site, id, err)}
	}
	return &doc, nil
}

func userFilter(site, id string) bson.D {
	return bson.D{
		{Key: "site", Value: site},
		{Key: "aggregate.id", Value: id},
	}
}

// StoreExporter adapts a Store to the Exporter interface so fetched
// aggregates can be cached alongside a file export.
type StoreExporter struct {
	ctx   context.Context
	store Store
}

// NewStoreExporter creates an exporter that saves through store.
func NewStoreExporter(ctx context.Context, store Store) *StoreExporter {
	return &StoreExporter{ctx: ctx, store: store}
}

func (e *StoreExporter) Name() string { return "store" }

func (e *StoreExporter) Export(site string, a *types.Aggregate) error {
	return e.store.SaveUser(e.ctx, site, a)
}

func (e *StoreExporter) Close() error { return nil }
