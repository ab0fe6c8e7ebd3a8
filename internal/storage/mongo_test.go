package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/IshaanNene/feedstalk/internal/types"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("site found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "feedstalk.sites", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "blog"},
			{Key: "url", Value: "https://blog.test/"},
			{Key: "engine", Value: "css"},
			{Key: "item", Value: "article"},
			{Key: "title", Value: "h2"},
			{Key: "message", Value: "p"},
			{Key: "date", Value: "time"},
			{Key: "link", Value: "a.permalink"},
		}))

		store := NewMongoStore(mt.DB, nil, testLogger)
		def, err := store.Site(context.Background(), "blog")
		require.NoError(t, err)
		assert.Equal(t, "blog", def.ID)
		assert.Equal(t, types.EngineCSS, def.Engine)
		assert.Equal(t, "a.permalink", def.Link)
		require.NoError(t, def.Validate())
	})

	mt.Run("site missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "feedstalk.sites", mtest.FirstBatch))

		store := NewMongoStore(mt.DB, nil, testLogger)
		_, err := store.Site(context.Background(), "nope")
		assert.True(t, errors.Is(err, types.ErrNotFound))
	})

	mt.Run("save site rejects invalid definition", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB, nil, testLogger)
		err := store.SaveSite(context.Background(), &types.SiteDefinition{ID: "x", URL: "https://x.test"})
		assert.ErrorContains(t, err, "item selector is required")
	})

	mt.Run("save site upserts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
		))

		store := NewMongoStore(mt.DB, nil, testLogger)
		err := store.SaveSite(context.Background(), &types.SiteDefinition{
			ID: "blog", URL: "https://blog.test/",
			Item: "article", Title: "h2", Message: "p", Date: "time", Link: "a",
		})
		require.NoError(t, err)
	})

	mt.Run("save user error is a storage error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key",
		}))

		store := NewMongoStore(mt.DB, nil, testLogger)
		err := store.SaveUser(context.Background(), "facebook", types.NewAggregate("42", "g", "u"))

		var sErr *types.StorageError
		require.True(t, errors.As(err, &sErr))
		assert.Equal(t, "mongodb", sErr.Backend)
	})

	mt.Run("cached user round trip", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "feedstalk.users", mtest.FirstBatch, bson.D{
			{Key: "site", Value: "facebook"},
			{Key: "aggregate", Value: bson.D{
				{Key: "id", Value: "42"},
				{Key: "name", Value: "Gophers"},
				{Key: "url", Value: "https://mobile.facebook.com/groups/42"},
				{Key: "posts", Value: bson.A{
					bson.D{{Key: "id", Value: "1"}, {Key: "name", Value: "a"}, {Key: "message", Value: "m"}, {Key: "created_time", Value: "now"}},
				}},
			}},
		}))

		store := NewMongoStore(mt.DB, nil, testLogger)
		cached, err := store.CachedUser(context.Background(), "facebook", "42")
		require.NoError(t, err)
		assert.Equal(t, "facebook", cached.Site)
		assert.Equal(t, "Gophers", cached.Aggregate.Name)
		require.Len(t, cached.Aggregate.Posts, 1)
		assert.Equal(t, "1", cached.Aggregate.Posts[0].ID)
	})
}
