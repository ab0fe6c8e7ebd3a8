package sites

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/feedstalk/internal/config"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// prefixSite owns every input starting with prefix.
type prefixSite struct {
	name   string
	prefix string
	calls  int
}

func (p *prefixSite) Name() string { return p.name }

func (p *prefixSite) ID(input string) (string, bool) {
	return strings.CutPrefix(input, p.prefix)
}

func (p *prefixSite) User(_ context.Context, _ storage.Store, id string) (*types.Aggregate, error) {
	p.calls++
	return types.NewAggregate(id, p.name, "https://"+p.name+".test/"+id), nil
}

func TestUserUnknownSiteIsNotFound(t *testing.T) {
	s := NewDefault(&config.DefaultConfig().Sites, Deps{Logger: testLogger})

	for _, name := range []string{"twitter", "", "Facebook"} {
		_, err := s.User(context.Background(), nil, name, "123")
		assert.True(t, errors.Is(err, types.ErrNotFound), "name %q", name)
		assert.True(t, errors.Is(err, types.ErrUnknownSite), "name %q", name)
	}
}

func TestFindFirstRegisteredWins(t *testing.T) {
	s := New(nil, testLogger)
	first := &prefixSite{name: "first", prefix: "x:"}
	second := &prefixSite{name: "second", prefix: "x:"}
	require.NoError(t, s.Register(first))
	require.NoError(t, s.Register(second))

	for i := 0; i < 20; i++ {
		name, id, ok := s.Find("x:abc")
		require.True(t, ok)
		assert.Equal(t, "first", name)
		assert.Equal(t, "abc", id)
	}

	user, err := s.User(context.Background(), nil, "second", "abc")
	require.NoError(t, err)
	assert.Equal(t, "second", user.Name)
	assert.Equal(t, 1, second.calls)
	assert.Zero(t, first.calls)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := New(nil, testLogger)
	require.NoError(t, s.Register(&prefixSite{name: "a"}))
	assert.Error(t, s.Register(&prefixSite{name: "a"}))
	assert.Equal(t, []string{"a"}, s.Names())
}

func TestDefaultRegistryFind(t *testing.T) {
	s := NewDefault(&config.DefaultConfig().Sites, Deps{Logger: testLogger})

	assert.Equal(t, []string{"facebook", "leboncoin", "instagram", "youtube", "custom"}, s.Names())

	tests := []struct {
		input string
		name  string
		id    string
	}{
		{"https://www.facebook.com/groups/gophers/", "facebook", "gophers"},
		{"mobile.facebook.com/groups/123456?ref=share", "facebook", "123456"},
		{"https://www.leboncoin.fr/recherche?category=2&text=clio", "leboncoin", "category=2&text=clio"},
		{"https://www.instagram.com/golang/", "instagram", "golang"},
		{"https://www.youtube.com/channel/UCxyz_123-a", "youtube", "UCxyz_123-a"},
		{"custom:blog", "custom", "blog"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			name, id, ok := s.Find(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.id, id)
		})
	}

	for _, input := range []string{
		"https://twitter.com/golang",
		"https://www.instagram.com/p/Cabc123/",
		"https://www.facebook.com/golang",
		"custom:",
		"",
	} {
		_, _, ok := s.Find(input)
		assert.False(t, ok, "input %q", input)
	}
}

func TestPreviewWithoutCustomBackend(t *testing.T) {
	s := New(nil, testLogger)
	_, err := s.Preview(context.Background(), &types.SiteDefinition{ID: "x"})
	assert.ErrorIs(t, err, types.ErrUnknownSite)
}

func TestRegistryCountsFailures(t *testing.T) {
	deps := newTestDeps(t)
	srv := serveBody(t, "application/atom+xml", "definitely not a feed")

	s := New(deps.Metrics, testLogger)
	require.NoError(t, s.Register(NewYoutube(deps, srv.URL)))

	_, err := s.User(context.Background(), nil, "youtube", "UC1")
	require.Error(t, err)
	assert.Equal(t, int64(1), deps.Metrics.AggregatesFailed.Load())
	assert.Equal(t, int64(1), deps.Metrics.ParseErrors.Load())
}
