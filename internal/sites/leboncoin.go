package sites

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/IshaanNene/feedstalk/internal/fetcher"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// DefaultLeboncoinURL is the search API host.
const DefaultLeboncoinURL = "https://api.leboncoin.fr"

const (
	leboncoinWebURL   = "https://www.leboncoin.fr"
	leboncoinLimit    = 35
	leboncoinDateForm = "2006-01-02 15:04:05"
)

var leboncoinSearchRe = regexp.MustCompile(`^(?:https?://)?(?:www\.)?leboncoin\.fr/recherche/?\?(.+)$`)

// Leboncoin turns a classified-ads search into a timeline of ads.
type Leboncoin struct {
	deps    Deps
	baseURL string
	paris   *time.Location
	logger  *slog.Logger
}

// NewLeboncoin creates the leboncoin backend.
func NewLeboncoin(deps Deps, baseURL string) *Leboncoin {
	deps = deps.withDefaults()
	if baseURL == "" {
		baseURL = DefaultLeboncoinURL
	}

	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		paris = time.UTC
	}

	return &Leboncoin{
		deps:    deps,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		paris:   paris,
		logger:  deps.Logger.With("component", "leboncoin"),
	}
}

func (l *Leboncoin) Name() string { return "leboncoin" }

// ID returns the raw query string of a search URL.
func (l *Leboncoin) ID(input string) (string, bool) {
	m := leboncoinSearchRe.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", false
	}
	return m[1], true
}

type leboncoinSearch struct {
	Limit     int              `json:"limit"`
	Filters   leboncoinFilters `json:"filters"`
	SortBy    string           `json:"sort_by"`
	SortOrder string           `json:"sort_order"`
}

type leboncoinFilters struct {
	Category *leboncoinCategory  `json:"category,omitempty"`
	Enums    map[string][]string `json:"enums"`
	Keywords *leboncoinKeywords  `json:"keywords,omitempty"`
}

type leboncoinCategory struct {
	ID string `json:"id"`
}

type leboncoinKeywords struct {
	Text string `json:"text"`
}

type leboncoinResult struct {
	Total int           `json:"total"`
	Ads   []leboncoinAd `json:"ads"`
}

type leboncoinAd struct {
	ListID    json.Number `json:"list_id"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	IndexDate string      `json:"index_date"`
	URL       string      `json:"url"`
}

// searchBody maps the web search query onto the finder API request.
func searchBody(query url.Values) leboncoinSearch {
	body := leboncoinSearch{
		Limit: leboncoinLimit,
		Filters: leboncoinFilters{
			Enums: map[string][]string{"ad_type": {"offer"}},
		},
		SortBy:    "time",
		SortOrder: "desc",
	}
	if c := query.Get("category"); c != "" {
		body.Filters.Category = &leboncoinCategory{ID: c}
	}
	if text := query.Get("text"); text != "" {
		body.Filters.Keywords = &leboncoinKeywords{Text: text}
	}
	return body
}

// User runs the search and returns one post per ad.
func (l *Leboncoin) User(ctx context.Context, _ storage.Store, id string) (*types.Aggregate, error) {
	query, err := url.ParseQuery(id)
	if err != nil {
		return nil, &types.ExtractionError{Site: l.Name(), ID: id, Err: fmt.Errorf("invalid search query: %w", err)}
	}

	var result leboncoinResult
	if err := fetcher.PostJSON(ctx, l.deps.Fetcher, l.baseURL+"/finder/search", searchBody(query), &result); err != nil {
		return nil, fmt.Errorf("leboncoin search %s: %w", id, err)
	}

	name := id
	if text := query.Get("text"); text != "" {
		name = text
	}
	user := types.NewAggregate(id, name, leboncoinWebURL+"/recherche?"+id)
	user.Description = fmt.Sprintf("%d ads", result.Total)

	for _, ad := range result.Ads {
		if ad.ListID == "" || ad.Subject == "" {
			l.deps.Metrics.PostsSkipped.Add(1)
			l.logger.Debug("ad skipped", "search", id, "list_id", ad.ListID)
			continue
		}
		user.Posts = append(user.Posts, types.Post{
			ID:          ad.ListID.String(),
			Name:        ad.Subject,
			URL:         ad.URL,
			Message:     ad.Body,
			CreatedTime: l.createdTime(ad.IndexDate),
		})
	}
	l.deps.Metrics.PostsExtracted.Add(int64(user.Len()))

	return user, nil
}

// createdTime reads the API's local Paris timestamp. Unknown layouts are
// returned verbatim.
func (l *Leboncoin) createdTime(raw string) string {
	t, err := time.ParseInLocation(leboncoinDateForm, raw, l.paris)
	if err != nil {
		return raw
	}
	return t.Format(time.RFC3339)
}
