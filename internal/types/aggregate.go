package types

import (
	"encoding/json"
	"time"
)

// Aggregate is the normalized user or group record produced by a site
// backend. It is built once per fetch and not modified afterwards.
type Aggregate struct {
	// ID is the site-scoped identifier the aggregate was fetched with.
	ID string `json:"id" bson:"id"`

	// Name is the display title. Falls back to ID when the page has none.
	Name string `json:"name" bson:"name"`

	// Description is optional free text.
	Description string `json:"description,omitempty" bson:"description,omitempty"`

	// URL is the canonical profile or group link.
	URL string `json:"url" bson:"url"`

	// Image is an optional avatar or cover URL.
	Image string `json:"image,omitempty" bson:"image,omitempty"`

	// Posts are kept in document order.
	Posts []Post `json:"posts" bson:"posts"`
}

// User and Group are the two shapes an aggregate takes. They share the
// same fields; the group variant fills Post.PermalinkURL.
type (
	User  = Aggregate
	Group = Aggregate
)

// Post is a single timeline entry.
type Post struct {
	ID           string `json:"id" bson:"id"`
	Name         string `json:"name" bson:"name"`
	URL          string `json:"url" bson:"url"`
	PermalinkURL string `json:"permalink_url,omitempty" bson:"permalink_url,omitempty"`
	Message      string `json:"message" bson:"message"`
	CreatedTime  string `json:"created_time" bson:"created_time"`
}

// NewAggregate creates an aggregate with the required fields set and an
// empty, non-nil post list so it serializes as [] rather than null.
func NewAggregate(id, name, url string) *Aggregate {
	return &Aggregate{
		ID:    id,
		Name:  name,
		URL:   url,
		Posts: make([]Post, 0),
	}
}

// Len returns the number of posts.
func (a *Aggregate) Len() int {
	return len(a.Posts)
}

// ToJSON serializes the aggregate to JSON bytes.
func (a *Aggregate) ToJSON() ([]byte, error) {
	return json.Marshal(a)
}

// PostColumns is the column order used by ToFlatRows.
var PostColumns = []string{"_site_id", "_site_name", "id", "name", "url", "permalink_url", "message", "created_time"}

// ToFlatRows returns one row per post, suitable for CSV export.
func (a *Aggregate) ToFlatRows() [][]string {
	rows := make([][]string, 0, len(a.Posts))
	for _, p := range a.Posts {
		rows = append(rows, []string{
			a.ID,
			a.Name,
			p.ID,
			p.Name,
			p.URL,
			p.PermalinkURL,
			p.Message,
			p.CreatedTime,
		})
	}
	return rows
}

// CachedAggregate is an aggregate stored by the persistence layer together
// with the backend that produced it.
type CachedAggregate struct {
	Site      string     `json:"site" bson:"site"`
	Aggregate *Aggregate `json:"aggregate" bson:"aggregate"`
	FetchedAt time.Time  `json:"fetched_at" bson:"fetched_at"`
}
