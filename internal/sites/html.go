package sites

import (
	"log/slog"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/feedstalk/internal/parser"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// postRules drive the HTML post extraction shared by the facebook and
// custom backends.
type postRules struct {
	item    parser.Query
	title   parser.Query
	message parser.Query
	date    parser.Query
	link    parser.Query

	// idPattern recovers the post id from the absolute permalink.
	idPattern *regexp.Regexp

	// fragment rewrites title and message markup; permalink turns the raw
	// href into an absolute URL.
	fragment  func(string) string
	permalink func(string) string

	// group posts carry the permalink in both url and permalink_url.
	group bool
}

// ogAggregate fills the top-level fields from Open Graph tags. Name and URL
// fall back to the given values; description and image stay empty.
func ogAggregate(c *parser.SelectorCache, doc *goquery.Document, id, name, url string) *types.Aggregate {
	a := types.NewAggregate(id,
		parser.OGOr(c, doc, "title", name),
		parser.OGOr(c, doc, "url", url),
	)
	a.Description = parser.OGOr(c, doc, "description", "")
	a.Image = parser.OGOr(c, doc, "image", "")
	return a
}

// extractPosts runs rules over every post container in document order.
// A container missing any required field is skipped; the rest of the page
// is still processed.
func (d Deps) extractPosts(doc *goquery.Document, rules postRules, logger *slog.Logger) []types.Post {
	posts := make([]types.Post, 0)

	parser.SelectAll(doc.Selection, rules.item).Each(func(i int, item *goquery.Selection) {
		post, missing, ok := d.extractPost(item, rules)
		if !ok {
			d.Metrics.PostsSkipped.Add(1)
			logger.Debug("post skipped", "index", i, "missing", missing)
			return
		}
		posts = append(posts, post)
	})

	d.Metrics.PostsExtracted.Add(int64(len(posts)))
	return posts
}

// extractPost assembles one post. When a field cannot be extracted it
// returns the field's name and false.
func (d Deps) extractPost(item *goquery.Selection, rules postRules) (types.Post, string, bool) {
	title, ok := parser.SelectFirst(item, rules.title)
	if !ok {
		return types.Post{}, "title", false
	}

	message, ok := parser.SelectFirst(item, rules.message)
	if !ok {
		return types.Post{}, "message", false
	}

	date, ok := parser.SelectFirst(item, rules.date)
	if !ok {
		return types.Post{}, "date", false
	}
	rawDate := parser.Value(date, "text")
	if rawDate == "" {
		return types.Post{}, "date", false
	}

	link, ok := parser.SelectFirst(item, rules.link)
	if !ok {
		return types.Post{}, "link", false
	}
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return types.Post{}, "href", false
	}
	permalink := rules.permalink(href)

	id, err := parser.ExtractID(permalink, rules.idPattern)
	if err != nil {
		return types.Post{}, "id", false
	}

	post := types.Post{
		ID:          id,
		Name:        rules.fragment(parser.Inner(title)),
		URL:         permalink,
		Message:     rules.fragment(parser.Inner(message)),
		CreatedTime: d.Dates.Normalize(rawDate),
	}
	if rules.group {
		post.PermalinkURL = permalink
	}
	return post, "", true
}
