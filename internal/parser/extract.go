package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/feedstalk/internal/types"
)

// SelectFirst returns the first element below root matching q. The boolean is
// false when nothing matches; callers decide whether that is fatal.
func SelectFirst(root *goquery.Selection, q Query) (*goquery.Selection, bool) {
	found := q.Find(root).First()
	return found, found.Length() > 0
}

// SelectAll returns every element below root matching q, in document order.
// The result is empty, never nil, when nothing matches.
func SelectAll(root *goquery.Selection, q Query) *goquery.Selection {
	return q.Find(root)
}

// Inner returns the inner HTML of the first element in sel.
func Inner(sel *goquery.Selection) string {
	h, err := sel.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(h)
}

// Value reads one value out of sel according to attribute:
// text (the default), html, outerHTML or any attribute name.
func Value(sel *goquery.Selection, attribute string) string {
	var val string

	switch attribute {
	case "", "text":
		val = strings.TrimSpace(sel.Text())
	case "html", "innerHTML":
		val = Inner(sel)
	case "outerHTML":
		val, _ = goquery.OuterHtml(sel)
	default:
		val, _ = sel.Attr(attribute)
	}

	return val
}

// OG returns the content of the first <meta property="og:name"> tag in the
// document head. A missing tag or content attribute yields types.ErrNotFound.
func OG(c *SelectorCache, doc *goquery.Document, name string) (string, error) {
	sel, err := c.CSS(fmt.Sprintf(`html > head > meta[property="og:%s"]`, name))
	if err != nil {
		return "", err
	}

	meta := doc.FindMatcher(sel).First()
	if meta.Length() == 0 {
		return "", fmt.Errorf("og:%s: %w", name, types.ErrNotFound)
	}

	content, ok := meta.Attr("content")
	if !ok {
		return "", fmt.Errorf("og:%s content: %w", name, types.ErrNotFound)
	}
	return content, nil
}

// OGOr returns the og:name content or fallback when the tag is absent.
func OGOr(c *SelectorCache, doc *goquery.Document, name, fallback string) string {
	v, err := OG(c, doc, name)
	if err != nil {
		return fallback
	}
	return v
}
