package pipeline

import (
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/IshaanNene/feedstalk/internal/types"
)

// --- Advanced Middleware ---

// HTMLSanitizeMiddleware turns the name and message fragments into plain
// text.
type HTMLSanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(post *types.Post) (*types.Post, error) {
	post.Name = m.clean(post.Name)
	post.Message = m.clean(post.Message)
	return post, nil
}

func (m *HTMLSanitizeMiddleware) clean(s string) string {
	if s == "" {
		return s
	}
	cleaned := m.stripRe.ReplaceAllString(s, " ")
	cleaned = html.UnescapeString(cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

// SinceMiddleware drops posts created before Cutoff. Posts whose creation
// time is not RFC3339 are kept.
type SinceMiddleware struct {
	Cutoff time.Time
}

func (m *SinceMiddleware) Name() string { return "since" }

func (m *SinceMiddleware) Process(post *types.Post) (*types.Post, error) {
	created, err := time.Parse(time.RFC3339, post.CreatedTime)
	if err != nil {
		return post, nil
	}
	if created.Before(m.Cutoff) {
		return nil, nil
	}
	return post, nil
}

type piiPattern struct {
	kind string
	re   *regexp.Regexp
}

// PIIRedactMiddleware redacts personally identifiable information from the
// message. Patterns run in a fixed order so overlapping matches are stable.
type PIIRedactMiddleware struct {
	patterns []piiPattern
	logger   *slog.Logger
}

func NewPIIRedactMiddleware(logger *slog.Logger) *PIIRedactMiddleware {
	return &PIIRedactMiddleware{
		patterns: []piiPattern{
			{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
			{"credit_card", regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)},
			{"email", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
			{"phone_intl", regexp.MustCompile(`\+\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`)},
			{"phone", regexp.MustCompile(`\b0\d(?:[-.\s]?\d{2}){4}\b|\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
		},
		logger: logger.With("component", "pii_redact"),
	}
}

func (m *PIIRedactMiddleware) Name() string { return "pii_redact" }

func (m *PIIRedactMiddleware) Process(post *types.Post) (*types.Post, error) {
	s := post.Message
	if s == "" {
		return post, nil
	}
	for _, p := range m.patterns {
		if p.re.MatchString(s) {
			s = p.re.ReplaceAllString(s, "[REDACTED_"+strings.ToUpper(p.kind)+"]")
			m.logger.Debug("PII redacted", "post", post.ID, "type", p.kind)
		}
	}
	post.Message = s
	return post, nil
}
