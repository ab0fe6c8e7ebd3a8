package parser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

// ErrUnresolvedDate reports date text no parser could place in time.
var ErrUnresolvedDate = errors.New("unresolved date")

// DateParser resolves a natural-language date relative to ref.
type DateParser func(text string, ref time.Time) (time.Time, error)

// NaturalDate parses text with go-naturaldate, reading ambiguous expressions
// as past dates. go-naturaldate answers text it does not recognise with ref
// itself; that answer is reported as ErrUnresolvedDate unless text means now.
func NaturalDate(text string, ref time.Time) (time.Time, error) {
	t, err := naturaldate.Parse(text, ref, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, err
	}
	if t.Truncate(time.Second).Equal(ref.Truncate(time.Second)) && !nowWords[strings.ToLower(text)] {
		return time.Time{}, ErrUnresolvedDate
	}
	return t, nil
}

var nowWords = map[string]bool{
	"now":       true,
	"just now":  true,
	"right now": true,
	"today":     true,
}

var relativeIdioms = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`^(\d+) hrs?$`), "$1 hours ago"},
	{regexp.MustCompile(`^(\d+) mins?$`), "$1 minutes ago"},
	{regexp.MustCompile(`^(\d+) secs?$`), "$1 seconds ago"},
}

// RewriteRelativeDate rewrites the short relative idioms used by mobile pages
// ("3 hrs", "12 mins") into expressions a natural-language parser accepts.
// Other text is returned trimmed.
func RewriteRelativeDate(text string) string {
	text = strings.TrimSpace(text)
	for _, idiom := range relativeIdioms {
		if idiom.re.MatchString(text) {
			return idiom.re.ReplaceAllString(text, idiom.repl)
		}
	}
	return text
}

var (
	agoRe       = regexp.MustCompile(`(?i)^(\d+)\s*(seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|wks?|w)(?:\s+ago)?$`)
	yesterdayRe = regexp.MustCompile(`(?i)^yesterday\s+at\s+(.+)$`)
	meridiemRe  = regexp.MustCompile(`(?i)([ap])\.?m\.?$`)
	atRe        = regexp.MustCompile(`(?i)\s+at\s+`)
)

var clockLayouts = []string{"3:04 PM", "3:04PM", "15:04"}

// Layouts carrying a year. The ones without are tried separately and get
// the year of the reference time.
var datedLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var undatedLayouts = []string{
	"January 2",
	"Jan 2",
	"2 January",
	"2 Jan",
}

// resolveKnown handles the relative and calendar forms social pages print,
// which go-naturaldate misreads ("March 3 at 2:14 PM" keeps the day of ref).
func resolveKnown(text string, now time.Time) (time.Time, bool) {
	text = strings.Join(strings.Fields(text), " ")
	if nowWords[strings.ToLower(text)] {
		return now, true
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, true
	}

	if m := agoRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		switch unit := strings.ToLower(m[2]); unit[0] {
		case 's':
			return now.Add(-time.Duration(n) * time.Second), true
		case 'm':
			return now.Add(-time.Duration(n) * time.Minute), true
		case 'h':
			return now.Add(-time.Duration(n) * time.Hour), true
		case 'd':
			return now.AddDate(0, 0, -n), true
		case 'w':
			return now.AddDate(0, 0, -7*n), true
		}
	}

	if m := yesterdayRe.FindStringSubmatch(text); m != nil {
		clock, ok := parseClock(m[1])
		if !ok {
			return time.Time{}, false
		}
		y, mo, d := now.AddDate(0, 0, -1).Date()
		return time.Date(y, mo, d, clock.Hour(), clock.Minute(), 0, 0, now.Location()), true
	}

	return resolveCalendar(text, now)
}

// resolveCalendar parses "<date>" and "<date> at <clock>". A date without a
// year that would land after now is moved to the previous year.
func resolveCalendar(text string, now time.Time) (time.Time, bool) {
	datePart, clockPart := text, ""
	if loc := atRe.FindStringIndex(text); loc != nil {
		datePart, clockPart = text[:loc[0]], text[loc[1]:]
	}

	var hour, minute int
	if clockPart != "" {
		clock, ok := parseClock(clockPart)
		if !ok {
			return time.Time{}, false
		}
		hour, minute = clock.Hour(), clock.Minute()
	}

	for _, layout := range datedLayouts {
		if d, err := time.ParseInLocation(layout, datePart, now.Location()); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, now.Location()), true
		}
	}
	for _, layout := range undatedLayouts {
		d, err := time.ParseInLocation(layout, datePart, now.Location())
		if err != nil {
			continue
		}
		t := time.Date(now.Year(), d.Month(), d.Day(), hour, minute, 0, 0, now.Location())
		if t.After(now) {
			t = t.AddDate(-1, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

func parseClock(text string) (time.Time, bool) {
	text = meridiemRe.ReplaceAllStringFunc(strings.TrimSpace(text), func(s string) string {
		return strings.ToUpper(s[:1]) + "M"
	})
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateNormalizer turns relative dates into RFC3339 timestamps. Normalization
// is best effort: when the text cannot be resolved the rewritten text is
// returned as is.
type DateNormalizer struct {
	Parse DateParser
	Now   func() time.Time
}

// NewDateNormalizer returns a normalizer backed by NaturalDate and the wall clock.
func NewDateNormalizer() *DateNormalizer {
	return &DateNormalizer{Parse: NaturalDate, Now: time.Now}
}

// Normalize resolves text against the current time.
func (n *DateNormalizer) Normalize(text string) string {
	return n.NormalizeAt(text, n.Now())
}

// NormalizeAt resolves text against now. Relative and calendar forms are
// resolved directly; anything else goes to Parse.
func (n *DateNormalizer) NormalizeAt(text string, now time.Time) string {
	rewritten := RewriteRelativeDate(text)
	if rewritten == "" {
		return rewritten
	}
	if t, ok := resolveKnown(rewritten, now); ok {
		return t.Format(time.RFC3339)
	}

	t, err := n.Parse(rewritten, now)
	if err != nil {
		return rewritten
	}
	return t.Format(time.RFC3339)
}

// NormalizeRelativeDate is NormalizeAt with the default parser.
func NormalizeRelativeDate(text string, now time.Time) string {
	return NewDateNormalizer().NormalizeAt(text, now)
}
