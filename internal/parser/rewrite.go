package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/IshaanNene/feedstalk/internal/types"
)

var relativeHref = regexp.MustCompile(`href="(/[^"]*)"`)

// RewriteRelativeHref turns every href="/path" in an HTML fragment into an
// absolute link under base. Hrefs not starting with a slash are untouched.
func RewriteRelativeHref(fragment, base string) string {
	base = strings.TrimSuffix(base, "/")
	return relativeHref.ReplaceAllString(fragment, `href="`+strings.ReplaceAll(base, "$", "$$")+`${1}"`)
}

// RewriteBarePath replaces every "/" in text with base + "/". It is a textual
// rewrite for permalink-shaped strings only.
func RewriteBarePath(text, base string) string {
	return strings.ReplaceAll(text, "/", strings.TrimSuffix(base, "/")+"/")
}

// ExtractID returns the first capture group of re in s, or the whole match
// when re has no groups.
func ExtractID(s string, re *regexp.Regexp) (string, error) {
	m := re.FindStringSubmatch(s)
	if len(m) == 1 && m[0] != "" {
		return m[0], nil
	}
	if len(m) < 2 || m[1] == "" {
		return "", fmt.Errorf("no id in %q: %w", s, types.ErrNotFound)
	}
	return m[1], nil
}
