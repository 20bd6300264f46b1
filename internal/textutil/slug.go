package textutil

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// extensionPattern matches a short file extension such as ".html" but not
// the tail of a dotted slug like "-1.5-rally".
var extensionPattern = regexp.MustCompile(`\.[A-Za-z][A-Za-z0-9]{0,4}$`)

// foldAccents strips combining marks so "Café" becomes "Cafe".
func foldAccents(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// Slugify lowercases text, folds accents and joins alphanumeric runs with
// hyphens. It returns "" when nothing usable remains.
func Slugify(text string) string {
	lowered := strings.ToLower(foldAccents(strings.TrimSpace(text)))
	parts := tokenSplitPattern.Split(lowered, -1)
	kept := parts[:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "-")
}

// SlugFromURL returns the slugified last path segment of a locator with any
// file extension removed.
func SlugFromURL(locator string) string {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return ""
	}
	p := locator
	if u, err := url.Parse(locator); err == nil && (u.Scheme != "" || u.Host != "") {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	segment := path.Base(p)
	if segment == "." || segment == "/" {
		return ""
	}
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}
	if loc := extensionPattern.FindStringIndex(segment); loc != nil && loc[0] > 0 {
		segment = segment[:loc[0]]
	}
	return Slugify(segment)
}

// DeriveSlug picks the first non-empty of: the existing slug, the locator's
// last path segment, the slugified title, the raw key.
func DeriveSlug(existing, locator, title, key string) string {
	if s := strings.TrimSpace(existing); s != "" {
		return s
	}
	if s := SlugFromURL(locator); s != "" {
		return s
	}
	if s := Slugify(title); s != "" {
		return s
	}
	return strings.TrimSpace(key)
}
