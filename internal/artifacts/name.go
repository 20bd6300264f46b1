package artifacts

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"cointist/internal/textutil"
)

// Artifact prefixes.
const (
	KindSelection  = "selection"
	KindInvocation = "invocation"
	KindSummary    = "summary"
	KindWorker     = "worker"
)

var namePattern = regexp.MustCompile(`^([a-z_]+)-(\d{12,14})(?:-(.+))?\.([A-Za-z0-9]+)$`)

// Name describes a parsed artifact filename.
type Name struct {
	Kind   string
	Stamp  time.Time
	Suffix string
	Ext    string
}

// Format renders an artifact filename. The suffix is sanitized for use in a
// path segment.
func Format(kind string, stamp time.Time, suffix, ext string) string {
	ms := stamp.UnixMilli()
	if suffix == "" {
		return fmt.Sprintf("%s-%d.%s", kind, ms, ext)
	}
	return fmt.Sprintf("%s-%d-%s.%s", kind, ms, sanitizeSuffix(suffix), ext)
}

// ParseName splits an artifact filename into its parts.
func ParseName(filename string) (Name, bool) {
	m := namePattern.FindStringSubmatch(filename)
	if m == nil {
		return Name{}, false
	}
	ms, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Name{}, false
	}
	return Name{Kind: m[1], Stamp: time.UnixMilli(ms), Suffix: m[3], Ext: m[4]}, true
}

func sanitizeSuffix(value string) string {
	return textutil.SanitizeToken(value)
}
