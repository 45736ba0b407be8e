package blockset

import (
	"regexp"
	"strings"
)

var (
	blockableRE = regexp.MustCompile(`^(http|file|about)`)
	clockableRE = regexp.MustCompile(`^(http|file)`)
)

// Blockable reports whether a URL can be blocked at all.
func Blockable(url string) bool {
	return blockableRE.MatchString(url)
}

// Clockable reports whether time on a URL counts toward budgets.
func Clockable(url string) bool {
	return clockableRE.MatchString(url)
}

// PageURL strips the fragment from url unless it is a hash-bang.
func PageURL(url string) string {
	page, hash, found := strings.Cut(url, "#")
	if found && strings.HasPrefix(hash, "!") {
		return page + "#" + hash
	}
	return page
}

// ParsedBlockPage is the information carried in a block page URL of the
// form "<page>?<set>&<blocked url>[#hash]".
type ParsedBlockPage struct {
	Set        string
	BlockedURL string
}

// ParseBlockPage extracts the block set and original URL from a block page
// URL. The original URL keeps its own query separators.
func ParseBlockPage(url string) (ParsedBlockPage, bool) {
	rest, hash, hasHash := strings.Cut(url, "#")
	_, query, ok := strings.Cut(rest, "?")
	if !ok {
		return ParsedBlockPage{}, false
	}
	i := strings.IndexAny(query, "&;")
	if i < 0 {
		return ParsedBlockPage{}, false
	}
	p := ParsedBlockPage{Set: query[:i], BlockedURL: query[i+1:]}
	if p.Set == "" || p.BlockedURL == "" {
		return ParsedBlockPage{}, false
	}
	if hasHash {
		p.BlockedURL += "#" + hash
	}
	return p, true
}
