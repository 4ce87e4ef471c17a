package backend

import (
	"fmt"
	"regexp"
)

// DefaultTokenField is the form field and meta name the console uses for its
// anti-forgery token.
const DefaultTokenField = "_csrf"

// tokenScraper extracts an anti-forgery token from console markup. The login
// page format is a fixed contract, so only these shapes are accepted:
//
//	<meta name="F" content="T">     <meta content="T" name="F">
//	<input name="F" value="T">      <input value="T" name="F">
//
// Other attributes may appear in between, and either quote style works.
type tokenScraper struct {
	patterns []*regexp.Regexp
}

func newTokenScraper(field string) *tokenScraper {
	name := regexp.QuoteMeta(field)
	attr := func(key, value string) string {
		return fmt.Sprintf(`\b%s\s*=\s*["']%s["']`, key, value)
	}
	const capture = `([^"']*)`
	shapes := []string{
		`<meta\b[^>]*?` + attr("name", name) + `[^>]*?` + attr("content", capture),
		`<meta\b[^>]*?` + attr("content", capture) + `[^>]*?` + attr("name", name),
		`<input\b[^>]*?` + attr("name", name) + `[^>]*?` + attr("value", capture),
		`<input\b[^>]*?` + attr("value", capture) + `[^>]*?` + attr("name", name),
	}

	s := &tokenScraper{patterns: make([]*regexp.Regexp, 0, len(shapes))}
	for _, shape := range shapes {
		s.patterns = append(s.patterns, regexp.MustCompile(`(?is)`+shape))
	}
	return s
}

// scrape returns the first non-empty token found, or false.
func (s *tokenScraper) scrape(body []byte) (string, bool) {
	for _, p := range s.patterns {
		m := p.FindSubmatch(body)
		if m != nil && len(m[1]) > 0 {
			return string(m[1]), true
		}
	}
	return "", false
}

var defaultScraper = newTokenScraper(DefaultTokenField)

// ScrapeToken extracts the anti-forgery token named field from an HTML body.
func ScrapeToken(body []byte, field string) (string, bool) {
	if field == DefaultTokenField {
		return defaultScraper.scrape(body)
	}
	return newTokenScraper(field).scrape(body)
}
