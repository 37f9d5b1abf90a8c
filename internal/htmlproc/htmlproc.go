// Package htmlproc extracts the title, plain text, outbound links, and meta
// robots directives from a fetched page body. It uses goquery the way
// rohmanhakim-docs-crawler's internal/extractor/dom.go does, replacing the
// teacher's hand-rolled x/net/html tokenizer walk in parse.go, and purell the
// way the teacher's url.go normalizes discovered links (spec §4.4).
package htmlproc

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
)

// MetaRobots is the union of robots directives discovered on a page, from
// either the <meta name="robots"> tag or the X-Robots-Tag response header
// (spec §4.4, §4.6 — the most restrictive value always wins).
type MetaRobots struct {
	NoIndex  bool
	NoFollow bool
}

// Merge combines another MetaRobots source, taking the logical OR of each
// directive (most restrictive wins).
func (m MetaRobots) Merge(other MetaRobots) MetaRobots {
	return MetaRobots{
		NoIndex:  m.NoIndex || other.NoIndex,
		NoFollow: m.NoFollow || other.NoFollow,
	}
}

// ParseRobotsDirective parses the comma-separated value of a
// <meta name="robots"> content attribute or an X-Robots-Tag header, per spec
// §4.4: "noindex", "nofollow", and "none" (equivalent to both).
func ParseRobotsDirective(value string) MetaRobots {
	var m MetaRobots
	for _, tok := range strings.Split(value, ",") {
		switch strings.ToLower(strings.TrimSpace(tok)) {
		case "noindex":
			m.NoIndex = true
		case "nofollow":
			m.NoFollow = true
		case "none":
			m.NoIndex = true
			m.NoFollow = true
		}
	}
	return m
}

// Document is the result of processing one HTML body.
type Document struct {
	Title      string
	Text       string
	Links      []string
	MetaRobots MetaRobots
}

// Parse extracts title, text, links, and meta robots directives from body.
// pageURL is used to resolve relative links to absolute ones (spec §4.4 step
// 3). Malformed HTML never errors: goquery degrades gracefully the same way
// the teacher's tokenizer loop returns whatever links it found before
// hitting an ErrorToken.
func Parse(body string, pageURL string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return Document{}, err
	}

	base, baseErr := url.Parse(pageURL)

	title := extractTitle(doc)
	metaRobots := extractMetaRobots(doc)

	doc.Find("script, style, noscript").Remove()

	d := Document{
		Title:      title,
		Text:       extractText(doc),
		MetaRobots: metaRobots,
	}

	if baseErr == nil {
		d.Links = extractLinks(doc, base, d.MetaRobots.NoFollow)
	}

	return d, nil
}

// extractText collapses the visible body text to single-spaced words. Called
// after script/style/noscript nodes have been removed from doc, the way the
// teacher's ignore_tags list excludes non-content tags from the outlink walk
// — here applied to the text body instead.
func extractText(doc *goquery.Document) string {
	text := doc.Find("body").First().Text()
	if text == "" {
		text = doc.Text()
	}
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}

// extractTitle returns the first non-empty <title> text, falling back to the
// first non-empty <h1> when <title> is missing or blank (spec §4.4).
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}

	var h1 string
	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := strings.TrimSpace(s.Text()); text != "" {
			h1 = text
			return false
		}
		return true
	})
	return h1
}

// extractMetaRobots finds every <meta name="robots"> tag and merges their
// directives (spec §4.4 step 4).
func extractMetaRobots(doc *goquery.Document) MetaRobots {
	var m MetaRobots
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || !strings.EqualFold(name, "robots") {
			return
		}
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		m = m.Merge(ParseRobotsDirective(content))
	})
	return m
}

// extractLinks collects <a href> targets, resolves them against base, and
// skips any anchor individually tagged rel="nofollow" — or every anchor, if
// the page as a whole is nofollow (spec §4.4 step 3, §4.6 Discover). Results
// are deduplicated and purell-normalized the way the teacher's url.go
// normalizes every stored outlink.
func extractLinks(doc *goquery.Document, base *url.URL, pageNoFollow bool) []string {
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if pageNoFollow {
			return
		}
		if hasNoFollowToken(s) {
			return
		}
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)

		normalized, err := purell.NormalizeURLString(resolved.String(),
			purell.FlagsSafe|purell.FlagRemoveFragment)
		if err != nil {
			normalized = resolved.String()
		}

		if seen[normalized] {
			return
		}
		seen[normalized] = true
		links = append(links, normalized)
	})

	return links
}

// hasNoFollowToken reports whether s's rel attribute contains the nofollow
// token, per spec §4.4's token-aware rel parsing (not a substring match:
// rel="nofollowme" must not match).
func hasNoFollowToken(s *goquery.Selection) bool {
	rel, ok := s.Attr("rel")
	if !ok {
		return false
	}
	for _, tok := range strings.Fields(rel) {
		if strings.EqualFold(tok, "nofollow") {
			return true
		}
	}
	return false
}
