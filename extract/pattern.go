package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// dateHintRe matches text that plausibly carries a deadline: an explicit
// due/deadline label or a recognizable date shape.
var dateHintRe = regexp.MustCompile(`(?i)\b(?:` +
	`due(?:\s+date|\s+by)?|deadline|closes?|submission|submit` +
	`)\b|` +
	`\b\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\b|` +
	`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2}\b|` +
	`\b\d{4}-\d{2}-\d{2}\b|` +
	`\b\d{1,2}[/.]\d{1,2}[/.]\d{2,4}\b`)

// patternSelector covers the generic elements a deadline line lives in when
// no structural container matched.
const patternSelector = "li, tr, h3, h4, h5, p, dd"

// extractPatterns is tier 2: generic elements whose text carries a date
// hint. Ancestors of other matches are dropped so a <li> containing a
// matching <p> yields one block, not two nested ones.
func extractPatterns(doc *goquery.Document, opts Options) []Block {
	var matched []*html.Node
	doc.Find(patternSelector).Each(func(i int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			text := strings.TrimSpace(BlockText(n))
			if text == "" || len(text) > opts.MaxTextLen {
				continue
			}
			if !dateHintRe.MatchString(text) {
				continue
			}
			matched = append(matched, n)
		}
	})

	var blocks []Block
	for _, n := range matched {
		if hasDescendant(n, matched) {
			continue
		}
		text := strings.TrimSpace(BlockText(n))
		blocks = append(blocks, Block{
			Text:     text,
			HTML:     renderNode(n),
			Position: len(blocks),
			Tier:     TierPattern,
			Link:     firstLink(n),
		})
	}
	return blocks
}

// hasDescendant reports whether any node in candidates sits strictly below n.
func hasDescendant(n *html.Node, candidates []*html.Node) bool {
	for _, c := range candidates {
		if c == n {
			continue
		}
		for p := c.Parent; p != nil; p = p.Parent {
			if p == n {
				return true
			}
		}
	}
	return false
}
