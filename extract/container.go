package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// containerSelectors are structural assignment containers known from LMS
// themes, most specific first. Moodle activity rows lead because they are
// unambiguous; the trailing entries cover Canvas and generic templates.
var containerSelectors = []string{
	"li.activity.modtype_assign",
	"li.modtype_assign",
	"div.activityinstance",
	"[data-activityname]",
	"div.assignment",
	"li.assignment",
	"div.ig-row",
}

// extractContainers is tier 1: find known structural containers. The first
// selector with any matches wins so one template's rows never mix with
// another's.
func extractContainers(doc *goquery.Document, opts Options) []Block {
	selectors := append(append([]string{}, opts.Selectors...), containerSelectors...)

	for _, sel := range selectors {
		matches := doc.Find(sel)
		if matches.Length() == 0 {
			continue
		}

		var blocks []Block
		matches.Each(func(i int, s *goquery.Selection) {
			for _, n := range s.Nodes {
				text := strings.TrimSpace(BlockText(n))
				if text == "" || len(text) > opts.MaxTextLen {
					continue
				}
				blocks = append(blocks, Block{
					Text:     text,
					HTML:     renderNode(n),
					Position: len(blocks),
					Tier:     TierContainer,
					Link:     firstLink(n),
				})
			}
		})
		if len(blocks) > 0 {
			return blocks
		}
	}
	return nil
}
