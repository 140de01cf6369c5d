package extract

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// leafBlockTags are the block-level elements the text scan treats as one
// unit of page text.
var leafBlockTags = map[string]bool{
	"p": true, "li": true, "td": true, "dd": true, "dt": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "div": true, "section": true,
	"article": true,
}

// extractTextScan is tier 3, the last resort: walk the DOM for leaf block
// elements with enough visible text and let the classifier sort out the
// noise. A leaf here is a block element with no block children, so a page
// of bare <div> soup still splits into usable chunks.
func extractTextScan(doc *goquery.Document, opts Options) []Block {
	var blocks []Block
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if isBoilerplate(n) || isHiddenNode(n) {
				return
			}
			if leafBlockTags[n.Data] && !hasBlockChild(n) {
				text := collapseSpace(BlockText(n))
				if len(text) >= opts.MinTextLen && len(text) <= opts.MaxTextLen {
					blocks = append(blocks, Block{
						Text:     text,
						HTML:     renderNode(n),
						Position: len(blocks),
						Tier:     TierTextScan,
						Link:     firstLink(n),
					})
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range doc.Selection.Nodes {
		walk(root)
	}
	return blocks
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && leafBlockTags[c.Data] {
			return true
		}
		if hasBlockChild(c) {
			return true
		}
	}
	return false
}
