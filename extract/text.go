package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// blockBreakTags force a line break in extracted text so "Assignment 1"
// and "Due: Friday" in sibling divs do not fuse into one token run.
var blockBreakTags = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"dd": true, "dt": true, "section": true, "article": true,
	"table": true, "ul": true, "ol": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"iframe": true, "svg": true, "head": true,
}

// boilerplateMarkers flag chrome elements the scan should never surface.
var boilerplateMarkers = []string{
	"nav", "menu", "footer", "header", "breadcrumb", "sidebar",
	"cookie", "banner", "skip-link", "sr-only", "accesshide",
}

// hiddenStyleRe matches inline styles that hide an element. Hidden nodes
// on LMS pages are template leftovers and cloak anti-scrape honeypots.
var hiddenStyleRe = regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden|opacity\s*:\s*0(?:\.0+)?\s*(?:;|$)`)

var spaceRe = regexp.MustCompile(`[ \t]+`)

// BlockText renders the visible text of a node with newlines at block
// boundaries, skipping scripts, hidden nodes, and boilerplate chrome.
func BlockText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipTags[n.Data] || isHiddenNode(n) || isBoilerplate(n) {
				return
			}
			if blockBreakTags[n.Data] {
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockBreakTags[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(n)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// collapseSpace flattens all whitespace runs, newlines included, to single
// spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// renderNode returns the node's outer HTML, empty on render failure.
func renderNode(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

// firstLink returns the href of the first anchor at or under n.
func firstLink(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "a" {
		if href := attr(n, "href"); href != "" {
			return href
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := firstLink(c); href != "" {
			return href
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func isHiddenNode(n *html.Node) bool {
	// hidden is a boolean attribute: bare <div hidden> parses with an
	// empty value, so presence is the test.
	if hasAttr(n, "hidden") || attr(n, "aria-hidden") == "true" {
		return true
	}
	return hiddenStyleRe.MatchString(attr(n, "style"))
}

func isBoilerplate(n *html.Node) bool {
	if n.Data == "nav" || n.Data == "footer" || n.Data == "aside" {
		return true
	}
	marker := strings.ToLower(attr(n, "class") + " " + attr(n, "id") + " " + attr(n, "role"))
	for _, m := range boilerplateMarkers {
		if strings.Contains(marker, m) {
			return true
		}
	}
	return false
}
