package identify

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// TextNodes returns the trimmed, non-empty text nodes of a fragment in
// document order, skipping script and style content.
func TextNodes(sel *goquery.Selection) []string {
	var out []string
	for _, root := range sel.Nodes {
		collectText(root, &out)
	}
	return out
}

// FragmentText returns the visible text of a fragment with single spaces
// between text nodes.
func FragmentText(sel *goquery.Selection) string {
	return strings.Join(TextNodes(sel), " ")
}

func collectText(n *html.Node, out *[]string) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
		return
	}
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*out = append(*out, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, out)
	}
}

// titleCase upper-cases the first letter of each word, lower-casing the rest.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
