package ingestion_engine

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MarkupNormalizer strips HTML markup before applying the generic rules.
// Script and style subtrees are discarded entirely.
type MarkupNormalizer struct {
	GenericNormalizer
}

func NewMarkupNormalizer() *MarkupNormalizer { return &MarkupNormalizer{} }

func (n *MarkupNormalizer) CleanText(text string) string {
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		// Not parseable as HTML; fall back to generic cleaning.
		return n.GenericNormalizer.CleanText(text)
	}
	var sb strings.Builder
	collectText(doc, &sb)
	return n.GenericNormalizer.CleanText(sb.String())
}

func (n *MarkupNormalizer) SentenceList(text string) []string {
	return n.GenericNormalizer.SentenceList(n.CleanText(text))
}

func collectText(node *html.Node, sb *strings.Builder) {
	if node.Type == html.ElementNode {
		switch node.DataAtom {
		case atom.Script, atom.Style, atom.Noscript:
			return
		}
	}
	if node.Type == html.TextNode {
		if t := strings.TrimSpace(node.Data); t != "" {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(t)
		}
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
	// Block-level boundaries become line breaks so headings do not fuse
	// with the following paragraph into one sentence.
	if node.Type == html.ElementNode {
		switch node.DataAtom {
		case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr,
			atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			sb.WriteByte('\n')
		}
	}
}
