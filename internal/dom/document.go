package dom

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/dealscout/internal/types"
)

const embeddedScriptsXPath = `//script[@id='__NEXT_DATA__' or @type='application/json' or @type='application/ld+json']`

// DocumentSource serves cards from a parsed HTML snapshot via goquery.
type DocumentSource struct {
	doc    *goquery.Document
	base   string
	logger *slog.Logger
}

// NewDocumentSource parses the response body into a card source.
func NewDocumentSource(resp *types.Response, logger *slog.Logger) (*DocumentSource, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.SourceError{Op: "parse", Err: err}
	}
	base := resp.FinalURL
	if base == "" {
		base = resp.URL
	}
	return &DocumentSource{
		doc:    doc,
		base:   base,
		logger: logger.With("component", "document_source"),
	}, nil
}

// Cards implements Source.
func (s *DocumentSource) Cards(ctx context.Context, pattern string) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := cascadia.ParseGroup(pattern); err != nil {
		return nil, &types.SourceError{Op: "query", Pattern: pattern, Err: err}
	}
	return wrapSelection(s.doc.Find(pattern)), nil
}

// BaseURL implements Source.
func (s *DocumentSource) BaseURL() string { return s.base }

// EmbeddedBlobs returns the text of JSON script tags.
func (s *DocumentSource) EmbeddedBlobs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.doc.Nodes) == 0 {
		return nil, nil
	}
	nodes, err := htmlquery.QueryAll(s.doc.Nodes[0], embeddedScriptsXPath)
	if err != nil {
		return nil, &types.SourceError{Op: "embedded", Pattern: embeddedScriptsXPath, Err: err}
	}
	var blobs []string
	for _, n := range nodes {
		if raw := strings.TrimSpace(htmlquery.InnerText(n)); raw != "" {
			blobs = append(blobs, raw)
		}
	}
	s.logger.Debug("embedded blobs found", "count", len(blobs))
	return blobs, nil
}

// docNode is a single-element goquery selection.
type docNode struct {
	sel *goquery.Selection
}

func wrapSelection(sel *goquery.Selection) []Node {
	nodes := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, &docNode{sel: s})
	})
	return nodes
}

// NewNode wraps a goquery selection's first element as a Node.
func NewNode(sel *goquery.Selection) Node {
	return &docNode{sel: sel.First()}
}

func (n *docNode) Find(pattern string) []Node {
	return wrapSelection(n.sel.Find(pattern))
}

func (n *docNode) Text() string {
	if n.sel.Length() == 0 {
		return ""
	}
	return innerText(n.sel.Get(0))
}

func (n *docNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n *docNode) Tag() string {
	return goquery.NodeName(n.sel)
}

func (n *docNode) Parent() (Node, bool) {
	p := n.sel.Parent()
	if p.Length() == 0 || p.Get(0).Type != html.ElementNode {
		return nil, false
	}
	return &docNode{sel: p}, true
}

// Box reports a zero box for elements hidden by markup (on themselves or
// an ancestor). Static snapshots have no layout, so anything else is unknown.
func (n *docNode) Box() (Rect, bool) {
	for cur := n.sel; cur.Length() > 0 && cur.Get(0).Type == html.ElementNode; cur = cur.Parent() {
		if hiddenByMarkup(cur) {
			return Rect{}, true
		}
	}
	if w, ok := n.sel.Attr("width"); ok && strings.TrimSpace(w) == "0" {
		return Rect{}, true
	}
	if h, ok := n.sel.Attr("height"); ok && strings.TrimSpace(h) == "0" {
		return Rect{}, true
	}
	return Rect{}, false
}

func hiddenByMarkup(sel *goquery.Selection) bool {
	if _, ok := sel.Attr("hidden"); ok {
		return true
	}
	style, ok := sel.Attr("style")
	if !ok {
		return false
	}
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}
