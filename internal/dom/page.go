package dom

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"

	"github.com/IshaanNene/dealscout/internal/types"
)

const embeddedScriptsCSS = `script#__NEXT_DATA__, script[type="application/json"], script[type="application/ld+json"]`

// PageSource serves cards from a live browser page. Unlike a snapshot,
// repeated Cards calls observe the page as it keeps rendering.
type PageSource struct {
	page   *rod.Page
	base   string
	logger *slog.Logger
}

// NewPageSource wraps an open rod page.
func NewPageSource(page *rod.Page, baseURL string, logger *slog.Logger) *PageSource {
	return &PageSource{
		page:   page,
		base:   baseURL,
		logger: logger.With("component", "page_source"),
	}
}

// Cards implements Source.
func (s *PageSource) Cards(ctx context.Context, pattern string) ([]Node, error) {
	els, err := s.page.Context(ctx).Elements(pattern)
	if err != nil {
		return nil, &types.SourceError{Op: "query", Pattern: pattern, Err: err}
	}
	return wrapElements(els, s.logger), nil
}

// BaseURL implements Source. It prefers the page's current URL so
// client-side redirects are honored.
func (s *PageSource) BaseURL() string {
	if info, err := s.page.Info(); err == nil && info != nil && info.URL != "" {
		return info.URL
	}
	return s.base
}

// EmbeddedBlobs implements EmbeddedSource.
func (s *PageSource) EmbeddedBlobs(ctx context.Context) ([]string, error) {
	els, err := s.page.Context(ctx).Elements(embeddedScriptsCSS)
	if err != nil {
		return nil, &types.SourceError{Op: "embedded", Pattern: embeddedScriptsCSS, Err: err}
	}
	var blobs []string
	for _, el := range els {
		v, err := el.Property("textContent")
		if err != nil {
			continue
		}
		if raw := strings.TrimSpace(v.Str()); raw != "" {
			blobs = append(blobs, raw)
		}
	}
	return blobs, nil
}

// Close closes the underlying page.
func (s *PageSource) Close() error {
	return s.page.Close()
}

type pageNode struct {
	el     *rod.Element
	logger *slog.Logger
}

func wrapElements(els rod.Elements, logger *slog.Logger) []Node {
	nodes := make([]Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, &pageNode{el: el, logger: logger})
	}
	return nodes
}

func (n *pageNode) Find(pattern string) []Node {
	els, err := n.el.Elements(pattern)
	if err != nil {
		n.logger.Debug("element query failed", "pattern", pattern, "error", err)
		return nil
	}
	return wrapElements(els, n.logger)
}

func (n *pageNode) Text() string {
	text, err := n.el.Text()
	if err != nil {
		return ""
	}
	return text
}

func (n *pageNode) Attr(name string) (string, bool) {
	v, err := n.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (n *pageNode) Tag() string {
	obj, err := n.el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return ""
	}
	return obj.Value.Str()
}

func (n *pageNode) Parent() (Node, bool) {
	p, err := n.el.Parent()
	if err != nil || p == nil {
		return nil, false
	}
	return &pageNode{el: p, logger: n.logger}, true
}

// Box returns the element's content box. Elements the browser cannot lay
// out (display:none, detached) report a zero box.
func (n *pageNode) Box() (Rect, bool) {
	shape, err := n.el.Shape()
	if err != nil || shape == nil || len(shape.Quads) == 0 {
		return Rect{}, true
	}
	b := shape.Box()
	return Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}, true
}

// Property implements PropertyReader.
func (n *pageNode) Property(name string) (string, bool) {
	v, err := n.el.Property(name)
	if err != nil {
		return "", false
	}
	s := v.Str()
	if s == "" || s == "undefined" || s == "null" {
		return "", false
	}
	return s, true
}
