// Package dom defines the capability interfaces the extractor reads cards
// through, with implementations over parsed HTML snapshots and live
// browser pages.
package dom

import (
	"context"
)

// Rect is a rendered bounding box in CSS pixels.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Node is a read-only handle on one element of the host document.
type Node interface {
	// Find returns descendants matching a CSS selector, in document order.
	Find(pattern string) []Node

	// Text returns the rendered text, one line per block element.
	Text() string

	// Attr returns an attribute value.
	Attr(name string) (string, bool)

	// Tag returns the lowercase element name.
	Tag() string

	// Parent returns the enclosing element.
	Parent() (Node, bool)

	// Box returns the rendered geometry. ok is false when the host
	// cannot tell (e.g. a static snapshot without layout).
	Box() (r Rect, ok bool)
}

// PropertyReader is implemented by nodes backed by a live document that
// can report computed DOM properties such as currentSrc.
type PropertyReader interface {
	Property(name string) (string, bool)
}

// Source enumerates candidate card nodes.
type Source interface {
	// Cards returns the nodes currently matching pattern. An empty result
	// is not an error; the page may still be rendering.
	Cards(ctx context.Context, pattern string) ([]Node, error)

	// BaseURL is the page URL relative links resolve against.
	BaseURL() string
}

// EmbeddedSource is implemented by sources that can expose raw
// structured-data blobs the page embeds (JSON in script tags).
type EmbeddedSource interface {
	EmbeddedBlobs(ctx context.Context) ([]string, error)
}

// Visible reports whether n renders at least minSize pixels in both
// dimensions. Nodes whose geometry is unknown are considered visible.
func Visible(n Node, minSize float64) bool {
	r, ok := n.Box()
	if !ok {
		return true
	}
	return r.Width >= minSize && r.Height >= minSize
}
