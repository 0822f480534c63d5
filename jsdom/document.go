package jsdom

import (
	"io"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// Document is a parsed HTML tree queried with XPath.
type Document struct {
	root *html.Node
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse document")
	}
	return &Document{root: root}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) Root() *html.Node {
	return d.root
}

// Query returns the first node matching expr, or nil.
func (d *Document) Query(expr string) (*html.Node, error) {
	node, err := htmlquery.Query(d.root, expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid selector %q", expr)
	}
	return node, nil
}

// QueryAll returns every node matching expr in document order.
func (d *Document) QueryAll(expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid selector %q", expr)
	}
	return nodes, nil
}

// ElementByID finds the element whose id attribute is id.
func (d *Document) ElementByID(id string) *html.Node {
	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
