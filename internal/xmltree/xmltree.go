// Package xmltree provides a small in-memory element tree plus the defensive
// navigation the flattening layer is built on. The source schema is optional
// almost everywhere, so every accessor tolerates a nil receiver and missing
// structure, propagating absence instead of failing.
//
// Design goals:
//
//   - Nil is a valid node: Find on a nil node returns nil, text and attribute
//     lookups on a nil node return an absent value. Deeply optional paths can
//     then be walked without a conditional at every step.
//   - Lookups are namespace-aware (encoding/xml resolves prefixes to URIs).
//   - Trees are decoded one repeated element at a time, so peak memory is
//     bounded by a single element's structure rather than the document.
package xmltree

import (
	"encoding/xml"
	"fmt"

	"github.com/opendatalabcz/emissions-etl/internal/record"
)

// Node is one decoded XML element.
type Node struct {
	Space, Local string
	Attr         []xml.Attr
	Children     []*Node
	Text         string
}

// Decode consumes the element opened by start from dec, including all nested
// elements, and returns it as a Node tree. The decoder must be positioned
// immediately after start was read.
func Decode(dec *xml.Decoder, start xml.StartElement) (*Node, error) {
	n := &Node{
		Space: start.Name.Space,
		Local: start.Name.Local,
		Attr:  start.Attr,
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode <%s>: %w", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := Decode(dec, t)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		case xml.CharData:
			n.Text += string(t)
		case xml.EndElement:
			return n, nil
		}
	}
}

// Find walks path one first-matching direct child at a time, all segments in
// the given namespace. It returns nil when the receiver is nil or any segment
// has no match.
func (n *Node) Find(space string, path ...string) *Node {
	cur := n
	for _, local := range path {
		if cur == nil {
			return nil
		}
		var next *Node
		for _, c := range cur.Children {
			if c.Space == space && c.Local == local {
				next = c
				break
			}
		}
		cur = next
	}
	return cur
}

// FindAll returns the direct children of n matching (space, local), in
// document order. A nil receiver yields nil.
func (n *Node) FindAll(space, local string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Space == space && c.Local == local {
			out = append(out, c)
		}
	}
	return out
}

// TextValue returns the element's character data, absent when the receiver is
// nil or the element has no character data at all.
func (n *Node) TextValue() record.Value {
	if n == nil || n.Text == "" {
		return record.Value{}
	}
	return record.String(n.Text)
}

// ChildText is Find followed by TextValue.
func (n *Node) ChildText(space string, path ...string) record.Value {
	return n.Find(space, path...).TextValue()
}

// AttrValue returns the value of the named unqualified attribute, absent when
// the receiver is nil or the attribute is not present. An attribute that is
// present with an empty value is a present empty string.
func (n *Node) AttrValue(name string) record.Value {
	if n == nil {
		return record.Value{}
	}
	for _, a := range n.Attr {
		if a.Name.Space == "" && a.Name.Local == name {
			return record.String(a.Value)
		}
	}
	return record.Value{}
}

// At returns nodes[i], or nil when the index is out of range. It mirrors the
// tolerant positional access used for fixed-cardinality repeated groups.
func At(nodes []*Node, i int) *Node {
	if i < 0 || i >= len(nodes) {
		return nil
	}
	return nodes[i]
}
