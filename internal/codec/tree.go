package codec

import (
	"github.com/beevik/etree"
	json "github.com/goccy/go-json"
)

// node is a format-neutral document element. CIM-XML and CIM-JSON render the
// same tree, so a body writer is written once per document type.
type node struct {
	name     string
	value    string
	kind     valueKind
	attrs    []attr
	children []*node
	repeated bool
}

type valueKind int

const (
	kindText valueKind = iota
	// kindCoded renders as {"value": ...} in JSON.
	kindCoded
	// kindNumber renders as a bare JSON number.
	kindNumber
	// kindCodedNumber renders as {"value": <number>} in JSON.
	kindCodedNumber
)

type attr struct {
	key   string
	value string
}

func newNode(name string) *node {
	return &node{name: name}
}

func (n *node) add(child *node) *node {
	n.children = append(n.children, child)
	return child
}

func (n *node) text(name, value string) *node {
	return n.add(&node{name: name, value: value})
}

func (n *node) code(name, value string) *node {
	return n.add(&node{name: name, value: value, kind: kindCoded})
}

func (n *node) number(name, value string) *node {
	return n.add(&node{name: name, value: value, kind: kindNumber})
}

func (n *node) codedNumber(name, value string) *node {
	return n.add(&node{name: name, value: value, kind: kindCodedNumber})
}

// scheme renders a coded value carrying a codingScheme attribute.
func (n *node) scheme(name, codingScheme, value string) *node {
	return n.add(&node{name: name, value: value, kind: kindCoded, attrs: []attr{{"codingScheme", codingScheme}}})
}

func (n *node) group(name string) *node {
	return n.add(newNode(name))
}

// item adds one element of a repeated group; JSON renders those as an array.
func (n *node) item(name string) *node {
	return n.add(&node{name: name, repeated: true})
}

func (n *node) withAttr(key, value string) *node {
	n.attrs = append(n.attrs, attr{key, value})
	return n
}

// writeXML appends n under parent using the given namespace prefix.
func (n *node) writeXML(parent *etree.Element, prefix string) {
	el := parent.CreateElement(prefix + ":" + n.name)
	for _, a := range n.attrs {
		el.CreateAttr(a.key, a.value)
	}
	if len(n.children) == 0 {
		el.SetText(n.value)
		return
	}
	for _, c := range n.children {
		c.writeXML(el, prefix)
	}
}

// jsonValue converts n to plain values. goccy/go-json sorts map keys, which
// keeps repeated encodings byte-identical.
func (n *node) jsonValue() any {
	if len(n.children) > 0 || n.repeated {
		obj := make(map[string]any, len(n.children))
		for _, c := range n.children {
			v := c.jsonValue()
			if c.repeated {
				list, _ := obj[c.name].([]any)
				obj[c.name] = append(list, v)
				continue
			}
			obj[c.name] = v
		}
		return obj
	}

	var v any = n.value
	if n.kind == kindNumber || n.kind == kindCodedNumber {
		v = json.Number(n.value)
	}
	if n.kind == kindText || n.kind == kindNumber {
		return v
	}
	obj := map[string]any{"value": v}
	for _, a := range n.attrs {
		obj[a.key] = a.value
	}
	return obj
}
