package lang

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type NodeKind int

const (
	NodeAtom NodeKind = iota
	NodeSymbol
	NodeList
)

func (k NodeKind) String() string {
	switch k {
	case NodeAtom:
		return "atom"
	case NodeSymbol:
		return "symbol"
	case NodeList:
		return "list"
	}
	return "unknown"
}

type ListSubtype int

const (
	ListPlain ListSubtype = iota
	ListMapLiteral
)

// Pos is a 1-based source location attached to every node so that
// evaluation errors can point back at the offending expression.
type Pos struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Node is the parsed representation of one strategy expression.
// Exactly one payload group is populated, per Kind. Nodes are never
// mutated after Parse returns.
type Node struct {
	Kind NodeKind
	Pos  Pos

	// atom payload - one of the pointers is set
	Number *decimal.Decimal
	Str    *string
	Bool   *bool

	// symbol payload
	Name string

	// list payload
	Subtype  ListSubtype
	Children []*Node
}

func NewNumberNode(d decimal.Decimal, pos Pos) *Node {
	return &Node{Kind: NodeAtom, Number: &d, Pos: pos}
}

func NewStringNode(s string, pos Pos) *Node {
	return &Node{Kind: NodeAtom, Str: &s, Pos: pos}
}

func NewBoolNode(b bool, pos Pos) *Node {
	return &Node{Kind: NodeAtom, Bool: &b, Pos: pos}
}

func NewSymbolNode(name string, pos Pos) *Node {
	return &Node{Kind: NodeSymbol, Name: name, Pos: pos}
}

func NewListNode(children []*Node, subtype ListSubtype, pos Pos) *Node {
	return &Node{Kind: NodeList, Children: children, Subtype: subtype, Pos: pos}
}

// IsSymbol reports whether the node is a symbol with the given name.
func (n *Node) IsSymbol(name string) bool {
	return n != nil && n.Kind == NodeSymbol && n.Name == name
}

// String renders the node back as source text. Used in trace entries
// and error messages, not guaranteed to round-trip whitespace.
func (n *Node) String() string {
	if n == nil {
		return "nil"
	}
	switch n.Kind {
	case NodeAtom:
		switch {
		case n.Number != nil:
			return n.Number.String()
		case n.Str != nil:
			return fmt.Sprintf("%q", *n.Str)
		case n.Bool != nil:
			return fmt.Sprintf("%t", *n.Bool)
		}
		return "<empty atom>"
	case NodeSymbol:
		return n.Name
	case NodeList:
		parts := make([]string, 0, len(n.Children))
		for _, c := range n.Children {
			parts = append(parts, c.String())
		}
		if n.Subtype == ListMapLiteral {
			return "{" + strings.Join(parts, " ") + "}"
		}
		return "(" + strings.Join(parts, " ") + ")"
	}
	return "<unknown node>"
}
