// Package ast is the compiler's parse tree: an arena of nodes addressed by
// NodeID, linked first-child/next-sibling with a parent back edge. The
// tree arrives already built (see Builder); the analyzer mutates it by
// inserting new parent nodes and rewriting the one incoming edge.
package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/shadevm/internal/typesystem"
)

// NodeID identifies a node within a Tree. Zero is "no node".
type NodeID uint32

// VarID identifies a variable declaration within a compilation unit.
type VarID uint32

// FuncID identifies a function declaration within a compilation unit.
type FuncID uint32

// Invalid ID constants (zero is sentinel).
const (
	NoNode NodeID = 0
	NoVar  VarID  = 0
	NoFunc FuncID = 0
)

func (id NodeID) IsValid() bool { return id != NoNode }
func (id VarID) IsValid() bool  { return id != NoVar }
func (id FuncID) IsValid() bool { return id != NoFunc }

// Kind selects the node variant.
type Kind uint8

const (
	KindInvalid     Kind = iota
	KindBlock            // statement list
	KindFloat            // float literal: Num
	KindString           // string literal: Str
	KindVar              // variable reference: Var
	KindArrayRef         // array element: Var, child index
	KindTuple            // (a,b,c) / (a,b,c,d) / 16 floats; optional Str space name
	KindUnary            // Op; child operand
	KindBinary           // arithmetic Op; children lhs, rhs
	KindRelational       // comparison Op; children lhs, rhs
	KindLogical          // && / ||; children lhs, rhs
	KindCast             // CastTo; child operand
	KindAssign           // Var, Op for compound; children [index] value
	KindCall             // Str name, Candidates, Func; children arguments
	KindTernary          // children cond, then, else
	KindIf               // children cond, then, [else]
	KindWhile            // children cond, body
	KindFor              // children init, cond, step, body
	KindIlluminance      // children args..., body
	KindIlluminate       // children args..., body
	KindSolar            // children args..., body
	KindReturn           // children [value]
)

var kindNames = map[Kind]string{
	KindInvalid:     "invalid",
	KindBlock:       "block",
	KindFloat:       "float",
	KindString:      "string",
	KindVar:         "var",
	KindArrayRef:    "index",
	KindTuple:       "tuple",
	KindUnary:       "unary",
	KindBinary:      "binary",
	KindRelational:  "rel",
	KindLogical:     "logical",
	KindCast:        "cast",
	KindAssign:      "assign",
	KindCall:        "call",
	KindTernary:     "ternary",
	KindIf:          "if",
	KindWhile:       "while",
	KindFor:         "for",
	KindIlluminance: "illuminance",
	KindIlluminate:  "illuminate",
	KindSolar:       "solar",
	KindReturn:      "return",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsStatement reports whether k only appears in statement position.
func (k Kind) IsStatement() bool {
	switch k {
	case KindBlock, KindIf, KindWhile, KindFor, KindIlluminance, KindIlluminate, KindSolar, KindReturn:
		return true
	}
	return false
}

// Op is an operator payload.
type Op uint8

const (
	OpNone Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpDot   // .
	OpCross // ^
	OpNeg
	OpNot
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd
	OpOr
)

var opSymbols = map[Op]string{
	OpNone:  "",
	OpAdd:   "+",
	OpSub:   "-",
	OpMul:   "*",
	OpDiv:   "/",
	OpDot:   ".",
	OpCross: "^",
	OpNeg:   "neg",
	OpNot:   "!",
	OpLt:    "<",
	OpLe:    "<=",
	OpGt:    ">",
	OpGe:    ">=",
	OpEq:    "==",
	OpNe:    "!=",
	OpAnd:   "&&",
	OpOr:    "||",
}

func (o Op) String() string { return opSymbols[o] }

// Node is one tree node. Only the payload fields of its Kind are meaningful.
type Node struct {
	Kind        Kind
	Parent      NodeID
	FirstChild  NodeID
	NextSibling NodeID
	Line        int

	// Type is the resolved type, set by the analyzer.
	Type typesystem.Type

	Op         Op
	Num        float64
	Str        string
	Var        VarID
	CastTo     typesystem.Type
	Candidates []FuncID
	Func       FuncID
	Indexed    bool // assignment to an array element
}

// Tree owns the node arena for one source file.
type Tree struct {
	File  string
	nodes []Node
}

// NewTree creates an empty tree. Slot 0 is reserved for NoNode.
func NewTree(file string) *Tree {
	return &Tree{File: file, nodes: make([]Node, 1, 256)}
}

// Len returns the number of allocated nodes, including the reserved slot.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node for id. The pointer is invalidated by New.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Kind is a shortcut for t.Node(id).Kind.
func (t *Tree) Kind(id NodeID) Kind {
	if id == NoNode || int(id) >= len(t.nodes) {
		return KindInvalid
	}
	return t.nodes[id].Kind
}

// New allocates a detached node.
func (t *Tree) New(kind Kind, line int) NodeID {
	t.nodes = append(t.nodes, Node{Kind: kind, Line: line})
	return NodeID(len(t.nodes) - 1)
}

// Append links child as the last child of parent.
func (t *Tree) Append(parent, child NodeID) {
	if child == NoNode {
		return
	}
	t.nodes[child].Parent = parent
	t.nodes[child].NextSibling = NoNode
	first := t.nodes[parent].FirstChild
	if first == NoNode {
		t.nodes[parent].FirstChild = child
		return
	}
	last := first
	for t.nodes[last].NextSibling != NoNode {
		last = t.nodes[last].NextSibling
	}
	t.nodes[last].NextSibling = child
}

// Children returns the children of id in order.
func (t *Tree) Children(id NodeID) []NodeID {
	var out []NodeID
	for c := t.nodes[id].FirstChild; c != NoNode; c = t.nodes[c].NextSibling {
		out = append(out, c)
	}
	return out
}

// NumChildren counts the children of id.
func (t *Tree) NumChildren(id NodeID) int {
	n := 0
	for c := t.nodes[id].FirstChild; c != NoNode; c = t.nodes[c].NextSibling {
		n++
	}
	return n
}

// Child returns the i-th child of id, or NoNode.
func (t *Tree) Child(id NodeID, i int) NodeID {
	c := t.nodes[id].FirstChild
	for ; c != NoNode && i > 0; i-- {
		c = t.nodes[c].NextSibling
	}
	return c
}

// Replace rewrites the single edge that points at old so that it points
// at repl instead. repl takes over old's parent and sibling links; old is
// left detached.
func (t *Tree) Replace(old, repl NodeID) {
	parent := t.nodes[old].Parent
	next := t.nodes[old].NextSibling
	t.nodes[repl].Parent = parent
	t.nodes[repl].NextSibling = next
	t.nodes[old].Parent = NoNode
	t.nodes[old].NextSibling = NoNode
	if parent == NoNode {
		return
	}
	if t.nodes[parent].FirstChild == old {
		t.nodes[parent].FirstChild = repl
		return
	}
	for c := t.nodes[parent].FirstChild; c != NoNode; c = t.nodes[c].NextSibling {
		if t.nodes[c].NextSibling == old {
			t.nodes[c].NextSibling = repl
			return
		}
	}
}

// InsertParent allocates a node of the given kind, moves it into child's
// position and makes child its only child. Returns the new node.
func (t *Tree) InsertParent(child NodeID, kind Kind) NodeID {
	id := t.New(kind, t.nodes[child].Line)
	t.Replace(child, id)
	t.nodes[id].FirstChild = child
	t.nodes[child].Parent = id
	return id
}

// Walk visits id and its descendants in pre-order until fn returns false.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if id == NoNode {
		return
	}
	if !fn(id) {
		return
	}
	for c := t.nodes[id].FirstChild; c != NoNode; c = t.nodes[c].NextSibling {
		t.Walk(c, fn)
	}
}

// Count returns how many nodes of kind are reachable from id.
func (t *Tree) Count(id NodeID, kind Kind) int {
	n := 0
	t.Walk(id, func(c NodeID) bool {
		if t.nodes[c].Kind == kind {
			n++
		}
		return true
	})
	return n
}

// Dump renders the subtree rooted at id as an s-expression, mostly for
// tests and debugging.
func (t *Tree) Dump(id NodeID) string {
	var sb strings.Builder
	t.dump(&sb, id)
	return sb.String()
}

func (t *Tree) dump(sb *strings.Builder, id NodeID) {
	if id == NoNode {
		sb.WriteString("()")
		return
	}
	n := &t.nodes[id]
	sb.WriteByte('(')
	sb.WriteString(n.Kind.String())
	switch n.Kind {
	case KindFloat:
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(n.Num, 'g', -1, 64))
	case KindString:
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(n.Str))
	case KindVar, KindArrayRef, KindAssign:
		fmt.Fprintf(sb, " $%d", n.Var)
		if n.Op != OpNone {
			sb.WriteString(" " + n.Op.String() + "=")
		}
	case KindUnary, KindBinary, KindRelational, KindLogical:
		sb.WriteString(" " + n.Op.String())
	case KindCast:
		sb.WriteString(" " + n.CastTo.Base.String())
	case KindCall:
		sb.WriteString(" " + n.Str)
	case KindTuple:
		if n.Str != "" {
			sb.WriteString(" " + strconv.Quote(n.Str))
		}
	}
	for c := n.FirstChild; c != NoNode; c = t.nodes[c].NextSibling {
		sb.WriteByte(' ')
		t.dump(sb, c)
	}
	sb.WriteByte(')')
}
