package host

import (
	"fmt"
	"sync/atomic"

	"github.com/me/rerender/pkg/model"
)

// Element is an in-memory host element.
type Element struct {
	ID  int64
	Tag string
}

func (e *Element) String() string {
	return fmt.Sprintf("<%s#%d>", e.Tag, e.ID)
}

// Node is an in-memory text node.
type Node struct {
	ID   int64
	Text string
}

// Document creates elements and nodes with unique ids.
type Document struct {
	next atomic.Int64
}

// CreateElement implements model.AppendOperations.
func (d *Document) CreateElement(tagName string) model.Element {
	return &Element{ID: d.next.Add(1), Tag: tagName}
}

// CreateText returns a new text node.
func (d *Document) CreateText(text string) *Node {
	return &Node{ID: d.next.Add(1), Text: text}
}

// Environment is a transactional environment that counts its transactions.
// A Begin while a transaction is open is counted in NestedBegins rather
// than opening a second transaction.
type Environment struct {
	Document     *Document
	interactive  bool
	inTx         bool
	Begins       int
	Commits      int
	NestedBegins int
	UnpairedEnds int
}

var _ model.Environment = (*Environment)(nil)

// NewEnvironment creates an environment with its own document.
func NewEnvironment(interactive bool) *Environment {
	return &Environment{Document: &Document{}, interactive: interactive}
}

// Begin opens a transaction.
func (e *Environment) Begin() {
	if e.inTx {
		e.NestedBegins++
		return
	}
	e.inTx = true
	e.Begins++
}

// Commit closes the open transaction.
func (e *Environment) Commit() {
	if !e.inTx {
		e.UnpairedEnds++
		return
	}
	e.inTx = false
	e.Commits++
}

// InTransaction reports whether a transaction is open.
func (e *Environment) InTransaction() bool { return e.inTx }

// IsInteractive reports whether the environment dispatches element events.
func (e *Environment) IsInteractive() bool { return e.interactive }

// AppendOperations returns the environment's document.
func (e *Environment) AppendOperations() model.AppendOperations { return e.Document }
