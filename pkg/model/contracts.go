package model

// Element is a host surface element (a DOM element, a terminal region, ...).
// The scheduler never inspects it.
type Element any

// Node is a host surface node delimiting a rendered range.
type Node any

// Reference is a readable reactive reference handed to templates as self.
type Reference interface {
	Value() any
}

// constReference is a Reference over a fixed value.
type constReference struct{ value any }

func (r constReference) Value() any { return r.value }

// UndefinedReference is the reference used for outlet state slots when a
// component is appended outside of an outlet.
var UndefinedReference Reference = constReference{}

// NewConstReference returns a Reference that always yields v.
func NewConstReference(v any) Reference {
	return constReference{value: v}
}

// AppendOperations creates host elements.
type AppendOperations interface {
	CreateElement(tagName string) Element
}

// Environment brackets rendering in transactions. At most one transaction is
// open at a time per environment.
type Environment interface {
	Begin()
	Commit()
	InTransaction() bool
	IsInteractive() bool
	AppendOperations() AppendOperations
}

// RenderOptions are passed to Result.Rerender.
type RenderOptions struct {
	AlwaysRevalidate bool
}

// Template materializes a rendered Result into parent.
type Template interface {
	Render(self Reference, parent Element, scope *DynamicScope) (Result, error)
}

// Result is the live output of a template render.
type Result interface {
	Rerender(opts RenderOptions) error
	Destroy() error
}

// Revision is a snapshot of the global revision clock.
type Revision uint64

// RevisionClock is a monotonic counter answering "has anything changed since
// snapshot X". The scheduler only reads it.
type RevisionClock interface {
	Value() Revision
	Validate(snapshot Revision) bool
}

// ViewState names a view lifecycle state. The renderer only ever moves a
// view into ViewStateDestroying; other states belong to the view layer.
type ViewState string

const ViewStateDestroying ViewState = "destroying"

// EventDidDestroyElement is triggered on a removed view when the environment
// is interactive.
const EventDidDestroyElement = "didDestroyElement"

// Bounds gives access to the nodes delimiting a view's rendered range.
type Bounds interface {
	ParentElement() Element
	FirstNode() Node
	LastNode() Node
}

// BoundsSnapshot is a read-only projection of Bounds.
type BoundsSnapshot struct {
	ParentElement Element
	FirstNode     Node
	LastNode      Node
}

// View is the subset of the view object model the renderer drives.
type View interface {
	ID() string
	ToReference() Reference
	TransitionTo(state ViewState)
	Trigger(event string)
	IsDestroying() bool
	Destroy() error
	SetElement(el Element)
	Bounds() Bounds
}

// OutletState is the routing state rendered by an outlet view.
type OutletState struct {
	Name       string
	Controller any
}

// OutletView is a top-level view that renders routed outlet state with its
// own template.
type OutletView interface {
	View
	Template() Template
	OutletState() OutletState
}

// Batcher is the batching engine's scheduling surface. ScheduleOnce is
// idempotent per (queue, key) until the task runs.
type Batcher interface {
	ScheduleOnce(queue string, key any, fn func() error)
}

// QueueRender is the batching queue revalidation tasks are scheduled on.
const QueueRender = "render"
