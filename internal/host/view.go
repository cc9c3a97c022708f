package host

import "github.com/me/rerender/pkg/model"

// Bounds is a fixed model.Bounds.
type Bounds struct {
	Parent model.Element
	First  model.Node
	Last   model.Node
}

func (b Bounds) ParentElement() model.Element { return b.Parent }
func (b Bounds) FirstNode() model.Node        { return b.First }
func (b Bounds) LastNode() model.Node         { return b.Last }

// View records the lifecycle calls the renderer makes on it.
type View struct {
	id         string
	States     []model.ViewState
	Events     []string
	Destroys   int
	Element    model.Element
	destroying bool
	bounds     Bounds
}

var _ model.View = (*View)(nil)

// NewView creates a view with the given id.
func NewView(id string) *View {
	return &View{id: id}
}

func (v *View) ID() string                     { return v.id }
func (v *View) ToReference() model.Reference   { return model.NewConstReference(v) }
func (v *View) TransitionTo(s model.ViewState) { v.States = append(v.States, s) }
func (v *View) Trigger(event string)           { v.Events = append(v.Events, event) }
func (v *View) IsDestroying() bool             { return v.destroying }
func (v *View) SetElement(el model.Element)    { v.Element = el }
func (v *View) Bounds() model.Bounds           { return v.bounds }

// SetBounds stores the bounds reported by Bounds.
func (v *View) SetBounds(b Bounds) { v.bounds = b }

// Destroy marks the view destroying.
func (v *View) Destroy() error {
	v.destroying = true
	v.Destroys++
	return nil
}

// OutletView is a View with its own template and outlet state.
type OutletView struct {
	*View
	template model.Template
	outlet   model.OutletState
}

var _ model.OutletView = (*OutletView)(nil)

// NewOutletView creates an outlet view rendering tmpl.
func NewOutletView(id string, tmpl model.Template, outlet model.OutletState) *OutletView {
	return &OutletView{View: NewView(id), template: tmpl, outlet: outlet}
}

func (v *OutletView) Template() model.Template       { return v.template }
func (v *OutletView) OutletState() model.OutletState { return v.outlet }
func (v *OutletView) ToReference() model.Reference   { return model.NewConstReference(v.outlet) }
