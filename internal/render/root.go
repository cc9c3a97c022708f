package render

import "github.com/me/rerender/pkg/model"

// RootReference is the self reference handed to a root template.
type RootReference struct {
	value any
}

// NewRootReference returns a reference to v.
func NewRootReference(v any) *RootReference {
	return &RootReference{value: v}
}

// Value implements model.Reference.
func (r *RootReference) Value() any { return r.value }

// RootComponentDefinition is what the renderer's root template renders when
// a component is appended outside of an outlet.
type RootComponentDefinition struct {
	View model.View
}

// rootBehavior is either unrendered or rendered. A destroyed root has none.
type rootBehavior interface {
	phase() model.RootPhase
}

type unrendered struct {
	template model.Template
	self     model.Reference
	parent   model.Element
	scope    *model.DynamicScope
}

func (*unrendered) phase() model.RootPhase { return model.RootPhaseUnrendered }

type rendered struct {
	result model.Result
}

func (*rendered) phase() model.RootPhase { return model.RootPhaseRendered }

// RootState is one independently mounted render target.
type RootState struct {
	id            string
	viewID        string
	env           model.Environment
	options       model.RenderOptions
	shouldReflush bool
	behavior      rootBehavior
}

// NewRootState creates an unrendered root for view. Rendering without a
// template is a precondition fault.
func NewRootState(view model.View, env model.Environment, template model.Template, self model.Reference, parent model.Element, scope *model.DynamicScope) (*RootState, error) {
	if template == nil {
		return nil, model.NewPreconditionError(model.PreconditionMissingTemplate,
			"cannot render view %q without a template", view.ID())
	}
	return &RootState{
		id:     view.ID(),
		viewID: view.ID(),
		env:    env,
		behavior: &unrendered{
			template: template,
			self:     self,
			parent:   parent,
			scope:    scope,
		},
	}, nil
}

// ID returns the id borrowed from the root's view.
func (r *RootState) ID() string { return r.id }

// IsFor reports whether view is the view this root was mounted for.
func (r *RootState) IsFor(view model.View) bool {
	return view != nil && r.viewID != "" && r.viewID == view.ID()
}

// Phase returns the root's lifecycle phase.
func (r *RootState) Phase() model.RootPhase {
	if r.behavior == nil {
		return model.RootPhaseDestroyed
	}
	return r.behavior.phase()
}

// Result returns the rendered result, or nil before the first successful
// render and after destruction.
func (r *RootState) Result() model.Result {
	if b, ok := r.behavior.(*rendered); ok {
		return b.result
	}
	return nil
}

// ShouldReflush reports whether the root asked to be rendered again during
// its last visit.
func (r *RootState) ShouldReflush() bool { return r.shouldReflush }

// Options returns the options the next rerender will receive.
func (r *RootState) Options() model.RenderOptions { return r.options }

// RenderOrRerender renders the template the first time and rerenders the
// result afterwards. A failed first render leaves the root unrendered.
func (r *RootState) RenderOrRerender() error {
	if !r.Phase().CanTransitionTo(model.RootPhaseRendered) {
		return model.NewPreconditionError(model.PreconditionDestroyed,
			"cannot render %s root %q", r.Phase(), r.id)
	}
	if b, ok := r.behavior.(*rendered); ok {
		return b.result.Rerender(r.options)
	}

	b := r.behavior.(*unrendered)
	result, err := b.template.Render(b.self, b.parent, b.scope)
	if err != nil {
		return err
	}
	r.behavior = &rendered{result: result}
	return nil
}

// Destroy clears the root and destroys its result inside one transaction,
// reusing the open transaction if there is one. Destroying twice is a no-op.
func (r *RootState) Destroy() error {
	if r.Phase().IsTerminal() {
		return nil
	}
	behavior, env := r.behavior, r.env

	r.env = nil
	r.viewID = ""
	r.behavior = nil

	b, ok := behavior.(*rendered)
	if !ok || b.result == nil {
		return nil
	}

	if !env.InTransaction() {
		env.Begin()
		defer env.Commit()
	}
	return b.result.Destroy()
}
