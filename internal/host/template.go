package host

import "github.com/me/rerender/pkg/model"

// Template is a scripted model.Template. The hooks run inside Render,
// Rerender and Destroy of the results it produces; nil hooks succeed.
type Template struct {
	Name string
	Env  *Environment

	OnRender   func(r *Result) error
	OnRerender func(r *Result, opts model.RenderOptions) error
	OnDestroy  func(r *Result) error

	Renders int
	Results []*Result
}

var _ model.Template = (*Template)(nil)

// Render implements model.Template.
func (t *Template) Render(self model.Reference, parent model.Element, scope *model.DynamicScope) (model.Result, error) {
	t.Renders++
	r := &Result{Template: t, Self: self, Parent: parent, Scope: scope}
	if t.OnRender != nil {
		if err := t.OnRender(r); err != nil {
			return nil, err
		}
	}
	t.Results = append(t.Results, r)
	return r, nil
}

// Result is a rendered template instance.
type Result struct {
	Template *Template
	Self     model.Reference
	Parent   model.Element
	Scope    *model.DynamicScope

	Rerenders   int
	Options     []model.RenderOptions
	Destroys    int
	DestroyedTx bool
}

var _ model.Result = (*Result)(nil)

// Rerender implements model.Result.
func (r *Result) Rerender(opts model.RenderOptions) error {
	r.Rerenders++
	r.Options = append(r.Options, opts)
	if r.Template.OnRerender != nil {
		return r.Template.OnRerender(r, opts)
	}
	return nil
}

// Destroy implements model.Result.
func (r *Result) Destroy() error {
	r.Destroys++
	if r.Template.Env != nil {
		r.DestroyedTx = r.Template.Env.InTransaction()
	}
	if r.Template.OnDestroy != nil {
		return r.Template.OnDestroy(r)
	}
	return nil
}
