package sim

import (
	"fmt"
	"log/slog"

	"github.com/dop251/goja"
	"github.com/me/rerender/internal/render"
	"github.com/me/rerender/internal/runloop"
	"github.com/me/rerender/pkg/model"
)

// Scheduler queues follow-up work. *runloop.Engine implements it.
type Scheduler interface {
	Schedule(queue string, fn func() error)
}

// Script is a compiled render script with an optional destroy script.
type Script struct {
	Name    string
	render  *goja.Program
	destroy *goja.Program
}

// CompileScript compiles the render and destroy sources of a root.
func CompileScript(name, renderSrc, destroySrc string) (*Script, error) {
	s := &Script{Name: name}
	var err error
	if s.render, err = goja.Compile(name+".render", renderSrc, true); err != nil {
		return nil, fmt.Errorf("compile %s render script: %w", name, err)
	}
	if destroySrc != "" {
		if s.destroy, err = goja.Compile(name+".destroy", destroySrc, true); err != nil {
			return nil, fmt.Errorf("compile %s destroy script: %w", name, err)
		}
	}
	return s, nil
}

// ScriptTemplate is a model.Template whose renders run JavaScript against
// the reactive cells. Scripts see these globals:
//
//	get(name)         read a cell
//	set(name, value)  write a cell
//	emit(text)        append a line to the rendered output
//	later(fn)         run fn on the afterRender queue
//	view              id of the view being rendered
//	outlet            outlet name, or "" outside an outlet
//	rerendering       false on the first render
//	alwaysRevalidate  the rerender option
type ScriptTemplate struct {
	cells     *Cells
	scheduler Scheduler
	logger    *slog.Logger

	// Exactly one of single and byView is set.
	single *Script
	byView map[string]*Script
}

var _ model.Template = (*ScriptTemplate)(nil)

// NewOutletTemplate returns a template that always runs s.
func NewOutletTemplate(s *Script, cells *Cells, scheduler Scheduler, logger *slog.Logger) *ScriptTemplate {
	return &ScriptTemplate{cells: cells, scheduler: scheduler, logger: logger, single: s}
}

// NewRootTemplate returns a template for component roots. It picks the
// script registered for the view carried by the root component definition.
func NewRootTemplate(scripts map[string]*Script, cells *Cells, scheduler Scheduler, logger *slog.Logger) *ScriptTemplate {
	return &ScriptTemplate{cells: cells, scheduler: scheduler, logger: logger, byView: scripts}
}

// Render implements model.Template.
func (t *ScriptTemplate) Render(self model.Reference, parent model.Element, scope *model.DynamicScope) (model.Result, error) {
	script, viewID, err := t.resolve(self)
	if err != nil {
		return nil, err
	}

	r := &ScriptResult{
		template: t,
		script:   script,
		vm:       goja.New(),
		ViewID:   viewID,
		Parent:   parent,
	}
	if err := r.install(scope); err != nil {
		return nil, err
	}
	if err := r.run(false, model.RenderOptions{}); err != nil {
		return nil, err
	}
	return r, nil
}

func (t *ScriptTemplate) resolve(self model.Reference) (*Script, string, error) {
	switch v := self.Value().(type) {
	case *render.RootComponentDefinition:
		id := v.View.ID()
		if t.single != nil {
			return t.single, id, nil
		}
		s, ok := t.byView[id]
		if !ok {
			return nil, "", fmt.Errorf("no render script for view %q", id)
		}
		return s, id, nil
	case model.View:
		if t.single == nil {
			return nil, "", fmt.Errorf("no render script for view %q", v.ID())
		}
		return t.single, v.ID(), nil
	default:
		return nil, "", fmt.Errorf("cannot render self of type %T", v)
	}
}

// ScriptResult is the live result of a script render.
type ScriptResult struct {
	template *ScriptTemplate
	script   *Script
	vm       *goja.Runtime

	ViewID    string
	Parent    model.Element
	Output    []string
	Renders   int
	Destroyed bool
}

var _ model.Result = (*ScriptResult)(nil)

func (r *ScriptResult) install(scope *model.DynamicScope) error {
	cells := r.template.cells
	globals := map[string]any{
		"view":   r.ViewID,
		"outlet": outletName(scope),
		"get":    cells.Get,
		"set": func(name string, v goja.Value) error {
			return cells.Set(name, v.Export())
		},
		"emit": func(text string) {
			r.Output = append(r.Output, text)
		},
		"later": func(v goja.Value) error {
			fn, ok := goja.AssertFunction(v)
			if !ok {
				return fmt.Errorf("later: argument is not a function")
			}
			r.template.scheduler.Schedule(runloop.QueueAfterRender, func() error {
				if _, err := fn(goja.Undefined()); err != nil {
					return fmt.Errorf("view %s: later: %w", r.ViewID, err)
				}
				return nil
			})
			return nil
		},
	}
	for name, v := range globals {
		if err := r.vm.Set(name, v); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

func outletName(scope *model.DynamicScope) string {
	if scope == nil || scope.OutletState == nil {
		return ""
	}
	if o, ok := scope.OutletState.Value().(model.OutletState); ok {
		return o.Name
	}
	return ""
}

func (r *ScriptResult) run(rerendering bool, opts model.RenderOptions) error {
	if err := r.vm.Set("rerendering", rerendering); err != nil {
		return err
	}
	if err := r.vm.Set("alwaysRevalidate", opts.AlwaysRevalidate); err != nil {
		return err
	}

	r.Output = nil
	r.Renders++
	if _, err := r.vm.RunProgram(r.script.render); err != nil {
		return fmt.Errorf("script %s: %w", r.script.Name, err)
	}
	r.template.logger.Debug("script rendered", "view_id", r.ViewID, "renders", r.Renders, "lines", len(r.Output))
	return nil
}

// Rerender implements model.Result.
func (r *ScriptResult) Rerender(opts model.RenderOptions) error {
	return r.run(true, opts)
}

// Destroy implements model.Result.
func (r *ScriptResult) Destroy() error {
	r.Destroyed = true
	if r.script.destroy == nil {
		return nil
	}
	if _, err := r.vm.RunProgram(r.script.destroy); err != nil {
		return fmt.Errorf("script %s destroy: %w", r.script.Name, err)
	}
	return nil
}
