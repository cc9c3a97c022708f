package render

import "github.com/me/rerender/pkg/model"

// ViewRegistry maps view ids to views.
type ViewRegistry struct {
	views map[string]model.View
}

// NewViewRegistry creates an empty registry.
func NewViewRegistry() *ViewRegistry {
	return &ViewRegistry{views: make(map[string]model.View)}
}

// Register adds view. Ids must be unique.
func (r *ViewRegistry) Register(view model.View) error {
	id := view.ID()
	if _, ok := r.views[id]; ok {
		return model.NewPreconditionError(model.PreconditionDuplicateView,
			"attempted to register a view with an id already in use: %s", id)
	}
	r.views[id] = view
	return nil
}

// Unregister removes view.
func (r *ViewRegistry) Unregister(view model.View) {
	delete(r.views, view.ID())
}

// Lookup returns the view registered under id.
func (r *ViewRegistry) Lookup(id string) (model.View, bool) {
	v, ok := r.views[id]
	return v, ok
}

// Len returns the number of registered views.
func (r *ViewRegistry) Len() int {
	return len(r.views)
}
