package tasking

// Registry maps fully-qualified namespace paths to namespaces. An Engine owns
// one; tests create fresh registries (or call Reset) to isolate state.
type Registry struct {
	namespaces map[string]*Namespace
	order      []*Namespace
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{namespaces: make(map[string]*Namespace)}
}

// NamespaceTasks lists the simple task names registered under a namespace.
type NamespaceTasks struct {
	Namespace string
	Tasks     []string
}

// FindNamespace returns the namespace registered under path.
func (r *Registry) FindNamespace(path string) (*Namespace, bool) {
	ns, ok := r.namespaces[path]
	return ns, ok
}

// FindOrCreate returns the namespace at path, merging opts into it when it
// already exists and creating it with opts otherwise. Ancestors are not
// created; use Build for that.
func (r *Registry) FindOrCreate(path string, opts *Options) *Namespace {
	if ns, ok := r.namespaces[path]; ok {
		ns.MergeOptions(opts)
		return ns
	}
	ns := newNamespace(path, r, opts)
	r.namespaces[path] = ns
	r.order = append(r.order, ns)
	return ns
}

// Build creates every missing ancestor of path from the outermost inwards,
// then finds or creates path itself with opts.
func (r *Registry) Build(path string, opts *Options) *Namespace {
	segments := splitPath(path)
	for i := 1; i < len(segments); i++ {
		r.FindOrCreate(joinPath(segments[:i]), nil)
	}
	return r.FindOrCreate(path, opts)
}

// FindTaskInNamespace looks up task name inside the namespace at path.
func (r *Registry) FindTaskInNamespace(path, name string) (*Task, bool) {
	ns, ok := r.namespaces[path]
	if !ok {
		return nil, false
	}
	return ns.FindTask(name)
}

// FindTask looks up a fully-qualified task name such as "outer::inner::build".
func (r *Registry) FindTask(full string) (*Task, bool) {
	path, name := splitTask(full)
	if path == "" || name == "" {
		return nil, false
	}
	return r.FindTaskInNamespace(path, name)
}

// Namespaces returns every namespace in creation order.
func (r *Registry) Namespaces() []*Namespace {
	return append([]*Namespace(nil), r.order...)
}

// Tasks returns every registered task, grouped by namespace in creation order.
func (r *Registry) Tasks() []*Task {
	var out []*Task
	for _, ns := range r.order {
		out = append(out, ns.Tasks()...)
	}
	return out
}

// Structure lists the tasks of every namespace.
func (r *Registry) Structure() []NamespaceTasks {
	out := make([]NamespaceTasks, 0, len(r.order))
	for _, ns := range r.order {
		names := make([]string, 0, len(ns.order))
		names = append(names, ns.order...)
		out = append(out, NamespaceTasks{Namespace: ns.path, Tasks: names})
	}
	return out
}

// Reset drops every namespace and task.
func (r *Registry) Reset() {
	r.namespaces = make(map[string]*Namespace)
	r.order = nil
}
