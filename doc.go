// Package tasking provides a small DSL for declaring hierarchically named
// tasks and running them by name. Namespaces carry options that tasks
// inherit, tasks can be wrapped with before/after filter tasks, and option
// values may be computed lazily from the final merged option set.
//
//	e := tasking.New()
//	_ = e.Namespace("build", func() error {
//		if err := e.Options(tasking.NewOptions(map[string]any{"target": "linux"})); err != nil {
//			return err
//		}
//		return e.Task("compile", func(ctx context.Context, opts tasking.Values) error {
//			fmt.Println("compiling for", opts["target"])
//			return nil
//		})
//	})
//	_ = e.Execute(ctx, "build::compile", nil)
//
// Options are merged outer namespace < inner namespace < task < call site.
// Filter references given to Before and After are resolved when the first
// task is executed, so they may name tasks declared later on.
package tasking
