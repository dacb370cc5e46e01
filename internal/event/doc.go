// Package event provides the observer primitives used to relay pipeline
// activity to whoever is listening.
//
// # Main Types
//
//   - [Emitter]: a typed observer list; Subscribe returns a [Disposable]
//   - [Disposable]: a handle that removes a subscription when disposed
//   - [DisposableCollection]: a group of handles disposed together
//   - [Bus]: a pub-sub dispatcher keyed by event type, used as the shared
//     relay that outlives individual pipelines
//   - [Event]: the interface events published on a [Bus] implement
//
// # Thread Safety
//
// All types are safe for concurrent use. Handlers are called synchronously
// on the publishing goroutine, in registration order, and are protected
// against panics: a panicking handler does not prevent delivery to the rest.
//
// # Basic Usage
//
//	var progress event.Emitter[int]
//	sub := progress.Subscribe(func(n int) { fmt.Println(n) })
//	progress.Fire(1)
//	sub.Dispose()
//
//	bus := event.NewBus()
//	d := bus.Listen("pipeline.finished", func(e event.Event) { ... })
//	defer d.Dispose()
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action", e.g.
// "pipeline.progress" and "pipeline.finished".
package event
