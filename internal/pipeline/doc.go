// Package pipeline provides the staged, plugin-driven test-run pipeline.
//
// A run moves through three stages in strict order:
//
//	prepare*  → zero or more hooks, run sequentially in registration order
//	execute   → at most one hook, run once
//	progress  → at most one tick function, invoked repeatedly by the entity
//
// Plugins contribute hooks from [Plugin.Apply]. Each run gets a fresh
// [Entity] from a [Factory], together with a child [Scope] from which
// plugins are constructed, so per-run plugin state never leaks between runs.
//
// # Outcomes
//
// A prepare hook rejects a run by calling [Operate.Cancel]; a prepare hook
// that returns an error is treated the same way, with the reason recorded
// under [DataErrors]. Start returns nil for cancelled runs. An execute hook
// error moves the run to failed and is returned from Start. Progress tick
// errors are logged and retried with backoff; they never end the run.
//
// # Usage
//
//	f := pipeline.NewFactory(&pipeline.Scope{Runtime: client, Document: doc},
//	    pipeline.WithPollInterval(time.Second))
//	p := f.New()
//	_ = p.Init(pipeline.Options{Plugins: plugins.Default()})
//	p.OnFinished(func(ev pipeline.FinishedEvent) { ... })
//	err := p.Start(ctx, map[string]any{"values": values})
package pipeline
