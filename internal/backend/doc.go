// Package backend brings storage backends online and keeps the table of the
// ones that are running.
//
// A backend is one configured storage engine instance, addressed by a small
// integer index. Its static Info is built once from node configuration. Every
// bring-up resets a fresh working Config from the Info's templates, so a
// backend can be stopped and started again without carrying state over.
//
// Manager.Init walks a fixed sequence of stages:
//
//	ConfigReset → EngineInit → CacheInit → StatRegistered →
//	IoPoolStarted → Published → RouteEnabled → Ready
//
// Each completed stage records how to undo itself. When a later stage fails,
// the recorded undos run in reverse order, so a failed bring-up leaves no
// cache, stat provider, worker pool, registry slot or route behind.
// Manager.Stop takes the handle out of the Registry and runs the same chain.
//
// The Registry is the only state shared across goroutines. Publishing a
// handle is a single write under its lock, so any reader that sees a non-nil
// slot sees a fully constructed Handle.
package backend
