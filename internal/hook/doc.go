// Package hook defines the event catalogue and the binding registry.
//
// An EventKey names a hook site as a (category, event id) pair. Scripts
// attach callbacks to keys through the Registry; the engine walks the
// bindings of a key in a stable order when the host fires the event.
//
// Ordering within a key:
//   - global bindings (no owner) run first, in registration order
//   - owner-scoped bindings run next, in registration order
//
// Example:
//
//	reg := hook.NewRegistry()
//	key := hook.Key(hook.CategoryAllCreature, hook.AllCreatureEventOnAdd)
//	h, err := reg.Register(key, hook.Binding{Callback: fn})
//	if err != nil {
//	    return err
//	}
//	defer reg.Unregister(h)
package hook
