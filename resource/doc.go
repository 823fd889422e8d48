// Package resource provides the handle registry for native engine objects.
//
// Byte arrays, compiled modules, instances and values returned by the engine
// are registered under typed, opaque handles. Host code passes handles
// around; engine-calling code extracts the native object when it needs it.
//
//	reg := resource.NewRegistry(
//	    resource.WithDestructor(resource.KindModule, func(v any) error {
//	        return v.(wazero.CompiledModule).Close(ctx)
//	    }),
//	)
//
//	h, _ := reg.Register(compiled, resource.KindModule)
//	mod, err := resource.ExtractAs[wazero.CompiledModule](reg, h, resource.KindModule)
//
// # Handle Lifecycle
//
// A handle is Live until destroyed, then Destroyed for good:
//
//	Live --Destroy/SweepAll--> Destroyed
//
// Destroy is idempotent and runs the kind's destructor at most once.
// Extract on a destroyed handle fails with a stale handle error. Handles
// carry a slot generation, so a destroyed handle stays stale even after its
// slot is reused by a later registration.
//
// # Sweep
//
// SweepAll destroys every live handle at shutdown, independent of when the
// host would otherwise release them. A failing or panicking destructor is
// recorded in the SweepReport and the sweep continues. No ordering across
// handles or kinds is guaranteed; destroying a module does not wait for
// instances created from it.
//
// # Observers
//
// Subscribe to lifecycle events:
//
//	cancel := reg.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    if e.Type == resource.EventDestroyed && e.Err != nil {
//	        log.Printf("teardown of %v failed: %v", e.Handle, e.Err)
//	    }
//	}))
//	defer cancel()
package resource
