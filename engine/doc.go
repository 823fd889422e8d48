// Package engine runs WebAssembly modules on wazero and hands every artifact
// out as an opaque handle.
//
// # Handles
//
// A WazeroEngine owns one resource.Registry. Each operation that produces an
// engine object registers it and returns its handle:
//
//	NewBytes     -> byte-array handle   (a private copy of the input)
//	Compile      -> module handle       (wazero.CompiledModule)
//	Instantiate  -> instance handle     (*Instance)
//	NewValue     -> value handle        (*Value)
//	Call         -> value handles, one per result
//
// Handles are released with Registry().Destroy, or all at once with Sweep at
// the end of a request. Close sweeps and then closes the wazero runtime.
//
// # Ordering
//
// Handles do not keep each other alive. Destroying a module handle while
// instances of it are live is allowed: wazero keeps instantiated modules
// running independently of the compiled module they came from. Destroying a
// byte-array handle after Compile does not affect the module.
//
// # Memory
//
// Memory adopts an instance's linear memory as a borrowed buffer.ArrayBuffer.
// The buffer aliases engine memory, so writes through typed views are seen by
// the guest and vice versa. Destroying the instance detaches every buffer
// adopted from it. A buffer resolves the memory's bytes on every access, so
// views stay attached to guest memory across memory.grow. Its length is the
// memory's size at adoption; adopt again to reach the grown extent.
//
// # Thread Safety
//
// WazeroEngine is safe for concurrent use. Calls on one instance follow
// wazero's rules and should not overlap.
package engine
