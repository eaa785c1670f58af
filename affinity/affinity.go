// Package affinity pins the calling thread to a CPU core, to keep cache
// locality during the paced measurement loop on both the client and
// server sides.
package affinity

import "runtime"

// Set pins the current OS thread to the given CPU core. Callers on a
// goroutine that wants this pinning to stick must first call
// runtime.LockOSThread, since Go otherwise may migrate the goroutine to a
// different OS thread between calls.
func Set(core int) error {
	return setAffinity(core)
}

// LockToCore is a convenience wrapper: it locks the calling goroutine to
// its current OS thread and pins that thread to core. The caller must not
// call runtime.UnlockOSThread afterwards if it wants the pinning to
// persist for the rest of the goroutine's life.
func LockToCore(core int) error {
	runtime.LockOSThread()
	return Set(core)
}
