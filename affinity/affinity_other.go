//go:build !linux

package affinity

func setAffinity(core int) error {
	// No portable affinity syscall outside Linux; treat as a no-op so the
	// CLI still runs. It returns nil, so callers log nothing. Affinity
	// pinning is a best-effort optimization, not a correctness requirement.
	return nil
}
