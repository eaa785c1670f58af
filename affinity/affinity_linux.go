//go:build linux

package affinity

import "golang.org/x/sys/unix"

func setAffinity(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	return unix.SchedSetaffinity(0, &set)
}
