package affinity_test

import (
	"runtime"
	"testing"

	"github.com/m-lab/netpace/affinity"
)

func TestSetDoesNotError(t *testing.T) {
	// Core 0 always exists; on non-Linux this is a no-op anyway.
	if err := affinity.Set(0); err != nil {
		t.Fatalf("Set(0): %v", err)
	}
}

func TestSetInvalidCoreOnLinux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("affinity errors are only meaningful on linux")
	}
	if err := affinity.Set(1 << 20); err == nil {
		t.Fatal("expected an error pinning to an out-of-range core")
	}
}
