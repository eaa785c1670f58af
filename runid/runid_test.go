package runid_test

import (
	"strings"
	"testing"

	"github.com/m-lab/netpace/runid"
)

func TestNewIsUnique(t *testing.T) {
	id1 := runid.New()
	id2 := runid.New()
	if id1 == id2 {
		t.Error("run ids must not be the same")
	}
}

func TestNewSharesPrefix(t *testing.T) {
	id1 := runid.New()
	id2 := runid.New()
	left1 := strings.LastIndex(id1, "_")
	left2 := strings.LastIndex(id2, "_")
	if left1 <= 0 || left2 <= 0 || id1[:left1] != id2[:left2] {
		t.Errorf("the prefix part of two run ids in the same process should match: %s, %s", id1, id2)
	}
}
