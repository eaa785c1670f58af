// Package runid generates identifiers that tag one invocation of netpace
// (used in log lines and raw dump filenames): hostname+boot-time gives a
// prefix that is stable and globally unique per running kernel instance,
// combined with a per-process counter since netpace only needs one
// identifier per process run. On platforms or sandboxes where
// /proc/uptime is unavailable, falls back to a random
// github.com/google/uuid value.
package runid

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var cachedPrefix string
var counter uint64

func timeToUnix(t time.Time) int64 {
	return int64(t.Sub(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)).Seconds())
}

// getBoottimeWithRaceCondition has a race condition between the reading of
// /proc/uptime and the call to time.Now(). If, between those two syscalls,
// we cross a second-granularity time boundary, the result will be off by
// one. It seems safe to assume this race condition won't happen twice in
// quick succession, so the recommended way to use this function is to call
// it repeatedly until it returns the same answer twice.
func getBoottimeWithRaceCondition() (int64, error) {
	procuptime, err := ioutil.ReadFile("/proc/uptime")
	if err != nil {
		return -1, err
	}
	fields := strings.Split(string(procuptime), " ")
	if len(fields) != 2 {
		return -1, fmt.Errorf("runid: could not split /proc/uptime into two parts")
	}
	uptime, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return -1, fmt.Errorf("runid: could not parse /proc/uptime into a float")
	}
	return timeToUnix(time.Now().Add(time.Duration(-1 * uptime * float64(time.Second)))), nil
}

func getBoottime() (int64, error) {
	var prev, curr int64
	curr, err := getBoottimeWithRaceCondition()
	if err != nil {
		return curr, err
	}
	for prev != curr {
		prev = curr
		curr, err = getBoottimeWithRaceCondition()
		if err != nil {
			return curr, err
		}
	}
	return curr, nil
}

// prefix returns a string combining the hostname and boot time, which
// globally identifies this kernel instance's run namespace. Cached because
// it is constant for the life of the process.
func prefix() (string, error) {
	if cachedPrefix != "" {
		return cachedPrefix, nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	boottime, err := getBoottime()
	if err != nil {
		return "", err
	}
	cachedPrefix = fmt.Sprintf("%s_%d", hostname, boottime)
	return cachedPrefix, nil
}

// New returns a run identifier of the form "<hostname>_<boottime>_<n>",
// where n is a process-local, monotonically increasing counter (one per
// measurement run within this process). Falls back to a random UUID (via
// github.com/google/uuid) if the hostname/boottime prefix can't be
// determined, e.g. on a platform without /proc/uptime.
func New() string {
	n := atomic.AddUint64(&counter, 1)
	p, err := prefix()
	if err != nil {
		return fmt.Sprintf("%s_%d", uuid.New().String(), n)
	}
	return fmt.Sprintf("%s_%d", p, n)
}
