package muxer_test

import (
	"testing"
	"time"

	"github.com/m-lab/netpace/muxer"
	"github.com/m-lab/netpace/transport"
)

func backends(t *testing.T) map[string]muxer.Backend {
	t.Helper()
	out := make(map[string]muxer.Backend)
	for _, name := range []string{"none", "select", "poll", "epoll", "epoll_mod", "epoll_adddel"} {
		b, err := muxer.New(name, false)
		if err != nil {
			t.Fatalf("muxer.New(%q): %v", name, err)
		}
		out[name] = b
	}
	return out
}

func TestBackendsSeeReadiness(t *testing.T) {
	for name, backend := range backends(t) {
		name, backend := name, backend
		t.Run(name, func(t *testing.T) {
			a, b, err := transport.NewUnixDatagramPair()
			if err != nil {
				t.Fatal(err)
			}
			defer a.Close()
			defer b.Close()

			fder, ok := b.(transport.FDer)
			if !ok {
				t.Fatal("unix datagram transport does not implement FDer")
			}
			fd, err := fder.Fd()
			if err != nil {
				t.Fatal(err)
			}
			if err := backend.Add(fd); err != nil {
				t.Fatal(err)
			}

			if _, err := a.Send([]byte("ping")); err != nil {
				t.Fatal(err)
			}
			if err := backend.Wait(fd, 2000); err != nil {
				t.Fatalf("Wait did not observe readiness: %v", err)
			}
			buf := make([]byte, 16)
			n, err := b.RecvOne(buf, false)
			if err != nil {
				t.Fatal(err)
			}
			if string(buf[:n]) != "ping" {
				t.Fatalf("got %q", buf[:n])
			}
			backend.Close()
		})
	}
}

func TestBackendsTimeout(t *testing.T) {
	for name, backend := range backends(t) {
		if name == "none" {
			// The blocking backend reports readiness unconditionally and
			// leaves actual waiting to Transport.RecvOne; it has no
			// timeout concept to test here.
			continue
		}
		name, backend := name, backend
		t.Run(name, func(t *testing.T) {
			a, b, err := transport.NewUnixDatagramPair()
			if err != nil {
				t.Fatal(err)
			}
			defer a.Close()
			defer b.Close()

			fder := b.(transport.FDer)
			fd, err := fder.Fd()
			if err != nil {
				t.Fatal(err)
			}
			if err := backend.Add(fd); err != nil {
				t.Fatal(err)
			}

			start := time.Now()
			err = backend.Wait(fd, 50)
			if err != muxer.ErrTimeout {
				t.Fatalf("expected ErrTimeout, got %v", err)
			}
			if time.Since(start) > time.Second {
				t.Fatalf("timeout took too long: %v", time.Since(start))
			}
			backend.Close()
		})
	}
}

func TestSelectAndPollScanIdleFdsButReportOnlyThePrimary(t *testing.T) {
	for _, name := range []string{"select", "poll"} {
		name := name
		t.Run(name, func(t *testing.T) {
			backend, err := muxer.New(name, false)
			if err != nil {
				t.Fatal(err)
			}
			defer backend.Close()

			primaryA, primaryB, err := transport.NewUnixDatagramPair()
			if err != nil {
				t.Fatal(err)
			}
			defer primaryA.Close()
			defer primaryB.Close()
			idleA, idleB, err := transport.NewUnixDatagramPair()
			if err != nil {
				t.Fatal(err)
			}
			defer idleA.Close()
			defer idleB.Close()

			primaryFd, err := primaryB.(transport.FDer).Fd()
			if err != nil {
				t.Fatal(err)
			}
			idleFd, err := idleB.(transport.FDer).Fd()
			if err != nil {
				t.Fatal(err)
			}
			if err := backend.Add(idleFd); err != nil {
				t.Fatal(err)
			}

			// Only the idle fd is readable; Wait on the primary fd must
			// still time out instead of reporting a false positive.
			if _, err := idleA.Send([]byte("noise")); err != nil {
				t.Fatal(err)
			}
			if err := backend.Wait(primaryFd, 50); err != muxer.ErrTimeout {
				t.Fatalf("expected ErrTimeout while only the idle fd is ready, got %v", err)
			}

			if _, err := primaryA.Send([]byte("ping")); err != nil {
				t.Fatal(err)
			}
			if err := backend.Wait(primaryFd, 2000); err != nil {
				t.Fatalf("Wait did not observe readiness on the primary fd: %v", err)
			}
		})
	}
}

func TestSelectRejectsSpin(t *testing.T) {
	if _, err := muxer.New("select", true); err == nil {
		t.Fatal("expected error requesting spin with select backend")
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := muxer.New("bogus", false); err == nil {
		t.Fatal("expected error for unknown backend name")
	}
}
