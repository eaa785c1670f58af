// Command netpace measures one-way message latency and receiver loss across
// a point-to-point transport by pacing outbound traffic at a series of
// target rates and reflecting replies off a server. This binary wires
// together the wire, transport, reflector, client, driver, and config
// packages behind a single CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/netpace/affinity"
	"github.com/m-lab/netpace/client"
	"github.com/m-lab/netpace/config"
	"github.com/m-lab/netpace/driver"
	"github.com/m-lab/netpace/idlefds"
	"github.com/m-lab/netpace/muxer"
	"github.com/m-lab/netpace/progress"
	"github.com/m-lab/netpace/reflector"
	"github.com/m-lab/netpace/runid"
	"github.com/m-lab/netpace/transport"
	"github.com/m-lab/netpace/tsc"
	"github.com/m-lab/netpace/wire"
)

// build identifies this binary for the version handshake. Real releases
// would stamp these at link time; the defaults here just guarantee a
// client and server built from the same source tree agree.
var build = wire.BuildInfo{Version: "netpace-dev", SourceChecksum: "unreleased"}

var (
	serverMode  = flag.Bool("server", false, "Run as a standalone server (hidden; used by --co-located).")
	coLocatedFD = flag.Int("co-located-fd", -1, "File descriptor carrying the control channel (hidden; set by the --co-located parent).")
	promPort    = flag.String("prom", ":9090", "Prometheus metrics export address and port.")
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

func main() {
	flag.Parse()
	flagx.ArgsFromEnv(flag.CommandLine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(ctx)

	if *serverMode {
		runServer()
		return
	}

	if *config.CoLocated {
		runCoLocatedClient(ctx)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: netpace [flags] <tcp|udp|pipe|unix_stream|unix_datagram> [host[:port]]")
		fmt.Fprintln(os.Stderr, "       netpace -co-located [flags]")
		os.Exit(1)
	}
	runNetworkedClient(ctx, args)
}

// runNetworkedClient dials a remote (or locally listening) server over TCP
// for the control channel and runs the rate sweep against it.
func runNetworkedClient(ctx context.Context, args []string) {
	fdType, err := transport.ParseFDType(args[0])
	rtx.Must(err, "unknown transport %q", args[0])

	host := "localhost"
	if len(args) > 1 {
		host = args[1]
	}
	if !strings.Contains(host, ":") {
		host = fmt.Sprintf("%s:%d", host, *config.Port)
	}

	control, err := net.Dial("tcp", host)
	rtx.Must(err, "could not connect to %s", host)
	defer control.Close()

	runClientOverControl(ctx, control, fdType)
}

// runCoLocatedClient forks a server subprocess (re-invoking this same
// binary with -server and a control-channel fd inherited via ExtraFiles)
// and runs the sweep against it without touching the network.
func runCoLocatedClient(ctx context.Context) {
	pair, err := newSocketpairFiles()
	rtx.Must(err, "could not create control socketpair for co-located server")

	cmd := exec.Command(os.Args[0], "-server", "-co-located-fd=3")
	cmd.ExtraFiles = []*os.File{pair.child}
	cmd.Stderr = os.Stderr
	cmd.Stdout = os.Stderr
	rtx.Must(cmd.Start(), "could not start co-located server subprocess")
	pair.child.Close()

	control, err := net.FileConn(pair.parent)
	rtx.Must(err, "could not wrap control socketpair as a net.Conn")
	pair.parent.Close()
	defer control.Close()

	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	runClientOverControl(ctx, control, transport.FDUDP)
}

func runClientOverControl(ctx context.Context, control net.Conn, fdType transport.FDType) {
	rtx.Must(wire.ClientCheckVersion(control, build), "version handshake failed")

	opts := optionsFromFlags(fdType)
	rtx.Must(opts.WriteTo(control), "could not send negotiated options")

	serverEnv, err := wire.GetString(control)
	rtx.Must(err, "could not read server environment string")

	dataPort, err := wire.GetInt32(control)
	rtx.Must(err, "could not read server data port")

	dataConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	rtx.Must(err, "could not open client data socket")
	defer dataConn.Close()

	serverAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(dataPort)}
	rtx.Must(wire.PutString(control, dataConn.LocalAddr().String()), "could not send reply endpoint")

	msgLen := *config.MsgSize
	if msgLen < wire.RequestSize {
		msgLen = wire.RequestSize
	}
	rtx.Must(wire.PutInt32(control, int32(msgLen)), "could not negotiate message size")
	_, err = wire.GetInt32(control)
	rtx.Must(err, "could not read message-size ack")

	// Handshake step 7: tell the server to expect sizeof(reply)-sized
	// forward messages for the RTT calibration phase, before it begins
	// reflecting. MeasureRTT widens its own sends to match.
	rtx.Must(wire.PutInt32(control, wire.ReplySize), "could not negotiate RTT calibration size")
	_, err = wire.GetInt32(control)
	rtx.Must(err, "could not read RTT calibration size ack")

	dataTransport := transport.NewUDP(dataConn, serverAddr)
	clock := tsc.NanoClock{}
	rx := client.NewRx(dataTransport, false, 3*config.EffectiveSamples())
	tx := client.NewTx(dataTransport, rx, clock, msgLen)

	rr, err := config.ParseRateRange(*config.Rates)
	rtx.Must(err, "invalid --rates value")

	prog := progress.NullServer()
	if *progress.Filename != "" {
		prog = progress.New(*progress.Filename)
		rtx.Must(prog.Listen(), "could not listen on progress socket")
		go prog.Serve(ctx)
	}

	id := runid.New()
	log.Printf("netpace run %s starting against %s (server env: %q)", id, dataConn.RemoteAddr(), serverEnv)

	driver.PrintHeader(os.Stdout, driver.HeaderInfo{
		ServerEnv:     serverEnv,
		Options:       fmt.Sprintf("fd_type=%s msgsize=%d", fdType, msgLen),
		Muxer:         *config.Muxer,
		ServerMuxer:   effectiveServMuxer(),
		Affinity:      *config.Affinity,
		Multicast:     *config.Mcast,
		Percentile:    *config.Percentile,
		ReturnLatency: returnLatencyLabel(),
	})

	results, err := driver.Sweep(tx, rx, rr.ExpandRates(), driver.Config{
		MsgLen:      msgLen,
		Millisec:    *config.Millisec,
		Samples:     config.EffectiveSamples(),
		MaxBurst:    *config.MaxBurst,
		StopPct:     *config.Stop,
		Percentile:  *config.Percentile,
		ReportRTT:   *config.RTT,
		RawPrefix:   *config.Raw,
		RawCompress: *config.RawZstd,
	}, prog)
	for _, r := range results {
		driver.WriteResultLine(os.Stdout, r)
	}
	rtx.Must(err, "measurement sweep failed")
}

func returnLatencyLabel() string {
	if *config.RTT {
		return "measured"
	}
	return "half-rtt"
}

func effectiveServMuxer() string {
	if *config.ServMuxer != "" {
		return *config.ServMuxer
	}
	return *config.Muxer
}

func optionsFromFlags(fdType transport.FDType) wire.Options {
	var serverCore int32
	if pair, err := config.ParseAffinity(*config.Affinity); err == nil {
		serverCore = int32(pair.Server)
	}
	return wire.Options{
		FDType:        int32(fdType),
		Connect:       boolToInt32(*config.Connect),
		Spin:          boolToInt32(*config.Spin),
		MuxerName:     *config.Muxer,
		McastGroup:    *config.Mcast,
		McastIntf:     *config.McastIntf,
		McastLoop:     boolToInt32(*config.McastLoop),
		NPipe:         int32(*config.NPipe),
		NUnixStream:   int32(*config.NUnixS),
		NUnixDatagram: int32(*config.NUnixD),
		NUDP:          int32(*config.NUDP),
		NTCPConnect:   int32(*config.NTCPConnect),
		NTCPListen:    int32(*config.NTCPListen),
		ServerCoreI:   serverCore,
		NoDelay:       boolToInt32(*config.NoDelay),
	}
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// runServer accepts one control connection (over TCP, or over the inherited
// fd when started as a --co-located child), negotiates options, and runs
// the reflector loop until the control channel closes.
func runServer() {
	var control net.Conn
	if *coLocatedFD >= 0 {
		f := os.NewFile(uintptr(*coLocatedFD), "netpace-control-child")
		conn, err := net.FileConn(f)
		rtx.Must(err, "could not wrap inherited control fd")
		control = conn
	} else {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", *config.Port))
		rtx.Must(err, "could not listen on control port %d", *config.Port)
		defer ln.Close()
		log.Printf("netpace server listening on %s", ln.Addr())
		conn, err := ln.Accept()
		rtx.Must(err, "could not accept control connection")
		control = conn
	}
	defer control.Close()

	rtx.Must(wire.ServerSendVersion(control, build), "could not send version handshake")
	opts, err := wire.ReadOptions(control)
	rtx.Must(err, "could not read negotiated options")

	if err := affinity.Set(int(opts.ServerCoreI)); err != nil {
		log.Printf("netpace server: could not set affinity to core %d: %v", opts.ServerCoreI, err)
	}

	dataConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	rtx.Must(err, "could not open server data socket")
	defer dataConn.Close()

	env := strings.Join(os.Environ(), " ")
	rtx.Must(wire.PutString(control, env), "could not send server environment string")
	rtx.Must(wire.PutInt32(control, int32(dataConn.LocalAddr().(*net.UDPAddr).Port)), "could not send data port")

	replyHostport, err := wire.GetString(control)
	rtx.Must(err, "could not read reply endpoint")
	replyAddr, err := net.ResolveUDPAddr("udp", replyHostport)
	rtx.Must(err, "could not resolve reply endpoint %q", replyHostport)

	msgLen, err := wire.GetInt32(control)
	rtx.Must(err, "could not read negotiated message size")
	rtx.Must(wire.PutInt32(control, 0), "could not ack message size")

	// Handshake step 7: the client names the sizeof(reply)-sized forward
	// message it will use for RTT calibration; size the receive buffer to
	// fit both that and the regular msgLen so reflector.Loop never short-
	// reads either one.
	rttSize, err := wire.GetInt32(control)
	rtx.Must(err, "could not read RTT calibration size")
	rtx.Must(wire.PutInt32(control, 0), "could not ack RTT calibration size")
	bufSize := msgLen
	if rttSize > bufSize {
		bufSize = rttSize
	}

	backendName := *config.Muxer
	if effectiveServMuxer() != "" {
		backendName = effectiveServMuxer()
	}
	backend, err := muxer.New(backendName, *config.Spin)
	rtx.Must(err, "could not build muxer backend %q", backendName)
	defer backend.Close()

	idle, err := idlefds.Set(backend, idlefds.Config{
		Pipes:         int(opts.NPipe),
		UnixDatagrams: int(opts.NUnixDatagram),
		UnixStreams:   int(opts.NUnixStream),
		UDP:           int(opts.NUDP),
		TCPConnect:    int(opts.NTCPConnect),
		TCPConnectTo:  *config.TCPCServ,
		TCPListen:     int(opts.NTCPListen),
	})
	rtx.Must(err, "could not set up idle descriptors")
	defer idlefds.Close(idle)

	// An orderly close of the control channel ends the run: closing the
	// data socket makes reflector.Loop return.
	go func() {
		io.Copy(io.Discard, control)
		dataConn.Close()
	}()

	serverT := transport.NewUDP(dataConn, replyAddr)
	log.Printf("netpace server: reflecting %d-byte messages, reply endpoint %s", msgLen, replyAddr)
	if err := reflector.Loop(serverT, int(bufSize), tsc.NanoClock{}); err != nil {
		log.Printf("netpace server: reflector loop ended: %v", err)
	}
}

type socketpairFiles struct {
	parent, child *os.File
}

// newSocketpairFiles creates a connected pair of AF_UNIX stream sockets,
// wrapped as *os.File so one end can be inherited by a forked child via
// cmd.ExtraFiles while the other is used directly by the parent.
func newSocketpairFiles() (socketpairFiles, error) {
	a, b, err := socketpairFDs()
	if err != nil {
		return socketpairFiles{}, err
	}
	return socketpairFiles{
		parent: os.NewFile(uintptr(a), "netpace-control-parent"),
		child:  os.NewFile(uintptr(b), "netpace-control-child"),
	}, nil
}

// socketpairFDs creates a connected pair of AF_UNIX stream socket file
// descriptors, mirroring transport.NewUnixStreamPair's use of
// unix.Socketpair for the data-path idle descriptors.
func socketpairFDs() (a, b int, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("netpace: socketpair: %w", err)
	}
	return fds[0], fds[1], nil
}
