// Package config defines netpace's command-line flags and derives the
// typed configuration the rest of the tool runs against: a flat var block
// of flag.* calls read once in main.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

var (
	MsgSize     = flag.Int("msgsize", 24, "Request payload size in bytes.")
	Rates       = flag.String("rates", "50000-5000000+50000", "Rate sweep, MIN-MAX[+STEP] messages/sec.")
	Millisec    = flag.Int("millisec", 2000, "Duration of each measurement phase, in milliseconds.")
	Samples     = flag.Int("samples", 0, "Target saved samples per phase (0 means use --millisec).")
	Stop        = flag.Int("stop", 90, "Early-stop threshold: percent of target tx rate that must be achieved.")
	MaxBurst    = flag.Int("maxburst", 100, "Cap on fall-behind burst size, in scheduled messages.")
	Port        = flag.Int("port", 2049, "Server control port.")
	Connect     = flag.Bool("connect", false, "Use a connected UDP socket for the data path.")
	Spin        = flag.Bool("spin", false, "Use a spin-wait readiness backend instead of the named muxer.")
	NoDelay     = flag.Bool("nodelay", false, "Set TCP_NODELAY on the control and data sockets.")
	McastLoop   = flag.Bool("mcastloop", false, "Enable multicast loopback.")
	Muxer       = flag.String("muxer", "none", "Client readiness backend: none, select, poll, epoll, epoll_mod, epoll_adddel.")
	ServMuxer   = flag.String("serv-muxer", "", "Server readiness backend (defaults to --muxer).")
	RTT         = flag.Bool("rtt", false, "Report measured RTT directly instead of a one-way estimate.")
	Raw         = flag.String("raw", "", "Prefix for raw per-sample dump files; empty disables raw dumps.")
	RawZstd     = flag.Bool("raw-zstd", false, "Pipe raw dump output through an external zstd process.")
	Percentile  = flag.Float64("percentile", 99, "Percentile reported alongside mean/min/median/max.")
	Mcast       = flag.String("mcast", "", "Multicast group address (enables UDP multicast transport).")
	McastIntf   = flag.String("mcastintf", "", "Interface used for multicast group membership.")
	BindToDev   = flag.String("bindtodev", "", "Interface to bind the data socket to.")
	NPipe       = flag.Int("n-pipe", 0, "Number of idle pipe descriptors (two per pipe) added to the readiness set.")
	NUnixD      = flag.Int("n-unix-d", 0, "Number of idle unix datagram descriptors (two per pair) added to the readiness set.")
	NUnixS      = flag.Int("n-unix-s", 0, "Number of idle unix stream descriptors (two per pair) added to the readiness set.")
	NUDP        = flag.Int("n-udp", 0, "Number of idle UDP sockets added to the readiness set.")
	NTCPConnect = flag.Int("n-tcpc", 0, "Number of idle outbound TCP connections added to the readiness set.")
	NTCPListen  = flag.Int("n-tcpl", 0, "Number of idle listening TCP sockets added to the readiness set.")
	TCPCServ    = flag.String("tcpc-serv", "", "host:port destination for idle TCP connects (--n-tcpc).")
	Affinity    = flag.String("affinity", "1,1", "CPU core indices for client,server as CLIENT,SERVER.")
	CoLocated   = flag.Bool("co-located", false, "Fork and run a server subprocess co-located with the client.")
)

// RateRange is a parsed --rates value.
type RateRange struct {
	Min, Max, Step int
}

// ParseRateRange parses "MIN-MAX[+STEP]", matching the --rates flag's
// documented shape. STEP defaults to 50000 when omitted, matching the
// default flag value's own step.
func ParseRateRange(s string) (RateRange, error) {
	step := 50000
	rangePart := s
	if idx := strings.IndexByte(s, '+'); idx >= 0 {
		rangePart = s[:idx]
		parsedStep, err := strconv.Atoi(s[idx+1:])
		if err != nil {
			return RateRange{}, fmt.Errorf("config: invalid step in rate range %q: %w", s, err)
		}
		step = parsedStep
	}

	dash := strings.IndexByte(rangePart, '-')
	if dash <= 0 {
		n, err := strconv.Atoi(rangePart)
		if err != nil {
			return RateRange{}, fmt.Errorf("config: invalid rate range %q", s)
		}
		return RateRange{Min: n, Max: n, Step: step}, nil
	}
	min, err := strconv.Atoi(rangePart[:dash])
	if err != nil {
		return RateRange{}, fmt.Errorf("config: invalid minimum rate in %q: %w", s, err)
	}
	max, err := strconv.Atoi(rangePart[dash+1:])
	if err != nil {
		return RateRange{}, fmt.Errorf("config: invalid maximum rate in %q: %w", s, err)
	}
	if step <= 0 {
		return RateRange{}, fmt.Errorf("config: step must be positive in %q", s)
	}
	if max < min {
		return RateRange{}, fmt.Errorf("config: max rate %d is below min rate %d in %q", max, min, s)
	}
	return RateRange{Min: min, Max: max, Step: step}, nil
}

// ExpandRates expands a RateRange into the list of target rates a sweep visits, in
// ascending order, always including Min and never exceeding Max.
func (r RateRange) ExpandRates() []int {
	var out []int
	for v := r.Min; v <= r.Max; v += r.Step {
		out = append(out, v)
	}
	if len(out) == 0 {
		out = []int{r.Min}
	}
	return out
}

// AffinityPair is a parsed --affinity value.
type AffinityPair struct {
	Client, Server int
}

// ParseAffinity parses "CLIENT,SERVER" core indices.
func ParseAffinity(s string) (AffinityPair, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return AffinityPair{}, fmt.Errorf("config: --affinity must be CLIENT,SERVER, got %q", s)
	}
	client, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return AffinityPair{}, fmt.Errorf("config: invalid client core in %q: %w", s, err)
	}
	server, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return AffinityPair{}, fmt.Errorf("config: invalid server core in %q: %w", s, err)
	}
	return AffinityPair{Client: client, Server: server}, nil
}

// EffectiveSamples returns --samples, or --millisec when --samples is
// unset (0).
func EffectiveSamples() int {
	if *Samples > 0 {
		return *Samples
	}
	return *Millisec
}
