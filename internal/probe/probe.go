// Package probe checks host reachability with short-lived TCP connections
// and ICMP echo.
package probe

import (
	"context"
	"net"
	"runtime"
	"strconv"
	"time"

	ping "github.com/go-ping/ping"
)

// Prober performs bounded reachability checks against single hosts.
type Prober struct {
	Port    int
	Timeout time.Duration
}

// New returns a Prober for the given TCP port and timeout.
func New(port int, timeout time.Duration) Prober {
	if port <= 0 {
		port = 80
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return Prober{Port: port, Timeout: timeout}
}

// Check reports whether the host answered either a TCP connect on the
// configured port or a single ICMP echo. A false result says nothing about
// the device being offline; callers must not treat it as such.
func (p Prober) Check(ctx context.Context, ip string) bool {
	if p.TCP(ctx, ip) {
		return true
	}
	summary, err := Ping(ctx, ip, 1, p.Timeout)
	return err == nil && summary.Reachable
}

// TCP attempts a connection to ip on the configured port within the
// timeout. The connection is closed immediately on success.
func (p Prober) TCP(ctx context.Context, ip string) bool {
	dialer := &net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(p.Port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Summary holds the outcome of an ICMP echo exchange.
type Summary struct {
	Reachable  bool
	AvgLatency time.Duration
	TTL        int
	Attempts   int
}

// Ping sends ICMP echo requests to host and summarises the replies.
func Ping(ctx context.Context, host string, attempts int, timeout time.Duration) (Summary, error) {
	summary := Summary{Attempts: attempts}

	pinger, err := ping.NewPinger(host)
	if err != nil {
		return summary, err
	}

	// Privileged mode is required for raw sockets on Windows.
	pinger.SetPrivileged(runtime.GOOS == "windows")

	if attempts <= 0 {
		attempts = 1
	}
	pinger.Count = attempts
	pinger.Timeout = timeout
	if pinger.Timeout <= 0 {
		pinger.Timeout = time.Duration(attempts) * 2 * time.Second
	}

	pinger.OnRecv = func(pkt *ping.Packet) {
		if pkt.Ttl > 0 {
			summary.TTL = pkt.Ttl
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- pinger.Run()
	}()

	select {
	case <-ctx.Done():
		pinger.Stop()
		return summary, ctx.Err()
	case err := <-errCh:
		if err != nil {
			return summary, err
		}
	}

	stats := pinger.Statistics()
	summary.Attempts = stats.PacketsSent
	if stats.PacketsRecv == 0 {
		return summary, nil
	}

	summary.Reachable = true
	summary.AvgLatency = stats.AvgRtt
	return summary, nil
}
