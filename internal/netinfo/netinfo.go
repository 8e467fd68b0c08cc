// Package netinfo locates the local address, subnet and default gateway.
package netinfo

import (
	"context"
	"net"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var hostnamePattern = regexp.MustCompile(`domain name pointer ([^\s]+)`)

// LocalIP returns the first non-loopback IPv4 address of this host, or ""
// if none is found.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ipv4 := ipNet.IP.To4(); ipv4 != nil {
			return ipv4.String()
		}
	}
	return ""
}

// SubnetPrefix returns the first three octets of an IPv4 address, e.g.
// "192.168.1" for "192.168.1.42".
func SubnetPrefix(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ""
	}
	return strings.Join(parts[:3], ".")
}

// DefaultGateway finds the IPv4 default gateway via the OS routing table.
// When the routing command yields nothing it falls back to the ".1" host of
// the local subnet.
func DefaultGateway(ctx context.Context, localIP string, log zerolog.Logger) string {
	cmd := exec.CommandContext(ctx, "netstat", "-nr")
	output, err := cmd.Output()
	if err != nil {
		log.Debug().Err(err).Msg("netstat command failed")
	} else if gw := parseGateway(string(output)); gw != "" {
		return gw
	}

	if prefix := SubnetPrefix(localIP); prefix != "" {
		return prefix + ".1"
	}
	return ""
}

// parseGateway extracts the IPv4 default gateway from routing table text.
// IPv6 routes (anything containing a colon) are ignored.
func parseGateway(output string) string {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[0] != "default" && fields[0] != "0.0.0.0" {
			continue
		}
		gw := fields[1]
		if strings.Contains(gw, ":") {
			continue
		}
		if ip := net.ParseIP(gw); ip != nil && ip.To4() != nil {
			return gw
		}
	}
	return ""
}

// IsMulticast reports whether the first octet of an IPv4 address falls in
// the 224-239 multicast range.
func IsMulticast(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) < 1 {
		return false
	}
	first, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	return first >= 224 && first <= 239
}

// Hostname resolves a reverse-DNS name for the IP, trying the `host`
// command first and the system resolver as fallback. Returns "" when
// nothing resolves; failure is never an error for callers.
func Hostname(ctx context.Context, ip string) string {
	cmdCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "host", ip)
	if output, err := cmd.Output(); err == nil {
		if name := parseHostOutput(string(output)); name != "" {
			return name
		}
	}

	names, err := net.DefaultResolver.LookupAddr(cmdCtx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return shortHostname(names[0])
}

func parseHostOutput(output string) string {
	match := hostnamePattern.FindStringSubmatch(output)
	if len(match) != 2 {
		return ""
	}
	return shortHostname(match[1])
}

// shortHostname trims the trailing dot and everything after the first label.
func shortHostname(fqdn string) string {
	name := strings.TrimSuffix(strings.TrimSpace(fqdn), ".")
	if idx := strings.Index(name, "."); idx > 0 {
		name = name[:idx]
	}
	return name
}
