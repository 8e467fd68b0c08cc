// Package arp reads the OS ARP table and parses it into IP/MAC pairs.
package arp

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Entry is a single ARP table row.
type Entry struct {
	IP  string
	MAC string
}

var macPattern = regexp.MustCompile(`(?i)([0-9a-f]{1,2}[:-]){5}([0-9a-f]{1,2})`)

// Table returns the current ARP table. Failures to execute or decode the
// OS command are not fatal; they yield an empty table.
func Table(ctx context.Context, log zerolog.Logger) []Entry {
	if entries := tableFromProc(); len(entries) > 0 {
		return entries
	}

	cmd := exec.CommandContext(ctx, "arp", "-a")
	output, err := cmd.Output()
	if err != nil {
		log.Debug().Err(err).Msg("arp command failed")
		return nil
	}
	return parseTable(string(output))
}

// parseTable parses `arp -a` output. Expected line shape:
//
//	? (10.13.13.1) at 60:83:e7:3b:e0:8d on en1 ifscope [ethernet]
//
// Lines without a parenthesised IP or a MAC after the literal "at" are
// skipped, as are incomplete and broadcast entries.
func parseTable(output string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		var ip string
		for _, field := range fields {
			if strings.HasPrefix(field, "(") && strings.HasSuffix(field, ")") {
				ip = strings.Trim(field, "()")
				break
			}
		}
		if ip == "" {
			continue
		}

		var rawMAC string
		for i, field := range fields {
			if field == "at" && i+1 < len(fields) {
				rawMAC = fields[i+1]
				break
			}
		}
		if rawMAC == "" || rawMAC == "(incomplete)" {
			continue
		}

		mac := NormaliseMAC(rawMAC)
		if mac == "" || mac == "FF:FF:FF:FF:FF:FF" {
			continue
		}

		entries = append(entries, Entry{IP: ip, MAC: mac})
	}
	return entries
}

// tableFromProc reads /proc/net/arp on Linux. Returns nil elsewhere.
func tableFromProc() []Entry {
	data, err := os.ReadFile("/proc/net/arp")
	if err != nil {
		return nil
	}

	var entries []Entry
	lines := strings.Split(string(data), "\n")
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		ip, flags, rawMAC := fields[0], fields[2], fields[3]
		// flags 0x0 marks an incomplete entry
		if flags == "0x0" || rawMAC == "00:00:00:00:00:00" {
			continue
		}
		mac := NormaliseMAC(rawMAC)
		if mac == "" || mac == "FF:FF:FF:FF:FF:FF" {
			continue
		}
		entries = append(entries, Entry{IP: ip, MAC: mac})
	}
	return entries
}

// NormaliseMAC uppercases a MAC address, converts separators to colons and
// zero-pads single-digit octets. Returns "" for anything unparseable.
func NormaliseMAC(raw string) string {
	if raw == "" {
		return ""
	}
	raw = strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(raw, "-", ":"), ".", ":"))
	match := macPattern.FindString(raw)
	if match == "" {
		return ""
	}
	parts := strings.Split(match, ":")
	if len(parts) != 6 {
		return ""
	}
	for i := range parts {
		if len(parts[i]) == 1 {
			parts[i] = "0" + parts[i]
		}
	}
	return strings.Join(parts, ":")
}
