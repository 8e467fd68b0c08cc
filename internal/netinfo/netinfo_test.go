package netinfo

import "testing"

const darwinRoutingTable = `Routing tables

Internet:
Destination        Gateway            Flags           Netif Expire
default            10.0.0.1           UGScg             en0
10.0.0/24          link#12            UCS               en0      !
10.0.0.1/32        link#12            UCS               en0      !

Internet6:
Destination        Gateway            Flags           Netif Expire
default            fe80::1%en0        UGcg              en0
::1                ::1                UHL               lo0
`

const linuxRoutingTable = `Kernel IP routing table
Destination     Gateway         Genmask         Flags   MSS Window  irtt Iface
0.0.0.0         192.168.1.1     0.0.0.0         UG        0 0          0 eth0
192.168.1.0     0.0.0.0         255.255.255.0   U         0 0          0 eth0
`

func TestParseGatewayDarwin(t *testing.T) {
	if gw := parseGateway(darwinRoutingTable); gw != "10.0.0.1" {
		t.Fatalf("expected 10.0.0.1, got %q", gw)
	}
}

func TestParseGatewayLinux(t *testing.T) {
	if gw := parseGateway(linuxRoutingTable); gw != "192.168.1.1" {
		t.Fatalf("expected 192.168.1.1, got %q", gw)
	}
}

func TestParseGatewaySkipsIPv6(t *testing.T) {
	onlyV6 := "default            fe80::1%en0        UGcg              en0\n"
	if gw := parseGateway(onlyV6); gw != "" {
		t.Fatalf("expected empty gateway for IPv6-only table, got %q", gw)
	}
}

func TestSubnetPrefix(t *testing.T) {
	if p := SubnetPrefix("192.168.1.42"); p != "192.168.1" {
		t.Fatalf("expected 192.168.1, got %q", p)
	}
	if p := SubnetPrefix("bogus"); p != "" {
		t.Fatalf("expected empty prefix for bogus input, got %q", p)
	}
}

func TestIsMulticast(t *testing.T) {
	cases := map[string]bool{
		"224.0.0.1":       true,
		"239.255.255.250": true,
		"223.255.255.255": false,
		"240.0.0.1":       false,
		"10.0.0.5":        false,
		"not-an-ip":       false,
	}
	for ip, want := range cases {
		if got := IsMulticast(ip); got != want {
			t.Fatalf("IsMulticast(%q) = %v, want %v", ip, got, want)
		}
	}
}

func TestParseHostOutput(t *testing.T) {
	output := "5.0.0.10.in-addr.arpa domain name pointer printer.lan.\n"
	if name := parseHostOutput(output); name != "printer" {
		t.Fatalf("expected printer, got %q", name)
	}
	if name := parseHostOutput("Host 10.0.0.5.in-addr.arpa not found: 3(NXDOMAIN)\n"); name != "" {
		t.Fatalf("expected empty name for NXDOMAIN, got %q", name)
	}
}

func TestShortHostname(t *testing.T) {
	if got := shortHostname("macbook.local."); got != "macbook" {
		t.Fatalf("expected macbook, got %q", got)
	}
	if got := shortHostname("nas"); got != "nas" {
		t.Fatalf("expected nas, got %q", got)
	}
}
