package detect

import (
	"strings"
	"testing"
)

func bgpLines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("%BGP-5-ADJCHANGE: neighbor 10.0.0.2 Down\n")
	}
	return b.String()
}

func TestScanCountsBGPAdjacencyChanges(t *testing.T) {
	raw := map[string]string{"show logging": bgpLines(6)}

	findings := scanRoutingInstability(raw)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %+v", findings)
	}
	f := findings[0]
	if f.Severity != "warning" || f.Protocol != "bgp" || f.Samples != 6 {
		t.Fatalf("unexpected finding: %+v", f)
	}
	if f.Variable != "ROUTING_STATE" || f.AlertType != "routing_instability" {
		t.Fatalf("unexpected finding: %+v", f)
	}
	if f.Message != "BGP instability detected events=6" {
		t.Fatalf("unexpected message %q", f.Message)
	}
}

func TestScanCriticalAboveTwentyEvents(t *testing.T) {
	raw := map[string]string{"show logging": bgpLines(21)}

	findings := scanRoutingInstability(raw)
	if len(findings) != 1 || findings[0].Severity != "critical" {
		t.Fatalf("expected critical finding, got %+v", findings)
	}
}

func TestScanQuietBelowThreshold(t *testing.T) {
	raw := map[string]string{"show logging": bgpLines(5)}

	if findings := scanRoutingInstability(raw); len(findings) != 0 {
		t.Fatalf("5 events must be quiet, got %+v", findings)
	}
	if findings := scanRoutingInstability(nil); len(findings) != 0 {
		t.Fatalf("nil raw must be quiet, got %+v", findings)
	}
}

func TestScanCountsAcrossBlobsAndProtocols(t *testing.T) {
	ospf := strings.Repeat("%OSPF-5-ADJCHG: Process 1, Nbr 10.0.0.9 on Gi0/1 from FULL to DOWN\n", 7)
	raw := map[string]string{
		"show logging":        bgpLines(4),
		"show ip bgp summary": "BGP neighbor 10.0.0.2 Down\nBGP neighbor 10.0.0.3 Down\nBGP neighbor 10.0.0.4 Down\n",
		"show ip ospf":        ospf,
	}

	findings := scanRoutingInstability(raw)
	if len(findings) != 2 {
		t.Fatalf("expected one finding per protocol, got %+v", findings)
	}
	byProtocol := make(map[string]int, 2)
	for _, f := range findings {
		byProtocol[f.Protocol] = f.Samples
	}
	if byProtocol["bgp"] != 7 || byProtocol["ospf"] != 7 {
		t.Fatalf("unexpected counts: %+v", byProtocol)
	}
}
