package detect

import (
	"fmt"
	"regexp"
	"strings"

	"netpulse/pkg/models"
)

// Adjacency-change lines in raw routing/log output, per protocol.
// Cisco syslog mnemonics plus the plain phrasings other vendors emit.
var routingPatterns = map[string][]*regexp.Regexp{
	"bgp": {
		regexp.MustCompile(`%BGP-5-ADJCHANGE: neighbor \S+ (?:Up|Down)`),
		regexp.MustCompile(`BGP neighbor \S+ (?:\(\S+\) )?state changed to \S+`),
		regexp.MustCompile(`BGP neighbor \S+ Down`),
	},
	"ospf": {
		regexp.MustCompile(`%OSPF-5-ADJCHG: Process \d+, Nbr \S+`),
		regexp.MustCompile(`OSPF neighbor \S+ is (?:Dead|Down)`),
	},
}

// scanRoutingInstability counts adjacency-change events per protocol
// across all raw output blobs. More than 5 events in one poll is
// instability; more than 20 is critical.
func scanRoutingInstability(raw map[string]string) []models.Finding {
	if len(raw) == 0 {
		return nil
	}

	var findings []models.Finding
	for _, protocol := range []string{"bgp", "ospf"} {
		count := 0
		for _, blob := range raw {
			if blob == "" {
				continue
			}
			for _, pattern := range routingPatterns[protocol] {
				count += len(pattern.FindAllStringIndex(blob, -1))
			}
		}
		if count <= 5 {
			continue
		}

		severity := "warning"
		if count > 20 {
			severity = "critical"
		}
		findings = append(findings, models.Finding{
			Severity:  severity,
			Variable:  "ROUTING_STATE",
			AlertType: "routing_instability",
			Message:   fmt.Sprintf("%s instability detected events=%d", strings.ToUpper(protocol), count),
			Protocol:  protocol,
			Samples:   count,
		})
	}
	return findings
}
