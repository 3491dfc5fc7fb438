package correlate

import (
	"sort"

	"netpulse/pkg/models"
)

// ImpactMap describes what an outage on one device can reach through
// the dependency graph.
type ImpactMap struct {
	Device     string     `json:"device"`
	Direct     []string   `json:"direct,omitempty"`
	Transitive []string   `json:"transitive,omitempty"`
	Chains     [][]string `json:"chains,omitempty"`
}

// BuildImpactMap walks the dependency edges breadth-first from device.
// Direct holds one-hop downstreams, Transitive everything reachable
// beyond them, and Chains one hop-by-hop path per reached device.
func BuildImpactMap(device string, deps []models.DeviceDependency) ImpactMap {
	downstream := make(map[string]map[string]bool, len(deps))
	for _, d := range deps {
		if d.Upstream == "" || d.Downstream == "" || d.Upstream == d.Downstream {
			continue
		}
		if downstream[d.Upstream] == nil {
			downstream[d.Upstream] = make(map[string]bool)
		}
		downstream[d.Upstream][d.Downstream] = true
	}
	next := func(dev string) []string {
		out := make([]string, 0, len(downstream[dev]))
		for d := range downstream[dev] {
			out = append(out, d)
		}
		sort.Strings(out)
		return out
	}

	out := ImpactMap{Device: device}
	direct := next(device)
	if len(direct) == 0 {
		return out
	}
	out.Direct = direct

	directSet := make(map[string]bool, len(direct))
	visited := map[string]bool{device: true}
	parent := make(map[string]string)
	queue := make([]string, 0, len(direct))
	for _, d := range direct {
		directSet[d] = true
		visited[d] = true
		parent[d] = device
		queue = append(queue, d)
	}

	head := 0
	for head < len(queue) {
		cur := queue[head]
		head++
		out.Chains = append(out.Chains, chainTo(device, cur, parent))
		if !directSet[cur] {
			out.Transitive = append(out.Transitive, cur)
		}
		for _, n := range next(cur) {
			if visited[n] {
				continue
			}
			visited[n] = true
			parent[n] = cur
			queue = append(queue, n)
		}
	}
	sort.Strings(out.Transitive)
	return out
}

// chainTo reconstructs the BFS path from root to target.
func chainTo(root, target string, parent map[string]string) []string {
	chain := []string{target}
	for cur := target; cur != root; {
		p, ok := parent[cur]
		if !ok {
			break
		}
		chain = append(chain, p)
		cur = p
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
