package correlate

import (
	"reflect"
	"testing"

	"netpulse/pkg/models"
)

func TestBuildImpactMapWalksTransitively(t *testing.T) {
	deps := []models.DeviceDependency{
		{Upstream: "core1", Downstream: "dist1"},
		{Upstream: "core1", Downstream: "dist2"},
		{Upstream: "dist1", Downstream: "edge1"},
		{Upstream: "edge1", Downstream: "leaf1"},
		{Upstream: "other", Downstream: "elsewhere"},
	}

	m := BuildImpactMap("core1", deps)
	if m.Device != "core1" {
		t.Fatalf("unexpected device: %s", m.Device)
	}
	if !reflect.DeepEqual(m.Direct, []string{"dist1", "dist2"}) {
		t.Fatalf("unexpected direct downstreams: %v", m.Direct)
	}
	if !reflect.DeepEqual(m.Transitive, []string{"edge1", "leaf1"}) {
		t.Fatalf("unexpected transitive downstreams: %v", m.Transitive)
	}
	if len(m.Chains) != 4 {
		t.Fatalf("expected one chain per reached device, got %d", len(m.Chains))
	}
	want := [][]string{
		{"core1", "dist1"},
		{"core1", "dist2"},
		{"core1", "dist1", "edge1"},
		{"core1", "dist1", "edge1", "leaf1"},
	}
	if !reflect.DeepEqual(m.Chains, want) {
		t.Fatalf("unexpected chains: %v", m.Chains)
	}
}

func TestBuildImpactMapTerminatesOnCycles(t *testing.T) {
	deps := []models.DeviceDependency{
		{Upstream: "a", Downstream: "b"},
		{Upstream: "b", Downstream: "a"},
		{Upstream: "b", Downstream: "c"},
	}

	m := BuildImpactMap("a", deps)
	if !reflect.DeepEqual(m.Direct, []string{"b"}) {
		t.Fatalf("unexpected direct downstreams: %v", m.Direct)
	}
	if !reflect.DeepEqual(m.Transitive, []string{"c"}) {
		t.Fatalf("unexpected transitive downstreams: %v", m.Transitive)
	}
	want := [][]string{{"a", "b"}, {"a", "b", "c"}}
	if !reflect.DeepEqual(m.Chains, want) {
		t.Fatalf("unexpected chains: %v", m.Chains)
	}
}

func TestBuildImpactMapUnknownDevice(t *testing.T) {
	deps := []models.DeviceDependency{{Upstream: "core1", Downstream: "edge1"}}

	m := BuildImpactMap("lonely", deps)
	if m.Device != "lonely" || m.Direct != nil || m.Transitive != nil || m.Chains != nil {
		t.Fatalf("expected an empty map for an unknown device, got %+v", m)
	}
}

func TestBuildImpactMapIgnoresSelfAndBlankEdges(t *testing.T) {
	deps := []models.DeviceDependency{
		{Upstream: "core1", Downstream: "core1"},
		{Upstream: "core1", Downstream: ""},
		{Upstream: "", Downstream: "edge1"},
		{Upstream: "core1", Downstream: "edge1"},
		{Upstream: "core1", Downstream: "edge1"},
	}

	m := BuildImpactMap("core1", deps)
	if !reflect.DeepEqual(m.Direct, []string{"edge1"}) {
		t.Fatalf("unexpected direct downstreams: %v", m.Direct)
	}
	if len(m.Transitive) != 0 {
		t.Fatalf("unexpected transitive downstreams: %v", m.Transitive)
	}
}
