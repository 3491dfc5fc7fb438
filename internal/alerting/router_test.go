package alerting

import (
	"reflect"
	"testing"

	"netpulse/pkg/models"
)

func TestRouterFirstMatchWins(t *testing.T) {
	router := NewRouter([]RouteRule{
		{Severities: []string{"critical"}, ContactGroup: "oncall", Channels: []string{"voice", "primary"}},
		{ContactGroup: "ops", Channels: []string{"email"}},
	}, nil)

	alert := &models.Alert{DeviceID: "r1", Variable: "CPU_USAGE", Severity: "critical"}
	route := router.Route(alert, nil)
	if route.ContactGroup != "oncall" || !reflect.DeepEqual(route.Channels, []string{"voice", "primary"}) {
		t.Fatalf("unexpected route: %+v", route)
	}

	alert.Severity = "warning"
	route = router.Route(alert, nil)
	if route.ContactGroup != "ops" {
		t.Fatalf("expected the catch-all rule, got %+v", route)
	}
}

func TestRouterTagAndVariableFilters(t *testing.T) {
	router := NewRouter([]RouteRule{
		{Tags: []string{"edge"}, Variables: []string{"INTERFACE_STATUS"}, ContactGroup: "netops"},
	}, nil)

	alert := &models.Alert{Variable: "INTERFACE_STATUS", Severity: "critical"}
	if route := router.Route(alert, []string{"Edge"}); route.ContactGroup != "netops" {
		t.Fatalf("tag match must be case-insensitive, got %+v", route)
	}
	if route := router.Route(alert, []string{"core"}); route.ContactGroup != "default" {
		t.Fatalf("tag mismatch must fall through, got %+v", route)
	}

	alert.Variable = "CPU_USAGE"
	if route := router.Route(alert, []string{"edge"}); route.ContactGroup != "default" {
		t.Fatalf("variable mismatch must fall through, got %+v", route)
	}
}

func TestRouterDefaultRoute(t *testing.T) {
	router := NewRouter(nil, nil)

	route := router.Route(&models.Alert{Severity: "info"}, nil)
	if route.ContactGroup != "default" || !reflect.DeepEqual(route.Channels, []string{"primary"}) {
		t.Fatalf("unexpected default route: %+v", route)
	}
}

func TestRouterFillsRuleDefaults(t *testing.T) {
	router := NewRouter([]RouteRule{{Severities: []string{"critical"}}}, nil)

	route := router.Route(&models.Alert{Severity: "critical"}, nil)
	if route.ContactGroup != "default" || !reflect.DeepEqual(route.Channels, []string{"primary"}) {
		t.Fatalf("matched rule without targets must use defaults, got %+v", route)
	}
}

func TestContactGroupLookup(t *testing.T) {
	router := NewRouter(nil, map[string]ContactGroup{
		"oncall": {Webhook: "https://hooks.example.com/oncall", Emails: []string{"noc@example.com"}},
	})

	group, ok := router.ContactGroupByName("oncall")
	if !ok || group.Webhook != "https://hooks.example.com/oncall" {
		t.Fatalf("unexpected group: %+v %v", group, ok)
	}
	if _, ok := router.ContactGroupByName("nobody"); ok {
		t.Fatalf("missing group must report !ok")
	}
}

func TestFormatMessageAndDispatchNote(t *testing.T) {
	alert := &models.Alert{
		DeviceID:  "r1",
		Variable:  "CPU_USAGE",
		AlertType: "threshold",
		Severity:  "critical",
		Message:   "CPU_USAGE=96 exceeded crit=90",
	}
	want := "[critical] r1 CPU_USAGE threshold\nCPU_USAGE=96 exceeded crit=90"
	if got := FormatMessage(alert); got != want {
		t.Fatalf("unexpected message %q", got)
	}

	note := DispatchNote(Route{ContactGroup: "oncall", Channels: []string{"primary", "voice"}})
	if note != "group=oncall channels=primary,voice" {
		t.Fatalf("unexpected note %q", note)
	}
}
