package alerting

import (
	"strings"

	"netpulse/pkg/models"
)

// RouteRule matches alerts to a contact group. Empty filters match
// everything; first matching rule wins.
type RouteRule struct {
	Tags         []string
	Variables    []string
	Severities   []string
	ContactGroup string
	Channels     []string
}

// Route is the delivery decision for one alert.
type Route struct {
	ContactGroup string
	Channels     []string
}

// ContactGroup describes the notification targets behind a group name.
type ContactGroup struct {
	Webhook string
	Emails  []string
	ChatIDs []string
}

// Router resolves alerts to routes and contact groups.
type Router struct {
	rules  []RouteRule
	groups map[string]ContactGroup
}

// NewRouter builds a router from configured rules and contact groups.
func NewRouter(rules []RouteRule, groups map[string]ContactGroup) *Router {
	if groups == nil {
		groups = make(map[string]ContactGroup)
	}
	return &Router{rules: rules, groups: groups}
}

func routeTagsMatch(ruleTags, deviceTags []string) bool {
	if len(ruleTags) == 0 {
		return true
	}
	have := make(map[string]bool, len(deviceTags))
	for _, t := range deviceTags {
		have[strings.ToLower(t)] = true
	}
	for _, t := range ruleTags {
		if have[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

// Route returns the first matching rule's route, or the default route
// (contact group "default", channel "primary").
func (r *Router) Route(alert *models.Alert, deviceTags []string) Route {
	for _, rule := range r.rules {
		if !routeTagsMatch(rule.Tags, deviceTags) {
			continue
		}
		if len(rule.Variables) > 0 && !containsString(rule.Variables, alert.Variable) {
			continue
		}
		if len(rule.Severities) > 0 && !containsString(rule.Severities, alert.Severity) {
			continue
		}
		route := Route{ContactGroup: rule.ContactGroup, Channels: rule.Channels}
		if route.ContactGroup == "" {
			route.ContactGroup = "default"
		}
		if len(route.Channels) == 0 {
			route.Channels = []string{"primary"}
		}
		return route
	}
	return Route{ContactGroup: "default", Channels: []string{"primary"}}
}

// ContactGroupByName looks up a contact group's targets.
func (r *Router) ContactGroupByName(name string) (ContactGroup, bool) {
	group, ok := r.groups[name]
	return group, ok
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
