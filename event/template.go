package event

import (
	"math/rand"
	"strconv"
	"strings"
)

// Placeholders recognized in template messages.
const (
	placeholderIP   = "{{IP_ADDRESS}}"
	placeholderUser = "{{USER}}"
	placeholderPort = "{{PORT}}"
	placeholderHost = "{{HOSTNAME}}"
)

// DefaultIPs provides fallback IP candidates if none are configured.
var DefaultIPs = []string{
	"192.0.2.10",
	"198.51.100.23",
	"203.0.113.77",
	"10.0.0.5",
	"172.16.4.12",
}

// DefaultUsers provides fallback account names if none are configured.
var DefaultUsers = []string{
	"svc-backup",
	"jsmith",
	"admin",
	"operator",
	"mwilliams",
}

// DefaultHostnames provides fallback hostnames if none are configured.
var DefaultHostnames = []string{
	"web-01",
	"db-02",
	"dc-01",
	"fw-edge-1",
}

// DefaultPorts provides fallback port candidates if none are configured.
var DefaultPorts = []int{22, 80, 443, 445, 3389, 8080}

// Template describes how a single event is rendered. Messages may contain
// placeholders which are substituted with a random candidate on each render.
type Template struct {
	// Level is the severity the rendered event carries. Empty means INFO.
	Level string
	// Message is the message body, possibly containing placeholders.
	Message string
	// IPs overrides the candidate IP addresses for {{IP_ADDRESS}}.
	IPs []string
	// Users overrides the candidate account names for {{USER}}.
	Users []string
	// Hostnames overrides the candidate hostnames for {{HOSTNAME}}.
	Hostnames []string
	// Ports overrides the candidate ports for {{PORT}}.
	Ports []int
}

func (t Template) level() string {
	if t.Level == "" {
		return LevelInfo
	}
	return t.Level
}

// render substitutes all placeholders with randomized candidate values.
func (t Template) render() string {
	msg := t.Message

	if strings.Contains(msg, placeholderIP) {
		msg = strings.ReplaceAll(msg, placeholderIP, pick(t.IPs, DefaultIPs))
	}
	if strings.Contains(msg, placeholderUser) {
		msg = strings.ReplaceAll(msg, placeholderUser, pick(t.Users, DefaultUsers))
	}
	if strings.Contains(msg, placeholderHost) {
		msg = strings.ReplaceAll(msg, placeholderHost, pick(t.Hostnames, DefaultHostnames))
	}
	if strings.Contains(msg, placeholderPort) {
		ports := t.Ports
		if len(ports) == 0 {
			ports = DefaultPorts
		}
		port := ports[rand.Intn(len(ports))] // #nosec G404 - non-crypto random is fine
		msg = strings.ReplaceAll(msg, placeholderPort, strconv.Itoa(port))
	}

	return msg
}

func pick(candidates, fallback []string) string {
	if len(candidates) == 0 {
		candidates = fallback
	}
	return candidates[rand.Intn(len(candidates))] // #nosec G404 - non-crypto random is fine
}

// PickTemplate selects a random template from the set. The caller must
// ensure the set is non-empty.
func PickTemplate(templates []Template) Template {
	return templates[rand.Intn(len(templates))] // #nosec G404 - non-crypto random is fine
}
