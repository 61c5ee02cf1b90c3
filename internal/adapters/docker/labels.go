package docker

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"

	"harborview/internal/core/domain"
)

// Labels understood by the collector. Malformed values are treated as
// absent features, never as errors.
const (
	labelPorts      = "harborview.ports"
	labelHTTPS      = "harborview.https"
	labelLink       = "harborview.link"
	labelTags       = "harborview.tags"
	labelGroupPorts = "harborview.group-ports"
	labelStack      = "harborview.stack"

	labelComposeProject = "com.docker.compose.project"
	labelSwarmStack     = "com.docker.stack.namespace"
)

var (
	routerRuleRe  = regexp.MustCompile(`^traefik\.http\.routers\.([^.]+)\.rule$`)
	ruleMatcherRe = regexp.MustCompile("(Host|PathPrefix)\\(((?:\\s*(?:`[^`]*`|\"[^\"]*\")\\s*,?)+)\\)")
	ruleArgRe     = regexp.MustCompile("`([^`]*)`|\"([^\"]*)\"")
)

// secureEntryPoints are entrypoint names conventionally bound to TLS
// listeners. A route on one of these is marked TLS even without a tls label.
var secureEntryPoints = map[string]struct{}{
	"websecure":  {},
	"web-secure": {},
	"https":      {},
	"secure":     {},
}

// securePorts trigger the HTTPS scheme heuristic for published ports.
var securePorts = map[uint16]struct{}{
	443:  {},
	8443: {},
	9443: {},
}

func labelBool(labels map[string]string, key string) (value, ok bool) {
	raw, present := labels[key]
	if !present {
		return false, false
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return v, true
}

// stackName resolves the grouping name: explicit override label first, then
// the compose project, then the swarm stack namespace.
func stackName(labels map[string]string) string {
	for _, key := range []string{labelStack, labelComposeProject, labelSwarmStack} {
		if v := strings.TrimSpace(labels[key]); v != "" {
			return v
		}
	}
	return ""
}

func tagList(labels map[string]string) []string {
	raw, ok := labels[labelTags]
	if !ok {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// labelPortMappings parses the comma-separated custom-ports label. Entries
// are "PORT" or "PORT/proto"; anything else is skipped.
func labelPortMappings(labels map[string]string, https bool) []domain.PortMapping {
	raw, ok := labels[labelPorts]
	if !ok {
		return nil
	}
	var out []domain.PortMapping
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		portPart, proto := entry, "tcp"
		if i := strings.IndexByte(entry, '/'); i >= 0 {
			portPart, proto = entry[:i], strings.ToLower(entry[i+1:])
		}
		switch proto {
		case "tcp", "udp", "sctp":
		default:
			continue
		}
		// nat.NewPort accepts ranges like 8000-8005, for which Int()
		// falls back to 0. A single concrete port is required here.
		p, err := nat.NewPort(proto, portPart)
		if err != nil || p.Int() == 0 {
			continue
		}
		out = append(out, domain.PortMapping{
			HostPort: uint16(p.Int()),
			Protocol: p.Proto(),
			Scheme:   schemeFor(0, uint16(p.Int()), https),
			Source:   domain.PortLabel,
			Linkable: p.Proto() == "tcp",
		})
	}
	return out
}

// schemeFor applies the HTTP/HTTPS heuristic: an explicit HTTPS label wins,
// then a well-known secure container or host port, default HTTP.
func schemeFor(containerPort, hostPort uint16, httpsLabel bool) string {
	if httpsLabel {
		return "https"
	}
	if _, ok := securePorts[containerPort]; ok {
		return "https"
	}
	if _, ok := securePorts[hostPort]; ok {
		return "https"
	}
	return "http"
}

// parseRoutes extracts reverse-proxy routes from router-rule labels, joining
// each rule with its sibling tls and entrypoints labels.
func parseRoutes(labels map[string]string) []domain.ProxyRoute {
	var routes []domain.ProxyRoute
	for key, rule := range labels {
		m := routerRuleRe.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		router := m[1]
		route := domain.ProxyRoute{Router: router}
		for _, matcher := range ruleMatcherRe.FindAllStringSubmatch(rule, -1) {
			args := ruleArgs(matcher[2])
			switch matcher[1] {
			case "Host":
				route.Hosts = append(route.Hosts, args...)
			case "PathPrefix":
				route.PathPrefixes = append(route.PathPrefixes, args...)
			}
		}
		if len(route.Hosts) == 0 && len(route.PathPrefixes) == 0 {
			continue
		}

		prefix := "traefik.http.routers." + router + "."
		if v, ok := labelBool(labels, prefix+"tls"); ok && v {
			route.TLS = true
		}
		if raw, ok := labels[prefix+"entrypoints"]; ok {
			for _, ep := range strings.Split(raw, ",") {
				ep = strings.TrimSpace(ep)
				if ep == "" {
					continue
				}
				route.EntryPoints = append(route.EntryPoints, ep)
				if _, secure := secureEntryPoints[strings.ToLower(ep)]; secure {
					route.TLS = true
				}
			}
		}
		routes = append(routes, route)
	}
	sortRoutes(routes)
	return routes
}

func ruleArgs(raw string) []string {
	var args []string
	for _, m := range ruleArgRe.FindAllStringSubmatch(raw, -1) {
		arg := m[1]
		if arg == "" {
			arg = m[2]
		}
		if arg != "" {
			args = append(args, arg)
		}
	}
	return args
}

// sortRoutes keeps route order stable across passes; label map iteration
// order is random.
func sortRoutes(routes []domain.ProxyRoute) {
	sort.Slice(routes, func(i, j int) bool { return routes[i].Router < routes[j].Router })
}
