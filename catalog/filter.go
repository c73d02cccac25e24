package catalog

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ConfigError reports an unknown or unavailable server/scenario name.
// It is fatal for the named entry only, never for the whole run.
type ConfigError struct {
	Kind string // "server" or "scenario"
	Name string
	Why  string
}

func (e *ConfigError) Error() string {
	if e.Why == "" {
		return fmt.Sprintf("unknown %s: %s", e.Kind, e.Name)
	}

	return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, e.Why)
}

// ResolveServers expands a comma-separated server filter into an ordered
// list of server names. "all" selects every catalog server for the
// protocol family; "all-except-<name>" drops one. available reports
// whether a server's toolchain/binary can be resolved; unavailable
// servers are silently dropped from "all" selections but are an error
// when named explicitly.
func ResolveServers(arg string, h2 bool, available func(string) bool) ([]string, error) {
	order := ServerOrder(h2)

	if strings.HasPrefix(arg, "all") {
		excluded := strings.TrimPrefix(arg, "all-except-")
		if excluded == arg {
			excluded = ""
		}

		picked := lo.Filter(order, func(name string, _ int) bool {
			if name == excluded {
				return false
			}

			return available == nil || available(name)
		})

		if len(picked) == 0 {
			return nil, fmt.Errorf("no servers available to test")
		}

		return picked, nil
	}

	names := splitList(arg)
	for _, name := range names {
		if _, ok := LookupServer(name); !ok {
			return nil, &ConfigError{Kind: "server", Name: name}
		}

		if available != nil && !available(name) {
			return nil, &ConfigError{
				Kind: "server", Name: name,
				Why: "not available (missing binary or toolchain)",
			}
		}
	}

	return names, nil
}

// ResolveScenarios expands a comma-separated scenario filter. "all"
// selects the ordered scenario list for the protocol family (the tls
// scenario is excluded from "all" since it only applies to http1 and is
// inherent in h2-tls).
func ResolveScenarios(arg string, h2 bool) ([]string, error) {
	if arg == "all" {
		return ScenarioOrder(h2), nil
	}

	names := splitList(arg)
	for _, name := range names {
		if _, ok := LookupScenario(name); !ok {
			return nil, &ConfigError{Kind: "scenario", Name: name}
		}
	}

	return names, nil
}

// NeedsStatic reports whether any selected scenario requires generated
// static assets, in either protocol family.
func NeedsStatic(names []string) bool {
	return lo.SomeBy(names, func(name string) bool {
		if sc, ok := LookupScenario(name); ok && sc.RequiresStatic {
			return true
		}

		h2sc, ok := LookupH2Scenario(name)

		return ok && h2sc.RequiresStatic
	})
}

// NeedsTLS reports whether any selected scenario requires TLS material.
func NeedsTLS(names []string) bool {
	return lo.SomeBy(names, func(name string) bool {
		sc, ok := LookupScenario(name)
		return ok && sc.RequiresTLS
	})
}

func splitList(arg string) []string {
	parts := strings.Split(arg, ",")

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
