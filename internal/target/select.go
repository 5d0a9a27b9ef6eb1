package target

import (
	"strings"

	"privateer/internal/config"
)

// ConfigurationError reports an invalid combination of selection filters.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return e.Reason
}

// Select narrows all to the targets named by include, or to everything not
// named by exclude. Empty filters mean "not provided". The order of all is
// kept and unknown names are ignored.
func Select(include, exclude string, all []config.Target) ([]config.Target, error) {
	if include != "" && exclude != "" {
		return nil, &ConfigurationError{Reason: "At most one of --include or --exclude should be provided."}
	}

	switch {
	case include != "":
		names := parseNames(include)
		return filter(all, func(t config.Target) bool { return names[t.Name] }), nil
	case exclude != "":
		names := parseNames(exclude)
		return filter(all, func(t config.Target) bool { return !names[t.Name] }), nil
	default:
		return all, nil
	}
}

func parseNames(list string) map[string]bool {
	names := make(map[string]bool)
	for _, n := range strings.Split(list, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names[n] = true
		}
	}
	return names
}

func filter(all []config.Target, keep func(config.Target) bool) []config.Target {
	out := make([]config.Target, 0, len(all))
	for _, t := range all {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func Names(targets []config.Target) []string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	return names
}
