package spec

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Job documents are digested by coordinators that parse them with a YAML 1.1
// loader. yaml.v3 resolves plain scalars by YAML 1.2 rules, so the handful of
// scalars the two disagree on are retagged before decoding.

var yaml11Bools = map[string]bool{
	"yes": true, "Yes": true, "YES": true,
	"no": false, "No": false, "NO": false,
	"on": true, "On": true, "ON": true,
	"off": false, "Off": false, "OFF": false,
}

// yaml11Float is the YAML 1.1 float form: a dot is mandatory and an exponent
// needs an explicit sign. Sexagesimal floats are not supported.
var yaml11Float = regexp.MustCompile(`^(?:[-+]?[0-9][0-9_]*\.[0-9_]*(?:[eE][-+][0-9]+)?|[-+]?\.[0-9][0-9_]*(?:[eE][-+][0-9]+)?|[-+]?\.(?:inf|Inf|INF)|\.(?:nan|NaN|NAN))$`)

// resolveYAML11 retags plain scalars under node so they decode the way a
// YAML 1.1 loader reads them: yes/no/on/off are booleans, floats without a
// dot or with an unsigned exponent are strings, and 0o octal is a string.
// Mapping keys stay as they are so field names keep decoding as strings.
func resolveYAML11(node *yaml.Node) {
	if node == nil {
		return
	}
	if node.Kind == yaml.ScalarNode && node.Style == 0 {
		switch node.Tag {
		case "!!str":
			if v, ok := yaml11Bools[node.Value]; ok {
				node.Tag = "!!bool"
				if v {
					node.Value = "true"
				} else {
					node.Value = "false"
				}
			}
		case "!!float":
			if !yaml11Float.MatchString(node.Value) {
				node.Tag = "!!str"
			}
		case "!!int":
			if strings.HasPrefix(strings.TrimLeft(node.Value, "+-"), "0o") {
				node.Tag = "!!str"
			}
		}
	}
	for i, child := range node.Content {
		if node.Kind == yaml.MappingNode && i%2 == 0 && child.Kind == yaml.ScalarNode {
			continue
		}
		resolveYAML11(child)
	}
}
