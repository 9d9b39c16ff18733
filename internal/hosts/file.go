package hosts

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "/data/outbound-hosts.yml"

// File is a YAML mapping on disk, read again on every Load:
//
//	example.com:
//	  helo: mail.example.com
//	  ip: 10.0.0.5
//	default:
//	  helo: mx.example.net
//	  ip: "*"
type File struct {
	Path string
}

func (f File) Load(ctx context.Context) (Hosts, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	hosts, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", f.Path, err)
	}
	return hosts, nil
}

func (f File) String() string {
	return f.Path
}

// ParseYAML parses a mapping document. An empty document is an empty
// mapping, a document that is not a mapping is an error. Merge keys are
// applied at both levels, the way YAML loaders do.
func ParseYAML(data []byte) (Hosts, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	root := resolve(&doc)
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return Hosts{}, nil
		}
		root = resolve(root.Content[0])
	}
	switch {
	case root.Kind == 0 || isNull(root):
		return Hosts{}, nil
	case root.Kind != yaml.MappingNode:
		return nil, fmt.Errorf("line %d: expected a mapping of domains, got %s", root.Line, root.ShortTag())
	}

	var entries map[string]yaml.Node
	if err := root.Decode(&entries); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	hosts := make(Hosts, len(entries))
	seen := make(map[string]string, len(entries))
	for _, key := range keys {
		value := entries[key]
		n := resolve(&value)
		// A key with no value is the same as no key.
		if isNull(n) {
			continue
		}
		normalized := normalizeKey(key)
		if other, ok := seen[normalized]; ok {
			return nil, fmt.Errorf("line %d: %q and %q are the same domain", n.Line, other, key)
		}
		seen[normalized] = key
		hosts[normalized] = parseEntry(n)
	}
	return hosts, nil
}

func parseEntry(n *yaml.Node) Entry {
	if n.Kind != yaml.MappingNode {
		return Entry{Raw: render(n), Err: ErrMalformed}
	}

	var fields map[string]interface{}
	if err := n.Decode(&fields); err != nil {
		return Entry{Raw: render(n), Err: ErrMalformed}
	}
	return newEntry(stringField(fields, "helo"), stringField(fields, "ip"), renderJSON(fields, n.Value))
}

// stringField returns nil unless the field decoded to a string. An unquoted
// 10 or true is not a string.
func stringField(fields map[string]interface{}, name string) *string {
	v, ok := fields[name].(string)
	if !ok {
		return nil
	}
	return &v
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func render(n *yaml.Node) string {
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return n.Value
	}
	return renderJSON(v, n.Value)
}
