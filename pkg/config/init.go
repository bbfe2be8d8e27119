package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const configHeader = `# memfs Configuration File
#
# Values may be overridden with MEMFS_* environment variables, for example
# MEMFS_ADAPTERS_FUSE_MOUNTPOINT=/mnt/memfs, and with command-line flags.
`

// sectionComments annotate keys of the generated file, addressed by their
// dotted path.
var sectionComments = map[string]string{
	"logging":                        "Logging: level (DEBUG, INFO, WARN, ERROR), format (text, json), output (stdout, stderr, file path)",
	"server":                         "Server-wide settings",
	"server.metrics":                 "Prometheus endpoint served at :<port>/metrics",
	"filesystem":                     "In-memory filesystem engine",
	"filesystem.capacity_bytes":      "Capacity reported by statfs; content is not limited by it",
	"filesystem.max_file_size":       "Largest file length and I/O offset accepted",
	"filesystem.verify_consistency":  "Check the whole tree after every mutation (slow, for debugging)",
	"adapters":                       "Transports exposing the filesystem",
	"adapters.fuse.mountpoint":       "Directory the filesystem is mounted on; created if missing",
	"adapters.fuse.allow_other":      "Requires user_allow_other in /etc/fuse.conf",
	"adapters.fuse.negative_timeout": "0 disables caching of failed lookups",
}

// sectionOrder fixes the order of top-level sections in the generated file.
var sectionOrder = []string{"logging", "server", "filesystem", "adapters"}

// InitConfig writes a sample configuration to the default location and
// returns its path. It refuses to overwrite an existing file unless force
// is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration to path, creating parent
// directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML keyed by mapstructure tags,
// with durations in their string form and comments attached to the keys
// listed in sectionComments.
func generateYAMLWithComments(cfg *Config) (string, error) {
	m, err := toMap(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to convert config: %w", err)
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, section := range sectionOrder {
		value, ok := m[section]
		if !ok {
			continue
		}
		if err := appendPair(root, section, section, value); err != nil {
			return "", err
		}
	}

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	return buf.String(), nil
}

// appendPair adds key: value to mapping. Nested maps are emitted with sorted
// keys; nil values are omitted.
func appendPair(mapping *yaml.Node, key, path string, value any) error {
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key, HeadComment: sectionComments[path]}

	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		child := &yaml.Node{Kind: yaml.MappingNode}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := appendPair(child, k, path+"."+k, v[k]); err != nil {
				return err
			}
		}
		mapping.Content = append(mapping.Content, keyNode, child)
		return nil
	case time.Duration:
		value = v.String()
	case *uint32:
		if v == nil {
			return nil
		}
		value = *v
	}

	valueNode := &yaml.Node{}
	if err := valueNode.Encode(value); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	mapping.Content = append(mapping.Content, keyNode, valueNode)
	return nil
}
