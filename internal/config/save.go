package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lobot-sh/lobot/internal/errors"
)

// Save writes the config as a commented YAML file. Comments are
// generated by hand so a fresh file explains itself.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"couldn't create config directory", "")
	}

	var b strings.Builder
	b.WriteString("# lobot configuration\n")
	b.WriteString(fmt.Sprintf("version: %d\n\n", c.Version))

	b.WriteString("# Working region and SSH login user on instances.\n")
	b.WriteString(fmt.Sprintf("region: %s\n", c.Region))
	b.WriteString(fmt.Sprintf("remote_user: %s\n\n", c.RemoteUser))

	b.WriteString("# Local directories: per-key-pair .pem files, the deploy staging\n")
	b.WriteString("# directory pushed to instances, and where fetched results land.\n")
	b.WriteString(fmt.Sprintf("keys_dir: %s\n", c.KeysDir))
	b.WriteString(fmt.Sprintf("deploy_dir: %s\n", c.DeployDir))
	b.WriteString(fmt.Sprintf("fetch_dir: %s\n\n", c.FetchDir))

	b.WriteString("# Working directory on instances.\n")
	b.WriteString(fmt.Sprintf("remote_base: %s\n\n", c.RemoteBase))

	b.WriteString("# Notebook tunnel ports. If the local port is busy the next two\n")
	b.WriteString("# are tried.\n")
	b.WriteString("notebook:\n")
	b.WriteString(fmt.Sprintf("  local_port: %d\n", c.Notebook.LocalPort))
	b.WriteString(fmt.Sprintf("  remote_port: %d\n\n", c.Notebook.RemotePort))

	b.WriteString("# How long to wait for an instance to reach its target state.\n")
	b.WriteString("poll:\n")
	b.WriteString(fmt.Sprintf("  interval: %s\n", c.Poll.Interval))
	b.WriteString(fmt.Sprintf("  attempts: %d\n", c.Poll.Attempts))
	b.WriteString(fmt.Sprintf("  transient_retries: %d\n\n", c.Poll.TransientRetries))

	b.WriteString(fmt.Sprintf("connect_timeout: %s\n\n", c.ConnectTimeout))

	b.WriteString("# Look up on-demand prices when listing instances (slower).\n")
	b.WriteString(fmt.Sprintf("load_prices: %t\n\n", c.LoadPrices))

	b.WriteString("# Types offered when resizing, with a short description each.\n")
	b.WriteString(marshalInstanceTypes(c.InstanceTypes))

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"couldn't write config file", "")
	}
	return nil
}

// marshalInstanceTypes renders the catalog in a stable order.
func marshalInstanceTypes(types map[string]string) string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range names {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: types[name]},
		)
	}

	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "instance_types"},
			node,
		},
	}

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return "instance_types: {}\n"
	}
	encoder.Close()
	return buf.String()
}
