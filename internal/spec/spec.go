// Package spec holds the on-disk shape of a consumer pipeline file.
package spec

import "gopkg.in/yaml.v3"

type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Source struct {
		Kind   string `yaml:"kind"`   // only "kafka"
		Driver string `yaml:"driver"` // "sarama"
		Config string `yaml:"config"` // kafka source yaml, relative to this file
	} `yaml:"source"`

	// Sinks run in order for every record; all must succeed before the
	// record is acknowledged.
	Sinks []string `yaml:"sinks"`

	// SinkConfigs is keyed by sink name and decoded by the compiler into
	// the driver's own Config type.
	SinkConfigs map[string]yaml.Node `yaml:"sink_configs"`
}

// SinkConfig decodes the block for name into out. A missing block leaves
// out untouched.
func (f File) SinkConfig(name string, out any) error {
	node, ok := f.SinkConfigs[name]
	if !ok {
		return nil
	}
	return node.Decode(out)
}
