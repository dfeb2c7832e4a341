package export

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLExporter renders rows as a sequence of mappings keeping the header order.
type YAMLExporter struct{}

// NewYAMLExporter builds a YAML exporter.
func NewYAMLExporter() *YAMLExporter {
	return &YAMLExporter{}
}

// Render encodes the dataset through yaml.Node so key order survives.
func (e *YAMLExporter) Render(data Dataset) ([]byte, error) {
	if err := requireHeaders("yaml", data); err != nil {
		return nil, err
	}

	root := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, row := range data.Rows {
		item := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, header := range data.Headers {
			value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: row[header]}
			if data.Numeric[header] {
				value.Tag = "!!int"
			}
			item.Content = append(item.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: header},
				value,
			)
		}
		root.Content = append(root.Content, item)
	}

	buf := &bytes.Buffer{}
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close yaml encoder: %w", err)
	}
	return buf.Bytes(), nil
}
