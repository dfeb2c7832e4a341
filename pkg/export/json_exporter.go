package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// JSONExporter renders rows as an array of objects whose keys follow the header order.
type JSONExporter struct {
	indent string
}

// NewJSONExporter builds a JSON exporter with two-space indentation.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{indent: "  "}
}

// Render writes the dataset. encoding/json sorts map keys, so objects are assembled by hand.
func (e *JSONExporter) Render(data Dataset) ([]byte, error) {
	if err := requireHeaders("json", data); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	buf.WriteString("[")
	for i, row := range data.Rows {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n" + e.indent + "{")
		for j, header := range data.Headers {
			if j > 0 {
				buf.WriteString(",")
			}
			key, err := json.Marshal(header)
			if err != nil {
				return nil, fmt.Errorf("encode json key: %w", err)
			}
			value, err := e.value(data, header, row[header])
			if err != nil {
				return nil, err
			}
			buf.WriteString("\n" + e.indent + e.indent)
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(value)
		}
		buf.WriteString("\n" + e.indent + "}")
	}
	if len(data.Rows) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}

func (e *JSONExporter) value(data Dataset, header, raw string) ([]byte, error) {
	if data.Numeric[header] {
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			return []byte(raw), nil
		}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode json value for %s: %w", header, err)
	}
	return encoded, nil
}
