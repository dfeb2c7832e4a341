package export

import (
	"fmt"
	"strings"
)

// Dataset defines tabular export content. Headers fix the column order for every format.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	// Numeric marks columns rendered as numbers by the typed formats.
	Numeric map[string]bool
}

// Renderer turns a dataset into file bytes.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
}

// Format identifies an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
	FormatPDF  Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatYAML, FormatCSV, FormatXML, FormatPDF}

// ParseFormat resolves a format name case-insensitively. "yml" is accepted for YAML.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatJSON, FormatYAML, FormatCSV, FormatXML, FormatPDF:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// Extension returns the file extension without a dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXML:
		return "application/xml"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// NewRenderer returns the renderer for a format. title is only used by PDF output.
func NewRenderer(f Format, title string) (Renderer, error) {
	switch f {
	case FormatJSON:
		return NewJSONExporter(), nil
	case FormatYAML:
		return NewYAMLExporter(), nil
	case FormatCSV:
		return NewCSVExporter(), nil
	case FormatXML:
		return NewXMLExporter("attendance_records", "record"), nil
	case FormatPDF:
		return NewPDFExporter(title), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

func requireHeaders(kind string, data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", kind)
	}
	return nil
}
