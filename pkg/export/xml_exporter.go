package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// XMLExporter renders rows as child elements of a single root element.
type XMLExporter struct {
	root   string
	record string
}

// NewXMLExporter builds an XML exporter with the given root and record element names.
func NewXMLExporter(root, record string) *XMLExporter {
	return &XMLExporter{root: root, record: record}
}

// Render writes <root><record><header>value</header>...</record></root>.
func (e *XMLExporter) Render(data Dataset) ([]byte, error) {
	if err := requireHeaders("xml", data); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")

	rootStart := xml.StartElement{Name: xml.Name{Local: e.root}}
	if err := enc.EncodeToken(rootStart); err != nil {
		return nil, fmt.Errorf("open xml root: %w", err)
	}
	for _, row := range data.Rows {
		recordStart := xml.StartElement{Name: xml.Name{Local: e.record}}
		if err := enc.EncodeToken(recordStart); err != nil {
			return nil, fmt.Errorf("open xml record: %w", err)
		}
		for _, header := range data.Headers {
			if err := enc.EncodeElement(row[header], xml.StartElement{Name: xml.Name{Local: header}}); err != nil {
				return nil, fmt.Errorf("write xml field %s: %w", header, err)
			}
		}
		if err := enc.EncodeToken(recordStart.End()); err != nil {
			return nil, fmt.Errorf("close xml record: %w", err)
		}
	}
	if err := enc.EncodeToken(rootStart.End()); err != nil {
		return nil, fmt.Errorf("close xml root: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("flush xml: %w", err)
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}
