package export

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"attendance_id", "student", "group", "date", "time", "subject", "status"},
		Rows: []map[string]string{
			{"attendance_id": "1", "student": "s1", "group": "G1", "date": "2025-11-20", "time": "10:00", "subject": "Math", "status": "present"},
			{"attendance_id": "2", "student": "s2", "group": "G1", "date": "2025-11-20", "time": "10:00", "subject": "Math", "status": "absent"},
		},
		Numeric: map[string]bool{"attendance_id": true},
	}
}

// keyOrder returns the positions of each header inside the rendered output.
func assertOrdered(t *testing.T, out string, headers []string) {
	t.Helper()
	last := -1
	for _, h := range headers {
		idx := strings.Index(out, h)
		require.GreaterOrEqual(t, idx, 0, "missing %s", h)
		assert.Greater(t, idx, last, "%s out of order", h)
		last = idx
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		parsed, err := ParseFormat(strings.ToUpper(string(f)))
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}
	parsed, err := ParseFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, parsed)

	_, err = ParseFormat("docx")
	assert.Error(t, err)
}

func TestCSVKeepsHeaderOrder(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "attendance_id,student,group,date,time,subject,status", lines[0])
	assert.Equal(t, "1,s1,G1,2025-11-20,10:00,Math,present", lines[1])
}

func TestCSVNeutralizesFormulaCells(t *testing.T) {
	data := Dataset{
		Headers: []string{"attendance_id", "student"},
		Rows:    []map[string]string{{"attendance_id": "-1", "student": "=HYPERLINK(\"x\")"}},
		Numeric: map[string]bool{"attendance_id": true},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `-1,"'=HYPERLINK(""x"")"`, lines[1])
}

func TestJSONKeepsFieldOrderAndTypes(t *testing.T) {
	data := sampleDataset()
	out, err := NewJSONExporter().Render(data)
	require.NoError(t, err)

	first := string(out[:bytes.Index(out, []byte("}"))])
	assertOrdered(t, first, data.Headers)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, float64(1), decoded[0]["attendance_id"])
	assert.Equal(t, "absent", decoded[1]["status"])
}

func TestJSONEmptyDataset(t *testing.T) {
	out, err := NewJSONExporter().Render(Dataset{Headers: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(out))
}

func TestYAMLKeepsFieldOrder(t *testing.T) {
	data := sampleDataset()
	out, err := NewYAMLExporter().Render(data)
	require.NoError(t, err)

	firstRecord := strings.SplitN(string(out), "\n- ", 2)[0]
	assertOrdered(t, firstRecord, data.Headers)

	var decoded []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, 1, decoded[0]["attendance_id"])
	assert.Equal(t, "10:00", decoded[0]["time"])
}

func TestXMLUsesRecordElements(t *testing.T) {
	data := sampleDataset()
	out, err := NewXMLExporter("attendance_records", "record").Render(data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), xml.Header))
	assertOrdered(t, string(out), data.Headers)

	var decoded struct {
		XMLName xml.Name `xml:"attendance_records"`
		Records []struct {
			Student string `xml:"student"`
			Status  string `xml:"status"`
		} `xml:"record"`
	}
	require.NoError(t, xml.Unmarshal(out, &decoded))
	require.Len(t, decoded.Records, 2)
	assert.Equal(t, "s2", decoded.Records[1].Student)
	assert.Equal(t, "absent", decoded.Records[1].Status)
}

func TestPDFRenders(t *testing.T) {
	out, err := NewPDFExporter("Attendance").Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderersRequireHeaders(t *testing.T) {
	for _, f := range Formats {
		r, err := NewRenderer(f, "")
		require.NoError(t, err)
		_, err = r.Render(Dataset{})
		assert.Error(t, err, string(f))
	}
}
