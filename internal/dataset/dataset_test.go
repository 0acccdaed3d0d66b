package dataset

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"call-insights-go/internal/logger"
	"call-insights-go/internal/types"
)

func writeSheet(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(t.TempDir(), "calls.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoad_TypedMetadata(t *testing.T) {
	path := writeSheet(t, [][]any{
		{"Serial Number", "Rolewise Transcript", "Call Length", "Call DateTime", "Language of the call", "Opportunity Created", "Agent ID"},
		{"101", "Agent: hello. Customer: rate is high.", 725, "2024-03-05 10:00:00", "Hindi", "TRUE", 7},
		{"102", "", 30, "", "Marathi", "", 8},
		{"", "Agent: documents pending.", 95.5, "2024-03-06", "Marathi", "false", 9},
	})

	recs, err := Load(path, logger.Discard().Entry)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "101", first.ID)
	assert.Equal(t, "Agent: hello. Customer: rate is high.", first.Content)
	assert.Equal(t, 725.0, first.Metadata["call_length"])
	assert.Equal(t, "2024-03-05T10:00:00", first.Metadata["call_datetime"])
	assert.Equal(t, true, first.Metadata["opportunity_created"])
	assert.Equal(t, 7.0, first.Metadata["agent_id"])
	assert.Equal(t, "101", first.Metadata[types.IDField])

	// no serial number: row number stands in
	assert.Equal(t, "3", recs[1].ID)
	assert.Equal(t, false, recs[1].Metadata["opportunity_created"])
}

func TestParseRows_DropsNonFiniteNumbers(t *testing.T) {
	recs, err := parseRows([][]string{
		{"Serial Number", "Transcript", "Call Length", "Agent ID"},
		{"1", "Agent: hello.", "NaN", "Inf"},
		{"2", "Agent: bye.", "-Inf", "12"},
	}, logger.Discard().Entry)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.NotContains(t, recs[0].Metadata, "call_length")
	assert.NotContains(t, recs[0].Metadata, "agent_id")
	assert.NotContains(t, recs[1].Metadata, "call_length")
	assert.Equal(t, 12.0, recs[1].Metadata["agent_id"])

	// every record must survive the JSON encoding the stores use
	for _, r := range recs {
		_, err := json.Marshal(r.Metadata)
		assert.NoError(t, err)
	}
}

func TestParseRows_NeedsTranscriptColumn(t *testing.T) {
	_, err := parseRows([][]string{{"Serial Number", "Call Length"}, {"1", "20"}}, logger.Discard().Entry)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	out := Describe([]types.Metadata{
		{"call_length": 700.0, "language": "Hindi"},
		{"call_length": 650.0, "language": "Hindi"},
		{"call_length": 900.0, "language": "Marathi"},
		{"call_length": 610.0},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 1+len(statRows))

	header := strings.Fields(lines[0])
	assert.Equal(t, []string{"call_length", "language"}, header)

	row := func(name string) []string {
		for _, l := range lines[1:] {
			f := strings.Fields(l)
			if f[0] == name {
				return f[1:]
			}
		}
		t.Fatalf("no %s row", name)
		return nil
	}
	assert.Equal(t, []string{"4", "3"}, row("count"))
	assert.Equal(t, []string{"NaN", "2"}, row("unique"))
	assert.Equal(t, []string{"NaN", "Hindi"}, row("top"))
	assert.Equal(t, []string{"NaN", "2"}, row("freq"))
	assert.Equal(t, []string{"715.000000", "NaN"}, row("mean"))
	assert.Equal(t, []string{"610.000000", "NaN"}, row("min"))
	assert.Equal(t, []string{"640.000000", "NaN"}, row("25%"))
	assert.Equal(t, []string{"675.000000", "NaN"}, row("50%"))
	assert.Equal(t, []string{"900.000000", "NaN"}, row("max"))
}

func TestDescribe_Empty(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
}

func TestChunkRecord(t *testing.T) {
	rec := types.TranscriptRecord{ID: "7", Content: "one two three four five"}

	chunks := ChunkRecord(rec, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, "7#0", chunks[0].Key)
	assert.Equal(t, "one two", chunks[0].Content)
	assert.Equal(t, "five", chunks[2].Content)
	for _, c := range chunks {
		assert.Equal(t, "7", c.ID)
		assert.Equal(t, "7", c.Metadata[types.IDField])
	}

	whole := ChunkRecord(rec, 0)
	require.Len(t, whole, 1)
	assert.Equal(t, "one two three four five", whole[0].Content)
}
