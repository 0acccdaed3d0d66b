package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"call-insights-go/internal/types"
)

var datetimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01-02-06 15:04",
	"1/2/06 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006 15:04",
}

// Load reads the first sheet of an xlsx corpus into transcript records.
// Columns are matched by header against the attribute catalogue; the
// transcript column is the one whose header mentions "transcript". Rows with
// an empty transcript are skipped. A missing serial number falls back to
// the 1-based row number.
func Load(path string, log *logrus.Entry) ([]types.TranscriptRecord, error) {
	log = log.WithFields(logrus.Fields{"component": "dataset", "path": path})
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}
	return parseRows(rows, log)
}

func parseRows(rows [][]string, log *logrus.Entry) ([]types.TranscriptRecord, error) {
	header := rows[0]
	cols := make(map[int]Attribute)
	transcriptIdx := -1
	for i, h := range header {
		n := normalizeHeader(h)
		if transcriptIdx == -1 && strings.Contains(n, "transcript") {
			transcriptIdx = i
			continue
		}
		for _, a := range Attributes {
			if n == normalizeHeader(a.Header) || n == a.Key {
				cols[i] = a
				break
			}
		}
	}
	if transcriptIdx == -1 {
		return nil, fmt.Errorf("no transcript column in header %v", header)
	}
	log.WithFields(logrus.Fields{
		"transcript_idx": transcriptIdx,
		"mapped_columns": len(cols),
	}).Info("detected dataset columns")

	var out []types.TranscriptRecord
	skipped := 0
	for i, r := range rows[1:] {
		text := ""
		if transcriptIdx < len(r) {
			text = strings.TrimSpace(r[transcriptIdx])
		}
		if text == "" {
			skipped++
			continue
		}
		md := types.Metadata{}
		for idx, a := range cols {
			if idx >= len(r) {
				continue
			}
			if v, ok := parseValue(a.Kind, r[idx]); ok {
				md[a.Key] = v
			}
		}
		id := types.MetadataID(md)
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		md[types.IDField] = id
		out = append(out, types.TranscriptRecord{ID: id, Content: text, Metadata: md})
	}
	log.WithFields(logrus.Fields{"records": len(out), "skipped": skipped}).Info("dataset loaded")
	return out, nil
}

// parseValue converts a cell to its attribute kind. Numbers become float64 so
// metadata round-trips through JSON unchanged. Blank cells are omitted.
func parseValue(kind Kind, raw string) (any, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	switch kind {
	case KindFloat, KindInteger:
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil {
			return s, true
		}
		// NaN and Inf cannot be stored as JSON metadata
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	case KindBoolean:
		switch strings.ToLower(s) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
		return s, true
	case KindDatetime:
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format("2006-01-02T15:04:05"), true
			}
		}
		return s, true
	}
	if kind == KindString && strings.HasSuffix(s, ".0") {
		// identifiers typed as numbers in the sheet
		if _, err := strconv.Atoi(strings.TrimSuffix(s, ".0")); err == nil {
			return strings.TrimSuffix(s, ".0"), true
		}
	}
	return s, true
}
