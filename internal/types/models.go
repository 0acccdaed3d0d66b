package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// IDField is the metadata key carrying a record's identifier in both stores.
const IDField = "serial_number"

// Metadata holds the structured attributes of a call record.
type Metadata map[string]any

// TranscriptRecord is one call: its transcript plus structured attributes.
type TranscriptRecord struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Document is a record as returned by a metadata query.
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// ID returns the identifier stored in the document metadata, or "" when absent.
func (d Document) ID() string {
	return MetadataID(d.Metadata)
}

// Key identifies a document by content and metadata equality.
func (d Document) Key() (string, error) {
	// encoding/json sorts map keys, so equal metadata gives equal bytes
	md, err := json.Marshal(d.Metadata)
	if err != nil {
		return "", fmt.Errorf("document key: %w", err)
	}
	return d.Content + "\x00" + string(md), nil
}

// Hit is a single scored search result.
type Hit struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
	Score    float64  `json:"score"`
}

// MetadataID formats the identifier value found under IDField.
func MetadataID(md Metadata) string {
	v, ok := md[IDField]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// IDSet is an unordered set of record identifiers.
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) Add(id string) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted lists the identifiers in lexical order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// InsufficientEvidence is the marker recorded for a reason with no corroboration.
const InsufficientEvidence = "insufficient evidence"

// ReasonCount is either a positive evidence count or the insufficient-evidence marker.
type ReasonCount struct {
	Count        int
	Insufficient bool
}

func Counted(n int) ReasonCount { return ReasonCount{Count: n} }

func Insufficient() ReasonCount { return ReasonCount{Insufficient: true} }

func (c ReasonCount) String() string {
	if c.Insufficient {
		return InsufficientEvidence
	}
	return strconv.Itoa(c.Count)
}

func (c ReasonCount) MarshalJSON() ([]byte, error) {
	if c.Insufficient {
		return json.Marshal(InsufficientEvidence)
	}
	return json.Marshal(c.Count)
}

func (c *ReasonCount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != InsufficientEvidence {
			return fmt.Errorf("reason count: unexpected marker %q", s)
		}
		*c = Insufficient()
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("reason count: %w", err)
	}
	*c = Counted(n)
	return nil
}

// ReasonCounts maps reason text to its evidence count.
type ReasonCounts map[string]ReasonCount

// Reasons lists the reasons in lexical order.
func (rc ReasonCounts) Reasons() []string {
	out := make([]string, 0, len(rc))
	for r := range rc {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
