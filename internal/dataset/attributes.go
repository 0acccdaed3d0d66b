package dataset

import "strings"

// Kind is the value type of a call attribute.
type Kind string

const (
	KindString   Kind = "string"
	KindFloat    Kind = "float"
	KindInteger  Kind = "integer"
	KindBoolean  Kind = "boolean"
	KindDatetime Kind = "datetime"
)

// Attribute describes one metadata column of the call corpus.
type Attribute struct {
	Key         string // metadata key
	Header      string // spreadsheet column header
	Kind        Kind
	Description string
}

const (
	AttrSerialNumber = "serial_number"
	AttrTranscript   = "rolewise_transcript"
	AttrCallLength   = "call_length"
)

var purposes = "['Construction', 'Other Loans - Home Equity', 'Other Loans - MSME', 'Purchase', " +
	"'Purchase and Construction', 'Repair and Renovation Loan', 'Resale Property Purchase']"

// Attributes is the call attribute catalogue, in spreadsheet order.
var Attributes = []Attribute{
	{AttrSerialNumber, "Serial Number", KindString, "Unique identifier for the call record."},
	{AttrCallLength, "Call Length", KindFloat, "The duration of the call in seconds."},
	{"lead_id", "Lead Id", KindString, "Unique identifier for the lead."},
	{"call_datetime", "Call DateTime", KindDatetime, "The date and time when the call took place, formatted YYYY-MM-DDTHH:MM:SS."},
	{"language", "Language of the call", KindString, "The language in which the call was conducted. Valid values are ['Hindi', 'Marathi']"},
	{"purpose", "Purpose", KindString, "The purpose of the call. Valid values are " + purposes},
	{"product_offered", "Product offered", KindString, "The product that was offered during the call. Valid values are " + purposes},
	{"lead_source", "Lead Source", KindString, "The source from which the lead was generated, e.g. 'Website', 'Google Ads', 'Reference', 'Toll Free', 'Whatsapp'."},
	{"location", "Location", KindString, "The location of the customer."},
	{"branch", "Branch", KindString, "The branch associated with the lead."},
	{"opportunity_created", "Opportunity Created", KindBoolean, "Whether an opportunity was created from the call."},
	{"business_created", "Business Created", KindBoolean, "Whether business was created from the call."},
	{"agent_name", "Agent Name", KindString, "The name of the agent who handled the call."},
	{"agent_id", "Agent ID", KindInteger, "Unique identifier for the agent."},
}

// AttributeByKey finds a catalogue entry.
func AttributeByKey(key string) (Attribute, bool) {
	for _, a := range Attributes {
		if a.Key == key {
			return a, true
		}
	}
	return Attribute{}, false
}

func normalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}
