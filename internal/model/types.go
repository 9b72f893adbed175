package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Export Types
// -----------------------------------------------------------------------------

// Resolution is the aggregation granularity requested from the export service.
type Resolution string

const (
	ResolutionHourly  Resolution = "Hourly"
	ResolutionMonthly Resolution = "Monthly"
)

// WirelessEndpoint is the endpoint type marker for wireless endpoints.
const WirelessEndpoint = "J"

// Text is a payload field that may arrive as a JSON string, a number or null.
// Numbers keep their literal text so that serials and flows survive decoding
// without float rounding.
type Text struct {
	Value string
	Valid bool
}

// NewText returns a valid Text holding s.
func NewText(s string) Text {
	return Text{Value: s, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Text{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = NewText(s)
		return nil
	}
	*t = NewText(string(data))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.Value)), nil
}

// Blank reports whether the field is null or whitespace.
func (t Text) Blank() bool {
	return !t.Valid || strings.TrimSpace(t.Value) == ""
}

// String returns the raw value, or "" for null.
func (t Text) String() string {
	if !t.Valid {
		return ""
	}
	return t.Value
}

// FlowRecord is a single metering observation from an export payload.
// Hourly-feed-only fields are null in the monthly feed and vice versa.
type FlowRecord struct {
	AccountName  Text `json:"Account_Full_Name"`
	AccountID    Text `json:"Account_ID"`
	Serial       Text `json:"Endpoint_SN"`
	EndpointType Text `json:"Endpoint_Type"`
	Flow         Text `json:"Flow"`
	FlowUnit     Text `json:"Flow_Unit"`
	FlowTime     Text `json:"Flow_Time"`
	Address      Text `json:"Location_Address_Line1"`
	City         Text `json:"Location_City"`
	Latitude     Text `json:"Service_Point_Latitude"`
	Longitude    Text `json:"Service_Point_Longitude"`
	ServiceStart Text `json:"SA_Start_Date"`
	ReadMethod   Text `json:"Read_Method"`

	// Hourly feed
	LeakRate  Text `json:"Current_Leak_Rate"`
	LeakStart Text `json:"Current_Leak_Start_Date"`
	Backflow  Text `json:"Backflow_Gallons"`
	Battery   Text `json:"Battery_Level"`
}

// -----------------------------------------------------------------------------
// Store Types
// -----------------------------------------------------------------------------

// Entity is one physical metering site.
type Entity struct {
	ID int64 // Store-assigned primary key

	// Composite natural key
	Serial  *int64 // Endpoint serial number, nil when unknown
	Address string // Location address line 1

	AccountName  string
	AccountID    string
	City         string
	ServiceStart *time.Time
	ReadMethod   string
	Longitude    *float64
	Latitude     *float64

	// Months holds the normalized flow per calendar month, indexed by
	// time.Month. Index 0 is unused.
	Months [13]*float64

	// Derived statistics
	AnnualAvg  *float64
	SummerFlow *float64
	PeakFlow   *float64
}

// Month returns the slot for m, or nil if empty.
func (e *Entity) Month(m time.Month) *float64 {
	if m < time.January || m > time.December {
		return nil
	}
	return e.Months[m]
}

// SetMonth writes v into the slot for m.
func (e *Entity) SetMonth(m time.Month, v float64) {
	if m < time.January || m > time.December {
		return
	}
	e.Months[m] = &v
}

// ResetMonths nulls all twelve month slots and the derived statistics.
func (e *Entity) ResetMonths() {
	for i := range e.Months {
		e.Months[i] = nil
	}
	e.AnnualAvg = nil
	e.SummerFlow = nil
	e.PeakFlow = nil
}

// KeyString renders the natural key for logs.
func (e *Entity) KeyString() string {
	if e.Serial != nil {
		return "sn:" + strconv.FormatInt(*e.Serial, 10)
	}
	return "addr:" + e.Address
}

// PeriodValue is an append-only monthly observation linked to an Entity by
// its natural key.
type PeriodValue struct {
	ID       uuid.UUID
	Serial   *int64
	Address  string
	Flow     float64 // Raw gallons
	FlowTime time.Time
}

// Reading is one hourly observation from the per-route feed.
type Reading struct {
	ID           uuid.UUID
	Route        string
	AccountName  string
	Serial       *int64
	EndpointType string
	Flow         float64
	FlowUnit     string
	Address      string
	LeakRate     float64
	LeakStart    *time.Time
	Backflow     float64
	Battery      string
	FlowTime     *time.Time
}
