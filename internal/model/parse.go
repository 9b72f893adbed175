package model

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MinutesPerAverageMonth is 30.437 days expressed in minutes.
const MinutesPerAverageMonth = 30.437 * 24 * 60

// InactivePrefix marks the read method of sites that reported zero flow.
const InactivePrefix = "Inactive-"

// Timestamp layouts used by the export service.
const (
	MonthLayout = "2006-01"
	HourLayout  = "2006-01-02 15:04"
)

// ParseFlow converts a flow field to a number.
// Returns 0 for null, blank, non-numeric or non-finite input.
func ParseFlow(t Text) float64 {
	if t.Blank() {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(t.Value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// NormalizeFlow converts monthly gallons to gallons per minute over an
// average month.
func NormalizeFlow(gallons float64) float64 {
	return gallons / MinutesPerAverageMonth
}

// ParseMonth parses an observation period and returns the first instant of
// its month. Accepts "2006-01" and, for hourly timestamps, "2006-01-02 15:04".
func ParseMonth(t Text) (time.Time, bool) {
	if t.Blank() {
		return time.Time{}, false
	}
	v := strings.TrimSpace(t.Value)
	for _, layout := range []string{MonthLayout, HourLayout, time.DateOnly} {
		parsed, err := time.Parse(layout, v)
		if err == nil {
			return time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseHour parses an hourly timestamp, truncating minutes.
func ParseHour(t Text) (time.Time, bool) {
	if t.Blank() {
		return time.Time{}, false
	}
	parsed, err := time.Parse(HourLayout, strings.TrimSpace(t.Value))
	if err != nil {
		return time.Time{}, false
	}
	return parsed.Truncate(time.Hour), true
}

// ParseSerial parses an endpoint serial number.
// Returns nil for null, blank or non-integer input.
func ParseSerial(t Text) *int64 {
	if t.Blank() {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(t.Value), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// ParseCoordinate parses a latitude or longitude.
func ParseCoordinate(t Text) *float64 {
	if t.Blank() {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(t.Value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseServiceStart parses a service-agreement start month.
func ParseServiceStart(t Text) *time.Time {
	ts, ok := ParseMonth(t)
	if !ok {
		return nil
	}
	return &ts
}

// ReadMethodFor returns the read method to store for a site that reported
// flow this period.
func ReadMethodFor(method string, flow float64) string {
	if flow == 0 {
		return InactivePrefix + method
	}
	return method
}

// MonthSlotName returns the store column name of a month slot,
// e.g. "june_gpm".
func MonthSlotName(m time.Month) string {
	return strings.ToLower(m.String()) + "_gpm"
}

// ToReading converts an hourly-feed record to a Reading for route.
func (r *FlowRecord) ToReading(route string) Reading {
	reading := Reading{
		Route:        route,
		AccountName:  r.AccountName.String(),
		Serial:       ParseSerial(r.Serial),
		EndpointType: r.EndpointType.String(),
		Flow:         ParseFlow(r.Flow),
		FlowUnit:     r.FlowUnit.String(),
		Address:      r.Address.String(),
		LeakRate:     ParseFlow(r.LeakRate),
		Backflow:     ParseFlow(r.Backflow),
		Battery:      r.Battery.String(),
	}
	if ts, ok := ParseHour(r.LeakStart); ok {
		reading.LeakStart = &ts
	}
	if ts, ok := ParseHour(r.FlowTime); ok {
		reading.FlowTime = &ts
	}
	reading.ID = ReadingID(route, reading.Serial, reading.Address, reading.FlowTime)
	return reading
}

// ReadingID derives a stable id for the reading of one meter on route at
// flowTime, so collecting the same window twice inserts nothing new. Meters
// without a serial are keyed by address.
func ReadingID(route string, serial *int64, address string, flowTime *time.Time) uuid.UUID {
	key := "address:" + strings.TrimSpace(address)
	if serial != nil {
		key = "serial:" + strconv.FormatInt(*serial, 10)
	}
	at := ""
	if flowTime != nil {
		at = flowTime.UTC().Format(time.RFC3339)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("flowsync/reading/"+route+"/"+key+"/"+at))
}
