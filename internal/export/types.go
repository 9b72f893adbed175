package export

import (
	"strings"
	"time"

	"github.com/wadc/flowsync/internal/model"
)

// Columns requested by each feed.
var (
	HourlyColumns = []string{
		"Account_Full_Name", "Endpoint_SN", "Endpoint_Type", "Flow_Time", "Flow", "Flow_Unit",
		"Location_Address_Line1", "Current_Leak_Rate", "Current_Leak_Start_Date",
		"Backflow_Gallons", "Battery_Level",
	}
	MonthlyColumns = []string{
		"Account_Full_Name", "Location_Address_Line1", "Location_City", "Endpoint_SN",
		"Flow", "Flow_Time", "Service_Point_Latitude", "Service_Point_Longitude",
		"SA_Start_Date", "Read_Method", "Account_ID",
	}
)

// dateLayout is how Start_Date and End_Date are sent.
const dateLayout = "2006-01-02 15:04:05"

// Request describes one export submission. It is not modified after Submit.
type Request struct {
	Scope       string // Service point route; empty requests all meters
	Start       time.Time
	End         time.Time
	Resolution  model.Resolution
	Columns     []string
	HasEndpoint bool // Only meters with an endpoint installed
}

// HourlyRequest builds the per-route hourly request.
func HourlyRequest(route string, start, end time.Time) Request {
	return Request{
		Scope:      route,
		Start:      start,
		End:        end,
		Resolution: model.ResolutionHourly,
		Columns:    HourlyColumns,
	}
}

// MonthlyRequest builds the all-meters monthly audit request.
func MonthlyRequest(start, end time.Time) Request {
	return Request{
		Start:       start,
		End:         end,
		Resolution:  model.ResolutionMonthly,
		Columns:     MonthlyColumns,
		HasEndpoint: true,
	}
}

// JobHandle identifies a submitted job.
type JobHandle struct {
	ID string
}

// State is the processing state of a job.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Terminal reports whether polling should stop.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// parseState maps the service's state strings onto State.
// Anything unrecognized is treated as still queued.
func parseState(s string) State {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "run", "running":
		return StateRunning
	case "done":
		return StateDone
	case "exception", "failed":
		return StateFailed
	default:
		return StateQueued
	}
}

// JobStatus is the result of one status check.
type JobStatus struct {
	State     State
	ReportURL string // Set when done
	EndTime   string // Set when failed
	Message   string // Set when failed
}

// acceptanceResponse from POST /v2/eds/range
type acceptanceResponse struct {
	EdsUUID string `json:"edsUUID"`
}

// statusResponse from GET /v1/eds/status/{id}
type statusResponse struct {
	State     string `json:"state"`
	ReportURL string `json:"reportUrl"`
	EndTime   string `json:"endTime"`
	Message   string `json:"message"`
}

// reportResponse from GET {reportUrl}
type reportResponse struct {
	Results []model.FlowRecord `json:"results"`
}
