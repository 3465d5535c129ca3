package influxdb

import (
	"math"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementIntegrationState holds one point per entry update.
const MeasurementIntegrationState = "integration_state"

// StatePoint is one update of an entry's state.
type StatePoint struct {
	Domain    string
	EntryID   string
	Title     string
	State     map[string]any
	Available bool
	Time      time.Time
}

// WriteIntegrationState queues a point for the update. Only numeric and
// boolean state values become fields; availability is always recorded as
// the "available" field. Nothing is written once the client is closed.
func (c *Client) WriteIntegrationState(p StatePoint) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(newStatePoint(p))
}

func newStatePoint(p StatePoint) *write.Point {
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	tags := map[string]string{
		"domain":   p.Domain,
		"entry_id": p.EntryID,
	}
	if p.Title != "" {
		tags["title"] = p.Title
	}
	return write.NewPoint(MeasurementIntegrationState, tags, stateFields(p.State, p.Available), ts)
}

// stateFields keeps the values InfluxDB can aggregate. Integers are stored
// as floats so a field keeps one type across points.
func stateFields(state map[string]any, available bool) map[string]any {
	fields := map[string]any{"available": available}
	for k, v := range state {
		switch n := v.(type) {
		case bool:
			fields[k] = n
		case float64:
			if !math.IsNaN(n) && !math.IsInf(n, 0) {
				fields[k] = n
			}
		case float32:
			fields[k] = float64(n)
		case int:
			fields[k] = float64(n)
		case int64:
			fields[k] = float64(n)
		case int32:
			fields[k] = float64(n)
		case uint16:
			fields[k] = float64(n)
		}
	}
	return fields
}
