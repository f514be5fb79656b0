package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format for startDate/endDate query parameters.
const DateLayout = "2006-01-02"

// FetchWindow is one bounded request range. Start and End are calendar dates
// (UTC midnight) and both are inclusive.
type FetchWindow struct {
	Start time.Time
	End   time.Time
	Seq   int // position in the planned sequence
	Year  int // calendar year used for output naming
}

// String returns a compact representation used in logs and errors.
func (w FetchWindow) String() string {
	if w.Start.Equal(w.End) {
		return w.Start.Format(DateLayout)
	}
	return fmt.Sprintf("%s..%s", w.Start.Format(DateLayout), w.End.Format(DateLayout))
}

// Days returns the number of calendar days covered by the window.
func (w FetchWindow) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// RawBatch is the undecoded `return` member of one successful fetch.
type RawBatch struct {
	Endpoint EndpointConfig
	Window   FetchWindow
	Payload  json.RawMessage
}
