package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

type Severity string

const (
	SeverityInformational Severity = "informational"
	SeverityDestructive   Severity = "destructive"
)

// Alert is a short-lived notification. ID pairs it with its own expiry timer.
type Alert struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	RaisedAt    time.Time `json:"raised_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Result is the data object of one successful check. A nil Result means no
// result is held.
type Result map[string]interface{}

type Row struct {
	Key   string
	Value string
}

// Rows returns the result as display rows sorted by key, values in their
// textual form.
func (r Result) Rows() []Row {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, Row{Key: k, Value: FormatValue(r[k])})
	}
	return rows
}

func (r Result) Clone() Result {
	if r == nil {
		return nil
	}
	out := make(Result, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FormatValue renders a decoded JSON value the way the results panel shows it.
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// CheckResponse is the envelope returned by /api/check-domain.
type CheckResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// ViewState is a read-only snapshot handed to renderers.
type ViewState struct {
	Domain  string `json:"domain"`
	Loading bool   `json:"loading"`
	Result  Result `json:"result"`
	Alert   *Alert `json:"alert"`
}

// HasResult reports whether a check has settled successfully. An empty result
// still counts.
func (v ViewState) HasResult() bool {
	return v.Result != nil
}

type HistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Result    string `json:"result"`
}
