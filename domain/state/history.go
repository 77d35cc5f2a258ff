package state

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// HistoryEntry is the audit record appended by every successful transition.
type HistoryEntry struct {
	Date       time.Time `json:"date"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Transition string    `json:"transition"`
	Actor      string    `json:"actor"`
	Message    string    `json:"message"`
}

// History is append only, stored as a JSON text column.
type History []HistoryEntry

// ChainError reports the first entry whose From differs from the previous To.
type ChainError struct {
	Index    int
	Expected string
	Actual   string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("state history broken at entry %d: from %q, expected %q", e.Index, e.Actual, e.Expected)
}

func (h History) Last() (HistoryEntry, bool) {
	if len(h) == 0 {
		return HistoryEntry{}, false
	}
	return h[len(h)-1], true
}

func (h History) Clone() History {
	if h == nil {
		return nil
	}
	r := make(History, len(h))
	copy(r, h)
	return r
}

// Validate checks entry[i].From == entry[i-1].To for every i > 0.
func (h History) Validate() error {
	for i := 1; i < len(h); i++ {
		if h[i].From != h[i-1].To {
			return &ChainError{Index: i, Expected: h[i-1].To, Actual: h[i].From}
		}
	}
	return nil
}

// Repair orders entries by date and relinks From to the preceding To. The
// receiver is left untouched, changed tells whether anything was rewritten.
func (h History) Repair() (repaired History, changed bool) {
	repaired = h.Clone()
	sort.SliceStable(repaired, func(i, j int) bool {
		return repaired[i].Date.Before(repaired[j].Date)
	})
	for i := range repaired {
		if repaired[i] != h[i] {
			changed = true
		}
	}
	for i := 1; i < len(repaired); i++ {
		if repaired[i].From != repaired[i-1].To {
			repaired[i].From = repaired[i-1].To
			changed = true
		}
	}
	return repaired, changed
}

func (h History) Value() (driver.Value, error) {
	if h == nil {
		h = History{}
	}
	jsonBytes, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (h *History) Scan(v interface{}) error {
	if v == nil {
		*h = History{}
		return nil
	}
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	if jsonString == "" {
		*h = History{}
		return nil
	}
	return json.Unmarshal([]byte(jsonString), h)
}
