package event

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

const (
	EventCategoryCreated         = "CREATED"
	EventCategoryStateTransition = "STATE_TRANSITION"
)

type EventCategory string

type Event struct {
	SourceId   types.ID `json:"sourceId"`
	SourceType string   `json:"sourceType"`
	SourceDesc string   `json:"sourceDesc"`

	CreatorId   string `json:"creatorId"`
	CreatorName string `json:"creatorName"`

	EventCategory EventCategory `json:"eventCategory"` // CREATED, STATE_TRANSITION

	StateChange
}

// StateChange is empty for CREATED events.
type StateChange struct {
	Transition string `json:"transition"`
	FromState  string `json:"fromState"`
	ToState    string `json:"toState"`
	Message    string `json:"message" sql:"type:TEXT"`
	Cascaded   bool   `json:"cascaded"`
}

type EventRecord struct {
	ID types.ID `json:"id" gorm:"primary_key"`
	Event

	Timestamp time.Time `json:"timestamp" sql:"type:DATETIME(6)"`
	Synced    bool      `json:"synced"`
}

func (r *EventRecord) TableName() string {
	return "events"
}
