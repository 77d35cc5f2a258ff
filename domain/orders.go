package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
)

type Order struct {
	ID             types.ID `json:"id"`
	Title          string   `json:"title"`
	CustomerID     types.ID `json:"customerId"`
	CustomerUserID string   `json:"customerUserId"`
	Project        string   `json:"project"`

	Requirements      Requirements `json:"requirements" gorm:"embedded;embedded_prefix:requirements_"`
	Location          Location     `json:"location" gorm:"embedded;embedded_prefix:location_"`
	Availability      Availability `json:"availability" sql:"type:TEXT"`
	ScheduledDatetime *time.Time   `json:"scheduledDatetime"`
	Delivery          Delivery     `json:"delivery" gorm:"embedded;embedded_prefix:delivery_"`
	DeliveredAt       *time.Time   `json:"deliveredAt"`
	CreateTime        time.Time    `json:"createTime"`

	Stateful

	// Assignments is loaded separately, oldest first. The last one is current.
	Assignments []*Assignment `json:"assignments,omitempty" gorm:"-"`
}

type Requirements struct {
	NumberRequiredAssets int    `json:"numberRequiredAssets"`
	Description          string `json:"description"`
}

type Location struct {
	Address string  `json:"address"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type Delivery struct {
	Archive string `json:"archive"`
	Gdrive  string `json:"gdrive"`
}

func (o *Order) OwnerIDs() []string {
	return []string{o.CustomerUserID}
}

// CurrentAssignment is the most recently created assignment, nil before submit.
func (o *Order) CurrentAssignment() *Assignment {
	if len(o.Assignments) == 0 {
		return nil
	}
	return o.Assignments[len(o.Assignments)-1]
}

// HasSubmission reports whether any assignment of the order uploaded content.
func (o *Order) HasSubmission() bool {
	for _, a := range o.Assignments {
		if a.HasSubmission() {
			return true
		}
	}
	return false
}

// Attach links a new assignment to o as its current one.
func (o *Order) Attach(a *Assignment) {
	a.OrderID = o.ID
	a.Order = o
	o.Assignments = append(o.Assignments, a)
}

type OrderCreation struct {
	Title          string       `json:"title" validate:"required"`
	CustomerID     types.ID     `json:"customerId" validate:"required"`
	CustomerUserID string       `json:"customerUserId"`
	Project        string       `json:"project"`
	Requirements   Requirements `json:"requirements"`
	Location       Location     `json:"location"`
	Availability   Availability `json:"availability"`
}

type Assignment struct {
	ID                 types.ID `json:"id"`
	OrderID            types.ID `json:"orderId"`
	ProfessionalID     types.ID `json:"professionalId"`
	ProfessionalUserID string   `json:"professionalUserId"`
	PoolID             types.ID `json:"poolId"`

	Payout                       Money      `json:"payout" gorm:"embedded;embedded_prefix:payout_"`
	TravelExpenses               int64      `json:"travelExpenses"`
	AdditionalCompensation       int64      `json:"additionalCompensation"`
	ReasonAdditionalCompensation string     `json:"reasonAdditionalCompensation"`
	ScheduledDatetime            *time.Time `json:"scheduledDatetime"`
	SubmissionPath               string     `json:"submissionPath"`
	QAManager                    string     `json:"qaManager"`
	CustomerMessage              string     `json:"customerMessage"`
	CreateTime                   time.Time  `json:"createTime"`

	Stateful

	Order *Order `json:"-" gorm:"-"`
}

// Money amounts are in cents.
type Money struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

func (a *Assignment) OwnerIDs() []string {
	return []string{a.ProfessionalUserID}
}

func (a *Assignment) HasSubmission() bool {
	return a.SubmissionPath != ""
}

// Availability lists the time slots proposed by the customer.
type Availability []time.Time

func (t Availability) Value() (driver.Value, error) {
	if t == nil {
		t = Availability{}
	}
	jsonBytes, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *Availability) Scan(v interface{}) error {
	if v == nil {
		*c = Availability{}
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
		*c = Availability{}
		return nil
	}
	return json.Unmarshal([]byte(jsonString), c)
}

func (t Availability) Clone() Availability {
	if t == nil {
		return nil
	}
	r := make(Availability, len(t))
	copy(r, t)
	return r
}
