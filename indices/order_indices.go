package indices

import (
	"context"
	"fmt"
	"leica/client/es"
	"leica/domain"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	OrderIndexName = "orders"

	IndexOrdersFunc = IndexOrders
)

// OrderDocument flattens an order and its current assignment for reporting.
type OrderDocument struct {
	ID             types.ID   `json:"id"`
	Title          string     `json:"title"`
	Project        string     `json:"project"`
	CustomerID     types.ID   `json:"customerId"`
	CustomerUserID string     `json:"customerUserId"`
	State          string     `json:"state"`
	Country        string     `json:"country"`
	RequiredAssets int        `json:"requiredAssets"`
	Scheduled      *time.Time `json:"scheduledDatetime,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	CreateTime     time.Time  `json:"createTime"`
	Version        int        `json:"version"`

	LastTransition     string     `json:"lastTransition,omitempty"`
	LastTransitionTime *time.Time `json:"lastTransitionTime,omitempty"`

	Assignments        int      `json:"assignments"`
	AssignmentID       types.ID `json:"assignmentId,omitempty"`
	AssignmentState    string   `json:"assignmentState,omitempty"`
	ProfessionalID     types.ID `json:"professionalId,omitempty"`
	ProfessionalUserID string   `json:"professionalUserId,omitempty"`
	PayoutValue        int64    `json:"payoutValue,omitempty"`
	PayoutCurrency     string   `json:"payoutCurrency,omitempty"`
}

func NewOrderDocument(o *domain.Order) OrderDocument {
	doc := OrderDocument{
		ID:             o.ID,
		Title:          o.Title,
		Project:        o.Project,
		CustomerID:     o.CustomerID,
		CustomerUserID: o.CustomerUserID,
		State:          o.State,
		Country:        o.Location.Country,
		RequiredAssets: o.Requirements.NumberRequiredAssets,
		Scheduled:      o.ScheduledDatetime,
		DeliveredAt:    o.DeliveredAt,
		CreateTime:     o.CreateTime,
		Version:        o.Version,
		Assignments:    len(o.Assignments),
	}
	if last, ok := o.StateHistory.Last(); ok {
		date := last.Date
		doc.LastTransition, doc.LastTransitionTime = last.Transition, &date
	}
	if a := o.CurrentAssignment(); a != nil {
		doc.AssignmentID = a.ID
		doc.AssignmentState = a.State
		doc.ProfessionalID = a.ProfessionalID
		doc.ProfessionalUserID = a.ProfessionalUserID
		doc.PayoutValue = a.Payout.Value
		doc.PayoutCurrency = a.Payout.Currency
	}
	return doc
}

type BatchActionError map[types.ID]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[types.ID]error(e))
}

// IndexOrders writes one document per order, failures are collected per order id.
func IndexOrders(ctx context.Context, orders []*domain.Order) error {
	errs := BatchActionError{}
	for _, o := range orders {
		if err := es.IndexFunc(ctx, OrderIndexName, o.ID.String(), NewOrderDocument(o)); err != nil {
			errs[o.ID] = err
			logrus.WithFields(logrus.Fields{"order": o.ID}).WithError(err).Warn("index order failed")
		} else {
			logrus.WithFields(logrus.Fields{"order": o.ID, "state": o.State}).Debug("order indexed")
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
