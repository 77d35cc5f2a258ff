package jobs

import (
	"context"
	"fmt"
	"leica/domain"
	"leica/domain/flow"
	"leica/domain/order"
	"leica/persistence"
	"leica/session"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	ReadyForUploadFunc = ReadyForUpload
	AutoAcceptFunc     = AutoAccept

	BatchSize = 100
)

// Report counts the documents a job run looked at.
type Report struct {
	Job    string
	Fired  int
	Failed int
}

// ReadyForUpload opens the upload of every scheduled assignment whose shoot time has passed.
func ReadyForUpload(ctx context.Context) (*Report, error) {
	now := order.Fulfillment.Clock.Now()
	db := persistence.ActiveDataSourceManager.GormDB(ctx)

	report := &Report{Job: "ready_for_upload"}
	var lastID types.ID
	for {
		assignments := []domain.Assignment{}
		err := db.Select("id").Where("state = ? AND scheduled_datetime <= ? AND id > ?",
			flow.AssignmentScheduled, now, lastID).Order("id ASC").Limit(BatchSize).Find(&assignments).Error
		if err != nil {
			return report, fmt.Errorf("ready_for_upload: load assignments: %w", err)
		}
		for _, a := range assignments {
			fire(ctx, report, domain.KindAssignment, a.ID, order.TransitAssignmentFunc)
			lastID = a.ID
		}
		if len(assignments) < BatchSize {
			return report, nil
		}
	}
}

// AutoAccept accepts the orders delivered more than acceptDays ago.
func AutoAccept(ctx context.Context, acceptDays int) (*Report, error) {
	deadline := order.Fulfillment.Clock.Now().Add(-time.Duration(acceptDays) * 24 * time.Hour)
	db := persistence.ActiveDataSourceManager.GormDB(ctx)

	report := &Report{Job: "accept"}
	var lastID types.ID
	for {
		orders := []domain.Order{}
		err := db.Select("id").Where("state = ? AND delivered_at <= ? AND id > ?",
			flow.OrderDelivered, deadline, lastID).Order("id ASC").Limit(BatchSize).Find(&orders).Error
		if err != nil {
			return report, fmt.Errorf("accept: load orders: %w", err)
		}
		for _, o := range orders {
			fire(ctx, report, domain.KindOrder, o.ID, order.TransitOrderFunc)
			lastID = o.ID
		}
		if len(orders) < BatchSize {
			return report, nil
		}
	}
}

type transitFunc func(types.ID, *order.TransitionRequest, *session.Session) (*order.TransitionResult, error)

// fire runs one ordinary transition as the system actor. A failure is logged
// and the job moves on to the next document.
func fire(ctx context.Context, report *Report, kind string, id types.ID, transit transitFunc) {
	logger := logrus.WithFields(logrus.Fields{"job": report.Job, "kind": kind, "id": id})
	_, err := transit(id, &order.TransitionRequest{Transition: report.Job}, session.System(ctx))
	if err != nil {
		report.Failed++
		logger.WithError(err).Warn("scheduled transition failed")
		return
	}
	report.Fired++
	logger.Info("scheduled transition fired")
}
