package assetcheck

import (
	"context"
	"leica/client/s3"
	"leica/domain"
	"leica/domain/flow"
	"leica/domain/order"
	"leica/event"
	"leica/persistence"
	"leica/session"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

const MessageIncorrectAssets = "incorrect number of approvable assets"

var CheckSubmissionFunc = CheckSubmission

// CheckSubmission counts the images of an uploaded submission and fires
// validate_assets or invalidate_assets as the system. It returns the fired
// transition, empty when the assignment is no longer waiting for validation.
func CheckSubmission(ctx context.Context, assignmentID types.ID) (string, error) {
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	a := domain.Assignment{}
	if err := db.Where("id = ?", assignmentID).First(&a).Error; err != nil {
		return "", err
	}
	if a.State != flow.AssignmentAssetValidation {
		return "", nil
	}
	o, err := order.LoadOrder(db, a.OrderID)
	if err != nil {
		return "", err
	}

	count, err := s3.CountObjectsFunc(ctx, a.SubmissionPath)
	if err != nil {
		return "", err
	}
	req := &order.TransitionRequest{Transition: "validate_assets"}
	if count < o.Requirements.NumberRequiredAssets {
		req = &order.TransitionRequest{Transition: "invalidate_assets", Message: MessageIncorrectAssets}
	}
	if _, err := order.TransitAssignmentFunc(a.ID, req, session.System(ctx)); err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{"assignment": a.ID, "assets": count,
		"required": o.Requirements.NumberRequiredAssets, "transition": req.Transition}).Info("submission checked")
	return req.Transition, nil
}

// Start consumes upload messages until ctx is done. Every message is acked,
// a failed check is logged and the assignment stays in asset_validation for
// staff to resolve.
func Start(ctx context.Context, sub message.Subscriber) error {
	messages, err := sub.Subscribe(ctx, event.TopicAssignmentUploaded)
	if err != nil {
		return err
	}
	go func() {
		for msg := range messages {
			handle(msg)
			msg.Ack()
		}
	}()
	return nil
}

func handle(msg *message.Message) {
	logger := logrus.WithField("message", msg.UUID)
	record, err := event.DecodeRecord(msg)
	if err != nil {
		logger.WithError(err).Error("undecodable upload message")
		return
	}
	if _, err := CheckSubmissionFunc(msg.Context(), record.SourceId); err != nil {
		logger.WithField("assignment", record.SourceId).WithError(err).Error("submission check failed")
	}
}
