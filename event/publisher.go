package event

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"
)

const (
	// TopicEvents carries every committed event record.
	TopicEvents = "leica.events"
	// TopicAssignmentUploaded carries the upload transitions of assignments only.
	TopicAssignmentUploaded = "assignment.uploaded"

	MetadataSourceType = "source_type"
	MetadataTransition = "transition"
)

// NewBus returns the in-process pub/sub shared by publishers and consumers.
func NewBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, NewLogrusAdapter(logrus.StandardLogger()))
}

// Topics lists where record is published.
func Topics(record *EventRecord) []string {
	topics := []string{TopicEvents}
	if record.EventCategory == EventCategoryStateTransition && record.SourceType == "assignment" &&
		record.Transition == "upload" {
		topics = append(topics, TopicAssignmentUploaded)
	}
	return topics
}

// PublishingHandler forwards records to pub. It runs after commit, a failed
// publish is reported and never undoes the transition.
func PublishingHandler(pub message.Publisher) EventHandler {
	return func(record *EventRecord) *EventHandleResult {
		payload, err := json.Marshal(record)
		if err != nil {
			return &EventHandleResult{HandlerIdentifier: "watermill-publisher", Message: err.Error()}
		}
		for _, topic := range Topics(record) {
			msg := message.NewMessage(watermill.NewUUID(), payload)
			msg.Metadata.Set(MetadataSourceType, record.SourceType)
			msg.Metadata.Set(MetadataTransition, record.Transition)
			if err := pub.Publish(topic, msg); err != nil {
				return &EventHandleResult{HandlerIdentifier: "watermill-publisher", Message: err.Error()}
			}
		}
		return &EventHandleResult{Success: true, HandlerIdentifier: "watermill-publisher",
			Message: "published event " + record.ID.String()}
	}
}

// DecodeRecord reads the payload written by PublishingHandler.
func DecodeRecord(msg *message.Message) (*EventRecord, error) {
	record := &EventRecord{}
	if err := json.Unmarshal(msg.Payload, record); err != nil {
		return nil, err
	}
	return record, nil
}

type logrusAdapter struct {
	entry *logrus.Entry
}

// NewLogrusAdapter routes watermill logs through logrus.
func NewLogrusAdapter(logger *logrus.Logger) watermill.LoggerAdapter {
	return &logrusAdapter{entry: logrus.NewEntry(logger).WithField("component", "watermill")}
}

func (l *logrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).WithError(err).Error(msg)
}

func (l *logrusAdapter) Info(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *logrusAdapter) Debug(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l *logrusAdapter) Trace(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Trace(msg)
}

func (l *logrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &logrusAdapter{entry: l.entry.WithFields(logrus.Fields(fields))}
}
