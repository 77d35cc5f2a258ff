package event

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// EventHandler reacts to a committed event record. A handler returns nil for
// records it does not care about.
type EventHandler func(e *EventRecord) *EventHandleResult

type EventHandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

var EventHandlers []EventHandler

// InvokeHandlersFunc runs after the transaction that recorded the event has
// committed. Handler failures never reach the caller of the transition.
var InvokeHandlersFunc = invokeHandlers

func invokeHandlers(record *EventRecord) []EventHandleResult {
	entry := logrus.WithFields(logrus.Fields{
		"kind":       record.SourceType,
		"id":         record.SourceId,
		"category":   record.EventCategory,
		"transition": record.Transition,
	})

	results := []EventHandleResult{}
	for i, handler := range EventHandlers {
		r := runHandler(i, handler, record)
		if r == nil {
			continue
		}
		results = append(results, *r)

		handlerEntry := entry.WithField("handler", r.HandlerIdentifier)
		if r.Success {
			handlerEntry.Info("event handled: ", r.Message)
		} else {
			handlerEntry.Error("event handling failed: ", r.Message)
		}
	}
	return results
}

// runHandler turns a panicking handler into a failed result so the remaining
// handlers still see the record.
func runHandler(index int, handler EventHandler, record *EventRecord) (r *EventHandleResult) {
	defer func() {
		if p := recover(); p != nil {
			r = &EventHandleResult{HandlerIdentifier: fmt.Sprintf("handler-%d", index), Message: fmt.Sprint(p)}
		}
	}()
	return handler(record)
}
