package resource

import (
	"fmt"
	"leica/bizerror"
	"leica/domain/fulfillment"
	"leica/domain/state"
	"leica/event"
	"leica/persistence"
	"leica/session"
	"sort"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

var idempotencyCache = cache.New(24*time.Hour, 10*time.Minute)

type TransitionRequest struct {
	Transition string       `json:"transition"`
	Message    string       `json:"message"`
	Fields     state.Fields `json:"fields"`
	Version    *int         `json:"version"`

	IdempotencyKey string `json:"-"`
}

type TransitionResult struct {
	Entity Entity            `json:"entity"`
	Fired  fulfillment.Fired `json:"fired"`
}

// TransitResource fires one transition on a stand-alone entity. Nothing
// cascades from these graphs.
func TransitResource(kindName string, id types.ID, req *TransitionRequest, s *session.Session) (*TransitionResult, error) {
	kind, err := FindKind(kindName)
	if err != nil {
		return nil, err
	}
	machine, err := machineOf(kindName)
	if err != nil {
		return nil, err
	}
	if req.Transition == "" {
		return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("transition is required")}
	}
	key := ""
	if req.IdempotencyKey != "" {
		key = fmt.Sprintf("%s:%d:%s:%s:%s", kindName, id, s.Identity.ID, req.Transition, req.IdempotencyKey)
		if cached, found := idempotencyCache.Get(key); found {
			if _, err := DetailResource(kindName, id, s); err != nil {
				return nil, err
			}
			return cached.(*TransitionResult), nil
		}
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Ctx())
	var result *TransitionResult
	var ev *event.EventRecord
	err = db.Transaction(func(tx *gorm.DB) error {
		e, err := load(tx, kind, id)
		if err != nil {
			return err
		}
		if req.Version != nil && e.GetVersion() != *req.Version {
			return fmt.Errorf("%s %d is at version %d, not %d: %w", kindName, id, e.GetVersion(), *req.Version,
				bizerror.ErrConcurrentModification)
		}

		from := e.CurrentState()
		now := Clock.Now()
		if err := machine.Bind(e, s).WithClock(func() time.Time { return now }).
			Fire(req.Transition, req.Fields, req.Message); err != nil {
			return err
		}
		if err := persistence.SaveVersioned(tx, e); err != nil {
			return err
		}

		fired := fulfillment.Fired{Kind: kindName, ID: id, Transition: req.Transition, From: from,
			To: e.CurrentState(), Actor: s.Identity.ID, Message: req.Message}
		ev, err = event.CreateEvent(kindName, id, kindName, event.EventCategoryStateTransition,
			event.StateChange{Transition: fired.Transition, FromState: fired.From, ToState: fired.To, Message: fired.Message},
			&s.Identity, now, tx)
		if err != nil {
			return err
		}
		result = &TransitionResult{Entity: e, Fired: fired}
		logrus.WithFields(logrus.Fields{"kind": kindName, "id": id, "transition": fired.Transition,
			"from": fired.From, "to": fired.To, "actor": fired.Actor}).Info("transition applied")
		return nil
	})
	if err != nil {
		return nil, err
	}

	if key != "" {
		idempotencyCache.Set(key, result, cache.DefaultExpiration)
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return result, nil
}

func ResourceTransitions(kindName string, id types.ID, s *session.Session) ([]state.Transition, error) {
	machine, err := machineOf(kindName)
	if err != nil {
		return nil, err
	}
	e, err := DetailResource(kindName, id, s)
	if err != nil {
		return nil, err
	}
	available := machine.Bind(e, s).WithClock(Clock.Now).Transitions()
	r := make([]state.Transition, 0, len(available))
	for _, t := range available {
		r = append(r, t)
	}
	sort.Slice(r, func(i, j int) bool {
		return r[i].Name < r[j].Name
	})
	return r, nil
}
