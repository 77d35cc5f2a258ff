package order

import (
	"errors"
	"fmt"
	"leica/bizerror"
	"leica/domain"
	"leica/domain/flow"
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
)

var (
	TransitOrderFunc          = TransitOrder
	TransitAssignmentFunc     = TransitAssignment
	OrderTransitionsFunc      = OrderTransitions
	AssignmentTransitionsFunc = AssignmentTransitions

	// replayed outcomes, keyed by entity kind, id, actor, transition and Idempotency-Key
	idempotencyCache = cache.New(24*time.Hour, 10*time.Minute)
)

type TransitionRequest struct {
	Transition string       `json:"transition" validate:"required"`
	Message    string       `json:"message"`
	Fields     state.Fields `json:"fields"`
	// Version, when set, must equal the stored version of the target entity.
	Version *int `json:"version"`

	IdempotencyKey string `json:"-"`
}

type TransitionResult struct {
	Order *domain.Order       `json:"order"`
	Fired []fulfillment.Fired `json:"fired"`
}

// TransitOrder fires an order transition, cascades included, and stores
// every changed document in one transaction.
func TransitOrder(id types.ID, req *TransitionRequest, s *session.Session) (*TransitionResult, error) {
	return transit(domain.KindOrder, id, req, s)
}

// TransitAssignment fires an assignment transition. Transitions of the
// current assignment that affect the order cascade to it.
func TransitAssignment(id types.ID, req *TransitionRequest, s *session.Session) (*TransitionResult, error) {
	return transit(domain.KindAssignment, id, req, s)
}

func transit(kind string, id types.ID, req *TransitionRequest, s *session.Session) (*TransitionResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	db := persistence.ActiveDataSourceManager.GormDB(s.Ctx())
	key := ""
	if req.IdempotencyKey != "" {
		key = fmt.Sprintf("%s:%d:%s:%s:%s", kind, id, s.Identity.ID, req.Transition, req.IdempotencyKey)
		if cached, found := idempotencyCache.Get(key); found {
			o, err := loadTarget(db, kind, id)
			if err != nil {
				return nil, err
			}
			if !CanView(o, s) {
				return nil, bizerror.ErrForbidden
			}
			return cached.(*TransitionResult), nil
		}
	}

	var result *TransitionResult
	var events []*event.EventRecord
	err := db.Transaction(func(tx *gorm.DB) error {
		o, err := loadTarget(tx, kind, id)
		if err != nil {
			return err
		}
		if err := checkVersion(o, kind, id, req.Version); err != nil {
			return err
		}

		actor, err := resolveActor(tx, s)
		if err != nil {
			return err
		}
		fields, err := prepareFields(tx, kind, req)
		if err != nil {
			return err
		}

		var outcome *fulfillment.Outcome
		if kind == domain.KindOrder {
			outcome, err = Fulfillment.FireOrder(o, actor, req.Transition, fields, req.Message)
		} else {
			outcome, err = Fulfillment.FireAssignment(o, id, actor, req.Transition, fields, req.Message)
		}
		if err != nil {
			return err
		}

		if err := saveOutcome(tx, outcome); err != nil {
			return err
		}
		events, err = recordOutcome(tx, outcome, s)
		if err != nil {
			return err
		}
		result = &TransitionResult{Order: outcome.Order, Fired: outcome.Fired}
		logFired(outcome)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if key != "" {
		idempotencyCache.Set(key, result, cache.DefaultExpiration)
	}
	if event.InvokeHandlersFunc != nil {
		for _, ev := range events {
			event.InvokeHandlersFunc(ev)
		}
	}
	return result, nil
}

// loadTarget loads the order owning the transitioned entity.
func loadTarget(db *gorm.DB, kind string, id types.ID) (*domain.Order, error) {
	orderID := id
	if kind == domain.KindAssignment {
		a := domain.Assignment{}
		if err := db.Select("order_id").Where("id = ?", id).First(&a).Error; err != nil {
			return nil, err
		}
		orderID = a.OrderID
	}
	return LoadOrder(db, orderID)
}

func checkVersion(o *domain.Order, kind string, id types.ID, expected *int) error {
	if expected == nil {
		return nil
	}
	current := o.Version
	if kind == domain.KindAssignment {
		for _, a := range o.Assignments {
			if a.ID == id {
				current = a.Version
			}
		}
	}
	if current != *expected {
		return fmt.Errorf("%s %d is at version %d, not %d: %w", kind, id, current, *expected,
			bizerror.ErrConcurrentModification)
	}
	return nil
}

// prepareFields resolves the assigned professional so the assignment records
// the user id owning it.
func prepareFields(tx *gorm.DB, kind string, req *TransitionRequest) (state.Fields, error) {
	fields := state.Fields{}
	for k, v := range req.Fields {
		fields[k] = v
	}
	if req.Transition != "assign" && req.Transition != "reassign" {
		return fields, nil
	}
	if !fields.Has("professional_id") {
		return fields, nil
	}
	professionalID, err := flow.FieldID(fields, "professional_id")
	if err != nil {
		return nil, &state.TransitionValidationError{Entity: kind, Transition: req.Transition,
			Field: "professional_id", Reason: err.Error()}
	}
	p := domain.Professional{}
	if err := tx.Where("id = ?", professionalID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &state.TransitionValidationError{Entity: kind, Transition: req.Transition,
				Field: "professional_id", Reason: fmt.Sprintf("professional %d not found", professionalID)}
		}
		return nil, err
	}
	if p.State != flow.ProfessionalActive {
		return nil, state.Rejectf(kind, req.Transition, "professional %d is not active", p.ID)
	}
	fields["professional_id"] = p.ID
	fields["professional_user_id"] = p.UserID
	return fields, nil
}

// saveOutcome stores the order when it moved, every assignment that moved and
// every assignment the operation created.
func saveOutcome(tx *gorm.DB, outcome *fulfillment.Outcome) error {
	o := outcome.Order
	for _, f := range outcome.Fired {
		if f.Kind == domain.KindOrder {
			if err := persistence.SaveVersioned(tx, o); err != nil {
				return err
			}
			break
		}
	}
	for _, a := range o.Assignments {
		if a.Version == 0 || outcome.Touched(a.ID) {
			if err := persistence.SaveVersioned(tx, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func recordOutcome(tx *gorm.DB, outcome *fulfillment.Outcome, s *session.Session) ([]*event.EventRecord, error) {
	now := Fulfillment.Clock.Now()
	records := make([]*event.EventRecord, 0, len(outcome.Fired))
	for _, f := range outcome.Fired {
		desc := outcome.Order.Title
		identity := &session.Identity{ID: f.Actor, Name: s.Identity.Name, Nickname: s.Identity.Nickname}
		ev, err := event.CreateEvent(f.Kind, f.ID, desc, event.EventCategoryStateTransition,
			event.StateChange{Transition: f.Transition, FromState: f.From, ToState: f.To, Message: f.Message,
				Cascaded: f.Cascaded}, identity, now, tx)
		if err != nil {
			return nil, err
		}
		records = append(records, ev)
	}
	return records, nil
}

// OrderTransitions lists the transitions s may run on the order now.
func OrderTransitions(id types.ID, s *session.Session) ([]state.Transition, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Ctx())
	o, err := LoadOrder(db, id)
	if err != nil {
		return nil, err
	}
	if !CanView(o, s) {
		return nil, bizerror.ErrForbidden
	}
	actor, err := resolveActor(db, s)
	if err != nil {
		return nil, err
	}
	return sortTransitions(Fulfillment.OrderTransitions(o, actor)), nil
}

func AssignmentTransitions(id types.ID, s *session.Session) ([]state.Transition, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Ctx())
	a := domain.Assignment{}
	if err := db.Select("order_id").Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	o, err := LoadOrder(db, a.OrderID)
	if err != nil {
		return nil, err
	}
	if !CanView(o, s) {
		return nil, bizerror.ErrForbidden
	}
	actor, err := resolveActor(db, s)
	if err != nil {
		return nil, err
	}
	for _, candidate := range o.Assignments {
		if candidate.ID == id {
			return sortTransitions(Fulfillment.AssignmentTransitions(o, candidate, actor)), nil
		}
	}
	return nil, bizerror.ErrNotFound
}

func sortTransitions(m map[string]state.Transition) []state.Transition {
	r := make([]state.Transition, 0, len(m))
	for _, t := range m {
		r = append(r, t)
	}
	sort.Slice(r, func(i, j int) bool {
		return r[i].Name < r[j].Name
	})
	return r
}
