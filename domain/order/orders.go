package order

import (
	"errors"
	"fmt"
	"leica/authority"
	"leica/bizerror"
	"leica/common"
	"leica/domain"
	"leica/domain/flow"
	"leica/domain/fulfillment"
	"leica/domain/state"
	"leica/event"
	"leica/persistence"
	"leica/session"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

var (
	// Fulfillment is replaced at startup with the configured graphs and clock.
	Fulfillment = fulfillment.NewService(flow.New(flow.DefaultSettings()), common.RealClock{})

	CreateOrderFunc = CreateOrder
	DetailOrderFunc = DetailOrder
	QueryOrdersFunc = QueryOrders

	validate = validator.New()
)

type OrderQuery struct {
	CustomerID types.ID `form:"customerId"`
	State      string   `form:"state"`
	Project    string   `form:"project"`
}

// CreateOrder stores a new order in the initial state. Customers create
// orders for their own customer record only.
func CreateOrder(c *domain.OrderCreation, s *session.Session) (*domain.Order, error) {
	if err := validate.Struct(c); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	if !s.Roles.HasAny(authority.RoleCustomer, authority.RoleProjectManager, authority.RoleBriefy, authority.RoleSystem) {
		return nil, bizerror.ErrForbidden
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Ctx())
	var o *domain.Order
	var ev *event.EventRecord
	err := db.Transaction(func(tx *gorm.DB) error {
		customer := domain.Customer{}
		if err := tx.Where("id = ?", c.CustomerID).First(&customer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &bizerror.ErrBadParam{Cause: fmt.Errorf("customer %d not found", c.CustomerID)}
			}
			return err
		}
		if !isInternal(s) && customer.CustomerUserID != s.Identity.ID {
			return bizerror.ErrForbidden
		}

		now := Fulfillment.Clock.Now()
		o = &domain.Order{
			ID:             common.NewID(),
			Title:          c.Title,
			CustomerID:     customer.ID,
			CustomerUserID: customer.CustomerUserID,
			Project:        c.Project,
			Requirements:   c.Requirements,
			Location:       c.Location,
			Availability:   c.Availability.Clone(),
			CreateTime:     now,
			Stateful:       domain.Stateful{State: Fulfillment.Workflows.Order.Initial, StateHistory: state.History{}},
		}
		if o.Availability == nil {
			o.Availability = domain.Availability{}
		}
		if err := persistence.SaveVersioned(tx, o); err != nil {
			return err
		}

		var err error
		ev, err = event.CreateEvent(domain.KindOrder, o.ID, o.Title, event.EventCategoryCreated,
			event.StateChange{ToState: o.State}, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return o, nil
}

// DetailOrder loads the order with its assignments, oldest first.
func DetailOrder(id types.ID, s *session.Session) (*domain.Order, error) {
	o, err := LoadOrder(persistence.ActiveDataSourceManager.GormDB(s.Ctx()), id)
	if err != nil {
		return nil, err
	}
	if !CanView(o, s) {
		return nil, bizerror.ErrForbidden
	}
	return o, nil
}

func QueryOrders(query *OrderQuery, s *session.Session) ([]domain.Order, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Ctx())
	q := db.Model(&domain.Order{})
	if query.CustomerID != 0 {
		q = q.Where("customer_id = ?", query.CustomerID)
	}
	if query.State != "" {
		if _, found := Fulfillment.Workflows.Order.FindState(query.State); !found {
			return nil, bizerror.ErrUnknownState
		}
		q = q.Where("state = ?", query.State)
	}
	if query.Project != "" {
		q = q.Where("project = ?", query.Project)
	}

	switch {
	case isInternal(s):
	case s.Roles.Has(authority.RoleCustomer):
		q = q.Where("customer_user_id = ?", s.Identity.ID)
	case s.Roles.Has(authority.RoleProfessional):
		q = q.Where("id IN (?)", db.Table("assignments").Select("order_id").
			Where("professional_user_id = ?", s.Identity.ID).SubQuery())
	default:
		return []domain.Order{}, nil
	}

	orders := []domain.Order{}
	if err := q.Order("create_time DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// LoadOrder reads the whole aggregate.
func LoadOrder(db *gorm.DB, id types.ID) (*domain.Order, error) {
	o := domain.Order{}
	if err := db.Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	assignments := []*domain.Assignment{}
	if err := db.Where("order_id = ?", id).Order("create_time ASC, id ASC").Find(&assignments).Error; err != nil {
		return nil, err
	}
	for _, a := range assignments {
		o.Attach(a)
	}
	return &o, nil
}

// LoadOrders reads up to limit aggregates with an id above afterID, by id.
func LoadOrders(db *gorm.DB, afterID types.ID, limit int) ([]*domain.Order, error) {
	orders := []*domain.Order{}
	if err := db.Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&orders).Error; err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}
	byID := map[types.ID]*domain.Order{}
	ids := make([]types.ID, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	assignments := []*domain.Assignment{}
	if err := db.Where("order_id IN (?)", ids).Order("create_time ASC, id ASC").Find(&assignments).Error; err != nil {
		return nil, err
	}
	for _, a := range assignments {
		if o, found := byID[a.OrderID]; found {
			o.Attach(a)
		}
	}
	return orders, nil
}

// CanView holds for staff, the owning customer and every professional ever
// assigned to the order.
func CanView(o *domain.Order, s *session.Session) bool {
	if isInternal(s) {
		return true
	}
	if s.Identity.ID == "" {
		return false
	}
	if o.CustomerUserID == s.Identity.ID {
		return true
	}
	for _, a := range o.Assignments {
		if a.ProfessionalUserID == s.Identity.ID {
			return true
		}
	}
	return false
}

func isInternal(s *session.Session) bool {
	return s.Roles.Has(authority.RoleSystem) || s.Roles.Intersects(authority.StaffRoles)
}

// resolveActor binds a professional's session to the professional record so
// pool membership can be checked.
func resolveActor(tx *gorm.DB, s *session.Session) (state.Principal, error) {
	if !s.Roles.Has(authority.RoleProfessional) || s.Identity.ID == "" {
		return s, nil
	}
	p := domain.Professional{}
	if err := tx.Where("user_id = ?", s.Identity.ID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s, nil
		}
		return nil, err
	}
	return &flow.ProfessionalActor{Principal: s, Professional: &p}, nil
}

func logFired(outcome *fulfillment.Outcome) {
	for _, f := range outcome.Fired {
		logrus.WithFields(logrus.Fields{"kind": f.Kind, "id": f.ID, "transition": f.Transition,
			"from": f.From, "to": f.To, "actor": f.Actor, "cascaded": f.Cascaded}).Info("transition applied")
	}
}
