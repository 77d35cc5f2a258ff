package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"leica/authority"
	"leica/bizerror"
	"leica/common"
	"leica/domain"
	"leica/domain/flow"
	"leica/domain/state"
	"leica/event"
	"leica/persistence"
	"leica/session"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	// Workflows and Clock are replaced at startup with the configured ones.
	Workflows              = flow.New(flow.DefaultSettings())
	Clock     common.Clock = common.RealClock{}

	CreateResourceFunc      = CreateResource
	DetailResourceFunc      = DetailResource
	TransitResourceFunc     = TransitResource
	ResourceTransitionsFunc = ResourceTransitions
)

// Entity is a stand-alone document under workflow control.
type Entity interface {
	state.Document
	persistence.Versioned
	EntityID() types.ID
	Reset(initial string)
}

// Kind describes how one resource kind is created and exposed.
type Kind struct {
	Name string
	Path string

	new func() Entity
	// create checks the creator and fills ids, owners and links
	create func(tx *gorm.DB, e Entity, s *session.Session, id types.ID, now time.Time) error
	// public kinds are readable by every authenticated user
	public bool
}

var Kinds = []Kind{
	{Name: domain.KindProfessional, Path: "professionals", new: func() Entity { return &domain.Professional{} },
		create: createProfessional},
	{Name: domain.KindAsset, Path: "assets", new: func() Entity { return &domain.Asset{} }, create: createAsset},
	{Name: domain.KindPool, Path: "pools", new: func() Entity { return &domain.Pool{} }, create: createPool, public: true},
	{Name: domain.KindCustomer, Path: "customers", new: func() Entity { return &domain.Customer{} }, create: createCustomer},
	{Name: domain.KindWorkingLocation, Path: "working-locations", new: func() Entity { return &domain.WorkingLocation{} },
		create: createWorkingLocation},
	{Name: domain.KindLink, Path: "links", new: func() Entity { return &domain.Link{} }, create: createLink},
}

func FindKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if k.Name == name {
			return k, nil
		}
	}
	return Kind{}, bizerror.ErrUnknownKind
}

func machineOf(kind string) (*state.StateMachine, error) {
	machine, found := Workflows.ByKind(kind)
	if !found || kind == domain.KindOrder || kind == domain.KindAssignment {
		return nil, bizerror.ErrUnknownKind
	}
	return machine, nil
}

// CreateResource decodes body as a new entity of kind and stores it in the
// initial state.
func CreateResource(kindName string, body []byte, s *session.Session) (Entity, error) {
	kind, err := FindKind(kindName)
	if err != nil {
		return nil, err
	}
	machine, err := machineOf(kindName)
	if err != nil {
		return nil, err
	}
	e := kind.new()
	if err := json.Unmarshal(body, e); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Ctx())
	var ev *event.EventRecord
	err = db.Transaction(func(tx *gorm.DB) error {
		now := Clock.Now()
		if err := kind.create(tx, e, s, common.NewID(), now); err != nil {
			return err
		}
		e.Reset(machine.Initial)
		if err := persistence.SaveVersioned(tx, e); err != nil {
			return err
		}
		var err error
		ev, err = event.CreateEvent(kind.Name, e.EntityID(), kind.Name, event.EventCategoryCreated,
			event.StateChange{ToState: e.CurrentState()}, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return e, nil
}

func DetailResource(kindName string, id types.ID, s *session.Session) (Entity, error) {
	kind, err := FindKind(kindName)
	if err != nil {
		return nil, err
	}
	e, err := load(persistence.ActiveDataSourceManager.GormDB(s.Ctx()), kind, id)
	if err != nil {
		return nil, err
	}
	if !kind.public && !canView(e, s) {
		return nil, bizerror.ErrForbidden
	}
	return e, nil
}

func load(db *gorm.DB, kind Kind, id types.ID) (Entity, error) {
	e := kind.new()
	if err := db.Where("id = ?", id).First(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

func canView(e Entity, s *session.Session) bool {
	if isInternal(s) {
		return true
	}
	owned, ok := e.(state.Owned)
	if !ok || s.Identity.ID == "" {
		return false
	}
	for _, id := range owned.OwnerIDs() {
		if id == s.Identity.ID {
			return true
		}
	}
	return false
}

func isInternal(s *session.Session) bool {
	return s.Roles.Has(authority.RoleSystem) || s.Roles.Intersects(authority.StaffRoles)
}

func createProfessional(tx *gorm.DB, e Entity, s *session.Session, id types.ID, now time.Time) error {
	p := e.(*domain.Professional)
	if !isInternal(s) {
		if !s.Roles.Has(authority.RoleProfessional) || s.Identity.ID == "" {
			return bizerror.ErrForbidden
		}
		p.UserID = s.Identity.ID
		p.Pools = domain.IDList{}
	}
	if p.UserID == "" {
		return &bizerror.ErrBadParam{Cause: errors.New("userId is required")}
	}
	if p.Pools == nil {
		p.Pools = domain.IDList{}
	}
	p.ID, p.CreateTime = id, now
	return nil
}

func createAsset(tx *gorm.DB, e Entity, s *session.Session, id types.ID, now time.Time) error {
	if !s.Roles.HasAny(authority.RoleSystem, authority.RoleQA, authority.RoleProjectManager) {
		return bizerror.ErrForbidden
	}
	a := e.(*domain.Asset)
	if err := exists(tx, &domain.Assignment{}, a.AssignmentID, "assignment"); err != nil {
		return err
	}
	a.ID, a.CreateTime = id, now
	return nil
}

func createPool(tx *gorm.DB, e Entity, s *session.Session, id types.ID, now time.Time) error {
	if !s.Roles.HasAny(authority.RoleSystem, authority.RoleProjectManager, authority.RoleScout) {
		return bizerror.ErrForbidden
	}
	p := e.(*domain.Pool)
	if p.Title == "" {
		return &bizerror.ErrBadParam{Cause: errors.New("title is required")}
	}
	p.ID, p.CreateTime = id, now
	return nil
}

func createCustomer(tx *gorm.DB, e Entity, s *session.Session, id types.ID, now time.Time) error {
	if !s.Roles.HasAny(authority.RoleSystem, authority.RoleProjectManager, authority.RoleBriefy) {
		return bizerror.ErrForbidden
	}
	c := e.(*domain.Customer)
	if c.Title == "" {
		return &bizerror.ErrBadParam{Cause: errors.New("title is required")}
	}
	c.ID, c.CreateTime = id, now
	return nil
}

func createWorkingLocation(tx *gorm.DB, e Entity, s *session.Session, id types.ID, now time.Time) error {
	l := e.(*domain.WorkingLocation)
	userID, err := professionalOwner(tx, l.ProfessionalID, s)
	if err != nil {
		return err
	}
	l.ID, l.CreateTime, l.ProfessionalUserID = id, now, userID
	return nil
}

func createLink(tx *gorm.DB, e Entity, s *session.Session, id types.ID, now time.Time) error {
	l := e.(*domain.Link)
	userID, err := professionalOwner(tx, l.ProfessionalID, s)
	if err != nil {
		return err
	}
	l.ID, l.CreateTime, l.ProfessionalUserID = id, now, userID
	return nil
}

// professionalOwner returns the user owning the professional record. Only
// staff attach records to somebody else's profile.
func professionalOwner(tx *gorm.DB, professionalID types.ID, s *session.Session) (string, error) {
	p := domain.Professional{}
	if err := tx.Where("id = ?", professionalID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", &bizerror.ErrBadParam{Cause: fmt.Errorf("professional %d not found", professionalID)}
		}
		return "", err
	}
	if !isInternal(s) && p.UserID != s.Identity.ID {
		return "", bizerror.ErrForbidden
	}
	return p.UserID, nil
}

func exists(tx *gorm.DB, model interface{}, id types.ID, name string) error {
	count := 0
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return &bizerror.ErrBadParam{Cause: fmt.Errorf("%s %d not found", name, id)}
	}
	return nil
}
