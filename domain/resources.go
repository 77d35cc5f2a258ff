package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
)

type Professional struct {
	ID         types.ID  `json:"id"`
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	Pools      IDList    `json:"pools" sql:"type:TEXT"`
	CreateTime time.Time `json:"createTime"`

	Stateful
}

func (p *Professional) OwnerIDs() []string {
	return []string{p.UserID}
}

func (p *Professional) InPool(id types.ID) bool {
	for _, pool := range p.Pools {
		if pool == id {
			return true
		}
	}
	return false
}

type Asset struct {
	ID           types.ID  `json:"id"`
	AssignmentID types.ID  `json:"assignmentId"`
	SourcePath   string    `json:"sourcePath"`
	Title        string    `json:"title"`
	CreateTime   time.Time `json:"createTime"`

	Stateful
}

type Pool struct {
	ID         types.ID  `json:"id"`
	Title      string    `json:"title"`
	Country    string    `json:"country"`
	CreateTime time.Time `json:"createTime"`

	Stateful
}

type Customer struct {
	ID             types.ID  `json:"id"`
	Title          string    `json:"title"`
	CustomerUserID string    `json:"customerUserId"`
	CreateTime     time.Time `json:"createTime"`

	Stateful
}

func (c *Customer) OwnerIDs() []string {
	return []string{c.CustomerUserID}
}

type WorkingLocation struct {
	ID                 types.ID  `json:"id"`
	ProfessionalID     types.ID  `json:"professionalId"`
	ProfessionalUserID string    `json:"professionalUserId"`
	Address            string    `json:"address"`
	Radius             int       `json:"radius"`
	CreateTime         time.Time `json:"createTime"`

	Stateful
}

func (l *WorkingLocation) OwnerIDs() []string {
	return []string{l.ProfessionalUserID}
}

type Link struct {
	ID                 types.ID  `json:"id"`
	ProfessionalID     types.ID  `json:"professionalId"`
	ProfessionalUserID string    `json:"professionalUserId"`
	URL                string    `json:"url"`
	CreateTime         time.Time `json:"createTime"`

	Stateful
}

func (l *Link) OwnerIDs() []string {
	return []string{l.ProfessionalUserID}
}

type IDList []types.ID

func (t IDList) Value() (driver.Value, error) {
	if t == nil {
		t = IDList{}
	}
	jsonBytes, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *IDList) Scan(v interface{}) error {
	if v == nil {
		*c = IDList{}
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
		*c = IDList{}
		return nil
	}
	return json.Unmarshal([]byte(jsonString), c)
}

func (p *Professional) EntityID() types.ID    { return p.ID }
func (a *Asset) EntityID() types.ID           { return a.ID }
func (p *Pool) EntityID() types.ID            { return p.ID }
func (c *Customer) EntityID() types.ID        { return c.ID }
func (l *WorkingLocation) EntityID() types.ID { return l.ID }
func (l *Link) EntityID() types.ID            { return l.ID }
