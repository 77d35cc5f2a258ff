package search

import (
	"encoding/json"
	"fmt"
	"leica/authority"
	"leica/bizerror"
	"leica/client/es"
	"leica/indices"
	"leica/session"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	SearchOrdersFunc = SearchOrders

	PathOrderSearch = "/v1/order-search"
	MaxResults      = 1000
)

type OrderSearchQuery struct {
	Text        string   `form:"text"`
	States      []string `form:"state"`
	Country     string   `form:"country"`
	Project     string   `form:"project"`
	Transitions []string `form:"lastTransition"`
}

// SearchOrders queries the order index. Customers find their own orders,
// professionals the ones they currently hold.
func SearchOrders(q OrderSearchQuery, s *session.Session) ([]indices.OrderDocument, error) {
	/*
		{
			"query": {"bool": {"filter": [
				{"term": {"customerUserId": "..."}},
				{"terms": {"state": ["received", "assigned"]}},
				{"match": {"title": {"query": "xxx", "operator": "AND"}}}
			]}},
			"size": 1000,
			"sort": [{"createTime": {"order": "desc"}}]
		}
	*/
	filters := make([]es.H, 0, 6)
	switch {
	case s.Roles.Has(authority.RoleSystem) || s.Roles.Intersects(authority.StaffRoles):
	case s.Roles.Has(authority.RoleCustomer):
		filters = append(filters, es.H{"term": es.H{"customerUserId": s.Identity.ID}})
	case s.Roles.Has(authority.RoleProfessional):
		filters = append(filters, es.H{"term": es.H{"professionalUserId": s.Identity.ID}})
	default:
		return []indices.OrderDocument{}, nil
	}

	if q.Text != "" {
		filters = append(filters, es.H{"match": es.H{"title": es.H{"query": q.Text, "operator": "AND"}}})
	}
	if len(q.States) > 0 {
		filters = append(filters, es.H{"terms": es.H{"state": q.States}})
	}
	if len(q.Transitions) > 0 {
		filters = append(filters, es.H{"terms": es.H{"lastTransition": q.Transitions}})
	}
	if q.Country != "" {
		filters = append(filters, es.H{"term": es.H{"country": q.Country}})
	}
	if q.Project != "" {
		filters = append(filters, es.H{"term": es.H{"project": q.Project}})
	}

	body := es.H{
		"size":  MaxResults,
		"query": es.H{"bool": es.H{"filter": filters}},
		"sort":  []es.H{{"createTime": es.H{"order": "desc"}}},
	}
	r, err := es.SearchFunc(s.Ctx(), indices.OrderIndexName, body)
	if err != nil {
		return nil, err
	}
	docs := make([]indices.OrderDocument, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		doc := indices.OrderDocument{}
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, fmt.Errorf("decode order document %s: %w", hit.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func RegisterOrderSearchRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	r.Group(PathOrderSearch, middleWares...).GET("", handleSearchOrders)
}

func handleSearchOrders(c *gin.Context) {
	q := OrderSearchQuery{}
	if err := c.ShouldBindQuery(&q); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	docs, err := SearchOrdersFunc(q, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, docs)
}
