package order

import (
	"encoding/json"
	"errors"
	"leica/bizerror"
	"leica/common"
	"leica/domain"
	"leica/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const HeaderIdempotencyKey = "Idempotency-Key"

func RegisterOrdersRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/orders", middleWares...)
	g.GET("", handleQuery)
	g.POST("", handleCreate)
	g.GET(":id", handleDetail)
	g.GET(":id/transitions", handleOrderTransitions)
	g.POST(":id/transitions", handleTransitOrder)

	a := r.Group("/v1/assignments", middleWares...)
	a.GET(":id/transitions", handleAssignmentTransitions)
	a.POST(":id/transitions", handleTransitAssignment)

	m := r.Group("/v1/maintenance", middleWares...)
	m.POST("histories", handleRepairHistories)
}

func handleQuery(c *gin.Context) {
	query := OrderQuery{}
	if err := c.MustBindWith(&query, binding.Query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	orders, err := QueryOrdersFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &common.PagedBody{List: orders, Total: uint64(len(orders))})
}

func handleCreate(c *gin.Context) {
	creation := domain.OrderCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	o, err := CreateOrderFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, o)
}

func handleDetail(c *gin.Context) {
	o, err := DetailOrderFunc(pathID(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, o)
}

func handleOrderTransitions(c *gin.Context) {
	transitions, err := OrderTransitionsFunc(pathID(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, transitions)
}

func handleTransitOrder(c *gin.Context) {
	id := pathID(c)
	result, err := TransitOrderFunc(id, bindTransition(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func handleAssignmentTransitions(c *gin.Context) {
	transitions, err := AssignmentTransitionsFunc(pathID(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, transitions)
}

func handleTransitAssignment(c *gin.Context) {
	id := pathID(c)
	result, err := TransitAssignmentFunc(id, bindTransition(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func handleRepairHistories(c *gin.Context) {
	report, err := RepairHistoriesFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, report)
}

func pathID(c *gin.Context) types.ID {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: errors.New("invalid id '" + c.Param("id") + "'")})
	}
	return id
}

// bindTransition keeps numbers as json.Number, ids do not fit in float64.
func bindTransition(c *gin.Context) *TransitionRequest {
	req := TransitionRequest{}
	decoder := json.NewDecoder(c.Request.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	req.IdempotencyKey = c.GetHeader(HeaderIdempotencyKey)
	return &req
}
