package resource

import (
	"encoding/json"
	"errors"
	"io"
	"leica/bizerror"
	"leica/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// RegisterResourcesRestAPI exposes every kind under /v1/<path>.
func RegisterResourcesRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	for _, kind := range Kinds {
		name := kind.Name
		g := r.Group("/v1/"+kind.Path, middleWares...)
		g.POST("", func(c *gin.Context) { handleCreate(c, name) })
		g.GET(":id", func(c *gin.Context) { handleDetail(c, name) })
		g.GET(":id/transitions", func(c *gin.Context) { handleTransitions(c, name) })
		g.POST(":id/transitions", func(c *gin.Context) { handleTransit(c, name) })
	}
}

func handleCreate(c *gin.Context, kind string) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	e, err := CreateResourceFunc(kind, body, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, e)
}

func handleDetail(c *gin.Context, kind string) {
	e, err := DetailResourceFunc(kind, pathID(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, e)
}

func handleTransitions(c *gin.Context, kind string) {
	transitions, err := ResourceTransitionsFunc(kind, pathID(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, transitions)
}

func handleTransit(c *gin.Context, kind string) {
	id := pathID(c)
	req := TransitionRequest{}
	decoder := json.NewDecoder(c.Request.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	req.IdempotencyKey = c.GetHeader(HeaderIdempotencyKey)

	result, err := TransitResourceFunc(kind, id, &req, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func pathID(c *gin.Context) types.ID {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: errors.New("invalid id '" + c.Param("id") + "'")})
	}
	return id
}
