package main

import (
	"errors"
	"log"
	"net/http"

	"ticketing/src/types"

	"github.com/gin-gonic/gin"
)

var kindStatus = map[types.ErrorKind]int{
	types.KindNotFound:     http.StatusNotFound,
	types.KindPrecondition: http.StatusUnprocessableEntity,
	types.KindRejected:     http.StatusUnprocessableEntity,
	types.KindCapacity:     http.StatusConflict,
	types.KindTransient:    http.StatusServiceUnavailable,
	types.KindInvalid:      http.StatusBadRequest,
}

// abortWithError writes err as {"error","code"}. Anything that is not a
// domain error is logged and hidden behind a 500.
func abortWithError(ctx *gin.Context, err error) {
	if e, ok := types.AsError(err); ok {
		status, found := kindStatus[e.Kind]
		if !found {
			status = http.StatusBadRequest
		}
		ctx.AbortWithStatusJSON(status, gin.H{"error": e.Message, "code": e.Code})
		return
	}
	if errors.Is(err, errBadParams) {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
		return
	}
	log.Printf("Error on %s %s: %s\n", ctx.Request.Method, ctx.FullPath(), err.Error())
	ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "something went wrong", "code": "internal"})
}

var errBadParams = errors.New("invalid request parameters")

func bindID(ctx *gin.Context) (uint, bool) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
		return 0, false
	}
	return params.ID, true
}
