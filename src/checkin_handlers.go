package main

import (
	"net/http"

	"ticketing/src/checkin"
	"ticketing/src/types"
	"ticketing/src/utils"

	"github.com/gin-gonic/gin"
)

// checkinHandlers validates tickets at the door. qrKey opens sealed QR
// payloads; plain codes are accepted as typed.
func checkinHandlers(g *gin.RouterGroup, svc *checkin.Service, qrKey []byte) *gin.RouterGroup {
	g.
		POST("/checkin", func(ctx *gin.Context) {
			var body types.CheckInRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
				return
			}
			result, err := svc.CheckIn(ctx.Request.Context(), checkin.Input{
				Code:     utils.ScannedCode(qrKey, body.Code),
				DeviceID: body.DeviceID,
			})
			if err != nil {
				e, ok := types.AsError(err)
				if ok && e.Kind == types.KindRejected && result != nil {
					ctx.JSON(http.StatusUnprocessableEntity, gin.H{
						"error": e.Message,
						"code":  e.Code,
						"data":  result,
					})
					return
				}
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		})
	return g
}
