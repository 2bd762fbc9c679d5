package main

import (
	"net/http"

	"ticketing/src/middlewares"
	"ticketing/src/orders"
	"ticketing/src/types"

	"github.com/gin-gonic/gin"
)

func orderHandlers(g *gin.RouterGroup, svc *orders.Service) *gin.RouterGroup {
	g.
		POST("/events/:id/reservations", func(ctx *gin.Context) {
			eventID, ok := bindID(ctx)
			if !ok {
				return
			}
			var body types.CreateReservationRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
				return
			}
			lines := make([]orders.Line, 0, len(body.Items))
			for _, item := range body.Items {
				lines = append(lines, orders.Line{TierID: item.TierID, Quantity: item.Qty})
			}
			order, err := svc.Reserve(ctx.Request.Context(), orders.ReserveInput{
				BuyerID: middlewares.CallerID(ctx),
				EventID: eventID,
				Lines:   lines,
			})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": order})
		}).
		GET("/orders/:id", func(ctx *gin.Context) {
			id, ok := bindID(ctx)
			if !ok {
				return
			}
			order, err := svc.Get(ctx.Request.Context(), id, middlewares.CallerID(ctx))
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		POST("/orders/:id/pay", func(ctx *gin.Context) {
			id, ok := bindID(ctx)
			if !ok {
				return
			}
			var body types.PayOrderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
				return
			}
			receipt, err := svc.Pay(ctx.Request.Context(), orders.PayInput{
				OrderID: id,
				BuyerID: middlewares.CallerID(ctx),
				Method:  types.PaymentMethod(body.Method),
			})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": receipt})
		}).
		PUT("/orders/:id/cancel", func(ctx *gin.Context) {
			id, ok := bindID(ctx)
			if !ok {
				return
			}
			if _, err := svc.Get(ctx.Request.Context(), id, middlewares.CallerID(ctx)); err != nil {
				abortWithError(ctx, err)
				return
			}
			order, err := svc.Cancel(ctx.Request.Context(), id)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		PUT("/orders/:id/revert", func(ctx *gin.Context) {
			id, ok := bindID(ctx)
			if !ok {
				return
			}
			if _, err := svc.Get(ctx.Request.Context(), id, middlewares.CallerID(ctx)); err != nil {
				abortWithError(ctx, err)
				return
			}
			order, err := svc.RevertCancel(ctx.Request.Context(), id)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		PUT("/orders/:id/refund", func(ctx *gin.Context) {
			id, ok := bindID(ctx)
			if !ok {
				return
			}
			order, err := svc.Refund(ctx.Request.Context(), orders.RefundInput{
				OrderID: id,
				BuyerID: middlewares.CallerID(ctx),
			})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		})
	return g
}
