package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"ticketing/src/catalog"
	"ticketing/src/middlewares"
	"ticketing/src/models"
	"ticketing/src/models/scopes"
	"ticketing/src/types"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// eventHandlers serves the public catalog reads. Writes go through
// organizerHandlers.
func eventHandlers(g *gin.RouterGroup, gdb *gorm.DB) *gin.RouterGroup {
	g.
		GET("/events", func(ctx *gin.Context) {
			var events []models.Event
			if err := gdb.WithContext(ctx.Request.Context()).
				Scopes(scopes.WithStatus(types.EVENT_PUBLISHED)).
				Order("start_date").
				Find(&events).Error; err != nil {
				log.Printf("Error retrieving Events: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events, "count": len(events)})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			id, ok := bindID(ctx)
			if !ok {
				return
			}
			var event models.Event
			err := gdb.WithContext(ctx.Request.Context()).
				Preload("TicketTypes", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
				First(&event, id).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					err = types.ErrEventNotFound
				}
				abortWithError(ctx, err)
				return
			}
			// drafts are only visible to their organizer
			if event.Status == types.EVENT_DRAFT && event.OrganizerID != middlewares.CallerID(ctx) {
				abortWithError(ctx, types.ErrEventNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		})
	return g
}

func organizerHandlers(g *gin.RouterGroup, svc *catalog.Service) *gin.RouterGroup {
	g.
		POST("/events", func(ctx *gin.Context) {
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
				return
			}
			event, err := svc.CreateEvent(ctx.Request.Context(), catalog.CreateEventInput{
				OrganizerID: middlewares.CallerID(ctx),
				Title:       body.Title,
				Capacity:    body.Capacity,
				StartDate:   body.StartDate,
				EndDate:     body.EndDate,
			})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": event})
		}).
		POST("/events/:id/tiers", func(ctx *gin.Context) {
			id, ok := bindID(ctx)
			if !ok {
				return
			}
			var body types.CreateTierRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
				return
			}
			price, err := decimal.NewFromString(body.Price)
			if err != nil {
				abortWithError(ctx, fmt.Errorf("%w: price %q", errBadParams, body.Price))
				return
			}
			tier, err := svc.AddTier(ctx.Request.Context(), catalog.AddTierInput{
				OrganizerID: middlewares.CallerID(ctx),
				EventID:     id,
				Name:        body.Name,
				Price:       price,
				Quantity:    body.Quantity,
			})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": tier})
		}).
		PUT("/events/:id/publish", func(ctx *gin.Context) {
			id, ok := bindID(ctx)
			if !ok {
				return
			}
			event, err := svc.Publish(ctx.Request.Context(), id, middlewares.CallerID(ctx))
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		}).
		PUT("/events/:id/cancel", func(ctx *gin.Context) {
			id, ok := bindID(ctx)
			if !ok {
				return
			}
			event, err := svc.CancelEvent(ctx.Request.Context(), id, middlewares.CallerID(ctx))
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		})
	return g
}
