package main

import (
	"errors"
	"log"
	"net/http"

	"ticketing/src/middlewares"
	"ticketing/src/models"
	"ticketing/src/types"
	"ticketing/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func ticketHandlers(g *gin.RouterGroup, gdb *gorm.DB, qrKey []byte) *gin.RouterGroup {
	g.
		GET("/tickets", func(ctx *gin.Context) {
			var tickets []models.Ticket
			if err := gdb.WithContext(ctx.Request.Context()).
				Where("user_id = ?", middlewares.CallerID(ctx)).
				Preload("Event").
				Preload("TicketType").
				Order("id desc").
				Find(&tickets).Error; err != nil {
				log.Printf("Error retrieving Tickets: %s\n", err.Error())
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets, "count": len(tickets)})
		}).
		GET("/tickets/:code/qr", func(ctx *gin.Context) {
			var params types.TicketCodeURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
				return
			}
			var ticket models.Ticket
			err := gdb.WithContext(ctx.Request.Context()).
				Where("code = ? AND user_id = ?", params.Code, middlewares.CallerID(ctx)).
				First(&ticket).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					err = types.ErrTicketNotFound
				}
				abortWithError(ctx, err)
				return
			}
			if ticket.Status != types.TICKET_ACTIVE {
				abortWithError(ctx, types.ErrInvalidStatus)
				return
			}
			ctx.Header("Content-Type", "image/jpeg")
			ctx.Status(http.StatusOK)
			if err := utils.RenderTicketQR(ctx.Writer, qrKey, ticket.Code); err != nil {
				log.Printf("Error rendering QR for ticket %d: %s\n", ticket.ID, err.Error())
			}
		})
	return g
}
