package types

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type AppEnv string

const (
	Local      AppEnv = "local"
	Test       AppEnv = "test"
	Production AppEnv = "production"
)

type EventStatus string

const (
	EVENT_DRAFT     EventStatus = "draft"
	EVENT_PUBLISHED EventStatus = "published"
	EVENT_CANCELED  EventStatus = "canceled"
	EVENT_FINALIZED EventStatus = "finalized"
)

type OrderStatus string

const (
	ORDER_PENDING  OrderStatus = "pending"
	ORDER_PAID     OrderStatus = "paid"
	ORDER_CANCELED OrderStatus = "canceled"
	ORDER_REFUNDED OrderStatus = "refunded"
)

type TicketStatus string

const (
	TICKET_WAITING  TicketStatus = "waiting"
	TICKET_ACTIVE   TicketStatus = "active"
	TICKET_USED     TicketStatus = "used"
	TICKET_CANCELED TicketStatus = "canceled"
	TICKET_REFUNDED TicketStatus = "refunded"
	TICKET_INVALID  TicketStatus = "invalid"
)

type PaymentStatus string

const (
	PAYMENT_COMPLETED PaymentStatus = "completed"
	PAYMENT_REFUNDED  PaymentStatus = "refunded"
)

type ValidationOutcome string

const (
	VALIDATION_SUCCESS               ValidationOutcome = "success"
	VALIDATION_WRONG_EVENT           ValidationOutcome = "wrong_event"
	VALIDATION_ALREADY_USED          ValidationOutcome = "already_used"
	VALIDATION_INVALID_STATUS        ValidationOutcome = "invalid_status"
	VALIDATION_AWAITING_CONFIRMATION ValidationOutcome = "awaiting_confirmation"
	VALIDATION_EXPIRED               ValidationOutcome = "expired"
)

type PaymentMethod string

const (
	PAYMENT_METHOD_CARD     PaymentMethod = "card"
	PAYMENT_METHOD_CASH     PaymentMethod = "cash"
	PAYMENT_METHOD_TRANSFER PaymentMethod = "transfer"
	PAYMENT_METHOD_WALLET   PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PAYMENT_METHOD_CARD, PAYMENT_METHOD_CASH, PAYMENT_METHOD_TRANSFER, PAYMENT_METHOD_WALLET:
		return true
	}
	return false
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type TicketCodeURIParams struct {
	Code string `uri:"code" binding:"required"`
}

type ReservationLine struct {
	TierID uint `json:"tier" binding:"required"`
	Qty    int  `json:"qty" binding:"required,min=1"`
}

type CreateReservationRequestBody struct {
	Items []ReservationLine `json:"items" binding:"required,min=1,dive"`
}

type PayOrderRequestBody struct {
	Method string `json:"method" binding:"required,paymethod"`
}

type CheckInRequestBody struct {
	Code     string `json:"code" binding:"required"`
	DeviceID *uint  `json:"device_id,omitempty"`
}

type CreateEventRequestBody struct {
	Title     string    `json:"title" binding:"required"`
	Capacity  int       `json:"capacity" binding:"min=0"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required,gtfield=StartDate"`
}

type CreateTierRequestBody struct {
	Name     string `json:"name" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Quantity int    `json:"quantity" binding:"min=0"`
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
