package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"ticketing/src/audit"
	"ticketing/src/boot"
	"ticketing/src/config"
	"ticketing/src/middlewares"
	"ticketing/src/testutil"
	"ticketing/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

const jwtSecret = "test-secret"

type TestSuite struct {
	suite.Suite
	DB     *gorm.DB
	Router *gin.Engine
	Audit  *audit.MemorySink

	Organizer string
	Buyer     string
	Other     string
	Staff     string
}

func generateJWT(id uint, role string) (string, error) {
	claims := types.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id), 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	registerValidators()
	for _, tok := range []struct {
		dst  *string
		id   uint
		role string
	}{
		{&s.Organizer, 1, middlewares.ROLE_ORGANIZER},
		{&s.Buyer, 2, middlewares.ROLE_BUYER},
		{&s.Other, 3, middlewares.ROLE_BUYER},
		{&s.Staff, 4, middlewares.ROLE_STAFF},
	} {
		token, err := generateJWT(tok.id, tok.role)
		s.Require().NoError(err)
		*tok.dst = token
	}
}

func (s *TestSuite) SetupTest() {
	s.DB = testutil.NewDB(s.T())
	s.Audit = &audit.MemorySink{}
	cfg := &config.Config{
		JWTSecret:          jwtSecret,
		TxMaxRetries:       3,
		OrderCodeAllocator: "store",
	}
	svc := boot.InitServices(context.Background(), cfg, s.DB, s.Audit)
	s.Router = setupRouter()
	registerRoutes(s.Router, cfg, s.DB, svc)
}

func (s *TestSuite) do(method, url, token, body string) (int, string) {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, url, nil)
	} else {
		req, _ = http.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	s.Router.ServeHTTP(w, req)
	return w.Code, w.Body.String()
}

// publishedEvent creates an event with one tier through the API and
// returns the event and tier ids.
func (s *TestSuite) publishedEvent(capacity, quantity int, price string) (int64, int64) {
	start := time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Add(54 * time.Hour).Format(time.RFC3339)
	code, body := s.do("POST", "/api/v1/events", s.Organizer,
		fmt.Sprintf(`{"title":"Jazz Night","capacity":%d,"start_date":%q,"end_date":%q}`, capacity, start, end))
	s.Require().Equal(http.StatusCreated, code, body)
	s.Equal("draft", gjson.Get(body, "data.status").String())
	eventID := gjson.Get(body, "data.id").Int()

	code, body = s.do("POST", fmt.Sprintf("/api/v1/events/%d/tiers", eventID), s.Organizer,
		fmt.Sprintf(`{"name":"General","price":%q,"quantity":%d}`, price, quantity))
	s.Require().Equal(http.StatusCreated, code, body)
	tierID := gjson.Get(body, "data.id").Int()

	code, body = s.do("PUT", fmt.Sprintf("/api/v1/events/%d/publish", eventID), s.Organizer, "")
	s.Require().Equal(http.StatusOK, code, body)
	s.Equal("published", gjson.Get(body, "data.status").String())
	return eventID, tierID
}

func (s *TestSuite) TestPingRoute() {
	code, _ := s.do("GET", "/", "", "")
	s.Equal(200, code)
}

func (s *TestSuite) TestMetricsRoute() {
	code, body := s.do("GET", "/metrics", "", "")
	s.Equal(200, code)
	s.Contains(body, "go_goroutines")
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestAuthorization() {
	code, _ := s.do("GET", "/api/v1/events", "", "")
	s.Equal(http.StatusUnauthorized, code)

	code, _ = s.do("POST", "/api/v1/events", s.Buyer, `{}`)
	s.Equal(http.StatusForbidden, code)

	code, _ = s.do("POST", "/api/v1/checkin", s.Buyer, `{"code":"TKT-0"}`)
	s.Equal(http.StatusForbidden, code)
}

func (s *TestSuite) TestOrderLifecycle() {
	eventID, tierID := s.publishedEvent(10, 5, "25.00")

	s.Run("Should list the published event", func() {
		code, body := s.do("GET", "/api/v1/events", s.Buyer, "")
		s.Equal(http.StatusOK, code)
		s.Equal(int64(1), gjson.Get(body, "count").Int())
		code, body = s.do("GET", fmt.Sprintf("/api/v1/events/%d", eventID), s.Buyer, "")
		s.Equal(http.StatusOK, code)
		s.Equal(int64(5), gjson.Get(body, "data.tiers.0.quantity").Int())
	})

	code, body := s.do("POST", fmt.Sprintf("/api/v1/events/%d/reservations", eventID), s.Buyer,
		fmt.Sprintf(`{"items":[{"tier":%d,"qty":2}]}`, tierID))
	s.Require().Equal(http.StatusCreated, code, body)
	orderID := gjson.Get(body, "data.id").Int()
	s.Equal("pending", gjson.Get(body, "data.status").String())
	s.Regexp(`^JN-\d{4}-000001$`, gjson.Get(body, "data.code").String())
	s.Equal(int64(2), gjson.Get(body, "data.tickets.#").Int())

	s.Run("Should hide the order from other buyers", func() {
		code, body := s.do("GET", fmt.Sprintf("/api/v1/orders/%d", orderID), s.Other, "")
		s.Equal(http.StatusNotFound, code)
		s.Equal("order_not_found", gjson.Get(body, "code").String())
		code, _ = s.do("PUT", fmt.Sprintf("/api/v1/orders/%d/cancel", orderID), s.Other, "")
		s.Equal(http.StatusNotFound, code)
	})

	s.Run("Should reject an unknown payment method", func() {
		code, _ := s.do("POST", fmt.Sprintf("/api/v1/orders/%d/pay", orderID), s.Buyer, `{"method":"barter"}`)
		s.Equal(http.StatusBadRequest, code)
	})

	code, body = s.do("POST", fmt.Sprintf("/api/v1/orders/%d/pay", orderID), s.Buyer, `{"method":"card"}`)
	s.Require().Equal(http.StatusOK, code, body)
	s.Equal("paid", gjson.Get(body, "data.order.status").String())
	s.Equal(int64(2), gjson.Get(body, "data.payments.#").Int())
	ticketCode := gjson.Get(body, "data.order.tickets.0.code").String()

	s.Run("Should refuse to pay twice", func() {
		code, body := s.do("POST", fmt.Sprintf("/api/v1/orders/%d/pay", orderID), s.Buyer, `{"method":"card"}`)
		s.Equal(http.StatusUnprocessableEntity, code)
		s.Equal("order_not_pending", gjson.Get(body, "code").String())
	})

	s.Run("Should list and render the buyer's tickets", func() {
		code, body := s.do("GET", "/api/v1/tickets", s.Buyer, "")
		s.Equal(http.StatusOK, code)
		s.Equal(int64(2), gjson.Get(body, "count").Int())

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", fmt.Sprintf("/api/v1/tickets/%s/qr", ticketCode), nil)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Buyer))
		s.Router.ServeHTTP(w, req)
		s.Equal(http.StatusOK, w.Code)
		s.Equal("image/jpeg", w.Header().Get("Content-Type"))
		s.NotZero(w.Body.Len())

		code, _ = s.do("GET", fmt.Sprintf("/api/v1/tickets/%s/qr", ticketCode), s.Other, "")
		s.Equal(http.StatusNotFound, code)
	})

	s.Run("Should admit the ticket once", func() {
		code, body := s.do("POST", "/api/v1/checkin", s.Staff, fmt.Sprintf(`{"code":%q}`, ticketCode))
		s.Equal(http.StatusOK, code, body)
		s.Equal("used", gjson.Get(body, "data.ticket.status").String())

		code, body = s.do("POST", "/api/v1/checkin", s.Staff, fmt.Sprintf(`{"code":%q}`, ticketCode))
		s.Equal(http.StatusUnprocessableEntity, code)
		s.Equal("already_used", gjson.Get(body, "code").String())
		s.Equal(ticketCode, gjson.Get(body, "data.ticket.code").String())

		code, body = s.do("POST", "/api/v1/checkin", s.Staff, `{"code":"TKT-UNKNOWN"}`)
		s.Equal(http.StatusNotFound, code)
		s.Equal("ticket_not_found", gjson.Get(body, "code").String())
	})

	s.Run("Should refund the remaining ticket", func() {
		code, body := s.do("PUT", fmt.Sprintf("/api/v1/orders/%d/refund", orderID), s.Buyer, "")
		s.Equal(http.StatusOK, code, body)
		s.Equal("refunded", gjson.Get(body, "data.status").String())
	})
}

func (s *TestSuite) TestCancelAndRevert() {
	eventID, tierID := s.publishedEvent(10, 3, "10.00")

	code, body := s.do("POST", fmt.Sprintf("/api/v1/events/%d/reservations", eventID), s.Buyer,
		fmt.Sprintf(`{"items":[{"tier":%d,"qty":4}]}`, tierID))
	s.Equal(http.StatusConflict, code)
	s.Equal("tier_insufficient_quantity", gjson.Get(body, "code").String())

	code, body = s.do("POST", fmt.Sprintf("/api/v1/events/%d/reservations", eventID), s.Buyer,
		fmt.Sprintf(`{"items":[{"tier":%d,"qty":3}]}`, tierID))
	s.Require().Equal(http.StatusCreated, code, body)
	orderID := gjson.Get(body, "data.id").Int()

	code, body = s.do("PUT", fmt.Sprintf("/api/v1/orders/%d/cancel", orderID), s.Buyer, "")
	s.Equal(http.StatusOK, code, body)
	s.Equal("canceled", gjson.Get(body, "data.status").String())

	code, body = s.do("GET", fmt.Sprintf("/api/v1/events/%d", eventID), s.Buyer, "")
	s.Equal(http.StatusOK, code)
	s.Equal(int64(3), gjson.Get(body, "data.tiers.0.quantity").Int())
	s.Equal(int64(10), gjson.Get(body, "data.capacity").Int())

	code, body = s.do("PUT", fmt.Sprintf("/api/v1/orders/%d/revert", orderID), s.Buyer, "")
	s.Equal(http.StatusOK, code, body)
	s.Equal("pending", gjson.Get(body, "data.status").String())

	code, body = s.do("PUT", fmt.Sprintf("/api/v1/orders/%d/revert", orderID), s.Buyer, "")
	s.Equal(http.StatusUnprocessableEntity, code)
	s.Equal("order_not_canceled", gjson.Get(body, "code").String())
}

func (s *TestSuite) TestEventValidation() {
	code, body := s.do("POST", "/api/v1/events", s.Organizer, `{"title":"Missing dates"}`)
	s.Equal(http.StatusBadRequest, code)
	s.NotEmpty(gjson.Get(body, "error").String())

	start := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339)
	code, body = s.do("POST", "/api/v1/events", s.Organizer,
		fmt.Sprintf(`{"title":"Empty","capacity":0,"start_date":%q,"end_date":%q}`, start, end))
	s.Require().Equal(http.StatusCreated, code, body)
	eventID := gjson.Get(body, "data.id").Int()

	code, _ = s.do("POST", fmt.Sprintf("/api/v1/events/%d/tiers", eventID), s.Organizer,
		`{"name":"VIP","price":"abc","quantity":1}`)
	s.Equal(http.StatusBadRequest, code)

	code, body = s.do("PUT", fmt.Sprintf("/api/v1/events/%d/publish", eventID), s.Organizer, "")
	s.Equal(http.StatusUnprocessableEntity, code)
	s.Equal("event_not_publishable", gjson.Get(body, "code").String())

	code, _ = s.do("GET", fmt.Sprintf("/api/v1/events/%d", eventID), s.Buyer, "")
	s.Equal(http.StatusNotFound, code)
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
