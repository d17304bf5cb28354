package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/panucci/internal/catalog"
	"github.com/smallbiznis/panucci/internal/clock"
	"github.com/smallbiznis/panucci/internal/config"
	customerdomain "github.com/smallbiznis/panucci/internal/customer/domain"
	customerrepo "github.com/smallbiznis/panucci/internal/customer/repository"
	customersvc "github.com/smallbiznis/panucci/internal/customer/service"
	"github.com/smallbiznis/panucci/internal/idempotency"
	kitchendomain "github.com/smallbiznis/panucci/internal/kitchen/domain"
	kitchenrepo "github.com/smallbiznis/panucci/internal/kitchen/repository"
	kitchensvc "github.com/smallbiznis/panucci/internal/kitchen/service"
	orderdomain "github.com/smallbiznis/panucci/internal/order/domain"
	orderrepo "github.com/smallbiznis/panucci/internal/order/repository"
	ordersvc "github.com/smallbiznis/panucci/internal/order/service"
	"github.com/smallbiznis/panucci/internal/providers/pdf"
	pkgdb "github.com/smallbiznis/panucci/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testEngine() *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.Use(LimitBody(maxRequestBodyBytes))
	return r
}

func newIntegrationServer(t *testing.T) *Server {
	t.Helper()

	db := pkgdb.NewTest(t,
		&customerdomain.Customer{},
		&customerdomain.SequenceCounter{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&kitchendomain.Ticket{},
	)
	node, err := snowflake.NewNode(11)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 2, 19, 0, 0, 0, time.UTC))
	cat := catalog.New(config.NewStaticCatalogHolder(config.DefaultCatalogConfig()))
	printer := pdf.New()

	customers := customersvc.NewWithOptions(customersvc.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  customerrepo.New(true),
		Clock: clk,
	}, customersvc.DefaultOptions())

	kitchenRepo := kitchenrepo.Provide()
	orders := ordersvc.New(ordersvc.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        orderrepo.New(true),
		KitchenRepo: kitchenRepo,
		Customers:   customers,
		Catalog:     cat,
		PDF:         printer,
		Idempotency: idempotency.NoopStore{},
		Clock:       clk,
	})
	kitchen := kitchensvc.New(kitchensvc.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: kitchenRepo,
		PDF:  printer,
	})

	return NewServer(ServerParams{
		Gin:         testEngine(),
		DB:          db,
		CustomerSvc: customers,
		OrderSvc:    orders,
		KitchenSvc:  kitchen,
		Catalog:     cat,
	})
}

func doRequest(t *testing.T, s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestOrderLifecycle(t *testing.T) {
	s := newIntegrationServer(t)

	rec := doRequest(t, s, http.MethodPost, "/v1/orders", map[string]any{
		"items": []map[string]any{
			{"productoId": "P001", "cantidad": 2},
			{"productoId": "B001", "cantidad": 1},
		},
		"clienteNombre": "Ana",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created struct {
		OrderID   string `json:"orderId"`
		ClienteID string `json:"clienteId"`
		Status    string `json:"estado"`
		Total     int64  `json:"total"`
	}
	decodeData(t, rec, &created)
	assert.Equal(t, "CL0001", created.ClienteID)
	assert.Equal(t, "CREADO", created.Status)
	assert.Equal(t, int64(2*22000+4500), created.Total)

	rec = doRequest(t, s, http.MethodGet, "/v1/orders/"+created.OrderID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/v1/kitchen/orders/"+created.OrderID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ticket struct {
		TicketID string `json:"kitchenOrderId"`
		Status   string `json:"estado"`
	}
	decodeData(t, rec, &ticket)
	assert.Equal(t, "KCH_"+created.OrderID, ticket.TicketID)
	assert.Equal(t, "PENDIENTE", ticket.Status)

	rec = doRequest(t, s, http.MethodPatch, "/v1/orders/"+created.OrderID+"/status", map[string]any{"estado": "en_preparacion"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/v1/orders/"+created.OrderID+"/cancel", nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_cancelable", decodeError(t, rec).Type)

	rec = doRequest(t, s, http.MethodGet, "/v1/orders?status=EN_PREPARACION", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Items []json.RawMessage `json:"items"`
	}
	decodeData(t, rec, &listed)
	assert.Len(t, listed.Items, 1)

	rec = doRequest(t, s, http.MethodGet, "/v1/orders/"+created.OrderID+"/receipt", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypePDF, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = doRequest(t, s, http.MethodGet, "/v1/kitchen/orders/"+created.OrderID+"/ticket", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = doRequest(t, s, http.MethodGet, "/v1/orders/export", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())
}

func TestCreateOrder_Validation(t *testing.T) {
	s := newIntegrationServer(t)

	rec := doRequest(t, s, http.MethodPost, "/v1/orders", map[string]any{"items": []any{}}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_items", payload.Errors[0].Code)
	assert.Equal(t, "items", payload.Errors[0].Field)

	req := httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	raw := httptest.NewRecorder()
	s.Engine().ServeHTTP(raw, req)
	require.Equal(t, http.StatusBadRequest, raw.Code)
	assert.Equal(t, "invalid_request", decodeError(t, raw).Errors[0].Code)

	rec = doRequest(t, s, http.MethodGet, "/v1/orders?status=PERDIDO", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/v1/orders/ORD_missing", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestCustomersAndResync(t *testing.T) {
	s := newIntegrationServer(t)

	rec := doRequest(t, s, http.MethodPost, "/v1/customers", map[string]any{"nombre": "Luis", "email": "Luis@Example.com"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var customer struct {
		ClienteID string `json:"clienteId"`
		Email     string `json:"email"`
	}
	decodeData(t, rec, &customer)
	assert.Equal(t, "CL0001", customer.ClienteID)
	assert.Equal(t, "luis@example.com", customer.Email)

	rec = doRequest(t, s, http.MethodPost, "/v1/customers", map[string]any{"nombre": " "}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_name", decodeError(t, rec).Errors[0].Code)

	rec = doRequest(t, s, http.MethodGet, "/v1/customers/CL0001", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/v1/customers/CL0999", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/v1/customers?page_size=10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/v1/admin/customers/resync", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resync struct {
		Seq int64 `json:"seq"`
	}
	decodeData(t, rec, &resync)
	assert.Equal(t, int64(1), resync.Seq)
}

func TestProductsAndHealth(t *testing.T) {
	s := newIntegrationServer(t)

	rec := doRequest(t, s, http.MethodGet, "/v1/orders/products", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products struct {
		Items []config.Product `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products.Items, 13)

	rec = doRequest(t, s, http.MethodGet, "/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/v1/nothing-here", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubOrderService struct {
	orderdomain.Service
	createResult orderdomain.CreateOrderResult
	createErr    error
	gotKey       string
}

func (s *stubOrderService) Create(ctx context.Context, req orderdomain.CreateOrderRequest) (orderdomain.CreateOrderResult, error) {
	s.gotKey = req.IdempotencyKey
	return s.createResult, s.createErr
}

func newStubServer(orders orderdomain.Service) *Server {
	return NewServer(ServerParams{
		Gin:      testEngine(),
		OrderSvc: orders,
		Catalog:  catalog.New(config.NewStaticCatalogHolder(config.DefaultCatalogConfig())),
	})
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	body := map[string]any{"items": []map[string]any{{"productoId": "P001", "cantidad": 1}}}

	t.Run("allocation exhausted", func(t *testing.T) {
		stub := &stubOrderService{createErr: &customerdomain.AllocationExhaustedError{
			Attempts: 10,
			Err:      customerdomain.ErrDuplicateKey,
		}}
		rec := doRequest(t, newStubServer(stub), http.MethodPost, "/v1/orders", body, nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		payload := decodeError(t, rec)
		assert.Equal(t, "allocation_exhausted", payload.Type)
		assert.Equal(t, "could not complete order", payload.Message)
	})

	t.Run("in flight", func(t *testing.T) {
		stub := &stubOrderService{createErr: orderdomain.ErrRequestInFlight}
		rec := doRequest(t, newStubServer(stub), http.MethodPost, "/v1/orders", body, map[string]string{
			headerIdempotencyKey: " key-1 ",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "key-1", stub.gotKey)
	})

	t.Run("replayed", func(t *testing.T) {
		stub := &stubOrderService{createResult: orderdomain.CreateOrderResult{
			Order:    orderdomain.Order{OrderID: "ORD_1", ClienteID: "CL0001"},
			Replayed: true,
		}}
		rec := doRequest(t, newStubServer(stub), http.MethodPost, "/v1/orders", body, map[string]string{
			headerIdempotencyKey: "key-1",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "true", rec.Header().Get(headerReplayed))
	})

	t.Run("store failure", func(t *testing.T) {
		stub := &stubOrderService{createErr: errors.New("connection refused")}
		rec := doRequest(t, newStubServer(stub), http.MethodPost, "/v1/orders", body, nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal_error", decodeError(t, rec).Type)
	})
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{err: orderdomain.ErrInvalidStatus, status: http.StatusBadRequest, kind: "validation_error"},
		{err: orderdomain.ErrInvalidIdempotencyKey, status: http.StatusBadRequest, kind: "validation_error"},
		{err: customerdomain.ErrInvalidEmail, status: http.StatusBadRequest, kind: "validation_error"},
		{err: kitchendomain.ErrNotFound, status: http.StatusNotFound, kind: "not_found"},
		{err: orderdomain.ErrNotCancelable, status: http.StatusConflict, kind: "not_cancelable"},
		{err: customerdomain.ErrDuplicateKey, status: http.StatusConflict, kind: "conflict"},
		{err: customerdomain.ErrAllocationExhausted, status: http.StatusServiceUnavailable, kind: "allocation_exhausted"},
		{err: ErrServiceUnavailable, status: http.StatusServiceUnavailable, kind: "service_unavailable"},
		{err: ErrTooManyRequests, status: http.StatusTooManyRequests, kind: "too_many_requests"},
	}
	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.kind, payload.Type, tc.err.Error())
	}

	kind, code := classifyErrorForLog(orderdomain.ErrInvalidItems)
	assert.Equal(t, "validation_error", kind)
	assert.Equal(t, "invalid_items", code)
}
