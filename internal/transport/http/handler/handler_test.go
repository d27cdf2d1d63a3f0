package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/barbershop-booking/internal/application/admin"
	"github.com/barbershop-booking/internal/application/auth"
	"github.com/barbershop-booking/internal/application/relay"
	"github.com/barbershop-booking/internal/domain"
	jwtinfra "github.com/barbershop-booking/internal/infrastructure/jwt"
	"github.com/barbershop-booking/internal/notify"
	"github.com/barbershop-booking/internal/pkg/validate"
	"github.com/barbershop-booking/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Register(ctx context.Context, req domain.CreateUserRequest) (*auth.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*auth.Result)
	return res, args.Error(1)
}

func (m *mockAuthSvc) Login(ctx context.Context, req domain.LoginRequest) (*auth.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*auth.Result)
	return res, args.Error(1)
}

func (m *mockAuthSvc) Me(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

type mockRelaySvc struct{ mock.Mock }

func (m *mockRelaySvc) Send(ctx context.Context, req notify.RelayRequest) (*relay.Delivery, error) {
	args := m.Called(ctx, req)
	d, _ := args.Get(0).(*relay.Delivery)
	return d, args.Error(1)
}

type mockAdminSvc struct{ mock.Mock }

func (m *mockAdminSvc) DefaultMessage(ctx context.Context, customerID string) (*admin.Draft, error) {
	args := m.Called(ctx, customerID)
	d, _ := args.Get(0).(*admin.Draft)
	return d, args.Error(1)
}

func (m *mockAdminSvc) Push(ctx context.Context, req notify.RelayRequest) (*relay.Delivery, error) {
	args := m.Called(ctx, req)
	d, _ := args.Get(0).(*relay.Delivery)
	return d, args.Error(1)
}

func (m *mockAdminSvc) Broadcast(ctx context.Context, req admin.BroadcastRequest) ([]admin.Recipient, error) {
	args := m.Called(ctx, req)
	out, _ := args.Get(0).([]admin.Recipient)
	return out, args.Error(1)
}

// --- helpers ---

func jsonReq(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	var body []byte
	switch b := v.(type) {
	case nil:
	case string:
		body = []byte(b)
	default:
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// as injects claims the way middleware.Auth does.
func as(r *http.Request, userID, role string) *http.Request {
	return r.WithContext(middleware.WithClaims(r.Context(), &jwtinfra.Claims{UserID: userID, Role: role}))
}

// withParam injects a chi URL param into the request context.
func withParam(r *http.Request, key, value string) *http.Request {
	rctx, _ := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- error mapping ---

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("x: %w", validate.ErrInvalid), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", domain.ErrBadRequest), http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("x: %w", domain.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("x: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", domain.ErrConflict), http.StatusConflict},
		{domain.ErrNotOptedIn, http.StatusPreconditionFailed},
		{domain.ErrTokenInvalid, http.StatusGone},
		{domain.ErrDeliveryFailed, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			httpError(rr, tt.err)
			assert.Equal(t, tt.code, rr.Code)
		})
	}
}

// --- auth ---

func TestRegister_InvalidBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/v1/auth/register", "not-json"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegister_ValidationFailure(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/v1/auth/register", domain.CreateUserRequest{Email: "nope"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRegister_Conflict(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Register", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("email taken: %w", domain.ErrConflict))
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/v1/auth/register", domain.CreateUserRequest{
		Email: "ana@example.com", Password: "secret123", FirstName: "Ana",
	}))

	assert.Equal(t, http.StatusConflict, rr.Code)
	svc.AssertExpectations(t)
}

func TestLogin_HappyPath(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, domain.LoginRequest{Email: "ana@example.com", Password: "secret123"}).
		Return(&auth.Result{Bearer: "tok", User: &domain.User{UserID: "u1"}}, nil)
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Login(rr, jsonReq(t, http.MethodPost, "/v1/auth/login", domain.LoginRequest{Email: "ana@example.com", Password: "secret123"}))

	require.Equal(t, http.StatusOK, rr.Code)
	var res auth.Result
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "tok", res.Bearer)
}

func TestMe_MissingClaims(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Me(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// --- relay ---

func TestRelaySend_Contract(t *testing.T) {
	valid := notify.RelayRequest{RecipientID: "c1", Title: "Almost your turn", Body: "You're #2"}
	tests := []struct {
		name string
		err  error
		code int
		body notify.RelayResponse
	}{
		{"delivered", nil, http.StatusOK, notify.RelayResponse{Success: true, DeliveryID: "m-1"}},
		{"not opted in", domain.ErrNotOptedIn, http.StatusPreconditionFailed, notify.RelayResponse{Error: notify.CodeNotOptedIn}},
		{"token gone", fmt.Errorf("all rejected: %w", domain.ErrTokenInvalid), http.StatusGone, notify.RelayResponse{Error: notify.CodeTokenNotRegistered}},
		{"provider down", domain.ErrDeliveryFailed, http.StatusBadGateway, notify.RelayResponse{Error: notify.CodeDeliveryFailed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockRelaySvc{}
			if tt.err == nil {
				svc.On("Send", mock.Anything, valid).Return(&relay.Delivery{DeliveryID: "m-1", Devices: 1}, nil)
			} else {
				svc.On("Send", mock.Anything, valid).Return(nil, tt.err)
			}
			rr := httptest.NewRecorder()
			NewRelayHandler(svc).Send(rr, jsonReq(t, http.MethodPost, "/v1/push/send", valid))

			assert.Equal(t, tt.code, rr.Code)
			var got notify.RelayResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
			assert.Equal(t, tt.body, got)
		})
	}
}

func TestRelaySend_InvalidRequest(t *testing.T) {
	svc := &mockRelaySvc{}
	h := NewRelayHandler(svc)

	rr := httptest.NewRecorder()
	h.Send(rr, jsonReq(t, http.MethodPost, "/v1/push/send", notify.RelayRequest{Title: "no recipient", Body: "x"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.JSONEq(t, `{"error":"invalid-request"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.Send(rr, jsonReq(t, http.MethodPost, "/v1/push/send", "{"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

// --- admin ---

func TestAdminDefaultMessage_NotQueued(t *testing.T) {
	svc := &mockAdminSvc{}
	svc.On("DefaultMessage", mock.Anything, "c9").Return(nil, fmt.Errorf("c9: %w", domain.ErrNotFound))

	rr := httptest.NewRecorder()
	r := withParam(httptest.NewRequest(http.MethodGet, "/v1/admin/notifications/default/c9", nil), "customerID", "c9")
	NewAdminNotificationHandler(svc).DefaultMessage(rr, r)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminBroadcast_EmptyBodyUsesDefaults(t *testing.T) {
	svc := &mockAdminSvc{}
	svc.On("Broadcast", mock.Anything, admin.BroadcastRequest{}).Return([]admin.Recipient{
		{CustomerID: "c1", Position: 1, Outcome: "delivered", DeliveryID: "m-1"},
		{CustomerID: "c2", Position: 2, Outcome: "not-opted-in", Error: "recipient not opted in"},
	}, nil)

	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/admin/notifications/broadcast", nil)
	NewAdminNotificationHandler(svc).Broadcast(rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var got broadcastEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, 1, got.Sent)
	assert.Len(t, got.Recipients, 2)
}

func TestAdminBroadcast_HalfCustomTextRejected(t *testing.T) {
	svc := &mockAdminSvc{}

	rr := httptest.NewRecorder()
	r := jsonReq(t, http.MethodPost, "/v1/admin/notifications/broadcast", admin.BroadcastRequest{Title: "Only a title"})
	NewAdminNotificationHandler(svc).Broadcast(rr, r)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything)
}

func TestAdminPush_NotOptedIn(t *testing.T) {
	svc := &mockAdminSvc{}
	svc.On("Push", mock.Anything, mock.Anything).Return(nil, domain.ErrNotOptedIn)

	rr := httptest.NewRecorder()
	r := jsonReq(t, http.MethodPost, "/v1/admin/notifications/push", notify.RelayRequest{RecipientID: "c1", Title: "Hi", Body: "Come in"})
	NewAdminNotificationHandler(svc).Push(rr, r)

	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
}
