package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbos-dev/arbos-api/internal/dto"
	"github.com/arbos-dev/arbos-api/internal/middleware"
	"github.com/arbos-dev/arbos-api/internal/models"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
)

type stubRequestService struct {
	createResult  *models.Request
	createErr     error
	listResult    []models.Request
	listQuery     dto.RequestQuery
	pendingResult []dto.PendingRequestView
	decideResult  *models.Request
	decideErr     error
}

func (s *stubRequestService) Create(_ context.Context, _ dto.CreateRequestRequest, _ *models.JWTClaims) (*models.Request, error) {
	return s.createResult, s.createErr
}

func (s *stubRequestService) Get(_ context.Context, _ string, _ *models.JWTClaims) (*models.Request, error) {
	return s.createResult, s.createErr
}

func (s *stubRequestService) List(_ context.Context, query dto.RequestQuery, _ *models.JWTClaims) ([]models.Request, error) {
	s.listQuery = query
	return s.listResult, nil
}

func (s *stubRequestService) ListPending(_ context.Context, _ *models.JWTClaims) ([]dto.PendingRequestView, error) {
	return s.pendingResult, nil
}

func (s *stubRequestService) Decide(_ context.Context, _ string, _ dto.DecideRequestRequest, _ *models.JWTClaims) (*models.Request, error) {
	return s.decideResult, s.decideErr
}

func setClaims(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := &models.JWTClaims{UserID: "user-1", Role: role}
		c.Set(middleware.ContextKeyClaims, claims)
		c.Set(middleware.ContextKeyUserID, claims.UserID)
		c.Set(middleware.ContextKeyRole, claims.Role)
	}
}

func newRequestRouter(svc *stubRequestService, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewRequestHandler(svc, nil)
	group := r.Group("", setClaims(role))
	group.POST("/requests", h.Create)
	group.GET("/requests", h.List)
	group.GET("/requests/pending", h.Pending)
	group.POST("/requests/:id/decision", h.Decide)
	return r
}

func TestCreateRequestEndpointReturns201(t *testing.T) {
	svc := &stubRequestService{createResult: &models.Request{
		ID:     "req-1",
		Status: models.RequestStatusPending,
	}}
	r := newRequestRouter(svc, models.RoleClaimant)

	body, _ := json.Marshal(dto.CreateRequestRequest{
		Summary:      "Extension",
		ProposedDate: "2026-01-29",
		TargetEvent:  "Statement of Defence",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var envelope struct {
		Data models.Request `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "req-1", envelope.Data.ID)
}

func TestCreateRequestEndpointMapsTypedErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    *appErrors.Error
		status int
	}{
		{"invalid date", appErrors.ErrInvalidDate, http.StatusBadRequest},
		{"validation", appErrors.ErrValidation, http.StatusBadRequest},
		{"forbidden", appErrors.ErrForbidden, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubRequestService{createErr: tc.err}
			r := newRequestRouter(svc, models.RoleClaimant)

			body, _ := json.Marshal(dto.CreateRequestRequest{Summary: "x"})
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			var envelope struct {
				Error *appErrors.Error `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tc.err.Code, envelope.Error.Code)
		})
	}
}

func TestListEndpointRejectsUnknownStatusFilter(t *testing.T) {
	r := newRequestRouter(&stubRequestService{}, models.RoleArbitrator)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/requests?status=MAYBE", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEndpointDefaultsToUnpaginated(t *testing.T) {
	svc := &stubRequestService{listQuery: dto.RequestQuery{Limit: -1}}
	r := newRequestRouter(svc, models.RoleArbitrator)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, svc.listQuery.Limit)
	assert.Zero(t, svc.listQuery.Offset)
}

func TestListEndpointPassesPaginationThrough(t *testing.T) {
	svc := &stubRequestService{}
	r := newRequestRouter(svc, models.RoleArbitrator)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/requests?limit=25&offset=50", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 25, svc.listQuery.Limit)
	assert.Equal(t, 50, svc.listQuery.Offset)

	for _, url := range []string{"/requests?limit=-1", "/requests?limit=ten", "/requests?offset=-5"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, url)
	}
}

func TestDecideEndpointAlreadyDecidedReturns409(t *testing.T) {
	svc := &stubRequestService{decideErr: appErrors.ErrInvalidTransition}
	r := newRequestRouter(svc, models.RoleArbitrator)

	body, _ := json.Marshal(dto.DecideRequestRequest{Outcome: models.RequestStatusApproved, Reason: "Good cause shown"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/requests/req-1/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDecideEndpointDanglingReferenceCarriesDecision(t *testing.T) {
	decided := &models.Request{ID: "req-1", Status: models.RequestStatusApproved}
	svc := &stubRequestService{
		decideResult: decided,
		decideErr:    appErrors.Clone(appErrors.ErrDanglingReference, ""),
	}
	r := newRequestRouter(svc, models.RoleArbitrator)

	body, _ := json.Marshal(dto.DecideRequestRequest{Outcome: models.RequestStatusApproved, Reason: "Good cause shown"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/requests/req-1/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	var envelope struct {
		Data  *models.Request  `json:"data"`
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
	assert.Equal(t, models.RequestStatusApproved, envelope.Data.Status)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrDanglingReference.Code, envelope.Error.Code)
}

func TestRequireActionBlocksParties(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewRequestHandler(&stubRequestService{pendingResult: []dto.PendingRequestView{}}, nil)
	r.GET("/requests/pending", setClaims(models.RoleClaimant),
		middleware.RequireAction("DECIDE"), h.Pending)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/requests/pending", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
