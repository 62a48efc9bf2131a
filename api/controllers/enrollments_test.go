package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adamzielonka/coursepath-backend/api/middleware"
	"github.com/adamzielonka/coursepath-backend/internal/grants"
	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
)

type testGrantsService struct {
	listFn      func(ctx context.Context, buyerID uuid.UUID) ([]models.AccessGrant, error)
	reconcileFn func(ctx context.Context, key grants.GrantKey, status string) (*models.AccessGrant, error)
	hasAccessFn func(ctx context.Context, key grants.GrantKey) (bool, error)
}

func (s *testGrantsService) GetOrCreate(ctx context.Context, key grants.GrantKey, seed models.AccessGrant) (*models.AccessGrant, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *testGrantsService) Apply(ctx context.Context, key grants.GrantKey, trigger grants.Trigger, input grants.ApplyInput) (*grants.ApplyResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *testGrantsService) ApplyToGrant(ctx context.Context, grant *models.AccessGrant, trigger grants.Trigger, input grants.ApplyInput) (*grants.ApplyResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *testGrantsService) RecordPurchase(ctx context.Context, input grants.PurchaseInput) (bool, error) {
	return false, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *testGrantsService) Reconcile(ctx context.Context, key grants.GrantKey, status string) (*models.AccessGrant, error) {
	if s.reconcileFn != nil {
		return s.reconcileFn(ctx, key, status)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *testGrantsService) HasAccess(ctx context.Context, key grants.GrantKey) (bool, error) {
	if s.hasAccessFn != nil {
		return s.hasAccessFn(ctx, key)
	}
	return false, nil
}

func (s *testGrantsService) GetGrant(ctx context.Context, grantID uuid.UUID) (*models.AccessGrant, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "access grant not found")
}

func (s *testGrantsService) ListGrants(ctx context.Context, buyerID uuid.UUID) ([]models.AccessGrant, error) {
	if s.listFn != nil {
		return s.listFn(ctx, buyerID)
	}
	return nil, nil
}

type testCancelService struct {
	cancelFn func(ctx context.Context, grantID, callerBuyerID uuid.UUID, subscriptionRef string) (*models.AccessGrant, error)
}

func (s *testCancelService) Cancel(ctx context.Context, grantID, callerBuyerID uuid.UUID, subscriptionRef string) (*models.AccessGrant, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, grantID, callerBuyerID, subscriptionRef)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func authedRequest(method, target string, body []byte, buyerID uuid.UUID) *http.Request {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req = req.WithContext(middleware.WithUserID(req.Context(), buyerID.String()))
	return req
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestListEnrollmentsReturnsCallerGrants(t *testing.T) {
	buyerID := uuid.New()
	periodEnd := time.Now().Add(24 * time.Hour).UTC()
	svc := &testGrantsService{
		listFn: func(ctx context.Context, got uuid.UUID) ([]models.AccessGrant, error) {
			if got != buyerID {
				t.Fatalf("unexpected buyer %s", got)
			}
			return []models.AccessGrant{
				{
					ID:              uuid.New(),
					BuyerID:         buyerID,
					PurchasableKind: enums.PurchasableKindCourse,
					PurchasableID:   uuid.New(),
					State:           enums.GrantStateGranted,
					AmountCents:     12300,
					Currency:        enums.CurrencyPLN,
				},
				{
					ID:               uuid.New(),
					BuyerID:          buyerID,
					PurchasableKind:  enums.PurchasableKindPath,
					PurchasableID:    uuid.New(),
					State:            enums.GrantStateCancelScheduled,
					IsRecurring:      true,
					CurrentPeriodEnd: &periodEnd,
				},
			}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/enrollments", nil, buyerID)
	resp := httptest.NewRecorder()
	ListEnrollments(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Enrollments []grantResponse `json:"enrollments"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Enrollments) != 2 {
		t.Fatalf("expected 2 enrollments, got %d", len(envelope.Data.Enrollments))
	}
	if !envelope.Data.Enrollments[0].HasAccess {
		t.Fatal("granted enrollment should report access")
	}
	if !envelope.Data.Enrollments[1].HasAccess {
		t.Fatal("cancel-scheduled enrollment keeps access until the period lapses")
	}
}

func TestListEnrollmentsRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/enrollments", nil)
	resp := httptest.NewRecorder()
	ListEnrollments(&testGrantsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestReconcileEnrollmentFoldsClientClaim(t *testing.T) {
	buyerID := uuid.New()
	purchasableID := uuid.New()
	svc := &testGrantsService{
		reconcileFn: func(ctx context.Context, key grants.GrantKey, status string) (*models.AccessGrant, error) {
			if key.BuyerID != buyerID || key.PurchasableID != purchasableID {
				t.Fatalf("unexpected key %+v", key)
			}
			if key.PurchasableKind != enums.PurchasableKindCourse {
				t.Fatalf("unexpected kind %s", key.PurchasableKind)
			}
			if status != "success" {
				t.Fatalf("unexpected status %q", status)
			}
			return &models.AccessGrant{
				ID:              uuid.New(),
				BuyerID:         buyerID,
				PurchasableKind: key.PurchasableKind,
				PurchasableID:   key.PurchasableID,
				State:           enums.GrantStateGranted,
			}, nil
		},
	}

	body, _ := json.Marshal(map[string]any{
		"purchasable_kind": "course",
		"purchasable_id":   purchasableID,
		"status":           "success",
	})
	req := authedRequest(http.MethodPost, "/api/v1/enrollments/reconcile", body, buyerID)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	ReconcileEnrollment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data grantResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.State != string(enums.GrantStateGranted) {
		t.Fatalf("expected granted state, got %s", envelope.Data.State)
	}
}

func TestReconcileEnrollmentClaimlessPollReadsState(t *testing.T) {
	buyerID := uuid.New()
	purchasableID := uuid.New()
	svc := &testGrantsService{
		reconcileFn: func(ctx context.Context, key grants.GrantKey, status string) (*models.AccessGrant, error) {
			if status != "" {
				t.Fatalf("a claimless poll must carry no status, got %q", status)
			}
			return &models.AccessGrant{
				ID:              uuid.New(),
				BuyerID:         buyerID,
				PurchasableKind: key.PurchasableKind,
				PurchasableID:   key.PurchasableID,
				State:           enums.GrantStatePending,
			}, nil
		},
	}

	body, _ := json.Marshal(map[string]any{
		"purchasable_kind": "course",
		"purchasable_id":   purchasableID,
	})
	req := authedRequest(http.MethodPost, "/api/v1/enrollments/reconcile", body, buyerID)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	ReconcileEnrollment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("a poll without a claim must succeed, got %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data grantResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.State != string(enums.GrantStatePending) {
		t.Fatalf("expected the pending snapshot back, got %s", envelope.Data.State)
	}
}

func TestReconcileEnrollmentRejectsUnknownKind(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"purchasable_kind": "bundle",
		"purchasable_id":   uuid.New(),
		"status":           "success",
	})
	req := authedRequest(http.MethodPost, "/api/v1/enrollments/reconcile", body, uuid.New())
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	ReconcileEnrollment(&testGrantsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCancelEnrollmentPassesCallerIdentity(t *testing.T) {
	buyerID := uuid.New()
	grantID := uuid.New()
	svc := &testCancelService{
		cancelFn: func(ctx context.Context, gotGrant, gotBuyer uuid.UUID, subscriptionRef string) (*models.AccessGrant, error) {
			if gotGrant != grantID {
				t.Fatalf("unexpected grant %s", gotGrant)
			}
			if gotBuyer != buyerID {
				t.Fatalf("unexpected buyer %s", gotBuyer)
			}
			if subscriptionRef != "" {
				t.Fatalf("expected empty subscription ref for a bodyless cancel, got %q", subscriptionRef)
			}
			return &models.AccessGrant{
				ID:          grantID,
				BuyerID:     buyerID,
				State:       enums.GrantStateCancelScheduled,
				IsRecurring: true,
			}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/enrollments/"+grantID.String()+"/cancel", nil, buyerID)
	req = addRouteParam(req, "grantId", grantID.String())
	resp := httptest.NewRecorder()
	CancelEnrollment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data grantResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.State != string(enums.GrantStateCancelScheduled) {
		t.Fatalf("expected cancel_scheduled, got %s", envelope.Data.State)
	}
}

func TestCancelEnrollmentForwardsSubscriptionRef(t *testing.T) {
	buyerID := uuid.New()
	grantID := uuid.New()
	svc := &testCancelService{
		cancelFn: func(ctx context.Context, gotGrant, gotBuyer uuid.UUID, subscriptionRef string) (*models.AccessGrant, error) {
			if subscriptionRef != "sub_123" {
				t.Fatalf("expected sub_123, got %q", subscriptionRef)
			}
			return &models.AccessGrant{
				ID:          gotGrant,
				BuyerID:     gotBuyer,
				State:       enums.GrantStateCancelScheduled,
				IsRecurring: true,
			}, nil
		},
	}

	body, _ := json.Marshal(map[string]any{"subscription_ref": "sub_123"})
	req := authedRequest(http.MethodPost, "/api/v1/enrollments/"+grantID.String()+"/cancel", body, buyerID)
	req.Header.Set("Content-Type", "application/json")
	req = addRouteParam(req, "grantId", grantID.String())
	resp := httptest.NewRecorder()
	CancelEnrollment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestCancelEnrollmentForeignGrantStaysHidden(t *testing.T) {
	svc := &testCancelService{
		cancelFn: func(ctx context.Context, grantID, callerBuyerID uuid.UUID, subscriptionRef string) (*models.AccessGrant, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "access grant not found")
		},
	}

	grantID := uuid.New()
	req := authedRequest(http.MethodPost, "/api/v1/enrollments/"+grantID.String()+"/cancel", nil, uuid.New())
	req = addRouteParam(req, "grantId", grantID.String())
	resp := httptest.NewRecorder()
	CancelEnrollment(svc, testLogger())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestCheckAccessReportsGate(t *testing.T) {
	buyerID := uuid.New()
	purchasableID := uuid.New()
	svc := &testGrantsService{
		hasAccessFn: func(ctx context.Context, key grants.GrantKey) (bool, error) {
			if key.BuyerID != buyerID || key.PurchasableID != purchasableID {
				t.Fatalf("unexpected key %+v", key)
			}
			return true, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/enrollments/course/"+purchasableID.String()+"/access", nil, buyerID)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("kind", "course")
	routeCtx.URLParams.Add("purchasableId", purchasableID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	resp := httptest.NewRecorder()
	CheckAccess(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data["has_access"] {
		t.Fatal("expected has_access true")
	}
}
