package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adamzielonka/coursepath-backend/internal/catalog"
	checkoutsvc "github.com/adamzielonka/coursepath-backend/internal/checkout"
	"github.com/adamzielonka/coursepath-backend/internal/grants"
	pkgAuth "github.com/adamzielonka/coursepath-backend/pkg/auth"
	"github.com/adamzielonka/coursepath-backend/pkg/config"
	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
	"github.com/stripe/stripe-go/v84"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCatalogService struct{}

func (stubCatalogService) Resolve(ctx context.Context, kind enums.PurchasableKind, id uuid.UUID) (*catalog.PricingTerms, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchasable not found")
}

func (stubCatalogService) ListCourses(ctx context.Context, limit int) ([]models.Course, error) {
	return []models.Course{}, nil
}

func (stubCatalogService) ListPaths(ctx context.Context, limit int) ([]models.LearningPath, error) {
	return []models.LearningPath{}, nil
}

func (stubCatalogService) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
}

func (stubCatalogService) GetPath(ctx context.Context, id uuid.UUID) (*models.LearningPath, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "learning path not found")
}

type stubCheckoutService struct{}

func (stubCheckoutService) Start(ctx context.Context, input checkoutsvc.StartInput) (*checkoutsvc.Session, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

type stubGrantsService struct{}

func (stubGrantsService) GetOrCreate(ctx context.Context, key grants.GrantKey, seed models.AccessGrant) (*models.AccessGrant, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubGrantsService) Apply(ctx context.Context, key grants.GrantKey, trigger grants.Trigger, input grants.ApplyInput) (*grants.ApplyResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubGrantsService) ApplyToGrant(ctx context.Context, grant *models.AccessGrant, trigger grants.Trigger, input grants.ApplyInput) (*grants.ApplyResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubGrantsService) RecordPurchase(ctx context.Context, input grants.PurchaseInput) (bool, error) {
	return false, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubGrantsService) Reconcile(ctx context.Context, key grants.GrantKey, status string) (*models.AccessGrant, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubGrantsService) HasAccess(ctx context.Context, key grants.GrantKey) (bool, error) {
	return false, nil
}

func (stubGrantsService) GetGrant(ctx context.Context, grantID uuid.UUID) (*models.AccessGrant, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "access grant not found")
}

func (stubGrantsService) ListGrants(ctx context.Context, buyerID uuid.UUID) ([]models.AccessGrant, error) {
	return []models.AccessGrant{}, nil
}

type stubCancelService struct{}

func (stubCancelService) Cancel(ctx context.Context, grantID, callerBuyerID uuid.UUID, subscriptionRef string) (*models.AccessGrant, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "access grant not found")
}

type stubWebhookService struct{}

func (stubWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "coursepath-test",
			ExpirationMinutes: 15,
		},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	return NewRouter(
		testConfig(),
		logg,
		stubPinger{},
		nil,
		stubCatalogService{},
		stubCheckoutService{},
		stubGrantsService{},
		stubCancelService{},
		stubWebhookService{},
		nil,
	)
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("X-CoursePath-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestRouterCatalogIsPublic(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/courses", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("catalog should not require a token, got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestRouterEnrollmentsRequireToken(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/enrollments", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
}

func TestRouterEnrollmentsWithToken(t *testing.T) {
	cfg := testConfig()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.MemberRoleStudent,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/enrollments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Enrollments []json.RawMessage `json:"enrollments"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Enrollments == nil {
		t.Fatal("expected enrollments array in response")
	}
}

func TestRouterWebhookSkipsAuth(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	// No bearer token and no signature header: the webhook controller owns
	// the rejection, not the JWT middleware.
	if resp.Code == http.StatusUnauthorized {
		t.Fatal("webhook route must not sit behind JWT auth")
	}
}
