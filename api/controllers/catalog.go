package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adamzielonka/coursepath-backend/api/responses"
	"github.com/adamzielonka/coursepath-backend/api/validators"
	"github.com/adamzielonka/coursepath-backend/internal/catalog"
	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
)

// ListCourses serves the public course catalog, newest first.
func ListCourses(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		courses, err := svc.ListCourses(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]courseResponse, 0, len(courses))
		for _, course := range courses {
			items = append(items, newCourseResponse(course))
		}
		responses.WriteSuccess(w, map[string]any{"courses": items})
	}
}

// ListPaths serves the public learning path catalog.
func ListPaths(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		paths, err := svc.ListPaths(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]pathResponse, 0, len(paths))
		for _, path := range paths {
			items = append(items, newPathResponse(path))
		}
		responses.WriteSuccess(w, map[string]any{"paths": items})
	}
}

func GetCourse(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		courseID, err := pathUUID(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		course, err := svc.GetCourse(r.Context(), courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCourseResponse(*course))
	}
}

func GetPath(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		pathID, err := pathUUID(r, "pathId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		path, err := svc.GetPath(r.Context(), pathID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPathResponse(*path))
	}
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	value, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a uuid").
			WithDetails(map[string]any{"field": param})
	}
	return value, nil
}

type courseResponse struct {
	ID              uuid.UUID `json:"id"`
	SchoolID        uuid.UUID `json:"school_id"`
	Title           string    `json:"title"`
	Description     *string   `json:"description,omitempty"`
	PriceCents      int64     `json:"price_cents"`
	Currency        string    `json:"currency"`
	Recurring       bool      `json:"recurring"`
	BillingInterval *string   `json:"billing_interval,omitempty"`
	TrialDays       int       `json:"trial_days"`
	VATRate         string    `json:"vat_rate"`
	CreatedAt       time.Time `json:"created_at"`
}

type pathResponse struct {
	ID              uuid.UUID `json:"id"`
	SchoolID        uuid.UUID `json:"school_id"`
	Title           string    `json:"title"`
	Description     *string   `json:"description,omitempty"`
	PriceCents      int64     `json:"price_cents"`
	Currency        string    `json:"currency"`
	Recurring       bool      `json:"recurring"`
	BillingInterval *string   `json:"billing_interval,omitempty"`
	TrialDays       int       `json:"trial_days"`
	VATRate         string    `json:"vat_rate"`
	CreatedAt       time.Time `json:"created_at"`
}

func newCourseResponse(course models.Course) courseResponse {
	return courseResponse{
		ID:              course.ID,
		SchoolID:        course.SchoolID,
		Title:           course.Title,
		Description:     course.Description,
		PriceCents:      course.PriceCents,
		Currency:        string(course.Currency),
		Recurring:       course.Recurring,
		BillingInterval: intervalString(course.BillingInterval),
		TrialDays:       course.TrialDays,
		VATRate:         course.VATRate.String(),
		CreatedAt:       course.CreatedAt,
	}
}

func intervalString(interval *enums.BillingInterval) *string {
	if interval == nil {
		return nil
	}
	value := string(*interval)
	return &value
}

func newPathResponse(path models.LearningPath) pathResponse {
	return pathResponse{
		ID:              path.ID,
		SchoolID:        path.SchoolID,
		Title:           path.Title,
		Description:     path.Description,
		PriceCents:      path.PriceCents,
		Currency:        string(path.Currency),
		Recurring:       path.Recurring,
		BillingInterval: intervalString(path.BillingInterval),
		TrialDays:       path.TrialDays,
		VATRate:         path.VATRate.String(),
		CreatedAt:       path.CreatedAt,
	}
}
