package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
)

// PricingTerms is the flattened sale contract for one purchasable, shared by
// checkout, cancellation routing, and the catalog endpoints.
type PricingTerms struct {
	Kind            enums.PurchasableKind
	PurchasableID   uuid.UUID
	SchoolID        uuid.UUID
	Title           string
	Published       bool
	PriceCents      int64
	Currency        enums.Currency
	Recurring       bool
	BillingInterval *enums.BillingInterval
	TrialDays       int
	VATRate         decimal.Decimal
	// SellerAccountID routes provider calls to a connected seller account.
	// Nil means the platform account.
	SellerAccountID *string
}

// Service resolves purchasables into their pricing terms.
type Service interface {
	Resolve(ctx context.Context, kind enums.PurchasableKind, id uuid.UUID) (*PricingTerms, error)
	ListCourses(ctx context.Context, limit int) ([]models.Course, error)
	ListPaths(ctx context.Context, limit int) ([]models.LearningPath, error)
	GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error)
	GetPath(ctx context.Context, id uuid.UUID) (*models.LearningPath, error)
}

type service struct {
	repo Repository
}

// NewService builds the catalog registry service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// Resolve maps (kind, id) to pricing terms. Unknown or unpublished
// purchasables come back as NotFound so callers cannot sell drafts.
func (s *service) Resolve(ctx context.Context, kind enums.PurchasableKind, id uuid.UUID) (*PricingTerms, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown purchasable kind")
	}

	switch kind {
	case enums.PurchasableKindCourse:
		course, err := s.repo.FindCourse(ctx, id)
		if err != nil {
			return nil, notFoundOrInternal(err, "course not found")
		}
		if !course.Published {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return &PricingTerms{
			Kind:            kind,
			PurchasableID:   course.ID,
			SchoolID:        course.SchoolID,
			Title:           course.Title,
			Published:       course.Published,
			PriceCents:      course.PriceCents,
			Currency:        course.Currency,
			Recurring:       course.Recurring,
			BillingInterval: course.BillingInterval,
			TrialDays:       course.TrialDays,
			VATRate:         course.VATRate,
			SellerAccountID: course.SellerAccountID,
		}, nil

	case enums.PurchasableKindPath:
		path, err := s.repo.FindPath(ctx, id)
		if err != nil {
			return nil, notFoundOrInternal(err, "learning path not found")
		}
		if !path.Published {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "learning path not found")
		}
		return &PricingTerms{
			Kind:            kind,
			PurchasableID:   path.ID,
			SchoolID:        path.SchoolID,
			Title:           path.Title,
			Published:       path.Published,
			PriceCents:      path.PriceCents,
			Currency:        path.Currency,
			Recurring:       path.Recurring,
			BillingInterval: path.BillingInterval,
			TrialDays:       path.TrialDays,
			VATRate:         path.VATRate,
			SellerAccountID: path.SellerAccountID,
		}, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown purchasable kind")
}

func (s *service) ListCourses(ctx context.Context, limit int) ([]models.Course, error) {
	rows, err := s.repo.ListCourses(ctx, true, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing courses")
	}
	return rows, nil
}

func (s *service) ListPaths(ctx context.Context, limit int) ([]models.LearningPath, error) {
	rows, err := s.repo.ListPaths(ctx, true, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing learning paths")
	}
	return rows, nil
}

func (s *service) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	course, err := s.repo.FindCourse(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "course not found")
	}
	if !course.Published {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}
	return course, nil
}

func (s *service) GetPath(ctx context.Context, id uuid.UUID) (*models.LearningPath, error) {
	path, err := s.repo.FindPath(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "learning path not found")
	}
	if !path.Published {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "learning path not found")
	}
	return path, nil
}

func notFoundOrInternal(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading purchasable")
}
