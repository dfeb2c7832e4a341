package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-core/internal/access"
	"github.com/noah-isme/attendance-core/internal/models"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
)

type subjectRepository interface {
	Create(ctx context.Context, subject *models.Subject) error
	List(ctx context.Context) ([]models.Subject, error)
	Delete(ctx context.Context, id int64) error
}

// SubjectService coordinates subject management.
type SubjectService struct {
	repo      subjectRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService builds a SubjectService.
func NewSubjectService(repo subjectRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &SubjectService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns every subject.
func (s *SubjectService) List(ctx context.Context, identity models.Identity) ([]models.Subject, error) {
	if err := access.Authorize(identity, access.ManageSubjects); err != nil {
		return nil, err
	}
	subjects, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list subjects")
	}
	return subjects, nil
}

// Create adds a subject.
func (s *SubjectService) Create(ctx context.Context, identity models.Identity, req models.CreateSubjectRequest) (*models.Subject, error) {
	if err := access.Authorize(identity, access.ManageSubjects); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid subject payload")
	}

	subject := &models.Subject{Name: req.Name}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, storeError(err, "subject not found", "failed to create subject")
	}
	s.logger.Info("subject created", zap.Int64("subject_id", subject.ID), zap.Int64("actor_id", identity.ID))
	return subject, nil
}

// Delete removes a subject, its sessions and their attendance records.
func (s *SubjectService) Delete(ctx context.Context, identity models.Identity, id int64) error {
	if err := access.Authorize(identity, access.ManageSubjects); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err, "subject not found", "failed to delete subject")
	}
	s.cache.InvalidateReports(ctx)
	s.logger.Info("subject deleted", zap.Int64("subject_id", id), zap.Int64("actor_id", identity.ID))
	return nil
}
