package service

import (
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/attendance-core/internal/models"
	"github.com/noah-isme/attendance-core/internal/repository"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
)

// NewValidator returns a validator with the domain tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("sort_order", func(fl validator.FieldLevel) bool {
		return models.SortOrder(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("session_date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.SessionDateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("session_time", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		_, err := time.Parse(models.SessionTimeLayout, raw)
		return err == nil && len(raw) == len(models.SessionTimeLayout)
	})
	return v
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func requireOrder(order models.SortOrder) error {
	if !order.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "sort order must be asc or desc")
	}
	return nil
}

// storeError maps repository failures onto the typed error taxonomy.
// Typed errors raised inside a transaction callback pass through untouched.
func storeError(err error, notFound, fallback string) error {
	var typed *appErrors.Error
	switch {
	case errors.As(err, &typed):
		return typed
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Wrap(err, appErrors.ErrDuplicateKey.Code, appErrors.ErrDuplicateKey.Status, "record already exists")
	case errors.Is(err, repository.ErrReference):
		return appErrors.Wrap(err, appErrors.ErrReferenceNotFound.Code, appErrors.ErrReferenceNotFound.Status, "referenced record not found")
	case errors.Is(err, repository.ErrInUse):
		return appErrors.Wrap(err, appErrors.ErrReferenceInUse.Code, appErrors.ErrReferenceInUse.Status, "record is still referenced")
	case errors.Is(err, repository.ErrCheck):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "value outside the allowed set")
	case errors.Is(err, repository.ErrNotMember):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student is not a member of the session group")
	default:
		return appErrors.Internal(err, fallback)
	}
}
