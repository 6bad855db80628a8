package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/merge"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/render"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, store.ErrDesignNotFound):
		return http.StatusNotFound, "DESIGN_NOT_FOUND", "No design found with this id", nil
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND", "No user found with this email", nil
	case errors.Is(err, store.ErrBrandNotFound):
		return http.StatusNotFound, "BRAND_NOT_FOUND", "No brand found for this user", nil
	case errors.Is(err, merge.ErrMissingDesign), errors.Is(err, merge.ErrMissingBrand):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, render.ErrUnsupportedMime), errors.Is(err, render.ErrNoPages):
		return http.StatusBadRequest, "INVALID_PREVIEW_OPTIONS", err.Error(), nil
	case errors.Is(err, merge.ErrNoRenderer):
		return http.StatusServiceUnavailable, "PREVIEW_UNAVAILABLE", "Preview rendering is not configured", nil
	case errors.Is(err, render.ErrRemoteRender):
		return http.StatusBadGateway, "PREVIEW_FAILED", "Preview rendering failed", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
