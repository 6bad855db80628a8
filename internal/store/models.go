package store

import (
	"errors"
	"time"
)

var (
	ErrDesignNotFound = errors.New("design not found")
	ErrBrandNotFound  = errors.New("brand not found")
	ErrUserNotFound   = errors.New("user not found")
)

// DesignSummary is a design row without its page tree.
type DesignSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Preview   string    `json:"preview,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
