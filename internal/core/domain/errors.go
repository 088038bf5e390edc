package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the stable identifier transports expose for a failure class.
type ErrorCode string

const (
	CodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	CodeItemNotFound      ErrorCode = "ITEM_NOT_FOUND"
	CodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"
	CodeContention        ErrorCode = "CONTENTION"
	CodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	CodeSlotTaken         ErrorCode = "SLOT_TAKEN"
	CodePostNotFound      ErrorCode = "POST_NOT_FOUND"
)

var (
	ErrValidationFailed  = errors.New("validation failed")
	ErrItemNotFound      = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrContention        = errors.New("too much contention")
	ErrStorageFailure    = errors.New("storage failure")
	ErrSlotTaken         = errors.New("time slot already booked")
	ErrPostNotFound      = errors.New("post not found")
)

// CodeOf returns the error code for err, or CodeStorageFailure for unknown errors.
func CodeOf(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrValidationFailed):
		return CodeValidationFailed
	case errors.Is(err, ErrItemNotFound):
		return CodeItemNotFound
	case errors.Is(err, ErrInsufficientStock):
		return CodeInsufficientStock
	case errors.Is(err, ErrContention):
		return CodeContention
	case errors.Is(err, ErrSlotTaken):
		return CodeSlotTaken
	case errors.Is(err, ErrPostNotFound):
		return CodePostNotFound
	default:
		return CodeStorageFailure
	}
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every offending field of a rejected request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// Add appends a field error.
func (e *ValidationError) Add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// OrNil returns nil when no field errors were collected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %q does not exist in inventory", e.ItemID)
}

func (e *ItemNotFoundError) Is(target error) bool { return target == ErrItemNotFound }

type InsufficientStockError struct {
	ItemID    string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %q: only %d left, %d requested", e.ItemID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ContentionError is returned once the retry budget is spent on write conflicts.
type ContentionError struct {
	Attempts int
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("gave up after %d conflicting attempts", e.Attempts)
}

func (e *ContentionError) Is(target error) bool { return target == ErrContention }

// StorageError wraps an unexpected backend failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorageFailure }

func (e *StorageError) Unwrap() error { return e.Err }

type SlotTakenError struct {
	ResourceID string
	TimeSlot   string
}

func (e *SlotTakenError) Error() string {
	return fmt.Sprintf("resource %q is already booked for %s", e.ResourceID, e.TimeSlot)
}

func (e *SlotTakenError) Is(target error) bool { return target == ErrSlotTaken }

type PostNotFoundError struct {
	PostID string
}

func (e *PostNotFoundError) Error() string {
	return fmt.Sprintf("post %q does not exist", e.PostID)
}

func (e *PostNotFoundError) Is(target error) bool { return target == ErrPostNotFound }
