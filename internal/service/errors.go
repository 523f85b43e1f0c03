package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrSubmissionNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "submission")
}

func NewErrSupplierNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "supplier")
}

func NewErrSupplierContactNotFound(contactID string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("supplier with contact %q not found", contactID)}
}

func NewErrTemplateNotFound(id string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("template %s not found", id)}
}

// ErrValidationConflict is returned when a decision targets a submission that is already decided
// or not yet extracted.
type ErrValidationConflict struct {
	error
}

func NewErrValidationConflict(id uuid.UUID) *ErrValidationConflict {
	return &ErrValidationConflict{fmt.Errorf("submission %s is not awaiting a review decision", id)}
}

type ErrSubmissionNotProcessable struct {
	error
}

func NewErrSubmissionNotProcessable(id uuid.UUID) *ErrSubmissionNotProcessable {
	return &ErrSubmissionNotProcessable{fmt.Errorf("submission %s cannot be processed in its current state", id)}
}

type ErrInventoryCommitFailed struct {
	error
}

func NewErrInventoryCommitFailed(id uuid.UUID, cause error) *ErrInventoryCommitFailed {
	return &ErrInventoryCommitFailed{fmt.Errorf("inventory commit failed for submission %s: %w", id, cause)}
}

type ErrMalformedFeedback struct {
	error
}

func NewErrMalformedFeedback(format string, args ...any) *ErrMalformedFeedback {
	return &ErrMalformedFeedback{fmt.Errorf("malformed feedback: "+format, args...)}
}

type ErrInvalidInput struct {
	error
}

func NewErrInvalidInput(format string, args ...any) *ErrInvalidInput {
	return &ErrInvalidInput{fmt.Errorf("invalid input: "+format, args...)}
}

type ErrSupplierInactive struct {
	error
}

func NewErrSupplierInactive(id uuid.UUID) *ErrSupplierInactive {
	return &ErrSupplierInactive{fmt.Errorf("supplier %s is not active", id)}
}

type ErrInvalidProposal struct {
	error
}

func NewErrInvalidProposal(cause error) *ErrInvalidProposal {
	return &ErrInvalidProposal{cause}
}

type ErrInvalidQueueFilter struct {
	error
}

func NewErrInvalidQueueFilter(format string, args ...any) *ErrInvalidQueueFilter {
	return &ErrInvalidQueueFilter{fmt.Errorf("invalid queue filter: "+format, args...)}
}

type ErrDuplicateResource struct {
	error
}

func NewErrDuplicateResource(resourceType, key string) *ErrDuplicateResource {
	return &ErrDuplicateResource{fmt.Errorf("%s %q already exists", resourceType, key)}
}

// ErrTemplateConflict is returned when a template changed between reading and applying a proposal.
type ErrTemplateConflict struct {
	error
}

func NewErrTemplateConflict(id string, version int) *ErrTemplateConflict {
	return &ErrTemplateConflict{fmt.Errorf("template %s is no longer at version %d", id, version)}
}
