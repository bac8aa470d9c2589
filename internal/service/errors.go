package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrInvalidRequest struct {
	error
}

func NewErrInvalidRequest(message string) *ErrInvalidRequest {
	return &ErrInvalidRequest{fmt.Errorf("bad request: %s", message)}
}

func NewErrUnknownKind(kind string) *ErrInvalidRequest {
	return NewErrInvalidRequest(fmt.Sprintf("unknown target kind %q", kind))
}

func NewErrUnknownSource(name string) *ErrInvalidRequest {
	return NewErrInvalidRequest(fmt.Sprintf("unknown source %q", name))
}

func NewErrEmptyBatch() *ErrInvalidRequest {
	return NewErrInvalidRequest("item_ids must not be empty")
}

type ErrJobNotFound struct {
	error
}

func NewErrJobNotFound(id uuid.UUID) *ErrJobNotFound {
	return &ErrJobNotFound{fmt.Errorf("job %s not found", id)}
}

type ErrEnrichedRecordNotFound struct {
	error
}

func NewErrEnrichedRecordNotFound(itemID string) *ErrEnrichedRecordNotFound {
	return &ErrEnrichedRecordNotFound{fmt.Errorf("enriched record for %s not found", itemID)}
}
