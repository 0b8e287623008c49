package run

import (
	"github.com/google/uuid"

	"github.com/epireve/currency-api/internal/apperror"
)

const maxListLimit = 100

type GetRunRequest struct {
	ID string
}

func (r GetRunRequest) Validate() *apperror.AppError {
	if _, err := uuid.Parse(r.ID); err != nil {
		return apperror.New(apperror.BadRequest, "invalid run id")
	}
	return nil
}

type ListRunsRequest struct {
	Status Status
	Limit  int
}

func (r ListRunsRequest) Validate() *apperror.AppError {
	if r.Status != "" && !r.Status.Valid() {
		return apperror.New(apperror.BadRequest, "unknown run status")
	}
	if r.Limit < 0 || r.Limit > maxListLimit {
		return apperror.New(apperror.BadRequest, "limit must be between 0 and 100")
	}
	return nil
}
