package absence

import (
	"context"
	"errors"
	"time"
)

// Service coordinates absence recording and justification review.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Mark records a new absence. Hours must be non-negative; a zero date
// defaults to today.
func (s *Service) Mark(ctx context.Context, rec Record) (Record, error) {
	if rec.StudentID == "" {
		return Record{}, errors.New("student id required")
	}
	if rec.Hours < 0 {
		return Record{}, errors.New("hours must be non-negative")
	}
	if rec.Date.IsZero() {
		rec.Date = time.Now().UTC().Truncate(24 * time.Hour)
	}
	rec.Status = StatusPending
	return s.repo.InsertRecord(ctx, rec)
}

// SetStatus moves an absence to one of the three justification states.
func (s *Service) SetStatus(ctx context.Context, id, status string) error {
	switch status {
	case StatusPending, StatusJustified, StatusUnjustified:
	default:
		return errors.New("unknown absence status")
	}
	return s.repo.UpdateRecordStatus(ctx, id, status)
}

// SubmitJustification files a justification against an existing absence.
func (s *Service) SubmitJustification(ctx context.Context, j Justification) (Justification, error) {
	if j.AbsenceID == "" {
		return Justification{}, errors.New("absence id required")
	}
	if j.Reason == "" {
		return Justification{}, errors.New("reason required")
	}
	if _, err := s.repo.GetRecord(ctx, j.AbsenceID); err != nil {
		return Justification{}, errors.New("absence not found")
	}
	return s.repo.InsertJustification(ctx, j)
}

// Review approves or rejects a justification and propagates the outcome
// to the underlying absence: approval justifies it, rejection marks it
// unjustified.
func (s *Service) Review(ctx context.Context, id string, approve bool) (*Justification, error) {
	j, err := s.repo.GetJustification(ctx, id)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, errors.New("justification not found")
	}
	if j.Status != ReviewPending {
		return nil, errors.New("justification already reviewed")
	}

	outcome, absStatus := ReviewApproved, StatusJustified
	if !approve {
		outcome, absStatus = ReviewRejected, StatusUnjustified
	}
	if err := s.repo.UpdateJustificationStatus(ctx, id, outcome); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRecordStatus(ctx, j.AbsenceID, absStatus); err != nil {
		return nil, err
	}
	j.Status = outcome
	return j, nil
}
