package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// ExceptionStore captures the exception operations needed by the service.
type ExceptionStore interface {
	CreateException(ctx context.Context, exception schedule.Exception) error
	ListExceptionsInRange(ctx context.Context, subjectID string, start, end time.Time) ([]schedule.Exception, error)
	DeleteException(ctx context.Context, id string) error
}

// exceptionShiftReader is the read-only shift access shift-change exceptions
// need to validate and hydrate their target shift.
type exceptionShiftReader interface {
	GetShift(ctx context.Context, id string) (schedule.Shift, error)
}

// ExceptionService records approved schedule exceptions. Approval workflow
// lives outside this system: everything recorded here is already decided and
// is applied to generated days immediately.
type ExceptionService struct {
	exceptions  ExceptionStore
	shifts      exceptionShiftReader
	idGenerator func() string
	now         func() time.Time
	invalidate  func()
	logger      *slog.Logger
}

// NewExceptionService constructs an exception service.
func NewExceptionService(exceptions ExceptionStore, shifts exceptionShiftReader, idGenerator func() string, now func() time.Time, invalidate func(), logger *slog.Logger) *ExceptionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if invalidate == nil {
		invalidate = func() {}
	}
	return &ExceptionService{
		exceptions:  exceptions,
		shifts:      shifts,
		idGenerator: idGenerator,
		now:         now,
		invalidate:  invalidate,
		logger:      defaultLogger(logger),
	}
}

func (s *ExceptionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ExceptionService", operation, attrs...)
}

// RecordException validates and persists an approved exception.
func (s *ExceptionService) RecordException(ctx context.Context, params RecordExceptionParams) (exception schedule.Exception, err error) {
	if s == nil || s.exceptions == nil {
		err = fmt.Errorf("exception store not configured")
		return
	}

	input := params.Input
	logger := s.loggerWith(ctx, "RecordException",
		"principal_id", params.Principal.UserID,
		"subject_id", input.SubjectID,
		"kind", input.Kind,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to record exception", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("exception_id", exception.ID).InfoContext(ctx, "exception recorded")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	kind := schedule.ParseExceptionKind(input.Kind)
	vErr := validateExceptionInput(input, kind)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var targetShift *schedule.Shift
	if kind == schedule.ExceptionShiftChange {
		shift, getErr := s.shifts.GetShift(ctx, input.TargetShiftID)
		if getErr != nil {
			if errors.Is(getErr, persistence.ErrNotFound) {
				vErr := &ValidationError{}
				vErr.add("target_shift_id", "target shift does not exist")
				err = vErr
				return
			}
			err = mapPlanningStoreError(getErr)
			return
		}
		targetShift = &shift
	}

	exception = schedule.Exception{
		ID:             s.idGenerator(),
		SubjectID:      input.SubjectID,
		Kind:           kind,
		Priority:       input.Priority,
		StartDate:      schedule.NormalizeDate(input.StartDate),
		TargetShift:    targetShift,
		ReducedMinutes: input.ReducedMinutes,
		Note:           input.Note,
		CreatedAt:      s.now().UTC(),
	}
	if !input.EndDate.IsZero() {
		exception.EndDate = schedule.NormalizeDate(input.EndDate)
	}

	if err = s.exceptions.CreateException(ctx, exception); err != nil {
		err = mapPlanningStoreError(err)
		exception = schedule.Exception{}
		return
	}

	s.invalidate()
	return
}

// ListExceptions returns the exceptions overlapping [start, end] for a subject.
func (s *ExceptionService) ListExceptions(ctx context.Context, principal Principal, subjectID string, start, end time.Time) ([]schedule.Exception, error) {
	if s == nil || s.exceptions == nil {
		return nil, fmt.Errorf("exception store not configured")
	}
	exceptions, err := s.exceptions.ListExceptionsInRange(ctx, subjectID, schedule.NormalizeDate(start), schedule.NormalizeDate(end))
	if err != nil {
		return nil, mapPlanningStoreError(err)
	}
	return exceptions, nil
}

// DeleteException removes a recorded exception.
func (s *ExceptionService) DeleteException(ctx context.Context, principal Principal, exceptionID string) error {
	if s == nil || s.exceptions == nil {
		return fmt.Errorf("exception store not configured")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "DeleteException", "principal_id", principal.UserID, "exception_id", exceptionID)
	if err := s.exceptions.DeleteException(ctx, exceptionID); err != nil {
		err = mapPlanningStoreError(err)
		logger.ErrorContext(ctx, "failed to delete exception", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.invalidate()
	logger.InfoContext(ctx, "exception deleted")
	return nil
}

func validateExceptionInput(input ExceptionInput, kind schedule.ExceptionKind) *ValidationError {
	vErr := &ValidationError{}

	if input.SubjectID == "" {
		vErr.add("subject_id", "subject id is required")
	}
	if input.StartDate.IsZero() {
		vErr.add("start_date", "start date is required")
	}
	if !input.EndDate.IsZero() && !input.StartDate.IsZero() {
		if schedule.NormalizeDate(input.EndDate).Before(schedule.NormalizeDate(input.StartDate)) {
			vErr.add("end_date", "end date must not precede start date")
		}
	}
	if input.Priority < 0 {
		vErr.add("priority", "priority must not be negative")
	}

	switch kind {
	case schedule.ExceptionAbsence:
		if input.TargetShiftID != "" {
			vErr.add("target_shift_id", "absence does not take a target shift")
		}
	case schedule.ExceptionShiftChange:
		if input.TargetShiftID == "" {
			vErr.add("target_shift_id", "shift change requires a target shift")
		}
	case schedule.ExceptionTimeReduction:
		if input.ReducedMinutes <= 0 {
			vErr.add("reduced_minutes", "time reduction requires a positive minute count")
		}
	default:
		vErr.add("kind", "kind must be absence, shift_change, or time_reduction")
	}

	return vErr
}
