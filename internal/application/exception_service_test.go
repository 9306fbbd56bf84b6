package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

type exceptionStoreStub struct {
	created    *schedule.Exception
	createErr  error
	exceptions []schedule.Exception
	listErr    error
	deletedID  string
	deleteErr  error
}

func (s *exceptionStoreStub) CreateException(ctx context.Context, exception schedule.Exception) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = &exception
	return nil
}

func (s *exceptionStoreStub) ListExceptionsInRange(ctx context.Context, subjectID string, start, end time.Time) ([]schedule.Exception, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.exceptions, nil
}

func (s *exceptionStoreStub) DeleteException(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedID = id
	return nil
}

type shiftReaderStub struct {
	shift schedule.Shift
	err   error
}

func (s *shiftReaderStub) GetShift(ctx context.Context, id string) (schedule.Shift, error) {
	if s.err != nil {
		return schedule.Shift{}, s.err
	}
	return s.shift, nil
}

func TestExceptionService_RecordException(t *testing.T) {
	ctx := context.Background()
	admin := Principal{UserID: "admin-1", IsAdmin: true}
	fixedNow := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	day := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	absenceInput := ExceptionInput{
		SubjectID: "user-1",
		Kind:      "absence",
		Priority:  1,
		StartDate: day,
		EndDate:   day,
	}

	t.Run("requires administrator privileges", func(t *testing.T) {
		store := &exceptionStoreStub{}
		service := NewExceptionService(store, &shiftReaderStub{}, nil, fixedNow, nil, nil)

		_, err := service.RecordException(ctx, RecordExceptionParams{
			Principal: Principal{UserID: "user-1"},
			Input:     absenceInput,
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if store.created != nil {
			t.Fatalf("nothing should be persisted")
		}
	})

	t.Run("records an absence and invalidates the cache", func(t *testing.T) {
		store := &exceptionStoreStub{}
		counter := &invalidationCounter{}
		service := NewExceptionService(store, &shiftReaderStub{}, func() string { return "exc-1" }, fixedNow, counter.invalidate, nil)

		exception, err := service.RecordException(ctx, RecordExceptionParams{Principal: admin, Input: absenceInput})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exception.ID != "exc-1" || exception.Kind != schedule.ExceptionAbsence {
			t.Fatalf("unexpected exception: %+v", exception)
		}
		if !exception.CreatedAt.Equal(fixedNow()) {
			t.Fatalf("expected the injected clock to stamp creation, got %v", exception.CreatedAt)
		}
		if counter.calls != 1 {
			t.Fatalf("expected one cache invalidation, got %d", counter.calls)
		}
	})

	t.Run("hydrates the target shift for a shift change", func(t *testing.T) {
		store := &exceptionStoreStub{}
		reader := &shiftReaderStub{shift: schedule.Shift{ID: "shift-night", Name: "Night", Start: "21:00", End: "05:00"}}
		service := NewExceptionService(store, reader, func() string { return "exc-1" }, fixedNow, nil, nil)

		exception, err := service.RecordException(ctx, RecordExceptionParams{
			Principal: admin,
			Input: ExceptionInput{
				SubjectID:     "user-1",
				Kind:          "shift_change",
				Priority:      5,
				StartDate:     day,
				EndDate:       day,
				TargetShiftID: "shift-night",
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exception.TargetShift == nil || exception.TargetShift.ID != "shift-night" {
			t.Fatalf("expected the target shift hydrated, got %+v", exception.TargetShift)
		}
	})

	t.Run("rejects a shift change whose target does not exist", func(t *testing.T) {
		service := NewExceptionService(&exceptionStoreStub{}, &shiftReaderStub{err: persistence.ErrNotFound}, nil, fixedNow, nil, nil)

		_, err := service.RecordException(ctx, RecordExceptionParams{
			Principal: admin,
			Input: ExceptionInput{
				SubjectID:     "user-1",
				Kind:          "shift_change",
				StartDate:     day,
				TargetShiftID: "shift-missing",
			},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected a validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["target_shift_id"]; !ok {
			t.Fatalf("expected target_shift_id to be flagged, got %v", vErr.FieldErrors)
		}
	})

	t.Run("validates per-kind constraints", func(t *testing.T) {
		service := NewExceptionService(&exceptionStoreStub{}, &shiftReaderStub{}, nil, fixedNow, nil, nil)

		tests := []struct {
			name  string
			input ExceptionInput
			field string
		}{
			{
				name:  "unknown kind",
				input: ExceptionInput{SubjectID: "user-1", Kind: "vacation", StartDate: day},
				field: "kind",
			},
			{
				name: "absence with a target shift",
				input: ExceptionInput{
					SubjectID: "user-1", Kind: "absence", StartDate: day, TargetShiftID: "shift-night",
				},
				field: "target_shift_id",
			},
			{
				name:  "shift change without a target",
				input: ExceptionInput{SubjectID: "user-1", Kind: "shift_change", StartDate: day},
				field: "target_shift_id",
			},
			{
				name:  "time reduction without minutes",
				input: ExceptionInput{SubjectID: "user-1", Kind: "time_reduction", StartDate: day},
				field: "reduced_minutes",
			},
			{
				name: "negative priority",
				input: ExceptionInput{
					SubjectID: "user-1", Kind: "absence", StartDate: day, Priority: -1,
				},
				field: "priority",
			},
			{
				name: "end before start",
				input: ExceptionInput{
					SubjectID: "user-1", Kind: "absence",
					StartDate: day, EndDate: day.AddDate(0, 0, -1),
				},
				field: "end_date",
			},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := service.RecordException(ctx, RecordExceptionParams{Principal: admin, Input: tc.input})
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected a validation error, got %v", err)
				}
				if _, ok := vErr.FieldErrors[tc.field]; !ok {
					t.Fatalf("expected field %q to be flagged, got %v", tc.field, vErr.FieldErrors)
				}
			})
		}
	})
}

func TestExceptionService_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	admin := Principal{UserID: "admin-1", IsAdmin: true}

	t.Run("list returns the stored window", func(t *testing.T) {
		store := &exceptionStoreStub{exceptions: []schedule.Exception{{ID: "exc-1"}, {ID: "exc-2"}}}
		service := NewExceptionService(store, &shiftReaderStub{}, nil, nil, nil, nil)

		exceptions, err := service.ListExceptions(ctx, Principal{UserID: "user-1"}, "user-1", time.Now(), time.Now())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(exceptions) != 2 {
			t.Fatalf("expected 2 exceptions, got %d", len(exceptions))
		}
	})

	t.Run("delete requires administrator privileges", func(t *testing.T) {
		service := NewExceptionService(&exceptionStoreStub{}, &shiftReaderStub{}, nil, nil, nil, nil)

		if err := service.DeleteException(ctx, Principal{UserID: "user-1"}, "exc-1"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("delete invalidates the cache", func(t *testing.T) {
		store := &exceptionStoreStub{}
		counter := &invalidationCounter{}
		service := NewExceptionService(store, &shiftReaderStub{}, nil, nil, counter.invalidate, nil)

		if err := service.DeleteException(ctx, admin, "exc-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.deletedID != "exc-1" || counter.calls != 1 {
			t.Fatalf("expected the delete to land and invalidate once")
		}
	})
}
