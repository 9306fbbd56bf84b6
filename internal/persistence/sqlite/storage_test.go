package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/recurrence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
	"github.com/calvuzs3/qdue-server/internal/testfixtures"
)

func TestRuleRepository(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	t.Run("round trips a cycle rule", func(t *testing.T) {
		shift := testfixtures.NewShiftFixture()
		team := testfixtures.NewTeamFixture()
		rule := testfixtures.NewCycleRuleFixture(shift.ID, team.ID)

		if err := harness.Rules.CreateRule(ctx, rule); err != nil {
			t.Fatalf("failed to create rule: %v", err)
		}

		got, err := harness.Rules.GetRule(ctx, rule.ID)
		if err != nil {
			t.Fatalf("failed to get rule: %v", err)
		}
		if got.Frequency != recurrence.FrequencyCycle || got.CycleLength != 2 {
			t.Fatalf("unexpected rule shape: %+v", got)
		}
		slots, ok := got.CycleOffsets[0]
		if !ok || len(slots) != 1 || slots[0].ShiftID != shift.ID {
			t.Fatalf("cycle offsets did not survive storage: %+v", got.CycleOffsets)
		}
		if !got.CreatedAt.Equal(rule.CreatedAt) {
			t.Fatalf("created_at drifted: want %v, got %v", rule.CreatedAt, got.CreatedAt)
		}
	})

	t.Run("round trips a calendar rule anchor", func(t *testing.T) {
		rule := testfixtures.NewDailyRuleFixture("shift-x", "team-x")
		if err := harness.Rules.CreateRule(ctx, rule); err != nil {
			t.Fatalf("failed to create rule: %v", err)
		}

		got, err := harness.Rules.GetRule(ctx, rule.ID)
		if err != nil {
			t.Fatalf("failed to get rule: %v", err)
		}
		if !got.AnchorDate.Equal(testfixtures.ReferenceAnchor()) {
			t.Fatalf("anchor drifted: %v", got.AnchorDate)
		}
		if len(got.Slots) != 1 || got.Slots[0].ShiftID != "shift-x" {
			t.Fatalf("slots did not survive storage: %+v", got.Slots)
		}
	})

	t.Run("rejects a duplicate id", func(t *testing.T) {
		rule := testfixtures.NewDailyRuleFixture("shift-x", "team-x")
		if err := harness.Rules.CreateRule(ctx, rule); err != nil {
			t.Fatalf("failed to create rule: %v", err)
		}
		if err := harness.Rules.CreateRule(ctx, rule); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("missing rule yields ErrNotFound", func(t *testing.T) {
		if _, err := harness.Rules.GetRule(ctx, "rule-missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := harness.Rules.DeleteRule(ctx, "rule-missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on delete, got %v", err)
		}
	})

	t.Run("filters by frequency", func(t *testing.T) {
		cycle := testfixtures.NewCycleRuleFixture("shift-f", "team-f")
		if err := harness.Rules.CreateRule(ctx, cycle); err != nil {
			t.Fatalf("failed to create rule: %v", err)
		}

		rules, err := harness.Rules.ListRulesByFrequency(ctx, recurrence.FrequencyCycle)
		if err != nil {
			t.Fatalf("failed to list rules: %v", err)
		}
		for _, r := range rules {
			if r.Frequency != recurrence.FrequencyCycle {
				t.Fatalf("frequency filter leaked %+v", r)
			}
		}
	})
}

func TestAssignmentRepository(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	user := testfixtures.NewUserFixture()
	team := testfixtures.NewTeamFixture()
	rule := testfixtures.NewCycleRuleFixture("shift-a", team.ID)
	if err := harness.Users.CreateUser(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := harness.Teams.CreateTeam(ctx, team); err != nil {
		t.Fatalf("failed to create team: %v", err)
	}
	if err := harness.Rules.CreateRule(ctx, rule); err != nil {
		t.Fatalf("failed to create rule: %v", err)
	}

	subjectID := user.User.ID
	anchor := testfixtures.ReferenceAnchor()

	t.Run("rejects dangling references", func(t *testing.T) {
		asg := testfixtures.NewAssignmentFixture("no-such-user", team.ID, rule.ID)
		if err := harness.Assignments.CreateAssignment(ctx, asg); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
	})

	t.Run("supersede closes the open row before a new one starts", func(t *testing.T) {
		first := testfixtures.NewAssignmentFixture(subjectID, team.ID, rule.ID)
		if err := harness.Assignments.CreateAssignment(ctx, first); err != nil {
			t.Fatalf("failed to create assignment: %v", err)
		}

		newStart := anchor.AddDate(0, 0, 30)
		if err := harness.Assignments.Supersede(ctx, subjectID, newStart.AddDate(0, 0, -1)); err != nil {
			t.Fatalf("failed to supersede: %v", err)
		}
		second := testfixtures.NewAssignmentFixture(subjectID, team.ID, rule.ID,
			testfixtures.WithAssignmentStart(newStart))
		if err := harness.Assignments.CreateAssignment(ctx, second); err != nil {
			t.Fatalf("failed to create replacement: %v", err)
		}

		before, err := harness.Assignments.GetActiveAssignment(ctx, subjectID, anchor.AddDate(0, 0, 10))
		if err != nil {
			t.Fatalf("failed to query the old window: %v", err)
		}
		if before.ID != first.ID {
			t.Fatalf("expected the closed row to still cover its window, got %s", before.ID)
		}
		if before.EndDate == nil || !before.EndDate.Equal(newStart.AddDate(0, 0, -1)) {
			t.Fatalf("expected the old row closed at the day before the handover, got %v", before.EndDate)
		}

		after, err := harness.Assignments.GetActiveAssignment(ctx, subjectID, newStart.AddDate(0, 0, 5))
		if err != nil {
			t.Fatalf("failed to query the new window: %v", err)
		}
		if after.ID != second.ID {
			t.Fatalf("expected the replacement active, got %s", after.ID)
		}

		history, err := harness.Assignments.ListAssignmentsForSubject(ctx, subjectID)
		if err != nil {
			t.Fatalf("failed to list history: %v", err)
		}
		if len(history) != 2 || history[0].ID != first.ID || history[1].ID != second.ID {
			t.Fatalf("expected history oldest first, got %+v", history)
		}
	})

	t.Run("no active assignment yields ErrNotFound", func(t *testing.T) {
		_, err := harness.Assignments.GetActiveAssignment(ctx, subjectID, anchor.AddDate(0, 0, -10))
		if !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound before the first start date, got %v", err)
		}
	})

	t.Run("superseding an idle subject is a no-op", func(t *testing.T) {
		other := testfixtures.NewUserFixture()
		if err := harness.Users.CreateUser(ctx, other); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if err := harness.Assignments.Supersede(ctx, other.User.ID, anchor); err != nil {
			t.Fatalf("expected nil for a subject with no open rows, got %v", err)
		}
	})
}

func TestExceptionRepository(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	user := testfixtures.NewUserFixture()
	if err := harness.Users.CreateUser(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	subjectID := user.User.ID
	day := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	t.Run("effective filter honors the date window", func(t *testing.T) {
		covering := testfixtures.NewExceptionFixture(subjectID, day)
		elsewhere := testfixtures.NewExceptionFixture(subjectID, day.AddDate(0, 0, 7))
		if err := harness.Exceptions.CreateException(ctx, covering); err != nil {
			t.Fatalf("failed to create exception: %v", err)
		}
		if err := harness.Exceptions.CreateException(ctx, elsewhere); err != nil {
			t.Fatalf("failed to create exception: %v", err)
		}

		effective, err := harness.Exceptions.ListEffectiveExceptions(ctx, subjectID, day)
		if err != nil {
			t.Fatalf("failed to list effective exceptions: %v", err)
		}
		if len(effective) != 1 || effective[0].ID != covering.ID {
			t.Fatalf("expected only the covering exception, got %+v", effective)
		}
	})

	t.Run("joins the target shift", func(t *testing.T) {
		shift := testfixtures.NewShiftFixture(testfixtures.WithShiftWindow("21:00", "05:00"))
		if err := harness.Shifts.CreateShift(ctx, shift); err != nil {
			t.Fatalf("failed to create shift: %v", err)
		}
		change := testfixtures.NewExceptionFixture(subjectID, day.AddDate(0, 0, 1),
			testfixtures.WithExceptionTargetShift(shift))
		if err := harness.Exceptions.CreateException(ctx, change); err != nil {
			t.Fatalf("failed to create exception: %v", err)
		}

		effective, err := harness.Exceptions.ListEffectiveExceptions(ctx, subjectID, day.AddDate(0, 0, 1))
		if err != nil {
			t.Fatalf("failed to list effective exceptions: %v", err)
		}
		if len(effective) != 1 {
			t.Fatalf("expected one exception, got %d", len(effective))
		}
		target := effective[0].TargetShift
		if target == nil || target.ID != shift.ID || target.Start != "21:00" {
			t.Fatalf("expected the shift joined in, got %+v", target)
		}
	})

	t.Run("range query returns overlaps ordered by creation", func(t *testing.T) {
		all, err := harness.Exceptions.ListExceptionsInRange(ctx, subjectID, day, day.AddDate(0, 0, 7))
		if err != nil {
			t.Fatalf("failed to list exceptions in range: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 exceptions across the window, got %d", len(all))
		}
		for i := 1; i < len(all); i++ {
			if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
				t.Fatalf("expected creation order, got %+v", all)
			}
		}
	})

	t.Run("rejects a dangling target shift", func(t *testing.T) {
		bad := testfixtures.NewExceptionFixture(subjectID, day,
			testfixtures.WithExceptionTargetShift(schedule.Shift{ID: "shift-missing"}))
		if err := harness.Exceptions.CreateException(ctx, bad); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
	})

	t.Run("delete removes the row", func(t *testing.T) {
		exc := testfixtures.NewExceptionFixture(subjectID, day.AddDate(0, 0, 20))
		if err := harness.Exceptions.CreateException(ctx, exc); err != nil {
			t.Fatalf("failed to create exception: %v", err)
		}
		if err := harness.Exceptions.DeleteException(ctx, exc.ID); err != nil {
			t.Fatalf("failed to delete exception: %v", err)
		}
		if err := harness.Exceptions.DeleteException(ctx, exc.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on the second delete, got %v", err)
		}
	})
}

func TestCatalogRepositories(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	t.Run("team round trip and rename", func(t *testing.T) {
		team := testfixtures.NewTeamFixture()
		if err := harness.Teams.CreateTeam(ctx, team); err != nil {
			t.Fatalf("failed to create team: %v", err)
		}

		team.Name = team.Name + " (renamed)"
		team.Active = false
		if err := harness.Teams.UpdateTeam(ctx, team); err != nil {
			t.Fatalf("failed to update team: %v", err)
		}

		got, err := harness.Teams.GetTeam(ctx, team.ID)
		if err != nil {
			t.Fatalf("failed to get team: %v", err)
		}
		if got.Name != team.Name || got.Active {
			t.Fatalf("update did not stick: %+v", got)
		}
	})

	t.Run("duplicate team name is rejected", func(t *testing.T) {
		first := testfixtures.NewTeamFixture()
		if err := harness.Teams.CreateTeam(ctx, first); err != nil {
			t.Fatalf("failed to create team: %v", err)
		}
		clash := testfixtures.NewTeamFixture()
		clash.Name = first.Name
		if err := harness.Teams.CreateTeam(ctx, clash); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("referenced team cannot be deleted", func(t *testing.T) {
		user := testfixtures.NewUserFixture()
		team := testfixtures.NewTeamFixture()
		rule := testfixtures.NewCycleRuleFixture("shift-a", team.ID)
		if err := harness.Users.CreateUser(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if err := harness.Teams.CreateTeam(ctx, team); err != nil {
			t.Fatalf("failed to create team: %v", err)
		}
		if err := harness.Rules.CreateRule(ctx, rule); err != nil {
			t.Fatalf("failed to create rule: %v", err)
		}
		asg := testfixtures.NewAssignmentFixture(user.User.ID, team.ID, rule.ID)
		if err := harness.Assignments.CreateAssignment(ctx, asg); err != nil {
			t.Fatalf("failed to create assignment: %v", err)
		}

		if err := harness.Teams.DeleteTeam(ctx, team.ID); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
		if err := harness.Rules.DeleteRule(ctx, rule.ID); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation for the rule too, got %v", err)
		}
	})

	t.Run("shifts sort by start time", func(t *testing.T) {
		late := testfixtures.NewShiftFixture(testfixtures.WithShiftWindow("21:00", "05:00"))
		early := testfixtures.NewShiftFixture(testfixtures.WithShiftWindow("05:00", "13:00"))
		if err := harness.Shifts.CreateShift(ctx, late); err != nil {
			t.Fatalf("failed to create shift: %v", err)
		}
		if err := harness.Shifts.CreateShift(ctx, early); err != nil {
			t.Fatalf("failed to create shift: %v", err)
		}

		shifts, err := harness.Shifts.ListShifts(ctx)
		if err != nil {
			t.Fatalf("failed to list shifts: %v", err)
		}
		for i := 1; i < len(shifts); i++ {
			if shifts[i].Start < shifts[i-1].Start {
				t.Fatalf("expected shifts ordered by start, got %+v", shifts)
			}
		}
	})

	t.Run("updating a missing shift yields ErrNotFound", func(t *testing.T) {
		ghost := testfixtures.NewShiftFixture(testfixtures.WithShiftID("shift-ghost"))
		if err := harness.Shifts.UpdateShift(ctx, ghost); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSettingsRepository(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	if _, err := harness.Settings.SchemeAnchorDate(ctx); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unset anchor, got %v", err)
	}

	anchor := testfixtures.ReferenceAnchor()
	if err := harness.Settings.SetSchemeAnchorDate(ctx, anchor); err != nil {
		t.Fatalf("failed to set anchor: %v", err)
	}
	got, err := harness.Settings.SchemeAnchorDate(ctx)
	if err != nil {
		t.Fatalf("failed to read anchor: %v", err)
	}
	if !got.Equal(anchor) {
		t.Fatalf("anchor drifted: want %v, got %v", anchor, got)
	}

	moved := anchor.AddDate(5, 0, 0)
	if err := harness.Settings.SetSchemeAnchorDate(ctx, moved); err != nil {
		t.Fatalf("failed to overwrite anchor: %v", err)
	}
	got, err = harness.Settings.SchemeAnchorDate(ctx)
	if err != nil {
		t.Fatalf("failed to re-read anchor: %v", err)
	}
	if !got.Equal(moved) {
		t.Fatalf("expected the upsert to overwrite, got %v", got)
	}
}

func TestUserRepository(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	t.Run("credentials lookup is case insensitive", func(t *testing.T) {
		user := testfixtures.NewUserFixture(
			testfixtures.WithUserEmail("Mixed.Case@Example.com"),
			testfixtures.WithUserAdmin(),
		)
		if err := harness.Users.CreateUser(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		creds, err := harness.Users.GetUserCredentialsByEmail(ctx, "MIXED.CASE@example.COM")
		if err != nil {
			t.Fatalf("failed to look up credentials: %v", err)
		}
		if creds.User.ID != user.User.ID || creds.PasswordHash != user.PasswordHash {
			t.Fatalf("unexpected credentials: %+v", creds)
		}
		if !creds.User.IsAdmin {
			t.Fatal("expected the admin flag to survive storage")
		}
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		first := testfixtures.NewUserFixture()
		if err := harness.Users.CreateUser(ctx, first); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		clash := testfixtures.NewUserFixture(testfixtures.WithUserEmail(first.User.Email))
		if err := harness.Users.CreateUser(ctx, clash); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("update touches profile fields only", func(t *testing.T) {
		fixture := testfixtures.NewUserFixture()
		if err := harness.Users.CreateUser(ctx, fixture); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		user := fixture.User
		user.DisplayName = "Renamed"
		user.UpdatedAt = fixture.User.UpdatedAt.Add(time.Hour)
		if err := harness.Users.UpdateUser(ctx, user); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		creds, err := harness.Users.GetUserCredentialsByEmail(ctx, user.Email)
		if err != nil {
			t.Fatalf("failed to re-read credentials: %v", err)
		}
		if creds.User.DisplayName != "Renamed" {
			t.Fatalf("display name did not update: %+v", creds.User)
		}
		if creds.PasswordHash != fixture.PasswordHash {
			t.Fatalf("password hash must not change on profile update, got %q", creds.PasswordHash)
		}
	})

	t.Run("subject with history cannot be deleted", func(t *testing.T) {
		user := testfixtures.NewUserFixture()
		team := testfixtures.NewTeamFixture()
		rule := testfixtures.NewCycleRuleFixture("shift-a", team.ID)
		if err := harness.Users.CreateUser(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if err := harness.Teams.CreateTeam(ctx, team); err != nil {
			t.Fatalf("failed to create team: %v", err)
		}
		if err := harness.Rules.CreateRule(ctx, rule); err != nil {
			t.Fatalf("failed to create rule: %v", err)
		}
		asg := testfixtures.NewAssignmentFixture(user.User.ID, team.ID, rule.ID)
		if err := harness.Assignments.CreateAssignment(ctx, asg); err != nil {
			t.Fatalf("failed to create assignment: %v", err)
		}

		if err := harness.Users.DeleteUser(ctx, user.User.ID); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
	})
}

func TestSessionRepository(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	user := testfixtures.NewUserFixture()
	if err := harness.Users.CreateUser(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	now := testfixtures.ReferenceTime()
	session := persistence.Session{
		ID:        "session-1",
		UserID:    user.User.ID,
		Token:     "token-1",
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("round trips a session", func(t *testing.T) {
		if _, err := harness.Sessions.CreateSession(ctx, session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		got, err := harness.Sessions.GetSession(ctx, session.Token)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got.UserID != user.User.ID || !got.ExpiresAt.Equal(session.ExpiresAt) {
			t.Fatalf("unexpected session: %+v", got)
		}
		if got.RevokedAt != nil {
			t.Fatalf("fresh session must not be revoked: %+v", got)
		}
	})

	t.Run("revoke stamps the row", func(t *testing.T) {
		revokedAt := now.Add(time.Hour)
		got, err := harness.Sessions.RevokeSession(ctx, session.Token, revokedAt)
		if err != nil {
			t.Fatalf("failed to revoke session: %v", err)
		}
		if got.RevokedAt == nil || !got.RevokedAt.Equal(revokedAt) {
			t.Fatalf("expected the revocation timestamp, got %+v", got.RevokedAt)
		}
	})

	t.Run("revoking an unknown token yields ErrNotFound", func(t *testing.T) {
		if _, err := harness.Sessions.RevokeSession(ctx, "token-missing", now); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("expired sessions are pruned", func(t *testing.T) {
		stale := persistence.Session{
			ID:        "session-stale",
			UserID:    user.User.ID,
			Token:     "token-stale",
			ExpiresAt: now.Add(-time.Hour),
			CreatedAt: now.Add(-48 * time.Hour),
			UpdatedAt: now.Add(-48 * time.Hour),
		}
		if _, err := harness.Sessions.CreateSession(ctx, stale); err != nil {
			t.Fatalf("failed to create stale session: %v", err)
		}

		if err := harness.Sessions.DeleteExpiredSessions(ctx, now); err != nil {
			t.Fatalf("failed to prune sessions: %v", err)
		}
		if _, err := harness.Sessions.GetSession(ctx, stale.Token); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected the stale session gone, got %v", err)
		}
		if _, err := harness.Sessions.GetSession(ctx, session.Token); err != nil {
			t.Fatalf("expected the live session kept, got %v", err)
		}
	})
}
