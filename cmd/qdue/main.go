package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/calvuzs3/qdue-server/internal/application"
	"github.com/calvuzs3/qdue-server/internal/config"
	httptransport "github.com/calvuzs3/qdue-server/internal/http"
	"github.com/calvuzs3/qdue-server/internal/logging"
	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/persistence/sqlite"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

func main() {
	logger := logging.New(os.Stdout, os.Getenv("QDUE_LOG_LEVEL"))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	cache := application.NewDayCache(cfg.CacheSize, cfg.CacheTTL)

	scheduleService := application.NewScheduleService(
		storage.Rules,
		storage.Assignments,
		storage.Exceptions,
		catalogReader{teams: storage.Teams, shifts: storage.Shifts},
		storage.Settings,
		cache,
		cfg.RangeWorkers,
		logger,
	)
	invalidate := scheduleService.InvalidateCache

	catalogService := application.NewCatalogService(storage.Teams, storage.Shifts, idGenerator, invalidate, logger)
	ruleService := application.NewRuleService(storage.Rules, idGenerator, now, invalidate, logger)
	assignmentService := application.NewAssignmentService(storage.Assignments, storage.Rules, storage.Teams, idGenerator, now, invalidate, logger)
	exceptionService := application.NewExceptionService(storage.Exceptions, storage.Shifts, idGenerator, now, invalidate, logger)
	userService := application.NewUserService(storage.Users, idGenerator, now, logger)
	authService := application.NewAuthService(storage.Users, storage.Sessions, nil, tokenGenerator, now, cfg.SessionTTL, logger)

	bootstrap := application.NewBootstrap(storage.Teams, storage.Shifts, storage.Rules, now, logger)
	if err := bootstrap.Seed(context.Background()); err != nil {
		logger.Error("failed to seed default catalog", "error", err)
		os.Exit(1)
	}
	if err := applyConfiguredAnchor(context.Background(), storage.Settings, cfg.SchemeAnchor); err != nil {
		logger.Error("failed to apply configured scheme anchor", "error", err)
		os.Exit(1)
	}
	if err := seedAdminAccount(context.Background(), storage.Users, cfg, idGenerator, now, logger); err != nil {
		logger.Error("failed to seed admin account", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:     httptransport.NewAuthHandler(authService, logger),
		Users:    httptransport.NewUserHandler(userService, logger),
		Catalog:  httptransport.NewCatalogHandler(catalogService, logger),
		Planning: httptransport.NewPlanningHandler(ruleService, assignmentService, exceptionService, logger),
		Schedule: httptransport.NewScheduleHandler(scheduleService, logger),
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.URL.Path, "/login") {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("qdue API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// applyConfiguredAnchor stores the environment-provided scheme anchor, but
// only when no anchor has been persisted yet: an admin-set anchor wins over
// the deployment default.
func applyConfiguredAnchor(ctx context.Context, settings persistence.SettingsRepository, anchor time.Time) error {
	if anchor.IsZero() {
		return nil
	}
	if _, err := settings.SchemeAnchorDate(ctx); err == nil {
		return nil
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return err
	}
	return settings.SetSchemeAnchorDate(ctx, anchor)
}

// seedAdminAccount creates the first administrator from the configured
// credential pair. It only runs against an empty user table so a redeploy
// never resets a live account.
func seedAdminAccount(ctx context.Context, users persistence.UserRepository, cfg config.Config, idGenerator func() string, now func() time.Time, logger *slog.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	existing, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	hash, err := application.CreatePasswordHash(cfg.AdminPassword, application.DefaultArgon2idParams)
	if err != nil {
		return err
	}
	ts := now()
	if err := users.CreateUser(ctx, persistence.UserCredentials{
		User: persistence.User{
			ID:          idGenerator(),
			Email:       cfg.AdminEmail,
			DisplayName: "Administrator",
			IsAdmin:     true,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		},
		PasswordHash: hash,
	}); err != nil {
		return err
	}
	logger.Info("seeded initial admin account", "email", cfg.AdminEmail)
	return nil
}

// catalogReader bundles the two catalog repositories behind the single
// read interface the schedule service consumes.
type catalogReader struct {
	teams  persistence.TeamRepository
	shifts persistence.ShiftRepository
}

func (c catalogReader) ListTeams(ctx context.Context) ([]schedule.Team, error) {
	return c.teams.ListTeams(ctx)
}

func (c catalogReader) ListShifts(ctx context.Context) ([]schedule.Shift, error) {
	return c.shifts.ListShifts(ctx)
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
