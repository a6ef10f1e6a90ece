// Package scheduler runs the periodic jobs: the daily integrity report and the leaderboard refresh.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eventhub/checkin-service/internal/config"
	"github.com/eventhub/checkin-service/internal/mattermost"
	prommetrics "github.com/eventhub/checkin-service/internal/metrics"
	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/repository"
	"github.com/eventhub/checkin-service/internal/service/badges"
	"github.com/eventhub/checkin-service/internal/service/leaderboard"
	"github.com/eventhub/checkin-service/pkg/logger"
)

const (
	jobIntegrityReport    = "integrity_report"
	jobLeaderboardRefresh = "leaderboard_refresh"

	reportWindow     = 24 * time.Hour
	reportTopFlagged = 5
)

// CheckInRepository interface for the report queries.
type CheckInRepository interface {
	CountSince(ctx context.Context, since time.Time) (*repository.CheckInCounts, error)
	ListFlaggedSince(ctx context.Context, since time.Time, limit int) ([]models.CheckIn, error)
}

// LeaderboardWarmer rebuilds the cached ranking.
type LeaderboardWarmer interface {
	Warm(ctx context.Context) error
}

// BadgeHolderRefresher refreshes per-badge holder gauges.
type BadgeHolderRefresher interface {
	RefreshHolderMetrics(ctx context.Context) error
}

// ReportSender posts the integrity report.
type ReportSender interface {
	Enabled() bool
	SendDailyIntegrityReport(ctx context.Context, report mattermost.IntegrityReport) error
}

// Service handles periodic jobs.
type Service struct {
	config      *config.Config
	checkIns    CheckInRepository
	leaderboard LeaderboardWarmer
	badges      BadgeHolderRefresher
	sender      ReportSender
	log         *logger.Logger
	cron        *cron.Cron
	now         func() time.Time
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.Config,
	checkInRepo *repository.CheckInRepository,
	leaderboardService *leaderboard.Service,
	badgeService *badges.Service,
	mattermostClient *mattermost.Client,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(cfg, checkInRepo, leaderboardService, badgeService, mattermostClient, log)
}

// NewServiceWithInterfaces creates a new scheduler service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	cfg *config.Config,
	checkIns CheckInRepository,
	warmer LeaderboardWarmer,
	holders BadgeHolderRefresher,
	sender ReportSender,
	log *logger.Logger,
) *Service {
	return &Service{
		config:      cfg,
		checkIns:    checkIns,
		leaderboard: warmer,
		badges:      holders,
		sender:      sender,
		log:         log,
		now:         time.Now,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Scheduler.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.Scheduler.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Scheduler.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	cronExpr, err := s.buildCronExpression()
	if err != nil {
		return fmt.Errorf("failed to build cron expression: %w", err)
	}

	_, err = s.cron.AddFunc(cronExpr, func() {
		s.runIntegrityReport(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register integrity report job: %w", err)
	}

	if refresh := s.config.Scheduler.LeaderboardRefresh; refresh != "" {
		_, err = s.cron.AddFunc(refresh, func() {
			s.runLeaderboardRefresh(context.Background())
		})
		if err != nil {
			return fmt.Errorf("failed to register leaderboard refresh job: %w", err)
		}
		s.log.Info().
			Str("schedule", refresh).
			Msg("Leaderboard refresh job registered")
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", cronExpr).
		Str("timezone", s.config.Scheduler.Timezone).
		Str("time", s.config.Scheduler.Time).
		Bool("skip_weekends", s.config.Scheduler.SkipWeekends).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates the integrity report schedule from config.
func (s *Service) buildCronExpression() (string, error) {
	// Parse time string (format: "HH:MM")
	parts := strings.Split(s.config.Scheduler.Time, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.Scheduler.Time)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	// Format: "minute hour day month weekday"
	if s.config.Scheduler.SkipWeekends {
		return fmt.Sprintf("%d %d * * 1-5", minute, hour), nil
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// runIntegrityReport counts the last day's check-ins, updates the gauges and
// posts the summary to Mattermost.
func (s *Service) runIntegrityReport(ctx context.Context) {
	start := time.Now()

	defer func() {
		prommetrics.ObserveSchedulerJobDuration(jobIntegrityReport, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(jobIntegrityReport)
	}()

	s.log.Info().Msg("Running integrity report job")

	since := s.now().UTC().Add(-reportWindow)

	counts, err := s.checkIns.CountSince(ctx, since)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to count check-ins")
		prommetrics.RecordSchedulerJobRun(jobIntegrityReport, "error")
		prommetrics.RecordSchedulerNotificationFailed("query_error")
		return
	}
	prommetrics.SetIntegrityCounts(counts.Total, counts.Flagged)

	flagged, err := s.checkIns.ListFlaggedSince(ctx, since, reportTopFlagged)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list flagged check-ins")
		prommetrics.RecordSchedulerJobRun(jobIntegrityReport, "error")
		prommetrics.RecordSchedulerNotificationFailed("query_error")
		return
	}

	report := mattermost.IntegrityReport{
		Since:      since,
		Total:      counts.Total,
		Flagged:    counts.Flagged,
		TopFlagged: buildFlaggedSummaries(flagged),
	}

	s.log.Info().
		Int64("total", report.Total).
		Int64("flagged", report.Flagged).
		Msg("Computed integrity counts")

	if s.sender == nil || !s.sender.Enabled() {
		s.log.Debug().Msg("Mattermost disabled, skipping integrity report")
		prommetrics.RecordSchedulerJobRun(jobIntegrityReport, "success")
		return
	}

	sendStart := time.Now()
	if err := s.sender.SendDailyIntegrityReport(ctx, report); err != nil {
		s.log.Error().
			Err(err).
			Dur("send_duration", time.Since(sendStart)).
			Msg("Failed to send integrity report")
		prommetrics.RecordSchedulerJobRun(jobIntegrityReport, "error")
		prommetrics.RecordSchedulerNotificationFailed("mattermost_error")
		return
	}

	prommetrics.RecordSchedulerJobRun(jobIntegrityReport, "success")
	s.log.Info().
		Dur("total_duration", time.Since(start)).
		Msg("Integrity report job completed")
}

// runLeaderboardRefresh rebuilds the cached ranking and the badge holder gauges.
func (s *Service) runLeaderboardRefresh(ctx context.Context) {
	start := time.Now()

	defer func() {
		prommetrics.ObserveSchedulerJobDuration(jobLeaderboardRefresh, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(jobLeaderboardRefresh)
	}()

	status := "success"
	if err := s.leaderboard.Warm(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to warm leaderboard")
		status = "error"
	}
	if s.badges != nil {
		if err := s.badges.RefreshHolderMetrics(ctx); err != nil {
			s.log.Error().Err(err).Msg("Failed to refresh badge holder metrics")
			status = "error"
		}
	}
	prommetrics.RecordSchedulerJobRun(jobLeaderboardRefresh, status)

	s.log.Debug().
		Str("status", status).
		Dur("duration", time.Since(start)).
		Msg("Leaderboard refresh job completed")
}
