// Package checkin orchestrates a check-in attempt: eligibility, location and fraud
// scoring, persistence, streak update and badge evaluation.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eventhub/checkin-service/internal/cache"
	"github.com/eventhub/checkin-service/internal/mattermost"
	prommetrics "github.com/eventhub/checkin-service/internal/metrics"
	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/repository"
	"github.com/eventhub/checkin-service/internal/service/badges"
	"github.com/eventhub/checkin-service/internal/service/fraud"
	"github.com/eventhub/checkin-service/internal/service/geo"
	"github.com/eventhub/checkin-service/internal/service/streak"
	"github.com/eventhub/checkin-service/pkg/logger"
)

const (
	// LocationMismatchReason is recorded when coordinates fall outside the event radius.
	LocationMismatchReason = "Location mismatch"
	// provisional score for a location mismatch; the fraud assessment replaces it.
	locationMismatchBaseline = 50.0

	lockKeyPrefix = "checkin:lock:user:"
	alertTimeout  = 10 * time.Second
)

// LeaderboardInvalidator drops cached rankings after points change.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context) error
}

// FlagNotifier delivers alerts about flagged check-ins.
type FlagNotifier interface {
	Enabled() bool
	SendFlaggedCheckInAlert(ctx context.Context, alert mattermost.FlaggedCheckIn) error
}

// Deps are the collaborators of the check-in service.
type Deps struct {
	Registrations RegistrationFinder
	Events        EventFinder
	History       CheckInHistory
	UnitOfWork    UnitOfWork

	Locker   *cache.Locker
	Geo      *geo.Verifier
	Fraud    *fraud.Scorer
	Streaks  *streak.Tracker
	Badges   *badges.Service
	Notifier FlagNotifier           // optional
	Ranking  LeaderboardInvalidator // optional

	Location      *time.Location
	MaxDeviceInfo int
	Clock         func() time.Time
}

// Result is the outcome of a successful check-in.
type Result struct {
	CheckIn   models.CheckIn       `json:"check_in"`
	Streak    models.CheckInStreak `json:"streak"`
	NewBadges []models.Badge       `json:"new_badges"`
}

// Service handles check-ins.
type Service struct {
	deps Deps
	log  *logger.Logger

	alerts sync.WaitGroup
}

// NewService creates a check-in service backed by the given database.
func NewService(
	db *repository.DB,
	locker *cache.Locker,
	verifier *geo.Verifier,
	scorer *fraud.Scorer,
	tracker *streak.Tracker,
	badgeService *badges.Service,
	notifier FlagNotifier,
	ranking LeaderboardInvalidator,
	loc *time.Location,
	maxDeviceInfo int,
	log *logger.Logger,
) *Service {
	return NewServiceWithDeps(Deps{
		Registrations: repository.NewRegistrationRepository(db),
		Events:        repository.NewEventRepository(db),
		History:       repository.NewCheckInRepository(db),
		UnitOfWork:    NewUnitOfWork(db),
		Locker:        locker,
		Geo:           verifier,
		Fraud:         scorer,
		Streaks:       tracker,
		Badges:        badgeService,
		Notifier:      notifier,
		Ranking:       ranking,
		Location:      loc,
		MaxDeviceInfo: maxDeviceInfo,
	}, log)
}

// NewServiceWithDeps creates a check-in service with explicit dependencies (useful for testing).
func NewServiceWithDeps(deps Deps, log *logger.Logger) *Service {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Geo == nil {
		deps.Geo = geo.NewVerifier(geo.DefaultRadiusMeters)
	}
	if deps.Fraud == nil {
		deps.Fraud = fraud.NewScorer(fraud.DefaultRules())
	}
	if deps.Streaks == nil {
		deps.Streaks = streak.NewTracker(streak.DefaultPointsPerCheckIn)
	}
	return &Service{deps: deps, log: log}
}

// CheckIn records a self-service check-in for the acting user.
func (s *Service) CheckIn(ctx context.Context, actor Actor, req Request) (*Result, error) {
	start := time.Now()
	req.normalize()

	result, err := s.checkIn(ctx, actor, req)
	s.recordOutcome("self", req.Method, start, err)
	return result, err
}

func (s *Service) checkIn(ctx context.Context, actor Actor, req Request) (*Result, error) {
	if actor.UserID == 0 {
		return nil, validationError("acting user is required")
	}
	if req.EventID == 0 {
		return nil, validationError("event_id is required")
	}
	if err := req.validate(s.deps.MaxDeviceInfo); err != nil {
		return nil, err
	}

	var result *Result
	err := s.withUserLock(ctx, actor.UserID, func() error {
		registration, err := s.deps.Registrations.FindByUserAndEvent(ctx, actor.UserID, req.EventID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotRegistered
			}
			return fmt.Errorf("failed to load registration: %w", err)
		}

		result, err = s.performCheckIn(ctx, registration, req)
		return err
	})
	return result, err
}

// AdminCheckIn records a check-in on behalf of a registration's owner.
func (s *Service) AdminCheckIn(ctx context.Context, actor Actor, registrationID uint, req Request) (*Result, error) {
	start := time.Now()
	req.normalize()

	result, err := s.adminCheckIn(ctx, actor, registrationID, req)
	s.recordOutcome("admin", req.Method, start, err)
	return result, err
}

func (s *Service) adminCheckIn(ctx context.Context, actor Actor, registrationID uint, req Request) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if registrationID == 0 {
		return nil, validationError("registration id is required")
	}
	if err := req.validate(s.deps.MaxDeviceInfo); err != nil {
		return nil, err
	}

	registration, err := s.deps.Registrations.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	if req.EventID != 0 && req.EventID != registration.EventID {
		return nil, validationError("event_id %d does not match registration event %d", req.EventID, registration.EventID)
	}

	var result *Result
	err = s.withUserLock(ctx, registration.UserID, func() error {
		var err error
		result, err = s.performCheckIn(ctx, registration, req)
		return err
	})
	return result, err
}

// withUserLock serializes check-ins of one user across instances.
func (s *Service) withUserLock(ctx context.Context, userID uint, fn func() error) error {
	if s.deps.Locker == nil {
		return fn()
	}

	lock, err := s.deps.Locker.Acquire(ctx, fmt.Sprintf("%s%d", lockKeyPrefix, userID))
	if err != nil {
		if errors.Is(err, cache.ErrLockTimeout) {
			prommetrics.RecordLockContention("timeout")
			return ErrCheckInInProgress
		}
		prommetrics.RecordLockContention("error")
		return fmt.Errorf("failed to lock user %d: %w", userID, err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn().Err(err).Str("key", lock.Key()).Msg("Failed to release check-in lock")
		}
	}()

	return fn()
}

// performCheckIn is shared by the self-service and admin paths. The registration
// has been resolved; its owner is the user being checked in.
func (s *Service) performCheckIn(ctx context.Context, registration *models.Registration, req Request) (*Result, error) {
	if !registration.IsApproved() {
		return nil, ErrRegistrationNotApproved
	}
	if req.Method == models.MethodTicketCode && registration.TicketCode != "" && req.TicketCode != registration.TicketCode {
		return nil, validationError("ticket code does not match registration")
	}

	event, err := s.deps.Events.GetByID(ctx, registration.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	now := s.deps.Clock().UTC()
	today := models.Day(now, s.deps.Location)
	userID := registration.UserID

	history, err := s.recentHistory(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if history[i].EventID == event.ID && sameDate(history[i].CheckInDate, today) {
			return nil, ErrDuplicateCheckIn
		}
	}

	record := &models.CheckIn{
		UserID:             userID,
		EventID:            event.ID,
		RegistrationID:     registration.ID,
		CheckInDate:        today,
		Latitude:           req.Latitude,
		Longitude:          req.Longitude,
		DeviceInfo:         req.DeviceInfo,
		IPAddress:          req.IPAddress,
		VerificationMethod: req.Method,
		CreatedAt:          now,
	}

	if record.HasLocation() {
		verified := s.deps.Geo.Verify(event.Latitude, event.Longitude, *record.Latitude, *record.Longitude)
		record.IsVerified = &verified
		prommetrics.RecordLocationVerification(verified)
		if !verified {
			record.FlagReason = LocationMismatchReason
			record.FraudScore = locationMismatchBaseline
			s.log.Debug().
				Uint("user_id", userID).
				Uint("event_id", event.ID).
				Float64("radius_m", s.deps.Geo.Radius()).
				Msg("Check-in outside event radius")
		}
	}

	assessment := s.deps.Fraud.Score(record, history, now)
	record.FraudScore = assessment.Score
	record.IsFlagged = assessment.Flagged
	if record.IsFlagged && record.FlagReason == "" {
		record.FlagReason = assessment.Reason()
	}

	var (
		state     *models.CheckInStreak
		newBadges []models.Badge
	)
	err = s.deps.UnitOfWork.WithinTx(ctx, func(tx Repositories) error {
		created, err := tx.CheckIns.Create(ctx, record)
		if err != nil {
			return fmt.Errorf("failed to save check-in: %w", err)
		}
		if !created {
			return ErrDuplicateCheckIn
		}

		state, err = s.deps.Streaks.Record(ctx, tx.Streaks, userID, today)
		if err != nil {
			return err
		}

		newBadges, err = s.deps.Badges.Evaluate(ctx, tx.Badges, userID, *state, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	prommetrics.ObserveFraudScore(record.FraudScore)
	prommetrics.ObserveStreakLength(state.CurrentStreak)
	for _, b := range newBadges {
		prommetrics.RecordBadgeAwarded(b.BadgeType)
	}

	s.log.Info().
		Uint("check_in_id", record.ID).
		Uint("user_id", userID).
		Uint("event_id", event.ID).
		Str("method", record.VerificationMethod).
		Float64("fraud_score", record.FraudScore).
		Bool("flagged", record.IsFlagged).
		Int("current_streak", state.CurrentStreak).
		Int("new_badges", len(newBadges)).
		Msg("Check-in recorded")

	s.invalidateLeaderboard(ctx)
	if record.IsFlagged {
		rules := make([]string, 0, len(assessment.Signals))
		for _, sig := range assessment.Signals {
			rules = append(rules, sig.Rule)
		}
		prommetrics.RecordFlagged(rules...)
		s.notifyFlagged(ctx, *record, event.Title)
	}

	if newBadges == nil {
		newBadges = []models.Badge{}
	}
	return &Result{CheckIn: *record, Streak: *state, NewBadges: newBadges}, nil
}

// recentHistory returns the user's check-ins since the earlier of local midnight and
// the start of the burst window, plus the latest check-in overall for the travel rule.
func (s *Service) recentHistory(ctx context.Context, userID uint, now time.Time) ([]models.CheckIn, error) {
	local := now.In(s.deps.Location)
	since := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.deps.Location)
	if burstStart := now.Add(-s.deps.Fraud.Rules().BurstWindow); burstStart.Before(since) {
		since = burstStart
	}

	history, err := s.deps.History.FindCheckInsSince(ctx, userID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load recent check-ins: %w", err)
	}

	latest, err := s.deps.History.FindLatestForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return history, nil
		}
		return nil, fmt.Errorf("failed to load latest check-in: %w", err)
	}
	for i := range history {
		if history[i].ID == latest.ID {
			return history, nil
		}
	}
	return append(history, *latest), nil
}

func (s *Service) invalidateLeaderboard(ctx context.Context) {
	if s.deps.Ranking == nil {
		return
	}
	if err := s.deps.Ranking.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate leaderboard cache")
	}
}

// notifyFlagged sends the moderator alert in the background.
func (s *Service) notifyFlagged(ctx context.Context, record models.CheckIn, eventTitle string) {
	if s.deps.Notifier == nil || !s.deps.Notifier.Enabled() {
		prommetrics.RecordFlaggedAlert("disabled")
		return
	}

	alert := mattermost.FlaggedCheckIn{
		CheckInID:  record.ID,
		UserID:     record.UserID,
		EventID:    record.EventID,
		EventTitle: eventTitle,
		Method:     record.VerificationMethod,
		FraudScore: record.FraudScore,
		Reason:     record.FlagReason,
		CreatedAt:  record.CreatedAt,
	}

	s.alerts.Add(1)
	go func() {
		defer s.alerts.Done()

		alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
		defer cancel()

		if err := s.deps.Notifier.SendFlaggedCheckInAlert(alertCtx, alert); err != nil {
			prommetrics.RecordFlaggedAlert("failed")
			s.log.Error().Err(err).Uint("check_in_id", alert.CheckInID).Msg("Failed to send flagged check-in alert")
			return
		}
		prommetrics.RecordFlaggedAlert("sent")
	}()
}

// Close waits for in-flight alerts.
func (s *Service) Close() {
	s.alerts.Wait()
}

func (s *Service) recordOutcome(path, method string, start time.Time, err error) {
	if method == "" {
		method = "unknown"
	}
	status := outcome(err)
	prommetrics.RecordCheckIn(method, status)
	prommetrics.ObserveCheckInDuration(path, time.Since(start).Seconds())

	if status == "error" {
		s.log.Error().Err(err).Str("path", path).Msg("Check-in failed")
	} else if err != nil {
		s.log.Debug().Err(err).Str("path", path).Str("status", status).Msg("Check-in rejected")
	}
}

// ListEventCheckIns returns an event's check-ins. Admin only.
func (s *Service) ListEventCheckIns(ctx context.Context, actor Actor, eventID uint) ([]models.CheckIn, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if _, err := s.deps.Events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	checkIns, err := s.deps.History.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event check-ins: %w", err)
	}
	return nonNil(checkIns), nil
}

// ListFlaggedCheckIns returns flagged check-ins, highest fraud score first. Admin only.
func (s *Service) ListFlaggedCheckIns(ctx context.Context, actor Actor) ([]models.CheckIn, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	checkIns, err := s.deps.History.ListFlagged(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged check-ins: %w", err)
	}
	return nonNil(checkIns), nil
}

// ListMyCheckIns returns the actor's own check-ins, newest first.
func (s *Service) ListMyCheckIns(ctx context.Context, actor Actor) ([]models.CheckIn, error) {
	if actor.UserID == 0 {
		return nil, validationError("acting user is required")
	}

	checkIns, err := s.deps.History.FindAllForUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	return nonNil(checkIns), nil
}

func nonNil(checkIns []models.CheckIn) []models.CheckIn {
	if checkIns == nil {
		return []models.CheckIn{}
	}
	return checkIns
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
