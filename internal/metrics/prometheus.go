// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the check-in service.
var (
	// Counters.
	CheckInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_total",
			Help: "Total number of check-in attempts by verification method and outcome",
		},
		[]string{"method", "status"},
	)

	CheckInsFlaggedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_flagged_total",
			Help: "Total number of check-ins flagged as suspicious, by triggered rule",
		},
		[]string{"rule"},
	)

	LocationVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_location_verifications_total",
			Help: "Total number of GPS location verifications by result",
		},
		[]string{"result"},
	)

	CheckInLockContentionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_lock_contention_total",
			Help: "Total number of per-user lock acquisitions that failed",
		},
		[]string{"reason"},
	)

	FlaggedAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_flagged_alerts_total",
			Help: "Total flagged check-in alerts sent to Mattermost",
		},
		[]string{"status"},
	)

	// Gauges.
	FlaggedCheckInsLastDay = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkins_flagged_last_day",
			Help: "Number of flagged check-ins in the last integrity report window",
		},
	)

	CheckInsLastDay = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkins_last_day",
			Help: "Number of check-ins in the last integrity report window",
		},
	)

	// Histograms.
	FraudScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkin_fraud_score",
			Help:    "Distribution of fraud scores assigned to check-ins",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
		},
	)

	StreakLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkin_streak_length",
			Help:    "Current streak length after each check-in",
			Buckets: []float64{1, 2, 3, 5, 7, 10, 14, 21, 30, 60},
		},
	)

	CheckInDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkin_duration_seconds",
			Help:    "Time taken to process a check-in",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		},
		[]string{"path"},
	)

	// Leaderboard metrics.
	LeaderboardCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_cache_requests_total",
			Help: "Leaderboard cache lookups by result",
		},
		[]string{"result"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerNotificationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_notifications_failed_total",
			Help: "Total failed notification attempts",
		},
		[]string{"reason"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
		[]string{"job"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"job"},
	)

	// Badge gamification metrics.
	BadgesAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badges_awarded_total",
			Help: "Total number of badges awarded",
		},
		[]string{"badge_type"},
	)

	ActiveBadgeHolders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_badge_holders",
			Help: "Current number of users holding each badge",
		},
		[]string{"badge_type"},
	)
)

// RecordCheckIn records a check-in attempt outcome.
func RecordCheckIn(method, status string) {
	CheckInsTotal.WithLabelValues(method, status).Inc()
}

// RecordFlagged records a flagged check-in for each triggered rule.
func RecordFlagged(rules ...string) {
	if len(rules) == 0 {
		rules = []string{"none"}
	}
	for _, rule := range rules {
		CheckInsFlaggedTotal.WithLabelValues(rule).Inc()
	}
}

// RecordLocationVerification records a GPS verification result.
func RecordLocationVerification(verified bool) {
	result := "rejected"
	if verified {
		result = "verified"
	}
	LocationVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordLockContention records a failed per-user lock acquisition.
func RecordLockContention(reason string) {
	CheckInLockContentionTotal.WithLabelValues(reason).Inc()
}

// RecordFlaggedAlert records a flagged check-in alert delivery.
func RecordFlaggedAlert(status string) {
	FlaggedAlertsTotal.WithLabelValues(status).Inc()
}

// SetIntegrityCounts sets the counts of the last integrity report.
func SetIntegrityCounts(total, flagged int64) {
	CheckInsLastDay.Set(float64(total))
	FlaggedCheckInsLastDay.Set(float64(flagged))
}

// ObserveFraudScore observes a fraud score.
func ObserveFraudScore(score float64) {
	FraudScore.Observe(score)
}

// ObserveStreakLength observes a streak length.
func ObserveStreakLength(days int) {
	StreakLength.Observe(float64(days))
}

// ObserveCheckInDuration observes check-in processing time.
func ObserveCheckInDuration(path string, seconds float64) {
	CheckInDurationSeconds.WithLabelValues(path).Observe(seconds)
}

// RecordLeaderboardCache records a leaderboard cache hit or miss.
func RecordLeaderboardCache(result string) {
	LeaderboardCacheTotal.WithLabelValues(result).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// RecordSchedulerNotificationFailed records a failed notification attempt.
func RecordSchedulerNotificationFailed(reason string) {
	SchedulerNotificationsFailedTotal.WithLabelValues(reason).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last run of a job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordBadgeAwarded records a badge award event.
func RecordBadgeAwarded(badgeType string) {
	BadgesAwardedTotal.WithLabelValues(badgeType).Inc()
}

// SetActiveBadgeHolders sets the number of holders for a badge.
func SetActiveBadgeHolders(badgeType string, count int) {
	ActiveBadgeHolders.WithLabelValues(badgeType).Set(float64(count))
}
