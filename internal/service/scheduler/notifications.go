package scheduler

import (
	"github.com/eventhub/checkin-service/internal/mattermost"
	"github.com/eventhub/checkin-service/internal/models"
)

// buildFlaggedSummaries converts flagged check-ins to report entries, keeping their order.
func buildFlaggedSummaries(checkIns []models.CheckIn) []mattermost.FlaggedCheckIn {
	summaries := make([]mattermost.FlaggedCheckIn, 0, len(checkIns))

	for _, c := range checkIns {
		summaries = append(summaries, mattermost.FlaggedCheckIn{
			CheckInID:  c.ID,
			UserID:     c.UserID,
			EventID:    c.EventID,
			Method:     c.VerificationMethod,
			FraudScore: c.FraudScore,
			Reason:     c.FlagReason,
			CreatedAt:  c.CreatedAt,
		})
	}

	return summaries
}
