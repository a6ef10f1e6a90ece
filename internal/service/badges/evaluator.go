package badges

import (
	"fmt"

	"github.com/eventhub/checkin-service/internal/models"
)

// qualifies evaluates milestone criteria against a post-check-in streak state.
func qualifies(criteria models.BadgeCriteria, state models.CheckInStreak) (bool, error) {
	actual, err := metricValue(state, criteria.Metric)
	if err != nil {
		return false, err
	}
	return compare(criteria.Operator, criteria.Value, actual)
}

// metricValue extracts the value for a specific metric from a streak state.
func metricValue(state models.CheckInStreak, metric string) (int, error) {
	switch metric {
	case MetricTotalCheckIns:
		return state.TotalCheckIns, nil
	case MetricCurrentStreak:
		return state.CurrentStreak, nil
	case MetricLongestStreak:
		return state.LongestStreak, nil
	case MetricTotalPoints:
		return state.TotalPoints, nil
	default:
		return 0, fmt.Errorf("unsupported metric: %s", metric)
	}
}

// compare compares a metric value against a threshold using the specified operator.
func compare(operator string, threshold, actualValue int) (bool, error) {
	switch operator {
	case "<":
		return actualValue < threshold, nil
	case "<=":
		return actualValue <= threshold, nil
	case ">":
		return actualValue > threshold, nil
	case ">=":
		return actualValue >= threshold, nil
	case "==":
		return actualValue == threshold, nil
	case "!=":
		return actualValue != threshold, nil
	default:
		return false, fmt.Errorf("unsupported operator: %s", operator)
	}
}
