package memory

import (
	"context"
	"time"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/model"
)

// growthWindow is the trailing window the growth rate is measured over.
const growthWindow = 7 * 24 * time.Hour

// HealthReport summarizes the memory state of one scope.
type HealthReport struct {
	UserID         int64                  `json:"userId"`
	CompanionID    int64                  `json:"companionId,omitempty"`
	Active         int                    `json:"active"`
	Archived       int                    `json:"archived"`
	Deleted        int                    `json:"deleted"`
	ByType         map[model.FactType]int `json:"byType"`
	AverageAge     time.Duration          `json:"averageAgeNs"`
	AverageAgeDays float64                `json:"averageAgeDays"`
	GrowthPerDay   float64                `json:"growthPerDay"`
	CheckedAt      time.Time              `json:"checkedAt"`
}

// Health reports counts for the user's facts, optionally narrowed to one
// companion. It never modifies anything.
func (m *Manager) Health(ctx context.Context, userID, companionID int64) (*HealthReport, error) {
	if userID == 0 {
		return nil, apperr.Required("userId")
	}

	now := m.clock.Now()
	st, err := m.store.FactStats(ctx, userID, companionID, now.Add(-growthWindow), now)
	if err != nil {
		return nil, apperr.Internal("memory stats", err)
	}

	byType := make(map[model.FactType]int, len(model.FactTypes))
	for _, t := range model.FactTypes {
		byType[t] = st.ByType[t]
	}

	return &HealthReport{
		UserID:         userID,
		CompanionID:    companionID,
		Active:         st.Active,
		Archived:       st.Archived,
		Deleted:        st.Deleted,
		ByType:         byType,
		AverageAge:     st.AvgAge,
		AverageAgeDays: st.AvgAge.Hours() / 24,
		GrowthPerDay:   float64(st.CreatedSince) / (growthWindow.Hours() / 24),
		CheckedAt:      now,
	}, nil
}
