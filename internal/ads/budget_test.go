package ads

import (
	"testing"
	"time"
)

func TestCheckBudgetAndPacingTotalBudget(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	c := &Campaign{TotalBudget: 100, Spent: 100}
	if CheckBudgetAndPacing(c, now) {
		t.Error("campaign at total budget should be rejected")
	}

	c = &Campaign{TotalBudget: 100, Spent: 99.5}
	if !CheckBudgetAndPacing(c, now) {
		t.Error("campaign under total budget should be admitted")
	}
}

func TestCheckBudgetAndPacingDailyBudget(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	c := &Campaign{TotalBudget: 100, Spent: 10, DailyBudget: 20, SpentToday: 20}
	if CheckBudgetAndPacing(c, now) {
		t.Error("campaign at daily budget should be rejected")
	}
}

func TestCheckBudgetAndPacingEven(t *testing.T) {
	// At noon an EVEN campaign may have spent half its daily budget plus
	// the 10% buffer.
	noon := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	c := &Campaign{TotalBudget: 1000, DailyBudget: 100, Pacing: PacingEven, SpentToday: 55}
	if !CheckBudgetAndPacing(c, noon) {
		t.Error("spend within pacing envelope should be admitted")
	}

	c.SpentToday = 70
	if CheckBudgetAndPacing(c, noon) {
		t.Error("spend ahead of pacing envelope should be rejected")
	}

	// ASAP pacing ignores the envelope entirely.
	c.Pacing = PacingASAP
	if !CheckBudgetAndPacing(c, noon) {
		t.Error("ASAP pacing should not be held back")
	}
}

func TestCheckBudgetAndPacingEvenEarlyMorning(t *testing.T) {
	// The buffer keeps a campaign servable right after midnight, before
	// any time-proportional budget has accrued.
	early := time.Date(2026, 8, 28, 0, 10, 0, 0, time.UTC)

	c := &Campaign{TotalBudget: 1000, DailyBudget: 100, Pacing: PacingEven, SpentToday: 5}
	if !CheckBudgetAndPacing(c, early) {
		t.Error("spend within the buffer should be admitted just after midnight")
	}

	c.SpentToday = 15
	if CheckBudgetAndPacing(c, early) {
		t.Error("spend past the buffer should be rejected just after midnight")
	}
}

func TestCampaignActive(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		c    Campaign
		want bool
	}{
		{"active no window", Campaign{Status: StatusActive}, true},
		{"paused", Campaign{Status: "paused"}, false},
		{"not started", Campaign{Status: StatusActive, StartsAt: now.Add(time.Hour)}, false},
		{"ended", Campaign{Status: StatusActive, EndsAt: now.Add(-time.Hour)}, false},
		{"in flight", Campaign{Status: StatusActive, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Active(now); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}
