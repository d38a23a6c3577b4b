package ads

import "time"

// pacingBuffer lets EVEN-paced campaigns run slightly ahead of their
// time-proportional daily spend before being held back.
const pacingBuffer = 0.10

// CheckBudgetAndPacing decides whether a campaign may enter the auction at
// t. A campaign is rejected once total spend reaches the total budget or
// today's spend reaches the daily budget. EVEN pacing additionally rejects
// a campaign that has spent more than its time-proportional share of the
// daily budget plus a 10% buffer, so the budget lasts the whole day.
func CheckBudgetAndPacing(c *Campaign, t time.Time) bool {
	if c.TotalBudget > 0 && c.Spent >= c.TotalBudget {
		return false
	}
	if c.DailyBudget > 0 && c.SpentToday >= c.DailyBudget {
		return false
	}
	if c.Pacing == PacingEven && c.DailyBudget > 0 {
		dayFraction := float64(t.Hour()*3600+t.Minute()*60+t.Second()) / (24 * 3600)
		expected := c.DailyBudget * dayFraction
		if c.SpentToday > expected+c.DailyBudget*pacingBuffer {
			return false
		}
	}
	return true
}
