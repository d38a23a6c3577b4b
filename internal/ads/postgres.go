package ads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres-backed ads store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const campaignColumns = `id, name, sponsor_id, status, bid_amount, total_budget, daily_budget,
	spent, spent_today, pacing, quality_base, frequency_cap,
	target_cities, target_neighborhoods, target_categories,
	hour_start, hour_end, days_of_week, price_min, price_max, keywords,
	impressions, clicks, starts_at, ends_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*Campaign, error) {
	var c Campaign
	var days pq.Int64Array
	var startsAt, endsAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.Name, &c.SponsorID, &c.Status, &c.BidAmount, &c.TotalBudget, &c.DailyBudget,
		&c.Spent, &c.SpentToday, &c.Pacing, &c.QualityBase, &c.FrequencyCap,
		pq.Array(&c.Targeting.Cities), pq.Array(&c.Targeting.Neighborhoods), pq.Array(&c.Targeting.Categories),
		&c.Targeting.HourStart, &c.Targeting.HourEnd, &days, &c.Targeting.PriceMin, &c.Targeting.PriceMax,
		pq.Array(&c.Targeting.Keywords),
		&c.Impressions, &c.Clicks, &startsAt, &endsAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, d := range days {
		c.Targeting.DaysOfWeek = append(c.Targeting.DaysOfWeek, time.Weekday(d))
	}
	if startsAt.Valid {
		c.StartsAt = startsAt.Time
	}
	if endsAt.Valid {
		c.EndsAt = endsAt.Time
	}
	return &c, nil
}

// ListActiveCampaigns returns active, in-flight campaigns whose city
// targeting is empty or includes the requested city.
func (s *PostgresStore) ListActiveCampaigns(ctx context.Context, city string, now time.Time) ([]*Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = 'active'
		  AND (starts_at IS NULL OR starts_at <= $2)
		  AND (ends_at IS NULL OR ends_at > $2)
		  AND (cardinality(target_cities) = 0 OR $1 ILIKE ANY(target_cities))`
	rows, err := s.db.QueryContext(ctx, query, city, now)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	defer rows.Close()

	var out []*Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCampaign retrieves a campaign by ID.
func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// GetCreative returns the campaign's creative, preferring native formats.
func (s *PostgresStore) GetCreative(ctx context.Context, campaignID string) (*Creative, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, headline, body, image_url, target_url, format, event_id, created_at
		FROM creatives
		WHERE campaign_id = $1
		ORDER BY (format = 'native') DESC, created_at DESC
		LIMIT 1`, campaignID)

	var cr Creative
	var eventID sql.NullString
	err := row.Scan(&cr.ID, &cr.CampaignID, &cr.Headline, &cr.Body, &cr.ImageURL,
		&cr.TargetURL, &cr.Format, &eventID, &cr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get creative: %w", err)
	}
	cr.EventID = eventID.String
	return &cr, nil
}

// ChargeSpend atomically charges the settlement cost against the campaign
// budget. The conditional update makes concurrent over-spend impossible: a
// charge that would pass the total budget matches no row and the campaign
// stays unbilled.
func (s *PostgresStore) ChargeSpend(ctx context.Context, campaignID string, cost float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET spent = spent + $2,
		    spent_today = spent_today + $2,
		    impressions = impressions + 1,
		    updated_at = now()
		WHERE id = $1 AND (total_budget <= 0 OR spent + $2 <= total_budget)`,
		campaignID, cost)
	if err != nil {
		return fmt.Errorf("charge spend: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("charge spend rows: %w", err)
	}
	if n == 0 {
		return ErrBudgetExceeded
	}
	return nil
}

// InsertImpression stores an impression record.
func (s *PostgresStore) InsertImpression(ctx context.Context, imp *Impression) error {
	if imp.ID == "" {
		imp.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO impressions (id, campaign_id, creative_id, session_id, user_id, city, settlement_price, served_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		imp.ID, imp.CampaignID, imp.CreativeID, imp.SessionID, imp.UserID, imp.City,
		imp.SettlementPrice, imp.ServedAt)
	if err != nil {
		return fmt.Errorf("insert impression: %w", err)
	}
	return nil
}

// DeleteImpression removes an impression record.
func (s *PostgresStore) DeleteImpression(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM impressions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete impression: %w", err)
	}
	return nil
}

// GetImpression retrieves an impression by ID.
func (s *PostgresStore) GetImpression(ctx context.Context, id string) (*Impression, error) {
	var imp Impression
	err := s.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, creative_id, session_id, user_id, city, settlement_price, served_at
		FROM impressions WHERE id = $1`, id).
		Scan(&imp.ID, &imp.CampaignID, &imp.CreativeID, &imp.SessionID, &imp.UserID,
			&imp.City, &imp.SettlementPrice, &imp.ServedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImpressionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get impression: %w", err)
	}
	return &imp, nil
}

// InsertAdEvent stores an interaction. The unique index on
// (impression_id, event_type, event_id) rejects duplicate reports.
func (s *PostgresStore) InsertAdEvent(ctx context.Context, ev *AdEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ad_events (id, impression_id, campaign_id, event_type, conversion_type, event_id, value, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (impression_id, event_type, event_id) DO NOTHING`,
		ev.ID, ev.ImpressionID, ev.CampaignID, ev.Type, ev.ConversionType, ev.EventID,
		ev.Value, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert ad event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert ad event rows: %w", err)
	}
	if n == 0 {
		return ErrDuplicateAdEvent
	}
	return nil
}

// LastClick returns the most recent click time for an impression.
func (s *PostgresStore) LastClick(ctx context.Context, impressionID string) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT occurred_at FROM ad_events
		WHERE impression_id = $1 AND event_type = 'CLICK'
		ORDER BY occurred_at DESC
		LIMIT 1`, impressionID).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last click: %w", err)
	}
	return &t, nil
}

// IncrementCounter bumps the campaign counter for an event type.
func (s *PostgresStore) IncrementCounter(ctx context.Context, campaignID string, kind EventType) error {
	var column string
	switch kind {
	case EventClick:
		column = "clicks"
	case EventViewable:
		column = "viewables"
	case EventConversion:
		column = "conversions"
	default:
		return fmt.Errorf("unknown event type %q", kind)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET `+column+` = `+column+` + 1, updated_at = now() WHERE id = $1`,
		campaignID)
	if err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}
