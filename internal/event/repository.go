package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citypulse/citypulse/internal/tracing"
)

// ErrEventNotFound is returned when an event is not found.
var ErrEventNotFound = errors.New("event not found")

// Repository defines read access to events for the serving path.
type Repository interface {
	// GetByID retrieves a single event.
	GetByID(ctx context.Context, id string) (*Event, error)

	// GetByIDs retrieves events by id, preserving no particular order.
	// Missing ids are silently omitted from the result.
	GetByIDs(ctx context.Context, ids []string) ([]*Event, error)
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for testing and development.
type InMemoryRepository struct {
	mu     sync.RWMutex
	events map[string]*Event
}

// NewInMemoryRepository creates a new in-memory event repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{events: make(map[string]*Event)}
}

// Put stores an event, replacing any existing event with the same id.
func (r *InMemoryRepository) Put(e *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *e
	r.events[e.ID] = &copied
}

// GetByID retrieves a single event.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	copied := *e
	return &copied, nil
}

// GetByIDs retrieves events by id, omitting missing ids.
func (r *InMemoryRepository) GetByIDs(_ context.Context, ids []string) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.events[id]; ok {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

// PostgresRepository implements Repository backed by Postgres via pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new Postgres-backed event repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const eventColumns = `id, title, description, category, city, neighborhood,
	venue_id, venue_name, price, start_time, end_time, lat, lng`

// GetByID retrieves a single event.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id)

	var e Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Category, &e.City,
		&e.Neighborhood, &e.VenueID, &e.VenueName, &e.Price,
		&e.StartTime, &e.EndTime, &e.Lat, &e.Lng)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &e, nil
}

// GetByIDs retrieves events by id, omitting missing ids.
func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []string) (events []*Event, err error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, end := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var result []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Category,
			&e.City, &e.Neighborhood, &e.VenueID, &e.VenueName, &e.Price,
			&e.StartTime, &e.EndTime, &e.Lat, &e.Lng); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}
