package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magpie-software/pical/internal/models"
)

type RecurringEventRepository interface {
	FindByID(ctx context.Context, id string) (models.RecurringEvent, error)
	FindAll(ctx context.Context) ([]models.RecurringEvent, error)
	Create(ctx context.Context, event models.RecurringEvent) (models.RecurringEvent, error)
	Update(ctx context.Context, event models.RecurringEvent) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
	Reorder(ctx context.Context, orderedIDs []string) error
}

type SQLiteRecurringEventRepository struct {
	database *sql.DB
}

func NewRecurringEventRepository(database *sql.DB) *SQLiteRecurringEventRepository {
	return &SQLiteRecurringEventRepository{database: database}
}

func (repository *SQLiteRecurringEventRepository) FindByID(ctx context.Context, id string) (models.RecurringEvent, error) {
	row := repository.database.QueryRowContext(ctx,
		`SELECT id, title, location, notes, pattern, stop_condition, position, created_at, updated_at
		FROM recurring_events WHERE id = ?`, id,
	)
	event, err := scanRecurringEvent(row)
	if err != nil {
		return models.RecurringEvent{}, fmt.Errorf("finding recurring event by id: %w", err)
	}
	return event, nil
}

func (repository *SQLiteRecurringEventRepository) FindAll(ctx context.Context) ([]models.RecurringEvent, error) {
	rows, err := repository.database.QueryContext(ctx,
		`SELECT id, title, location, notes, pattern, stop_condition, position, created_at, updated_at
		FROM recurring_events ORDER BY position ASC, created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("finding recurring events: %w", err)
	}
	defer rows.Close()

	var events []models.RecurringEvent
	for rows.Next() {
		event, err := scanRecurringEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning recurring event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (repository *SQLiteRecurringEventRepository) Create(ctx context.Context, event models.RecurringEvent) (models.RecurringEvent, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	patternJSON, stopJSON, err := marshalRecurrence(event)
	if err != nil {
		return models.RecurringEvent{}, err
	}

	if event.Position == 0 {
		row := repository.database.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(position), 0) + 1 FROM recurring_events")
		if err := row.Scan(&event.Position); err != nil {
			return models.RecurringEvent{}, fmt.Errorf("assigning position: %w", err)
		}
	}

	_, err = repository.database.ExecContext(ctx,
		`INSERT INTO recurring_events (id, title, location, notes, pattern, stop_condition, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Title, event.Location, event.Notes,
		patternJSON, stopJSON, event.Position, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return models.RecurringEvent{}, fmt.Errorf("creating recurring event: %w", err)
	}
	return event, nil
}

func (repository *SQLiteRecurringEventRepository) Update(ctx context.Context, event models.RecurringEvent) error {
	event.UpdatedAt = time.Now()

	patternJSON, stopJSON, err := marshalRecurrence(event)
	if err != nil {
		return err
	}

	_, err = repository.database.ExecContext(ctx,
		`UPDATE recurring_events SET title = ?, location = ?, notes = ?, pattern = ?,
			stop_condition = ?, position = ?, updated_at = ?
		WHERE id = ?`,
		event.Title, event.Location, event.Notes, patternJSON,
		stopJSON, event.Position, event.UpdatedAt, event.ID,
	)
	if err != nil {
		return fmt.Errorf("updating recurring event: %w", err)
	}
	return nil
}

func (repository *SQLiteRecurringEventRepository) Delete(ctx context.Context, id string) error {
	_, err := repository.database.ExecContext(ctx, "DELETE FROM recurring_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting recurring event: %w", err)
	}
	return nil
}

func (repository *SQLiteRecurringEventRepository) DeleteMany(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := repository.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (repository *SQLiteRecurringEventRepository) Reorder(ctx context.Context, orderedIDs []string) error {
	transaction, err := repository.database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reorder transaction: %w", err)
	}
	for index, id := range orderedIDs {
		if _, err := transaction.ExecContext(ctx,
			"UPDATE recurring_events SET position = ? WHERE id = ?", index+1, id,
		); err != nil {
			transaction.Rollback()
			return fmt.Errorf("reordering recurring event %s: %w", id, err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("committing reorder: %w", err)
	}
	return nil
}

func marshalRecurrence(event models.RecurringEvent) (string, *string, error) {
	patternJSON, err := json.Marshal(event.Pattern)
	if err != nil {
		return "", nil, fmt.Errorf("encoding pattern: %w", err)
	}
	var stopJSON *string
	if event.StopCondition != nil {
		encoded, err := json.Marshal(event.StopCondition)
		if err != nil {
			return "", nil, fmt.Errorf("encoding stop condition: %w", err)
		}
		value := string(encoded)
		stopJSON = &value
	}
	return string(patternJSON), stopJSON, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecurringEvent(row rowScanner) (models.RecurringEvent, error) {
	var event models.RecurringEvent
	var patternJSON string
	var stopJSON sql.NullString

	if err := row.Scan(
		&event.ID, &event.Title, &event.Location, &event.Notes,
		&patternJSON, &stopJSON, &event.Position, &event.CreatedAt, &event.UpdatedAt,
	); err != nil {
		return models.RecurringEvent{}, err
	}

	if err := json.Unmarshal([]byte(patternJSON), &event.Pattern); err != nil {
		return models.RecurringEvent{}, fmt.Errorf("decoding pattern: %w", err)
	}
	if stopJSON.Valid {
		var stop models.StopCondition
		if err := json.Unmarshal([]byte(stopJSON.String), &stop); err != nil {
			return models.RecurringEvent{}, fmt.Errorf("decoding stop condition: %w", err)
		}
		event.StopCondition = &stop
	}
	return event, nil
}
