package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapboard/pkg/core"
)

const dashboardColumns = `id, data, created_at, updated_at, created_by, updated_by`

// CreateDashboard inserts a new dashboard, assigning its ID and timestamps.
func (s *SQLiteStore) CreateDashboard(ctx context.Context, d *core.Dashboard) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	data, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard data: %w", err)
	}

	now := s.now()
	d.ID = generateID()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.UpdatedBy == "" {
		d.UpdatedBy = d.CreatedBy
	}

	s.logger.Debug("creating dashboard", slog.String("id", d.ID), slog.String("title", d.Data.Title))

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dashboards (`+dashboardColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, string(data), formatTime(now), formatTime(now), d.CreatedBy, d.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}

	return nil
}

// GetDashboard retrieves a dashboard by ID.
func (s *SQLiteStore) GetDashboard(ctx context.Context, id string) (*core.Dashboard, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+dashboardColumns+` FROM dashboards WHERE id = ?`, id)

	d, err := scanDashboard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard: %w", err)
	}

	return d, nil
}

// ListDashboards returns every dashboard ordered by creation time, then by
// insertion order.
func (s *SQLiteStore) ListDashboards(ctx context.Context) ([]*core.Dashboard, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+dashboardColumns+` FROM dashboards ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dashboards []*core.Dashboard
	for rows.Next() {
		d, err := scanDashboard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dashboard: %w", err)
		}
		dashboards = append(dashboards, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}

	return dashboards, nil
}

// UpdateDashboard persists the data of an existing dashboard and returns the
// stored representation. ID, CreatedAt and CreatedBy are never changed.
func (s *SQLiteStore) UpdateDashboard(ctx context.Context, d *core.Dashboard) (*core.Dashboard, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	data, err := json.Marshal(d.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dashboard data: %w", err)
	}

	now := s.now()
	result, err := s.db.ExecContext(ctx,
		`UPDATE dashboards SET data = ?, updated_at = ?, updated_by = ? WHERE id = ?`,
		string(data), formatTime(now), d.UpdatedBy, d.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update dashboard: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, d.ID)
	}

	s.logger.Debug("updated dashboard", slog.String("id", d.ID))

	return s.GetDashboard(ctx, d.ID)
}

// DeleteDashboard removes a dashboard.
func (s *SQLiteStore) DeleteDashboard(ctx context.Context, id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM dashboards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dashboard: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDashboard(row rowScanner) (*core.Dashboard, error) {
	var (
		d                    core.Dashboard
		data                 string
		createdAt, updatedAt string
	)

	if err := row.Scan(&d.ID, &data, &createdAt, &updatedAt, &d.CreatedBy, &d.UpdatedBy); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &d.Data); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard %s: %w", d.ID, err)
	}

	var err error
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at for dashboard %s: %w", d.ID, err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at for dashboard %s: %w", d.ID, err)
	}

	return &d, nil
}
