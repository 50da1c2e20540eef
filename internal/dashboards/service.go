// Package dashboards implements dashboard operations on top of a core.Store:
// listing, search, creation, imports and the mutations whose echoed result is
// published to the query cache.
package dashboards

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapboard/internal/metrics"
	"github.com/leapstack-labs/leapboard/internal/query"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

// DefaultTitle is used when a dashboard is created without a title.
const DefaultTitle = "Sample Title"

// ErrInvalidDashboard is returned when an imported document cannot be used.
var ErrInvalidDashboard = errors.New("invalid dashboard")

// Import sources, used as metric labels.
const (
	SourceUpload = "upload"
	SourceFile   = "file"
	SourceCLI    = "cli"
)

// Service performs dashboard operations.
type Service struct {
	store   core.Store
	cache   *query.Cache[*core.Dashboard]
	metrics *metrics.DashboardMetrics
	logger  *slog.Logger
}

// NewService creates a service. cache may be nil when no provider reads
// from it, as in the CLI.
func NewService(store core.Store, cache *query.Cache[*core.Dashboard], m *metrics.DashboardMetrics, logger *slog.Logger) *Service {
	if m == nil {
		m = metrics.NewDashboardMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

// List returns all dashboards, most recently created first.
func (s *Service) List(ctx context.Context) ([]*core.Dashboard, error) {
	list, err := s.store.ListDashboards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	SortNewestFirst(list)
	return list, nil
}

// SortNewestFirst sorts dashboards by creation time, newest first. Dashboards
// created at the same instant keep their relative order.
func SortNewestFirst(list []*core.Dashboard) {
	slices.SortStableFunc(list, func(a, b *core.Dashboard) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// Search returns the dashboards whose title, description or tags contain q,
// ignoring case. An empty query returns list unchanged.
func Search(list []*core.Dashboard, q string) []*core.Dashboard {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return list
	}

	out := make([]*core.Dashboard, 0, len(list))
	for _, d := range list {
		if matches(d, q) {
			out = append(out, d)
		}
	}
	return out
}

func matches(d *core.Dashboard, q string) bool {
	if strings.Contains(strings.ToLower(d.Data.Title), q) ||
		strings.Contains(strings.ToLower(d.Data.Description), q) {
		return true
	}
	for _, tag := range d.Data.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// Create creates an empty dashboard titled title, or DefaultTitle when title
// is blank.
func (s *Service) Create(ctx context.Context, title, user string) (*core.Dashboard, error) {
	return s.CreateFrom(ctx, core.DashboardData{Title: title}, user)
}

// CreateFrom creates a dashboard holding data. A blank title is replaced by
// DefaultTitle; the rest of data must pass Validate.
func (s *Service) CreateFrom(ctx context.Context, data core.DashboardData, user string) (*core.Dashboard, error) {
	data.Title = strings.TrimSpace(data.Title)
	if data.Title == "" {
		data.Title = DefaultTitle
	}
	if err := Validate(data); err != nil {
		return nil, err
	}

	d := &core.Dashboard{
		Data:      data,
		CreatedBy: user,
		UpdatedBy: user,
	}
	err := s.store.CreateDashboard(ctx, d)
	s.metrics.MutationsTotal.WithLabelValues("create", metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard: %w", err)
	}

	s.logger.Info("dashboard created", slog.String("id", d.ID), slog.String("title", d.Data.Title))
	s.publish(d)
	return d, nil
}

// Get loads one dashboard. It is the query function behind the provider.
func (s *Service) Get(ctx context.Context, id string) (*core.Dashboard, error) {
	return s.store.GetDashboard(ctx, id)
}

// GetDashboard makes Service usable as a provider.Fetcher.
func (s *Service) GetDashboard(ctx context.Context, id string) (*core.Dashboard, error) {
	return s.Get(ctx, id)
}

// Update persists the full representation of d and returns the dashboard
// echoed by the store. The echo is also published to the query cache.
func (s *Service) Update(ctx context.Context, d *core.Dashboard, user string) (*core.Dashboard, error) {
	if d == nil || d.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidDashboard)
	}

	in := d.Clone()
	in.UpdatedBy = user
	out, err := s.store.UpdateDashboard(ctx, in)
	s.metrics.MutationsTotal.WithLabelValues("update", metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to update dashboard %s: %w", d.ID, err)
	}

	s.publish(out)
	return out, nil
}

// UpdateTitle renames dashboard id. A blank title is ignored: nothing is
// written and the current dashboard is returned.
func (s *Service) UpdateTitle(ctx context.Context, id, title, user string) (*core.Dashboard, error) {
	current, err := s.store.GetDashboard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard %s: %w", id, err)
	}

	title = strings.TrimSpace(title)
	if title == "" || title == current.Data.Title {
		return current, nil
	}

	next := current.Clone()
	next.Data.Title = title
	return s.Update(ctx, next, user)
}

// UpdateLayout replaces the persisted layout of dashboard id.
func (s *Service) UpdateLayout(ctx context.Context, id string, layout []core.LayoutEntry, user string) (*core.Dashboard, error) {
	current, err := s.store.GetDashboard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard %s: %w", id, err)
	}

	next := current.Clone()
	next.Data.Layout = slices.Clone(layout)
	return s.Update(ctx, next, user)
}

// Delete removes dashboard id and its cache entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.DeleteDashboard(ctx, id)
	s.metrics.MutationsTotal.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("failed to delete dashboard %s: %w", id, err)
	}

	if s.cache != nil {
		s.cache.Remove(dashboardKey(id))
	}
	s.logger.Info("dashboard deleted", slog.String("id", id))
	return nil
}

// Import creates a dashboard from an uploaded JSON document.
func (s *Service) Import(ctx context.Context, raw []byte, user string) (*core.Dashboard, error) {
	return s.ImportFrom(ctx, SourceUpload, raw, user)
}

// ImportFrom creates a dashboard from a JSON document. The document is either
// a full dashboard, whose id and timestamps are discarded, or its bare data
// object. The new dashboard always gets a fresh id.
func (s *Service) ImportFrom(ctx context.Context, source string, raw []byte, user string) (*core.Dashboard, error) {
	data, err := ParseDocument(raw)
	if err != nil {
		s.metrics.ImportsTotal.WithLabelValues(source, metrics.Result(err)).Inc()
		return nil, err
	}

	d := &core.Dashboard{
		Data:      data,
		CreatedBy: user,
		UpdatedBy: user,
	}
	err = s.store.CreateDashboard(ctx, d)
	s.metrics.ImportsTotal.WithLabelValues(source, metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to import dashboard: %w", err)
	}

	s.logger.Info("dashboard imported",
		slog.String("id", d.ID),
		slog.String("title", d.Data.Title),
		slog.String("source", source))
	s.publish(d)
	return d, nil
}

// ParseDocument decodes and validates an importable dashboard document.
func ParseDocument(raw []byte) (core.DashboardData, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return core.DashboardData{}, fmt.Errorf("%w: empty document", ErrInvalidDashboard)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return core.DashboardData{}, fmt.Errorf("%w: %w", ErrInvalidDashboard, err)
	}

	var data core.DashboardData
	if inner, ok := probe["data"]; ok {
		if err := json.Unmarshal(inner, &data); err != nil {
			return core.DashboardData{}, fmt.Errorf("%w: %w", ErrInvalidDashboard, err)
		}
	} else if err := json.Unmarshal(raw, &data); err != nil {
		return core.DashboardData{}, fmt.Errorf("%w: %w", ErrInvalidDashboard, err)
	}

	if err := Validate(data); err != nil {
		return core.DashboardData{}, err
	}
	return data, nil
}

// Validate checks that data can be stored.
func Validate(data core.DashboardData) error {
	if strings.TrimSpace(data.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDashboard)
	}

	seen := make(map[string]bool, len(data.Layout))
	for _, e := range data.Layout {
		if e.I == "" {
			return fmt.Errorf("%w: layout entry without panel id", ErrInvalidDashboard)
		}
		if e.W < 0 || e.H < 0 {
			return fmt.Errorf("%w: layout entry %q has negative size", ErrInvalidDashboard, e.I)
		}
		if seen[e.I] && !core.IsPlaceholderSlot(e) {
			return fmt.Errorf("%w: duplicate layout entry %q", ErrInvalidDashboard, e.I)
		}
		seen[e.I] = true
	}
	return nil
}

func (s *Service) publish(d *core.Dashboard) {
	if s.cache == nil || d == nil {
		return
	}
	s.cache.Set(dashboardKey(d.ID), d)
}

func dashboardKey(id string) query.Key {
	return query.Key{Scope: query.DashboardByID, ID: id}
}
