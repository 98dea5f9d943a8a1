// Package service implements the audit-log read paths: the filtered, sorted
// and paginated listing and the per-log detail view.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gateguard/gateguard-api/internal/auditlog/model"
	"github.com/gateguard/gateguard-api/internal/auditlog/repository"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Detail for an unknown log id.
var ErrNotFound = repository.ErrNotFound

// ValidationError reports out-of-range query parameters.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	sort.Strings(parts)
	return "invalid query: " + strings.Join(parts, "; ")
}

// LogStore is the storage the service reads from.
type LogStore interface {
	List(ctx context.Context, p model.Page) ([]*model.LogListItem, int, error)
	Detail(ctx context.Context, logID int64) (*model.LogDetail, error)
}

// GeoLocator resolves a client address to a location.
type GeoLocator interface {
	Lookup(ip string) (*model.GeoLocation, error)
}

// LogService serves log listings and details.
type LogService struct {
	store    LogStore
	geo      GeoLocator
	validate *validator.Validate
	logger   *zap.Logger
}

// NewLogService creates a new LogService.
func NewLogService(store LogStore, logger *zap.Logger) *LogService {
	return &LogService{
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
}

// SetGeoLocator enables client IP geolocation on Detail.
func (s *LogService) SetGeoLocator(g GeoLocator) {
	s.geo = g
}

// List validates q, replaces an unknown sort key or direction with the
// defaults and returns the requested page.
func (s *LogService) List(ctx context.Context, q model.ListQuery) (*model.ListResult, error) {
	if err := s.validate.Struct(q); err != nil {
		return nil, toValidationError(err)
	}

	p := model.Page{
		Filter: model.LogFilter{
			Decision: strings.TrimSpace(q.Decision),
			Stage:    strings.TrimSpace(q.Stage),
			Host:     strings.TrimSpace(q.Host),
			ClientIP: strings.TrimSpace(q.ClientIP),
		},
		Sort:   model.ParseSortField(q.Sort),
		Dir:    model.ParseSortDir(q.Dir),
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if _, ok := model.LookupSortField(q.Sort); !ok && q.Sort != "" {
		s.logger.Debug("sort key not whitelisted, using default",
			zap.String("requested", q.Sort),
			zap.String("applied", string(p.Sort)),
		)
	}

	items, total, err := s.store.List(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	if items == nil {
		items = []*model.LogListItem{}
	}

	return &model.ListResult{
		Items:  items,
		Total:  total,
		Limit:  p.Limit,
		Offset: p.Offset,
		Sort:   p.Sort,
		Dir:    p.Dir,
	}, nil
}

// Detail returns a log entry with its analyses, newest first.
func (s *LogService) Detail(ctx context.Context, logID int64) (*model.LogDetail, error) {
	d, err := s.store.Detail(ctx, logID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get log detail: %w", err)
	}
	if d.Analyses == nil {
		d.Analyses = []*model.AiAnalysis{}
	}

	if s.geo != nil && d.Log.ClientIP != nil && *d.Log.ClientIP != "" {
		loc, err := s.geo.Lookup(*d.Log.ClientIP)
		if err != nil {
			s.logger.Debug("geo lookup failed", zap.Int64("log_id", logID), zap.Error(err))
		} else {
			d.Geo = loc
		}
	}
	return d, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate query: %w", err)
	}
	ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "min":
			ve.Fields[name] = "must be >= " + fe.Param()
		case "max":
			ve.Fields[name] = "must be <= " + fe.Param()
		default:
			ve.Fields[name] = "failed " + fe.Tag()
		}
	}
	return ve
}
