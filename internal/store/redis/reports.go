package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/scout/internal/domain"
)

// SaveReport stores a run report, marks it as the latest and records it in
// the bounded history list.
func (s *Store) SaveReport(ctx context.Context, r *domain.RunReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	id := r.RunID.String()
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, ReportKey(id), data, DefaultReportTTL)
	pipe.Set(ctx, KeyLastReport, data, 0)
	pipe.LPush(ctx, KeyReportHistory, id)
	pipe.LTrim(ctx, KeyReportHistory, 0, DefaultReportHistory-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr("redis save report", fmt.Errorf("failed to save report: %w", err))
	}
	return nil
}

// LastReport returns the most recent report, or nil when none was saved
func (s *Store) LastReport(ctx context.Context) (*domain.RunReport, error) {
	return s.loadReport(ctx, KeyLastReport)
}

// Report returns a report by run id, or nil if it expired
func (s *Store) Report(ctx context.Context, runID string) (*domain.RunReport, error) {
	return s.loadReport(ctx, ReportKey(runID))
}

// ReportHistory lists recent run ids, newest first
func (s *Store) ReportHistory(ctx context.Context) ([]string, error) {
	ids, err := s.client.LRange(ctx, KeyReportHistory, 0, -1).Result()
	if err != nil {
		return nil, storageErr("redis report history", err)
	}
	return ids, nil
}

func (s *Store) loadReport(ctx context.Context, key string) (*domain.RunReport, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Never saved
		}
		return nil, storageErr("redis load report", fmt.Errorf("failed to get report: %w", err))
	}

	var r domain.RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}
