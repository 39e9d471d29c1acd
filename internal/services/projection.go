package services

import (
	"context"
	"strconv"
	"strings"

	"leadmarket/internal/geo"
	"leadmarket/internal/models"
	"leadmarket/internal/store"
)

type passthroughCache struct{}

func (passthroughCache) Fetch(ctx context.Context, _ string, load func(context.Context) ([]models.PublicJob, error)) ([]models.PublicJob, error) {
	return load(ctx)
}

func (passthroughCache) Invalidate(context.Context) error { return nil }

// ListOpenJobs returns one page of the public map view. Walking Offset forward
// by Limit until a short page visits every open job. Coordinates are rounded
// so the exact address cannot be recovered before purchase.
func (s *MarketplaceService) ListOpenJobs(ctx context.Context, filter store.OpenJobsFilter) ([]models.PublicJob, error) {
	filter = filter.Normalized()
	filter.Trade = strings.TrimSpace(filter.Trade)
	key := "trade=" + filter.Trade + ";limit=" + strconv.Itoa(filter.Limit) + ";offset=" + strconv.Itoa(filter.Offset)
	jobs, err := s.cache.Fetch(ctx, key, func(ctx context.Context) ([]models.PublicJob, error) {
		rows, err := s.jobs.ListOpen(ctx, filter)
		if err != nil {
			return nil, err
		}
		return publicView(rows), nil
	})
	if err != nil {
		return nil, classify("list open jobs", err)
	}
	return jobs, nil
}

func publicView(rows []models.PublicJob) []models.PublicJob {
	out := make([]models.PublicJob, 0, len(rows))
	for _, row := range rows {
		row.Latitude = geo.Approximate(row.Latitude, geo.PublicPrecision)
		row.Longitude = geo.Approximate(row.Longitude, geo.PublicPrecision)
		out = append(out, row)
	}
	return out
}
