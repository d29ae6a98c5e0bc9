package service

import (
	"context"
	"math"
	"time"

	"cabinrent/internal/domain"
	"cabinrent/internal/events"
	"cabinrent/internal/models"
	"cabinrent/internal/repository"

	"github.com/rs/zerolog"
)

const (
	statsCacheKey = "stats:dashboard"
	revenueMonths = 12
)

type StatsService struct {
	repo   domain.StatsRepository
	cache  domain.CacheStore
	pricer *Pricer
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewStatsService(repo domain.StatsRepository, cache domain.CacheStore, pricer *Pricer, logger *zerolog.Logger) *StatsService {
	return &StatsService{
		repo:   repo,
		cache:  cache,
		pricer: pricer,
		ttl:    models.StatsCacheTTL * time.Second,
		logger: nopLogger(logger),
	}
}

// SubscribeInvalidation drops the cached dashboard on every domain event.
func (s *StatsService) SubscribeInvalidation(bus *events.EventBus) {
	bus.SubscribeAll(func(event *events.Event) error {
		return s.Invalidate(context.Background())
	})
}

func (s *StatsService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, statsCacheKey)
}

// Dashboard returns the dashboard figures for today, served from cache while fresh.
func (s *StatsService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	today := s.pricer.Today()

	if s.cache != nil {
		var cached models.DashboardStats
		ok, err := repository.GetJSON(ctx, s.cache, statsCacheKey, &cached)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Stats cache read failed")
		} else if ok && cached.Date.Equal(today) {
			return &cached, nil
		}
	}

	stats, err := s.Compute(ctx, today)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := repository.SetJSON(ctx, s.cache, statsCacheKey, stats, s.ttl); err != nil {
			s.logger.Warn().Err(err).Msg("Stats cache write failed")
		}
	}
	return stats, nil
}

// Compute builds the dashboard figures for day without the cache.
func (s *StatsService) Compute(ctx context.Context, day models.Date) (*models.DashboardStats, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.repo.CountReservationsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	arrivals, err := s.repo.Arrivals(ctx, day)
	if err != nil {
		return nil, err
	}
	departures, err := s.repo.Departures(ctx, day)
	if err != nil {
		return nil, err
	}

	monthStart := day.FirstOfMonth()
	nextMonth := monthStart.AddDays(32).FirstOfMonth()
	nights, err := s.repo.OccupiedNights(ctx, monthStart, nextMonth)
	if err != nil {
		return nil, err
	}

	revenueFrom := monthStart
	for i := 1; i < revenueMonths; i++ {
		revenueFrom = revenueFrom.AddDays(-1).FirstOfMonth()
	}
	revenue, err := s.repo.RevenueByMonth(ctx, revenueFrom)
	if err != nil {
		return nil, err
	}

	return &models.DashboardStats{
		Date:                day,
		Cabins:              counts.Cabins,
		ActiveCabins:        counts.ActiveCabins,
		Guests:              counts.Guests,
		PendingRequests:     counts.PendingRequests,
		ReservationsByState: byStatus,
		ArrivalsToday:       len(arrivals),
		DeparturesToday:     len(departures),
		OccupancyRate:       occupancyRate(nights, counts.ActiveCabins, monthStart.DaysUntil(nextMonth)),
		MonthlyRevenue:      fillMonths(revenue, revenueFrom, revenueMonths),
	}, nil
}

// occupancyRate is booked nights over available cabin-nights, as a fraction rounded to 4 places.
func occupancyRate(nights, cabins, days int) float64 {
	if cabins <= 0 || days <= 0 {
		return 0
	}
	rate := float64(nights) / float64(cabins*days)
	return math.Round(rate*10000) / 10000
}

// fillMonths returns n consecutive months from start, zero where no payments were made.
func fillMonths(rows []models.MonthlyRevenue, start models.Date, n int) []models.MonthlyRevenue {
	byMonth := make(map[string]float64, len(rows))
	for _, r := range rows {
		byMonth[r.Month] = r.Amount
	}
	out := make([]models.MonthlyRevenue, 0, n)
	month := start.FirstOfMonth()
	for i := 0; i < n; i++ {
		key := month.String()[:7]
		out = append(out, models.MonthlyRevenue{Month: key, Amount: models.RoundMoney(byMonth[key])})
		month = month.AddDays(32).FirstOfMonth()
	}
	return out
}
