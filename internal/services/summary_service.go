package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dormbill/internal/cache"
	"dormbill/internal/core"
	"dormbill/internal/log"
	"dormbill/internal/storage"
)

// DormerSummary is the balance overview for one dormer: one summary per
// ledger kind and their merge.
type DormerSummary struct {
	Dormer core.Dormer
	Bills  core.Summary
	Fines  core.Summary
	Events core.Summary
	Total  core.Summary
	// LatePartial counts partially paid ledgers whose due date has passed.
	// They keep the Partially Paid status.
	LatePartial int
	AsOf        time.Time
}

// ByKind returns the summary for one ledger kind.
func (d DormerSummary) ByKind(kind core.LedgerKind) core.Summary {
	switch kind {
	case core.KindBill:
		return d.Bills
	case core.KindFine:
		return d.Fines
	case core.KindEvent:
		return d.Events
	}
	return core.Summary{}
}

// SummaryService computes dormer summaries, caching them until a payment or
// a new ledger invalidates them or the cache TTL lapses.
type SummaryService struct {
	store    storage.LedgerReader
	dormers  dormerReader
	cache    cache.Cache[DormerSummary]
	observer Observer
	logger   *log.Logger
	now      func() time.Time

	// gens counts invalidations per dormer. A summary is only cached when
	// no invalidation happened while it was being computed.
	mu   sync.Mutex
	gens map[string]uint64
}

type dormerReader interface {
	GetDormer(ctx context.Context, id string) (core.Dormer, error)
	ListDormers(ctx context.Context) ([]core.Dormer, error)
}

// SummaryStore is what SummaryService reads from.
type SummaryStore interface {
	storage.LedgerReader
	dormerReader
}

func NewSummaryService(store SummaryStore, c cache.Cache[DormerSummary], observer Observer, logger *log.Logger) *SummaryService {
	if logger == nil {
		logger = log.Discard()
	}
	return &SummaryService{
		store:    store,
		dormers:  store,
		cache:    c,
		observer: observerOrNop(observer),
		logger:   logger.WithComponent(log.ComponentSummary),
		now:      time.Now,
		gens:     make(map[string]uint64),
	}
}

func summaryKey(dormerID string) string {
	return "dormer:" + dormerID + ":summary"
}

// Invalidate drops every cached view of dormerID.
func (s *SummaryService) Invalidate(dormerID string) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[dormerID]++
	s.cache.DeletePrefix("dormer:" + dormerID + ":")
}

func (s *SummaryService) generation(dormerID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[dormerID]
}

// storeIfCurrent caches sum unless dormerID was invalidated after gen was read.
func (s *SummaryService) storeIfCurrent(key, dormerID string, gen uint64, sum DormerSummary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[dormerID] != gen {
		return false
	}
	s.cache.Set(key, sum)
	return true
}

// Summarize returns dormerID's summary, from cache when fresh.
func (s *SummaryService) Summarize(ctx context.Context, dormerID string) (DormerSummary, error) {
	key := summaryKey(dormerID)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.observer.ObserveCache(true)
			return cached, nil
		}
		s.observer.ObserveCache(false)
	}
	gen := s.generation(dormerID)

	d, err := s.dormers.GetDormer(ctx, dormerID)
	if err != nil {
		return DormerSummary{}, err
	}
	out, err := s.compute(ctx, d)
	if err != nil {
		return DormerSummary{}, err
	}
	if s.cache != nil && !s.storeIfCurrent(key, dormerID, gen, out) {
		s.logger.DebugContext(ctx, "Summary invalidated while computing, not cached",
			log.FieldDormerID, dormerID)
	}
	s.logger.DebugContext(ctx, "Summary computed",
		log.FieldDormerID, dormerID,
		log.FieldCount, out.Total.Count)
	return out, nil
}

// compute loads the three ledger kinds concurrently.
func (s *SummaryService) compute(ctx context.Context, d core.Dormer) (DormerSummary, error) {
	kinds := []core.LedgerKind{core.KindBill, core.KindFine, core.KindEvent}
	sets := make([][]core.Ledger, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			ls, err := s.store.ListLedgersForDormer(gctx, d.ID, kind)
			if err != nil {
				return fmt.Errorf("list %s ledgers: %w", kind, err)
			}
			sets[i] = ls
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DormerSummary{}, err
	}

	now := s.now()
	out := DormerSummary{
		Dormer: d,
		Bills:  core.Summarize(sets[0], now),
		Fines:  core.Summarize(sets[1], now),
		Events: core.Summarize(sets[2], now),
		AsOf:   now,
	}
	out.Total = core.Merge(out.Bills, out.Fines, out.Events)
	today := core.DateOf(now)
	for _, set := range sets {
		for _, l := range set {
			if l.Status(now) == core.StatusPartiallyPaid && !l.DueDate.IsZero() && today.After(l.DueDate.Time) {
				out.LatePartial++
			}
		}
	}
	return out, nil
}

// SummarizeAll summarizes every dormer, at most four at a time.
func (s *SummaryService) SummarizeAll(ctx context.Context) ([]DormerSummary, error) {
	dormers, err := s.dormers.ListDormers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dormers: %w", err)
	}
	out := make([]DormerSummary, len(dormers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, d := range dormers {
		g.Go(func() error {
			sum, err := s.Summarize(gctx, d.ID)
			if err != nil {
				return fmt.Errorf("summarize %s: %w", d.ID, err)
			}
			out[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
