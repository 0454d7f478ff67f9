// Package pipeline runs discovery cycles: fetch every source, deduplicate,
// score, affiliate within a time budget, persist, reconcile and forward.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/scout/internal/affiliation"
	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/sources"
	"github.com/MrSnakeDoc/scout/internal/store"
)

const (
	DefaultTopK               = 20
	DefaultMaxPages           = 1
	DefaultConcurrency        = 4
	DefaultSourceTimeout      = 30 * time.Second
	DefaultAffiliationBudget  = 30 * time.Minute
	DefaultAffiliationTimeout = 20 * time.Second
	DefaultPersistTimeout     = 10 * time.Second
	DefaultDeactivateAfter    = 3
)

// Forwarder receives the batch persisted by a cycle.
type Forwarder interface {
	Forward(ctx context.Context, entries []*domain.CatalogEntry) error
}

// Announcer publishes a newly discovered entry.
type Announcer interface {
	Announce(ctx context.Context, e *domain.CatalogEntry) error
}

// Options tunes a cycle. Zero values fall back to the defaults above.
type Options struct {
	TopK               int
	PageSize           int
	MaxPages           int
	Concurrency        int
	SourceTimeout      time.Duration
	AffiliationBudget  time.Duration
	AffiliationTimeout time.Duration
	PersistTimeout     time.Duration

	// DeactivateAfter is the number of consecutive missed cycles after
	// which an entry is deactivated. Negative disables reconciliation.
	DeactivateAfter int
}

func (o Options) withDefaults() Options {
	if o.TopK == 0 {
		o.TopK = DefaultTopK
	}
	_, o.PageSize = sources.ClampPage(1, o.PageSize)
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.SourceTimeout <= 0 {
		o.SourceTimeout = DefaultSourceTimeout
	}
	if o.AffiliationBudget <= 0 {
		o.AffiliationBudget = DefaultAffiliationBudget
	}
	if o.AffiliationTimeout <= 0 {
		o.AffiliationTimeout = DefaultAffiliationTimeout
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = DefaultPersistTimeout
	}
	if o.DeactivateAfter == 0 {
		o.DeactivateAfter = DefaultDeactivateAfter
	}
	return o
}

// Orchestrator drives one cycle at a time. Callers provide the single-flight
// guarantee; Run itself refuses to overlap.
type Orchestrator struct {
	sources   *sources.Registry
	affiliate affiliation.Client
	store     store.CatalogStore
	forwarder Forwarder
	announcer Announcer
	opts      Options
	log       logger.Logger
	now       func() time.Time

	state   atomic.Int32
	running atomic.Bool
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

func WithForwarder(f Forwarder) Option { return func(o *Orchestrator) { o.forwarder = f } }

func WithAnnouncer(a Announcer) Option { return func(o *Orchestrator) { o.announcer = a } }

// WithClock overrides time.Now for reports.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// ErrAlreadyRunning is returned when Run is entered while a cycle is active.
var ErrAlreadyRunning = errors.New("a discovery cycle is already running")

// New builds an orchestrator over the registered sources.
func New(reg *sources.Registry, client affiliation.Client, st store.CatalogStore, opts Options, log logger.Logger, options ...Option) *Orchestrator {
	o := &Orchestrator{
		sources:   reg,
		affiliate: client,
		store:     st,
		opts:      opts.withDefaults(),
		log:       log,
		now:       time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// State returns the current stage.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	o.log.Debug("pipeline state", logger.String("state", s.String()))
}

// sourceBatch is what one adapter produced during Discovering.
type sourceBatch struct {
	name       string
	candidates []domain.Candidate
	err        error
}

// approval is a ranked candidate that obtained an affiliate link.
type approval struct {
	scored domain.Scored
	link   string
}

// Run executes one cycle. The report is always returned; the error is set
// only when the cycle aborted (storage failure or cancellation).
func (o *Orchestrator) Run(ctx context.Context, trigger string) (*domain.RunReport, error) {
	report := domain.NewRunReport(trigger, o.now().UTC())
	if !o.running.CompareAndSwap(false, true) {
		return report, ErrAlreadyRunning
	}
	defer o.running.Store(false)
	defer o.setState(Idle)
	defer func() { report.FinishedAt = o.now().UTC() }()

	log := o.log.With(logger.String("run_id", report.RunID.String()))
	log.Info("🔎 discovery cycle started",
		logger.String("trigger", trigger),
		logger.Strings("sources", o.sources.Names()))

	err := o.run(ctx, report)
	if err != nil {
		report.Error = err.Error()
		switch {
		case ctx.Err() != nil:
			report.Reason = domain.ReasonCancelled
		case errors.Is(err, domain.ErrStorageUnavailable):
			report.Reason = domain.ReasonStorageUnavailable
		}
		log.Error("❌ discovery cycle aborted",
			logger.String("reason", report.Reason),
			logger.Error(err))
		return report, err
	}

	log.Info("✅ discovery cycle finished",
		logger.String("reason", report.Reason),
		logger.Int("found", report.Found),
		logger.Int("approved", report.Approved),
		logger.Int("persisted", report.Persisted),
		logger.Int("deactivated", report.Deactivated),
		logger.Bool("forwarded", report.Forwarded))
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, report *domain.RunReport) error {
	o.setState(Discovering)
	batches := o.discover(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	var all []domain.Candidate
	for _, b := range batches {
		report.Found += len(b.candidates)
		if b.err != nil {
			report.SourceErrors[b.name] = b.err.Error()
		}
		all = append(all, b.candidates...)
	}

	o.setState(Deduplicating)
	unique := Dedup(all)
	report.Unique = len(unique)
	if len(unique) == 0 {
		report.Reason = domain.ReasonNoProductsFound
		return nil
	}

	o.setState(Scoring)
	ranked := domain.TopK(domain.Rank(unique), o.opts.TopK)
	report.Ranked = len(ranked)

	o.setState(Affiliating)
	approved := o.affiliateAll(ctx, ranked, report)
	if err := ctx.Err(); err != nil {
		return err
	}

	o.setState(Persisting)
	persisted, err := o.persist(ctx, approved)
	report.Persisted = len(persisted)
	if err != nil {
		return err
	}
	if err := o.reconcile(ctx, batches, report); err != nil {
		return err
	}

	if len(persisted) == 0 {
		report.Reason = domain.ReasonNoCandidatesApproved
		return nil
	}

	o.setState(Forwarding)
	o.forward(ctx, persisted, report)
	report.Reason = domain.ReasonOK
	return nil
}

// discover fetches every source concurrently. Results keep registration
// order so deduplication is deterministic.
func (o *Orchestrator) discover(ctx context.Context) []sourceBatch {
	adapters := o.sources.All()
	batches := make([]sourceBatch, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	for i, a := range adapters {
		g.Go(func() error {
			candidates, err := o.fetchSource(gctx, a)
			batches[i] = sourceBatch{name: a.Name(), candidates: candidates, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return batches
}

// fetchSource reads up to MaxPages pages, stopping at the first page the
// upstream returned short.
// Candidates collected before a failing page are kept, but the source counts
// as failed.
func (o *Orchestrator) fetchSource(ctx context.Context, a sources.Adapter) ([]domain.Candidate, error) {
	var out []domain.Candidate

	for page := 1; page <= o.opts.MaxPages; page++ {
		pctx, cancel := context.WithTimeout(ctx, o.opts.SourceTimeout)
		p, err := a.Fetch(pctx, page, o.opts.PageSize)
		cancel()

		if err != nil {
			if domain.KindOf(err) == "" {
				err = domain.SourceUnavailable(a.Name(), err)
			}
			o.log.Warn("source excluded from cycle",
				logger.String("source", a.Name()),
				logger.Int("page", page),
				logger.Error(err))
			return out, err
		}

		out = append(out, p.Candidates...)
		if !p.More {
			break
		}
	}

	o.log.Info("source fetched",
		logger.String("source", a.Name()),
		logger.Int("candidates", len(out)))
	return out, nil
}

// affiliateAll walks the ranking until it is exhausted or the budget runs
// out. Each candidate is attempted at most once.
func (o *Orchestrator) affiliateAll(ctx context.Context, ranked []domain.Scored, report *domain.RunReport) []approval {
	budget, cancel := context.WithTimeout(ctx, o.opts.AffiliationBudget)
	defer cancel()

	var approved []approval
	for _, s := range ranked {
		if budget.Err() != nil {
			o.log.Warn("affiliation budget exhausted",
				logger.Int("attempted", report.Attempted),
				logger.Int("remaining", len(ranked)-report.Attempted))
			break
		}

		callCtx, callCancel := context.WithTimeout(budget, o.opts.AffiliationTimeout)
		out := o.affiliate.Affiliate(callCtx, s.Candidate)
		callCancel()
		report.Attempted++

		c := s.Candidate
		switch out.Status {
		case affiliation.Approved:
			report.Approved++
			approved = append(approved, approval{scored: s, link: out.Link})
		case affiliation.Rejected:
			report.Rejected++
			o.log.Info("affiliation rejected",
				logger.String("source", c.Source),
				logger.String("external_id", c.ExternalID),
				logger.Error(out.Err(c.Source)))
		default:
			report.Unavailable++
			o.log.Warn("affiliation unavailable",
				logger.String("source", c.Source),
				logger.String("external_id", c.ExternalID),
				logger.Error(out.Err(c.Source)))
		}
	}
	return approved
}

// persist upserts every approved candidate. The first storage error aborts.
func (o *Orchestrator) persist(ctx context.Context, approved []approval) ([]*domain.CatalogEntry, error) {
	persisted := make([]*domain.CatalogEntry, 0, len(approved))

	for _, a := range approved {
		entry := domain.NewEntry(a.scored.Candidate, a.scored.Score, a.link)

		pctx, cancel := context.WithTimeout(ctx, o.opts.PersistTimeout)
		stored, err := o.store.Upsert(pctx, entry)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return persisted, ctx.Err()
			}
			return persisted, storageError("upsert", err)
		}
		persisted = append(persisted, stored)
	}
	return persisted, nil
}

// forward hands the batch to the forwarder and announces new entries.
// Failures are logged only: the catalog is already durable.
func (o *Orchestrator) forward(ctx context.Context, persisted []*domain.CatalogEntry, report *domain.RunReport) {
	if o.forwarder != nil {
		if err := o.forwarder.Forward(ctx, persisted); err != nil {
			if domain.KindOf(err) == "" {
				err = domain.ForwardingFailed("forward", err)
			}
			o.log.Error("forwarding failed",
				logger.Int("entries", len(persisted)),
				logger.Error(err))
		} else {
			report.Forwarded = true
		}
	}

	if o.announcer == nil {
		return
	}
	for _, e := range persisted {
		if !e.IsNew() {
			continue
		}
		if err := o.announcer.Announce(ctx, e); err != nil {
			o.log.Warn("announcement failed",
				logger.String("external_id", e.ExternalID),
				logger.Error(domain.ForwardingFailed("announce", err)))
			continue
		}
		report.Announced++
	}
}
