// Package schedule runs the periodic document re-sync that keeps linked
// Google Docs and Sheets fresh in the vector index.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/waflow/server/internal/rag"
	"github.com/waflow/server/internal/repo"
	logx "github.com/waflow/server/pkg/logger"
)

// DefaultResyncInterval matches the production re-sync cadence for linked
// documents.
const DefaultResyncInterval = 2 * time.Hour

// LinkFetcher resolves a document link to its current text content.
type LinkFetcher interface {
	FetchLink(ctx context.Context, link string) (string, error)
}

// FlowLister lists the flows whose linked documents need re-syncing.
type FlowLister interface {
	FlowsWithDocLinks(ctx context.Context) ([]repo.FlowRecord, error)
}

// Resyncer re-fetches every linked document of every active flow on a fixed
// interval and re-indexes the ones whose content changed.
type Resyncer struct {
	flows    FlowLister
	fetcher  LinkFetcher
	indexer  *rag.Indexer
	interval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewResyncer(flows FlowLister, fetcher LinkFetcher, indexer *rag.Indexer, interval time.Duration) *Resyncer {
	if interval <= 0 {
		interval = DefaultResyncInterval
	}
	return &Resyncer{
		flows:    flows,
		fetcher:  fetcher,
		indexer:  indexer,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the re-sync loop. The first pass runs after one full
// interval, not at startup.
func (r *Resyncer) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.runOnce(context.Background())
			case <-r.stop:
				return
			}
		}
	}()
	logx.Info().Dur("interval", r.interval).Msg("document re-sync started")
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (r *Resyncer) Stop() {
	close(r.stop)
	r.wg.Wait()
	logx.Info().Msg("document re-sync stopped")
}

func (r *Resyncer) runOnce(ctx context.Context) {
	flows, err := r.flows.FlowsWithDocLinks(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("failed to list flows for re-sync")
		return
	}

	for _, flow := range flows {
		for _, link := range flow.DocLinks {
			r.syncLink(ctx, flow, link)
		}
	}
}

// syncLink is best-effort: one broken link never blocks the rest of the
// pass.
func (r *Resyncer) syncLink(ctx context.Context, flow repo.FlowRecord, link string) {
	text, err := r.fetcher.FetchLink(ctx, link)
	if err != nil {
		logx.Error().Err(err).
			Str("flow_id", flow.ID).
			Str("link", link).
			Msg("failed to fetch linked document")
		return
	}

	scope := rag.Scope{
		UserID: flow.UserID,
		BotID:  flow.BotID,
		FlowID: flow.ID,
		Link:   link,
	}
	if err := r.indexer.Upsert(ctx, scope, text); err != nil {
		logx.Error().Err(err).
			Str("flow_id", flow.ID).
			Str("link", link).
			Msg("failed to re-index linked document")
	}
}
