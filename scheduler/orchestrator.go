package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"vibeflow/metadata"
	"vibeflow/store"
	"vibeflow/youtube"
)

// Generator produces upload metadata for a video file.
// *metadata.Generator satisfies this.
type Generator interface {
	Generate(filename string) metadata.Video
}

// Options carries the per-upload settings the orchestrator passes through to
// the publisher.
type Options struct {
	CategoryID  string
	Privacy     string
	MadeForKids bool
}

// CycleResult summarizes one upload cycle.
type CycleResult struct {
	// Uploaded counts successful remote uploads, including any whose local
	// relocation subsequently failed.
	Uploaded int `json:"uploaded"`
	// Failed counts uploads that errored; their files stay pending.
	Failed int `json:"failed"`
	// Recovered counts files from earlier crashed cycles that were
	// relocated without re-upload.
	Recovered int `json:"recovered"`
	// Aborted is set when quota exhaustion cut the cycle short.
	Aborted bool `json:"aborted"`
}

// Orchestrator drives upload cycles against a store and a publisher.
type Orchestrator struct {
	store     *store.Store
	publisher youtube.Publisher
	generator Generator
	table     TimeTable
	opts      Options

	now func() time.Time
}

// New creates an orchestrator. The time table must be non-empty.
func New(st *store.Store, pub youtube.Publisher, gen Generator, table TimeTable, opts Options) *Orchestrator {
	return &Orchestrator{
		store:     st,
		publisher: pub,
		generator: gen,
		table:     table,
		opts:      opts,
		now:       time.Now,
	}
}

// UsingClock replaces the orchestrator's clock. Intended for tests.
func (o *Orchestrator) UsingClock(now func() time.Time) { o.now = now }

// RunCycle executes one upload cycle:
//
//  1. Enumerate pending videos oldest-first; nothing pending is a no-op.
//  2. Probe quota; an explicit exhaustion signal aborts before any upload.
//     An inconclusive probe does not block the cycle.
//  3. Finish relocations left behind by earlier crashed cycles.
//  4. Upload min(pending, slots) videos, slot i publishing at the i-th
//     time-of-day (rolled to tomorrow if already past).
//
// A quota error mid-cycle aborts the remaining uploads; any other upload
// error skips just that video. A video whose upload succeeded but whose
// relocation failed still counts as uploaded and is never uploaded again.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult

	if err := o.store.Scan(); err != nil {
		return res, err
	}
	assets, err := o.store.List()
	if err != nil {
		return res, err
	}
	journal := o.store.Journal()
	if len(assets) == 0 && len(journal) == 0 {
		log.Printf("scheduler: nothing pending, cycle is a no-op")
		return res, nil
	}

	if status := o.publisher.ProbeQuota(ctx); status == youtube.QuotaExhausted {
		log.Printf("scheduler: quota exhausted, aborting cycle before any upload")
		res.Aborted = true
		return res, nil
	}

	if len(journal) > 0 {
		recovered, err := o.store.RecoverPending(ctx)
		if err != nil {
			return res, err
		}
		res.Recovered = recovered
	}

	now := o.now()
	n := len(assets)
	if o.table.Len() < n {
		n = o.table.Len()
	}
	log.Printf("scheduler: %d pending, %d slots, uploading %d", len(assets), o.table.Len(), n)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		asset := assets[i]
		publishAt := o.table.SlotTime(i, now)
		meta := o.generator.Generate(asset.Name)

		videoID, err := o.publisher.UploadScheduled(ctx, youtube.UploadRequest{
			FilePath:    asset.Path,
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryID:  o.opts.CategoryID,
			Privacy:     o.opts.Privacy,
			MadeForKids: o.opts.MadeForKids,
			PublishAt:   publishAt,
		})
		if err != nil {
			if errors.Is(err, youtube.ErrQuotaExceeded) {
				log.Printf("scheduler: quota exhausted mid-cycle after %d uploads, stopping", res.Uploaded)
				res.Aborted = true
				return res, nil
			}
			log.Printf("scheduler: upload of %s failed, will retry next cycle: %v", asset.Name, err)
			res.Failed++
			continue
		}

		// Journal before moving the file: if anything below fails or the
		// process dies, the record blocks a duplicate upload.
		if err := o.store.CommitUpload(asset.Name, videoID); err != nil {
			return res, err
		}
		res.Uploaded++
		log.Printf("scheduler: %s uploaded as %s, publishing at %s", asset.Name, videoID, publishAt.Format(time.RFC3339))

		if _, err := o.store.Relocate(ctx, asset.Name); err != nil {
			log.Printf("scheduler: relocation of %s failed, cleanup will retry: %v", asset.Name, err)
		}
	}

	return res, nil
}
