package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// ReaperConfig drives the orphan sweep of a backend.
type ReaperConfig struct {
	Schedule string        // cron spec, e.g. "15 2 * * *"
	Grace    time.Duration // objects younger than this are never touched
	DryRun   bool
	Timeout  time.Duration
}

// KeepFunc returns every object name that is still referenced.
type KeepFunc func(ctx context.Context) (map[string]bool, error)

// Reaper deletes objects in a backend that no record references any more,
// e.g. derivatives left behind when a replacement changed the file extension
// or a hard delete failed half way.
type Reaper struct {
	Backend Backend
	Keep    KeepFunc
	Config  ReaperConfig
	// Deleted is called with the number of removed objects after each run.
	Deleted func(n int)

	cron *cron.Cron
}

func (r *Reaper) Start() error {
	if r.Config.Schedule == "" {
		log.Printf("[REAPER] no schedule configured, orphan sweep disabled")
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(r.Config.Schedule, func() {
		timeout := r.Config.Timeout
		if timeout <= 0 {
			timeout = 4 * time.Minute
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := r.RunOnce(ctx, time.Now()); err != nil {
			log.Printf("[REAPER] run error: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("reaper: add cron: %w", err)
	}
	r.cron = c
	c.Start()
	log.Printf("[REAPER] started schedule=%q grace=%s dryRun=%v", r.Config.Schedule, r.Config.Grace, r.Config.DryRun)
	return nil
}

// Stop waits for a running sweep to finish or ctx to end.
func (r *Reaper) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce performs one sweep and returns the names it deleted (or would delete on dry run).
func (r *Reaper) RunOnce(ctx context.Context, now time.Time) ([]string, error) {
	keep, err := r.Keep(ctx)
	if err != nil {
		return nil, fmt.Errorf("reaper: referenced names: %w", err)
	}
	objects, err := r.Backend.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("reaper: list: %w", err)
	}

	threshold := now.Add(-r.Config.Grace)
	var orphans []string
	for _, o := range objects {
		if keep[o.Name] || o.LastModified.After(threshold) {
			continue
		}
		orphans = append(orphans, o.Name)
	}

	if len(orphans) == 0 {
		log.Printf("[REAPER] nothing to delete; scanned=%d", len(objects))
		return nil, nil
	}
	if r.Config.DryRun {
		log.Printf("[REAPER] DRY-RUN would delete %d/%d objects", len(orphans), len(objects))
		return orphans, nil
	}

	var deleted []string
	for _, name := range orphans {
		if err := r.Backend.Delete(ctx, name); err != nil {
			log.Printf("[REAPER] delete %s: %v", name, err)
			continue
		}
		deleted = append(deleted, name)
	}
	if r.Deleted != nil {
		r.Deleted(len(deleted))
	}
	log.Printf("[REAPER] deleted %d objects (scanned=%d)", len(deleted), len(objects))
	return deleted, nil
}
