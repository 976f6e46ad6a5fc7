// Package coordinator is the single authority for which match requests are
// running and what state they are in. It de-duplicates in-flight work,
// short-circuits through the durable cache, drives the match source and
// broadcasts every job transition to subscribers.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prospectline/prospect-matcher/internal/cache"
	"github.com/prospectline/prospect-matcher/internal/identity"
	"github.com/prospectline/prospect-matcher/internal/notify"
	"github.com/prospectline/prospect-matcher/internal/prospects"
	"github.com/prospectline/prospect-matcher/internal/source"
)

// ErrAuthRequired is returned by StartBulk when no user can be resolved.
// Bulk matching fails closed up front; single requests fail open per job.
var ErrAuthRequired = errors.New("a signed-in user is required for bulk matching")

const authRequiredMsg = "sign in to run matching"

type Coordinator struct {
	source   source.Source
	cache    *cache.Cache
	identity identity.Resolver
	notifier notify.Notifier
	logger   *zap.Logger

	mu          sync.Mutex
	jobs        map[string]*Job
	active      map[prospects.ProcessingKey]string
	subscribers map[int]func(Job)
	nextSub     int
}

func New(src source.Source, c *cache.Cache, resolver identity.Resolver, notifier notify.Notifier, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		source:      src,
		cache:       c,
		identity:    resolver,
		notifier:    notifier,
		logger:      logger,
		jobs:        make(map[string]*Job),
		active:      make(map[prospects.ProcessingKey]string),
		subscribers: make(map[int]func(Job)),
	}
}

// IsProcessing reports whether a job for this request is currently in flight.
func (c *Coordinator) IsProcessing(req prospects.MatchRequest) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[prospects.NewProcessingKey(req)]
	return ok
}

// StartSingle accepts one match request and returns a job id immediately.
// A request already in flight returns the existing job id without starting a
// second fetch. A cache hit returns a job born completed, with no source call.
func (c *Coordinator) StartSingle(ctx context.Context, req prospects.MatchRequest) string {
	key := prospects.NewProcessingKey(req)

	c.mu.Lock()
	if existing, ok := c.active[key]; ok {
		c.mu.Unlock()
		c.logger.Debug("match request already in flight",
			zap.String("prospect_id", req.ProspectID),
			zap.String("job_id", existing),
		)
		return existing
	}
	c.mu.Unlock()

	// Cache needs a user. Failing to resolve one here is not fatal: skip the
	// cache and let the async flow decide.
	if user, err := c.identity.Resolve(ctx); err == nil && user != nil {
		if matches := c.cache.Get(ctx, req, user.ID); matches != nil {
			job := c.newJob(req)
			job.Status = StatusCompleted
			job.Progress = progressDone
			job.Matches = matches

			c.mu.Lock()
			c.jobs[job.ID] = job
			c.mu.Unlock()

			c.logger.Debug("serving matches from cache",
				zap.String("prospect_id", req.ProspectID),
				zap.Int("count", len(matches)),
			)
			c.publish(*job)
			return job.ID
		}
	}

	job := c.newJob(req)

	// The identity and cache probes ran outside the lock; a concurrent caller
	// may have claimed the key in the meantime. Re-check before claiming so
	// only one flow per key ever reaches the source.
	c.mu.Lock()
	if existing, ok := c.active[key]; ok {
		c.mu.Unlock()
		c.logger.Debug("match request claimed concurrently",
			zap.String("prospect_id", req.ProspectID),
			zap.String("job_id", existing),
		)
		return existing
	}
	c.jobs[job.ID] = job
	c.active[key] = job.ID
	c.mu.Unlock()

	c.publish(*job)

	go c.runSingle(ctx, job.ID, key, req)

	return job.ID
}

func (c *Coordinator) runSingle(ctx context.Context, jobID string, key prospects.ProcessingKey, req prospects.MatchRequest) {
	defer c.release(key, jobID)

	c.transition(jobID, StatusProcessing, progressStarted)

	user, err := c.identity.Resolve(ctx)
	if err != nil {
		c.failJob(jobID, fmt.Errorf("resolving user: %w", err))
		return
	}
	if user == nil {
		c.failJob(jobID, errors.New(authRequiredMsg))
		return
	}

	c.transition(jobID, StatusProcessing, progressIdentified)

	matches, err := c.source.GetMatches(ctx, req)
	if err != nil {
		c.failJob(jobID, err)
		return
	}

	c.transition(jobID, StatusProcessing, progressFetched)

	c.cache.Put(ctx, req, user.ID, matches)
	c.completeJob(jobID, matches)
}

type batchItem struct {
	jobID string
	key   prospects.ProcessingKey
	req   prospects.MatchRequest
}

// StartBulk accepts many requests at once and returns the ids of the jobs it
// created. Requests already in flight or already cached are dropped silently;
// an empty result is a valid outcome. Unlike StartSingle, bulk matching
// requires a resolved user before any job is created.
func (c *Coordinator) StartBulk(ctx context.Context, reqs []prospects.MatchRequest) ([]string, error) {
	user, err := c.identity.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}
	if user == nil {
		return nil, ErrAuthRequired
	}

	items := make([]batchItem, 0, len(reqs))
	ids := make([]string, 0, len(reqs))

	for _, req := range reqs {
		key := prospects.NewProcessingKey(req)

		c.mu.Lock()
		_, running := c.active[key]
		c.mu.Unlock()
		if running {
			continue
		}

		if matches := c.cache.Get(ctx, req, user.ID); matches != nil {
			c.logger.Debug("bulk request already cached",
				zap.String("prospect_id", req.ProspectID),
				zap.Int("count", len(matches)),
			)
			continue
		}

		job := c.newJob(req)

		// Same re-check as StartSingle: the cache probe ran unlocked.
		c.mu.Lock()
		if _, running := c.active[key]; running {
			c.mu.Unlock()
			continue
		}
		c.jobs[job.ID] = job
		c.active[key] = job.ID
		c.mu.Unlock()

		c.publish(*job)

		items = append(items, batchItem{jobID: job.ID, key: key, req: req})
		ids = append(ids, job.ID)
	}

	if len(items) == 0 {
		return ids, nil
	}

	c.logger.Info("starting bulk matching",
		zap.Int("requested", len(reqs)),
		zap.Int("uncached", len(items)),
	)

	go c.runBulk(ctx, user.ID, items)

	return ids, nil
}

func (c *Coordinator) runBulk(ctx context.Context, userID string, items []batchItem) {
	for _, item := range items {
		c.transition(item.jobID, StatusProcessing, progressStarted)
	}
	for _, item := range items {
		c.transition(item.jobID, StatusProcessing, progressIdentified)
	}

	reqs := make([]prospects.MatchRequest, 0, len(items))
	for _, item := range items {
		reqs = append(reqs, item.req)
	}

	results, err := c.source.GetBulkMatches(ctx, reqs)
	if err != nil {
		// One batched call covers every prospect here; a failure is ambiguous
		// in origin, so the whole batch fails together.
		for _, item := range items {
			c.setError(item.jobID, err.Error())
			c.release(item.key, item.jobID)
		}
		if c.notifier != nil {
			c.notifier.Error("Bulk matching failed",
				fmt.Sprintf("could not match %d prospects: %s", len(items), err),
			)
		}
		return
	}

	for _, item := range items {
		c.transition(item.jobID, StatusProcessing, progressFetched)
	}

	for _, item := range items {
		// A missing entry means the source found nobody, not that the
		// sibling jobs should suffer.
		matches := results[item.req.ProspectID]
		if matches == nil {
			matches = []prospects.Candidate{}
		}

		c.cache.Put(ctx, item.req, userID, matches)
		c.completeJob(item.jobID, matches)
		c.release(item.key, item.jobID)
	}
}

// Subscribe registers a callback invoked with a full job snapshot on every
// state transition. The returned function removes exactly this registration.
func (c *Coordinator) Subscribe(fn func(Job)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// Status returns a snapshot of the job, if it exists.
func (c *Coordinator) Status(jobID string) (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Jobs returns snapshots of every tracked job.
func (c *Coordinator) Jobs() []Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	jobs := make([]Job, 0, len(c.jobs))
	for _, job := range c.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// JobsForProspect returns snapshots of every job tracking the given prospect.
func (c *Coordinator) JobsForProspect(prospectID string) []Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	var jobs []Job
	for _, job := range c.jobs {
		if job.ProspectID == prospectID {
			jobs = append(jobs, *job)
		}
	}
	return jobs
}

// CleanupCompleted removes every terminal job from the table. Processing keys
// should already be released by the async flows, but cleanup does not assume
// that and releases any still pointing at a removed job. Subscribers are not
// notified; the jobs are gone, not transitioned.
func (c *Coordinator) CleanupCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, job := range c.jobs {
		if !job.Terminal() {
			continue
		}
		if owner, ok := c.active[job.key()]; ok && owner == id {
			delete(c.active, job.key())
		}
		delete(c.jobs, id)
	}
}

// Cleanup removes one job by id and releases its processing key if it still
// owns one.
func (c *Coordinator) Cleanup(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[jobID]
	if !ok {
		return
	}
	if owner, ok := c.active[job.key()]; ok && owner == jobID {
		delete(c.active, job.key())
	}
	delete(c.jobs, jobID)
}

func (c *Coordinator) newJob(req prospects.MatchRequest) *Job {
	return &Job{
		ID:         uuid.New().String(),
		ProspectID: req.ProspectID,
		Company:    req.Company,
		JobTitle:   req.JobTitle,
		Location:   req.Location,
		Status:     StatusPending,
		Progress:   progressQueued,
	}
}

// release frees the key only when jobID still owns it, so a finishing stale
// flow cannot drop a claim a newer job holds.
func (c *Coordinator) release(key prospects.ProcessingKey, jobID string) {
	c.mu.Lock()
	if owner, ok := c.active[key]; ok && owner == jobID {
		delete(c.active, key)
	}
	c.mu.Unlock()
}

func (c *Coordinator) transition(jobID string, status Status, progress int) {
	c.mu.Lock()
	job, ok := c.jobs[jobID]
	if !ok || job.Terminal() {
		c.mu.Unlock()
		return
	}
	job.Status = status
	job.Progress = progress
	snapshot := *job
	c.mu.Unlock()

	c.publish(snapshot)
}

func (c *Coordinator) completeJob(jobID string, matches []prospects.Candidate) {
	c.mu.Lock()
	job, ok := c.jobs[jobID]
	if !ok || job.Terminal() {
		c.mu.Unlock()
		return
	}
	job.Status = StatusCompleted
	job.Progress = progressDone
	job.Matches = matches
	snapshot := *job
	c.mu.Unlock()

	c.logger.Info("matching completed",
		zap.String("job_id", jobID),
		zap.String("prospect_id", snapshot.ProspectID),
		zap.Int("matches", len(matches)),
	)
	c.publish(snapshot)
}

func (c *Coordinator) setError(jobID, message string) {
	c.mu.Lock()
	job, ok := c.jobs[jobID]
	if !ok || job.Terminal() {
		c.mu.Unlock()
		return
	}
	job.Status = StatusError
	job.Err = message
	snapshot := *job
	c.mu.Unlock()

	c.logger.Warn("matching failed",
		zap.String("job_id", jobID),
		zap.String("prospect_id", snapshot.ProspectID),
		zap.String("error", message),
	)
	c.publish(snapshot)
}

func (c *Coordinator) failJob(jobID string, err error) {
	c.setError(jobID, err.Error())
	if c.notifier != nil {
		c.notifier.Error("Matching failed", err.Error())
	}
}

func (c *Coordinator) publish(job Job) {
	c.mu.Lock()
	callbacks := make([]func(Job), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		callbacks = append(callbacks, fn)
	}
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(job)
	}
}
