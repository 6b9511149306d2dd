package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"

	"github.com/custodia-labs/graphmirror/internal/logger"
)

// Engine drives reconciliation passes. One Engine serves every collection of
// an account; passes for distinct collections may run concurrently, passes
// for the same collection are serialised.
type Engine struct {
	source     Source
	pusher     Pusher
	cache      Cache
	tokens     TokenStore
	reconciler *Reconciler

	content ContentFetcher
	bodies  ContentCache
	guard   *FetchGuard

	mu    stdsync.Mutex
	locks map[string]*stdsync.Mutex
}

// EngineConfig holds the collaborators for NewEngine.
type EngineConfig struct {
	Source     Source
	Pusher     Pusher
	Cache      Cache
	Tokens     TokenStore
	Projectors map[Kind]Projector
	// Content and Bodies are optional; without them FetchContent returns an
	// error.
	Content ContentFetcher
	Bodies  ContentCache
}

// NewEngine creates an engine from the given collaborators.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		source:     cfg.Source,
		pusher:     cfg.Pusher,
		cache:      cfg.Cache,
		tokens:     cfg.Tokens,
		reconciler: NewReconciler(cfg.Cache, cfg.Projectors),
		content:    cfg.Content,
		bodies:     cfg.Bodies,
		guard:      NewFetchGuard(),
		locks:      make(map[string]*stdsync.Mutex),
	}
}

// lockFor returns the per-collection mutex, creating it on first use.
func (e *Engine) lockFor(collectionID string) *stdsync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[collectionID]
	if !ok {
		l = &stdsync.Mutex{}
		e.locks[collectionID] = l
	}
	return l
}

// Refresh runs one reconciliation pass for the collection and returns the ids
// it touched. The new delta token is persisted only after every page of the
// pass succeeded; on error or cancellation the stored token is untouched, so
// the next pass resumes from the same point.
func (e *Engine) Refresh(ctx context.Context, col *Collection) (*ChangeSet, error) {
	l := e.lockFor(col.ID)
	l.Lock()
	defer l.Unlock()

	token, err := e.tokens.Token(ctx, col.ID)
	if err != nil {
		// A token store read failure only costs us a full resync.
		logger.Warn("sync: reading delta token for %s: %v", col.ID, err)
		token = ""
	}

	cs, deltaLink, err := e.runPass(ctx, col, token)
	if errors.Is(err, ErrDeltaExpired) {
		logger.Info("sync: delta token for %s expired, full resync", col.ID)
		if cerr := e.cache.Clear(ctx, col.ID); cerr != nil {
			return nil, fmt.Errorf("evict collection %s: %w", col.ID, cerr)
		}
		if cerr := e.tokens.ClearToken(ctx, col.ID); cerr != nil {
			logger.Warn("sync: clearing delta token for %s: %v", col.ID, cerr)
		}
		cs, deltaLink, err = e.runPass(ctx, col, "")
	}
	if err != nil {
		return nil, err
	}

	if err := e.tokens.SetToken(ctx, col.ID, deltaLink); err != nil {
		// Non-fatal: the pass itself succeeded, the next one repeats it.
		logger.Warn("sync: persisting delta token for %s: %v", col.ID, err)
	}

	logger.Debug("sync: %s pass complete: %d created, %d modified, %d removed",
		col.ID, len(cs.Created), len(cs.Modified), len(cs.Removed))
	return cs, nil
}

// runPass pages through the change feed starting at link and reconciles every
// record. It returns the delta link from the final page.
func (e *Engine) runPass(ctx context.Context, col *Collection, link string) (*ChangeSet, string, error) {
	cs := &ChangeSet{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		page, err := e.source.Changes(ctx, col, link)
		if err != nil {
			return nil, "", err
		}

		for i := range page.Records {
			if err := ctx.Err(); err != nil {
				return nil, "", err
			}
			if err := e.reconciler.Apply(ctx, col, &page.Records[i], cs); err != nil {
				// Malformed records are skipped, cache failures abort.
				if isRecordError(err) {
					continue
				}
				return nil, "", err
			}
		}

		if page.NextLink == "" {
			return cs, page.DeltaLink, nil
		}
		link = page.NextLink
	}
}

// recordError marks failures confined to a single record.
type recordError struct{ err error }

func (e *recordError) Error() string { return e.err.Error() }
func (e *recordError) Unwrap() error { return e.err }

func isRecordError(err error) bool {
	var re *recordError
	return errors.As(err, &re)
}

// FetchContent returns the full body of one record, downloading it at most
// once per process even under concurrent callers. Bodies are cached durably;
// a cached body is returned without touching the network.
func (e *Engine) FetchContent(ctx context.Context, col *Collection, uid string) ([]byte, error) {
	if e.content == nil || e.bodies == nil {
		return nil, errors.New("sync: content fetching not configured")
	}

	if body, err := e.bodies.Content(ctx, col.ID, uid); err == nil {
		return body, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	key := col.ID + "/" + uid
	return e.guard.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		// Re-check under the guard: a concurrent fetch may have landed the
		// body while we waited.
		if body, err := e.bodies.Content(ctx, col.ID, uid); err == nil {
			return body, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		body, err := e.content.FetchContent(ctx, col, uid)
		if err != nil {
			return nil, err
		}
		if err := e.bodies.PutContent(ctx, col.ID, uid, body); err != nil {
			// Cache write failures are non-fatal; the body is still usable.
			logger.Warn("sync: caching body %s: %v", uid, err)
		}
		return body, nil
	})
}
