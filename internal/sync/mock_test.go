package sync

import (
	"context"
	"encoding/json"
	stdsync "sync"
)

// fakeCache is an in-memory Cache for engine and reconciler tests.
type fakeCache struct {
	mu      stdsync.Mutex
	records map[string]map[string]*Record

	getErr  error
	putErr  error
	cleared int
}

func newFakeCache() *fakeCache {
	return &fakeCache{records: make(map[string]map[string]*Record)}
}

func (c *fakeCache) Get(_ context.Context, collectionID, uid string) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	rec, ok := c.records[collectionID][uid]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (c *fakeCache) Put(_ context.Context, collectionID string, rec *Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	if c.records[collectionID] == nil {
		c.records[collectionID] = make(map[string]*Record)
	}
	cp := *rec
	c.records[collectionID][rec.UID] = &cp
	return nil
}

func (c *fakeCache) RemoveMany(_ context.Context, collectionID string, uids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, uid := range uids {
		delete(c.records[collectionID], uid)
	}
	return nil
}

func (c *fakeCache) Clear(_ context.Context, collectionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared++
	delete(c.records, collectionID)
	return nil
}

func (c *fakeCache) Changed(_ context.Context, collectionID string) ([]*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Record
	for _, rec := range c.records[collectionID] {
		if rec.Dirty {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (c *fakeCache) MarkPushed(_ context.Context, collectionID string, uids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, uid := range uids {
		if rec, ok := c.records[collectionID][uid]; ok {
			rec.Dirty = false
		}
	}
	return nil
}

func (c *fakeCache) count(collectionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records[collectionID])
}

func (c *fakeCache) get(collectionID, uid string) *Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[collectionID][uid]
}

func (c *fakeCache) put(collectionID string, rec *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.records[collectionID] == nil {
		c.records[collectionID] = make(map[string]*Record)
	}
	c.records[collectionID][rec.UID] = rec
}

// fakeTokens is an in-memory TokenStore.
type fakeTokens struct {
	mu     stdsync.Mutex
	tokens map[string]string

	readErr  error
	writeErr error
	sets     []string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{tokens: make(map[string]string)}
}

func (t *fakeTokens) Token(_ context.Context, collectionID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return "", t.readErr
	}
	return t.tokens[collectionID], nil
}

func (t *fakeTokens) SetToken(_ context.Context, collectionID, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.tokens[collectionID] = token
	t.sets = append(t.sets, token)
	return nil
}

func (t *fakeTokens) ClearToken(_ context.Context, collectionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tokens, collectionID)
	return nil
}

func (t *fakeTokens) token(collectionID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokens[collectionID]
}

// scriptedSource returns a canned sequence of pages or errors, keyed by the
// link it was called with.
type scriptedSource struct {
	mu    stdsync.Mutex
	pages map[string]*Page
	errs  map[string]error
	calls []string
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{
		pages: make(map[string]*Page),
		errs:  make(map[string]error),
	}
}

func (s *scriptedSource) Changes(_ context.Context, _ *Collection, link string) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, link)
	if err, ok := s.errs[link]; ok {
		// One-shot errors: a retry of the same link sees the page instead.
		delete(s.errs, link)
		return nil, err
	}
	page, ok := s.pages[link]
	if !ok {
		return &Page{DeltaLink: "delta-final"}, nil
	}
	return page, nil
}

// fakePusher records the upload calls it receives.
type fakePusher struct {
	mu      stdsync.Mutex
	updates [][]FlagUpdate
	moves   map[string][]string

	updateErr error
	moveErr   error
}

func newFakePusher() *fakePusher {
	return &fakePusher{moves: make(map[string][]string)}
}

func (p *fakePusher) UpdateFlags(_ context.Context, _ *Collection, updates []FlagUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return p.updateErr
	}
	p.updates = append(p.updates, updates)
	return nil
}

func (p *fakePusher) Move(_ context.Context, _ *Collection, uids []string, dest string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.moveErr != nil {
		return p.moveErr
	}
	p.moves[dest] = append(p.moves[dest], uids...)
	return nil
}

// rawProjector builds a record whose summary is the raw payload. Records
// whose payload is the literal "bad" fail projection.
type rawProjector struct{}

func (rawProjector) Project(r *RemoteRecord) (*Record, error) {
	if string(r.Raw) == `"bad"` {
		return nil, json.Unmarshal(r.Raw, &struct{ X int }{})
	}
	return &Record{UID: r.ID, Summary: r.Raw}, nil
}

func testProjectors() map[Kind]Projector {
	return map[Kind]Projector{KindMail: rawProjector{}}
}

func mailCollection() *Collection {
	return &Collection{ID: "inbox", Kind: KindMail, DisplayName: "Inbox"}
}

// fakeFetcher serves canned bodies and counts downloads. A non-nil gate
// blocks each fetch until the gate is closed, so tests can hold a download
// open while piling up concurrent callers.
type fakeFetcher struct {
	mu     stdsync.Mutex
	bodies map[string][]byte
	calls  int
	gate   chan struct{}
	err    error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: make(map[string][]byte)}
}

func (f *fakeFetcher) FetchContent(ctx context.Context, _ *Collection, uid string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.bodies[uid], nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeBodies is an in-memory ContentCache.
type fakeBodies struct {
	mu     stdsync.Mutex
	bodies map[string][]byte
}

func newFakeBodies() *fakeBodies {
	return &fakeBodies{bodies: make(map[string][]byte)}
}

func (b *fakeBodies) Content(_ context.Context, collectionID, uid string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	body, ok := b.bodies[collectionID+"/"+uid]
	if !ok {
		return nil, ErrNotFound
	}
	return body, nil
}

func (b *fakeBodies) PutContent(_ context.Context, collectionID, uid string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bodies[collectionID+"/"+uid] = body
	return nil
}
