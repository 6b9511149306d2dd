package cli

import (
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/graphmirror/internal/auth"
	"github.com/custodia-labs/graphmirror/internal/config"
	"github.com/custodia-labs/graphmirror/internal/graph"
	"github.com/custodia-labs/graphmirror/internal/graph/calendar"
	"github.com/custodia-labs/graphmirror/internal/graph/contacts"
	"github.com/custodia-labs/graphmirror/internal/graph/mail"
	"github.com/custodia-labs/graphmirror/internal/store"
	"github.com/custodia-labs/graphmirror/internal/sync"
)

const dbFileName = "mirror.db"

// app bundles the wired-up collaborators a command needs.
type app struct {
	cfg     *config.Config
	cfgPath string
	store   *store.Store
	source  *graph.Source
	engine  *sync.Engine
}

// newApp loads the configuration, opens the local store, and wires the
// engine. Callers must Close it.
func newApp() (*app, error) {
	cfgPath, err := config.Path()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, err
	}

	provider := auth.NewProvider(cfg.Account.ClientID, cfg.Account.ClientSecret, cfg.Account.Tenant, dir)
	client := graph.NewClient(provider, graph.WithRateLimit(graph.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
	}))
	source := graph.NewSource(client, cfg.Sync.PageSize)

	engine := sync.NewEngine(sync.EngineConfig{
		Source: source,
		Pusher: source,
		Cache:  st,
		Tokens: st,
		Projectors: map[sync.Kind]sync.Projector{
			sync.KindMail:     mail.Projector{},
			sync.KindContacts: contacts.Projector{},
			sync.KindCalendar: calendar.Projector{},
		},
		Content: source,
		Bodies:  st,
	})

	return &app{
		cfg:     cfg,
		cfgPath: cfgPath,
		store:   st,
		source:  source,
		engine:  engine,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// enabledKinds returns the collection kinds the configuration enables.
func (a *app) enabledKinds() []sync.Kind {
	var kinds []sync.Kind
	if a.cfg.Sync.Mail {
		kinds = append(kinds, sync.KindMail)
	}
	if a.cfg.Sync.Contacts {
		kinds = append(kinds, sync.KindContacts)
	}
	if a.cfg.Sync.Calendar {
		kinds = append(kinds, sync.KindCalendar)
	}
	if len(kinds) == 0 {
		fmt.Println("warning: all collection kinds are disabled in the configuration")
	}
	return kinds
}
