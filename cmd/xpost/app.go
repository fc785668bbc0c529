package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joss/xpost/internal/browser"
	"github.com/joss/xpost/internal/config"
	"github.com/joss/xpost/internal/gateway"
	"github.com/joss/xpost/internal/orchestrator"
	"github.com/joss/xpost/internal/page"
	"github.com/joss/xpost/internal/protocol"
	"github.com/joss/xpost/internal/settings"
	"github.com/joss/xpost/internal/store"
	"github.com/joss/xpost/pkg/llm"
)

// app is one CLI invocation's wiring: the settings store, the background
// surface and, when the command needs the browser, the page surface.
type app struct {
	kv         *store.SQLite
	catalog    *llm.Catalog
	repo       *settings.KVRepository
	drafts     *orchestrator.DraftStore
	background *protocol.Surface
	page       *protocol.Surface
	agent      *page.Agent
	session    *browser.Session
	ctrl       *orchestrator.Controller
}

func openApp(ctx context.Context, withPage bool) (*app, error) {
	env := config.Env()
	paths := config.GetPaths()
	if err := config.EnsureDir(paths.Data); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	kv, err := store.OpenSQLite(paths.SettingsDB)
	if err != nil {
		return nil, err
	}

	a := &app{
		kv:      kv,
		catalog: llm.DefaultCatalog(env.BaseURLOverrides()),
		drafts:  orchestrator.NewDraftStore(kv),
	}
	a.repo = settings.NewRepository(kv, a.catalog)

	gw := gateway.New(a.repo, a.catalog, gateway.WithHTTPClient(&http.Client{Timeout: env.HTTPTimeout}))
	a.background = protocol.Start(ctx, "background", gateway.NewBackground(gw, a.repo).Routes())

	opts := []orchestrator.Option{
		orchestrator.WithDrafts(a.drafts),
		orchestrator.WithAllowedHosts(env.AllowedHosts),
	}
	if withPage {
		if err := a.openPage(ctx); err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, orchestrator.WithPage(a.page))
	}

	a.ctrl = orchestrator.New(a.background, a.repo, a.catalog, opts...)
	return a, nil
}

func (a *app) openPage(ctx context.Context) error {
	env := config.Env()
	selectors, err := page.LoadSelectors(env.SelectorsFile)
	if err != nil {
		return err
	}

	a.session, err = browser.Open(ctx, browser.ConfigFromEnv())
	if err != nil {
		return err
	}
	tab, err := a.session.Tab(ctx)
	if err != nil {
		return err
	}

	a.agent = page.New(page.NewRodDocument(tab), page.WithSelectors(selectors))
	a.page = protocol.Start(ctx, "page", page.NewHandler(a.agent).Routes())
	return nil
}

func (a *app) Close() {
	if a.page != nil {
		a.page.Close()
	}
	if a.session != nil {
		a.session.Close()
	}
	if a.background != nil {
		a.background.Close()
	}
	if a.kv != nil {
		a.kv.Close()
	}
}
