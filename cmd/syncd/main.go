package main

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/background"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/config"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/conflict"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/connectivity"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/events"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/logging"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/store"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/syncer"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/transport"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/cmd/syncd/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init(os.Stdout, "info")
		logging.Error("Failed to load configuration", err, nil)
		os.Exit(1)
	}
	logging.Init(os.Stdout, cfg.LogLevel)
	logging.Info("Campaign sync daemon starting", map[string]interface{}{
		"addr":   cfg.APIAddr,
		"remote": cfg.RemoteBaseURL,
	})

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		logging.Error("Failed to open local store", err, nil)
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()

	probe := connectivity.HTTPProbe(cfg.RemoteBaseURL+"/api/health", cfg.RequestTimeout())
	monitor := connectivity.NewMonitor(probe, cfg.ProbeInterval(), bus)
	monitor.SetOnline(probe(ctx))
	monitor.Start(ctx)
	defer monitor.Stop()

	resolver := conflict.NewResolver(conflict.Options{
		Threshold: cfg.ConflictThreshold(),
		Default:   conflict.Action(cfg.DefaultStrategy),
	})
	resolver.RegisterTypeStrategy("campaign", conflict.FieldPriority(map[string]int{
		"status": 2,
		"budget": 1,
	}))

	client := transport.NewClient(cfg.RemoteBaseURL, cfg.RequestTimeout())
	manager := syncer.NewManager(st, client, resolver, monitor, bus, syncer.Options{
		MaxRetries:       cfg.MaxRetries,
		TypePriority:     cfg.TypePriorityList(),
		AutoSyncInterval: cfg.AutoSyncInterval(),
	})
	manager.StartAutoSync(ctx)
	defer manager.StopAutoSync()

	scheduler := background.NewScheduler()
	replayer := background.NewReplayer(st, monitor, bus, nil)
	if err := scheduler.Schedule(background.ReplayTag, replayer.Run); err != nil {
		logging.Error("Failed to register replay task", err, nil)
		os.Exit(1)
	}
	if err := scheduler.Schedule(background.SyncTag, func(ctx context.Context) { manager.SyncNow(ctx) }); err != nil {
		logging.Error("Failed to register sync task", err, nil)
		os.Exit(1)
	}
	unbind := scheduler.BindConnectivity(ctx, monitor)
	defer unbind()

	hub := NewWSHub()
	unbindWS := hub.BindBus(bus)
	defer unbindWS()

	server := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: buildMux(cfg, st, monitor, manager, scheduler, bus, hub),
	}

	go func() {
		<-ctx.Done()
		logging.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error("Server failed", err, nil)
		os.Exit(1)
	}
}

// buildMux assembles the local API: sync operations, preference and
// request-log access, the WebSocket event stream, and an offline-aware
// proxy to the remote API for campaign reads and writes.
func buildMux(cfg *config.Config, st *store.Store, monitor *connectivity.Monitor, manager *syncer.Manager, scheduler *background.Scheduler, bus *events.Bus, hub *WSHub) *http.ServeMux {
	syncHandler := handlers.NewSyncHandler(manager, st, monitor)
	prefHandler := handlers.NewPreferenceHandler(st)
	reqHandler := handlers.NewRequestHandler(st, scheduler)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", syncHandler.Health)
	mux.HandleFunc("/api/sync/status", syncHandler.Status)
	mux.HandleFunc("/api/sync/now", syncHandler.TriggerSync)
	mux.HandleFunc("/api/sync/pending", syncHandler.Pending)
	mux.HandleFunc("/api/sync/history", syncHandler.History)
	mux.HandleFunc("/api/sync/retry", syncHandler.RetryFailed)
	mux.HandleFunc("/api/changes", syncHandler.AddChange)
	mux.HandleFunc("/api/entities", syncHandler.Entities)
	mux.HandleFunc("/api/preferences", prefHandler.List)
	mux.HandleFunc("/api/preferences/", prefHandler.Handle)
	mux.HandleFunc("/api/requests", reqHandler.List)
	mux.HandleFunc("/api/requests/replay", reqHandler.Replay)
	mux.HandleFunc("/ws", HandleWebSocket(hub))

	if proxy := buildProxy(cfg, st, monitor, scheduler, bus); proxy != nil {
		mux.Handle("/proxy/", http.StripPrefix("/proxy", proxy))
	}
	return mux
}

// buildProxy forwards client traffic to the remote API through the
// offline interceptor, so reads hit the response cache and mutations
// made offline are captured for replay.
func buildProxy(cfg *config.Config, st *store.Store, monitor *connectivity.Monitor, scheduler *background.Scheduler, bus *events.Bus) http.Handler {
	remote, err := url.Parse(cfg.RemoteBaseURL)
	if err != nil {
		logging.Error("Invalid remote base URL, proxy disabled", err, nil)
		return nil
	}

	interceptor := background.NewInterceptor(st, monitor, scheduler, bus, background.InterceptorOptions{
		MaxAge: cfg.CacheMaxAge(),
		Routes: []background.Route{
			{Prefix: "/api/campaigns", Policy: background.PolicyStaleWhileRevalidate},
			{Prefix: "/api/filters", Policy: background.PolicyCacheFirst},
		},
	})

	proxy := httputil.NewSingleHostReverseProxy(remote)
	proxy.Transport = interceptor
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logging.Warn("Proxy request failed", map[string]interface{}{
			"url":   r.URL.String(),
			"error": err.Error(),
		})
		http.Error(w, "Upstream unavailable", http.StatusBadGateway)
	}
	return proxy
}
