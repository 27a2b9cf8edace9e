// Package app provides the central orchestrator for one gateway pod.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/illmade-knight/message-gateway/pkg/call"
	"github.com/illmade-knight/message-gateway/pkg/offline"
	"github.com/illmade-knight/message-gateway/pkg/presence"
	"github.com/illmade-knight/message-gateway/pkg/relay"
	"github.com/illmade-knight/message-gateway/pkg/route"
	"github.com/illmade-knight/message-gateway/pkg/session"
	"github.com/rs/zerolog"
)

// DefaultHeartbeatInterval spaces the presence refresh sweep. The sweep is a
// safety net under persistent presence, so a long interval is fine.
const DefaultHeartbeatInterval = 30 * time.Minute

// App is the central application struct for one pod. It holds the session
// table, the routing core, the signaling engine, and the background loops.
type App struct {
	Pod        string
	Sessions   *session.Registry
	Directory  presence.Directory
	Bus        relay.Bus
	Store      offline.Store
	Router     *route.Router
	Calls      *call.Engine
	Dispatcher *route.Dispatcher
	Logger     zerolog.Logger

	heartbeat time.Duration
}

// New creates a fully wired pod over the given shared infrastructure. The
// router doubles as the outbound sink the signaling engine forwards through.
func New(
	pod string,
	directory presence.Directory,
	bus relay.Bus,
	store offline.Store,
	notifier route.Notifier,
	profiles route.ProfileSource,
	flags route.Flags,
	cleanupDelay time.Duration,
	heartbeat time.Duration,
	logger zerolog.Logger,
) *App {
	sessions := session.NewRegistry(logger)
	router := route.NewRouter(pod, sessions, directory, bus, store, notifier, profiles, flags, logger)
	calls := call.NewEngine(call.NewRegistry(cleanupDelay, logger), profiles, router, logger)
	dispatcher := route.NewDispatcher(calls, router, logger)

	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &App{
		Pod:        pod,
		Sessions:   sessions,
		Directory:  directory,
		Bus:        bus,
		Store:      store,
		Router:     router,
		Calls:      calls,
		Dispatcher: dispatcher,
		Logger:     logger.With().Str("pod", pod).Logger(),
		heartbeat:  heartbeat,
	}
}

// ConsumeRelay subscribes this pod to the shared relay channel and delivers
// matching payloads to local sockets. Blocks until ctx is done.
func (a *App) ConsumeRelay(ctx context.Context) error {
	err := a.Bus.Subscribe(ctx, a.Router.DeliverLocal)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// RunHeartbeat periodically refreshes presence for every locally connected
// user. Blocks until ctx is done.
func (a *App) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refreshPresence(ctx)
		}
	}
}

func (a *App) refreshPresence(ctx context.Context) {
	users := a.Sessions.Users()
	for _, userID := range users {
		if err := a.Directory.Refresh(ctx, userID); err != nil {
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("Failed to refresh presence")
		}
	}
	if len(users) > 0 {
		a.Logger.Info().Int("sessions", len(users)).Msg("Refreshed presence for local sessions")
	}
}
