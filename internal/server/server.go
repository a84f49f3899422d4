package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/eskrenkovic/session-ledger/internal/config"
	"github.com/eskrenkovic/session-ledger/internal/modules/core"
	directorycommands "github.com/eskrenkovic/session-ledger/internal/modules/directory/commands"
	directorydomain "github.com/eskrenkovic/session-ledger/internal/modules/directory/domain"
	gamesessioncommands "github.com/eskrenkovic/session-ledger/internal/modules/game-session/commands"
	gamesessiondomain "github.com/eskrenkovic/session-ledger/internal/modules/game-session/domain"
	gamesessionqueries "github.com/eskrenkovic/session-ledger/internal/modules/game-session/queries"
	payoutqueries "github.com/eskrenkovic/session-ledger/internal/modules/payouts/queries"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage/checkpoints"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage/postgres"
	"github.com/eskrenkovic/session-ledger/internal/modules/storage/sqlite"
	treasurycommands "github.com/eskrenkovic/session-ledger/internal/modules/treasury/commands"
	treasurydomain "github.com/eskrenkovic/session-ledger/internal/modules/treasury/domain"
	treasuryqueries "github.com/eskrenkovic/session-ledger/internal/modules/treasury/queries"
	sqlmigration "github.com/eskrenkovic/session-ledger/internal/sql-migrations"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Server interface {
	Start() error
	Stop(ctx context.Context) error
}

var _ Server = &HTTPServer{}

// HTTPServer acts as the composition root for an application.
type HTTPServer struct {
	server  *http.Server
	store   storage.Store
	archive storage.CheckpointArchive
	logger  *zap.Logger
}

func NewHTTPServer(ctx context.Context, cfg config.Config) (*HTTPServer, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	archive, err := checkpoints.Open(cfg.CheckpointDir, cfg.Logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if err := registerBehaviors(cfg.Logger, prometheus.DefaultRegisterer); err != nil {
		return nil, errors.Join(err, store.Close(), archive.Close())
	}

	if err := registerHandlers(cfg, store, archive); err != nil {
		return nil, errors.Join(err, store.Close(), archive.Close())
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
			Handler:           routes(cfg),
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:   store,
		archive: archive,
		logger:  cfg.Logger,
	}, nil
}

// OpenStore opens the configured backend. Postgres is migrated first.
func OpenStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendPostgres:
		store, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}

		applied, err := sqlmigration.Run(ctx, store.DB(), sqlmigration.Ledger())
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		cfg.Logger.Info("database migrated", zap.Int("applied", applied))

		return store, nil
	case config.StorageBackendSQLite:
		return sqlite.New(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend '%s'", cfg.StorageBackend)
	}
}

func (s *HTTPServer) Start() error {
	s.logger.Info("listening", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	return errors.Join(
		s.server.Shutdown(ctx),
		s.archive.Close(),
		s.store.Close(),
	)
}

func registerBehaviors(logger *zap.Logger, registerer prometheus.Registerer) error {
	requestMetricsBehavior, err := core.NewRequestMetricsBehavior(registerer)
	if err != nil {
		return err
	}

	requestLoggingBehavior := core.RequestLoggingBehavior{Logger: logger}
	handlerErrorLoggingBehavior := core.HandlerErrorLoggingBehavior{Logger: logger}
	requestValidationBehavior := core.RequestValidationBehavior{}

	mediator.RegisterPipelineBehavior(&requestLoggingBehavior)
	mediator.RegisterPipelineBehavior(requestMetricsBehavior)
	mediator.RegisterPipelineBehavior(&handlerErrorLoggingBehavior)
	mediator.RegisterPipelineBehavior(&requestValidationBehavior)

	return nil
}

func registerHandlers(cfg config.Config, store storage.Store, archive storage.CheckpointArchive) error {
	return errors.Join(
		// game-session
		mediator.RegisterRequestHandler[gamesessioncommands.CreateSessionCommand, gamesessioncommands.CreateSessionResponse](
			gamesessioncommands.NewCreateSessionCommandHandler(store),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.HostJoinCommand, gamesessiondomain.HostEntry](
			gamesessioncommands.NewHostJoinCommandHandler(store),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.JoinSessionCommand, gamesessiondomain.PlayerEntry](
			gamesessioncommands.NewJoinSessionCommandHandler(store),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.DepositCommand, gamesessiondomain.Deposit](
			gamesessioncommands.NewDepositCommandHandler(store),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.RejectDepositsCommand, gamesessioncommands.RejectDepositsResponse](
			gamesessioncommands.NewRejectDepositsCommandHandler(store),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.SettleSessionCommand, gamesessioncommands.SettleSessionResponse](
			gamesessioncommands.NewSettleSessionCommandHandler(store, archive, cfg.Logger),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.AttachBonusCommand, gamesessioncommands.AttachBonusResponse](
			gamesessioncommands.NewAttachBonusCommandHandler(store),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.PublishSessionCommand, core.Unit](
			gamesessioncommands.NewPublishSessionCommandHandler(store, cfg.DiscoveryCapacity),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.UnpublishSessionCommand, core.Unit](
			gamesessioncommands.NewUnpublishSessionCommandHandler(store),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.CloseSessionCommand, core.Unit](
			gamesessioncommands.NewCloseSessionCommandHandler(store),
		),
		mediator.RegisterRequestHandler[gamesessionqueries.GetSessionQuery, *gamesessiondomain.Session](
			gamesessionqueries.NewGetSessionQueryHandler(store),
		),
		mediator.RegisterRequestHandler[gamesessionqueries.ListSessionsQuery, []*gamesessiondomain.Session](
			gamesessionqueries.NewListSessionsQueryHandler(store),
		),
		mediator.RegisterRequestHandler[gamesessionqueries.ListDiscoveryQuery, []*gamesessiondomain.Session](
			gamesessionqueries.NewListDiscoveryQueryHandler(store),
		),
		mediator.RegisterRequestHandler[gamesessionqueries.GetCheckpointQuery, gamesessionqueries.CheckpointResponse](
			gamesessionqueries.NewGetCheckpointQueryHandler(archive),
		),
		mediator.RegisterRequestHandler[gamesessionqueries.ListCheckpointsQuery, gamesessionqueries.ListCheckpointsResponse](
			gamesessionqueries.NewListCheckpointsQueryHandler(archive),
		),

		// treasury
		mediator.RegisterRequestHandler[treasurycommands.CreateRecipientCommand, treasurycommands.CreateRecipientResponse](
			treasurycommands.NewCreateRecipientCommandHandler(store),
		),
		mediator.RegisterRequestHandler[treasurycommands.DepositToSlotCommand, *treasurydomain.Slot](
			treasurycommands.NewDepositToSlotCommandHandler(store),
		),
		mediator.RegisterRequestHandler[treasurycommands.ClaimCommand, treasurycommands.ClaimResponse](
			treasurycommands.NewClaimCommandHandler(store),
		),
		mediator.RegisterRequestHandler[treasurycommands.AssignRoleCommand, *treasurydomain.Slot](
			treasurycommands.NewAssignRoleCommandHandler(store),
		),
		mediator.RegisterRequestHandler[treasuryqueries.GetRecipientQuery, *treasurydomain.Recipient](
			treasuryqueries.NewGetRecipientQueryHandler(store),
		),
		mediator.RegisterRequestHandler[treasuryqueries.GetSlotQuery, *treasurydomain.Slot](
			treasuryqueries.NewGetSlotQueryHandler(store),
		),

		// directory
		mediator.RegisterRequestHandler[directorycommands.RegisterMembershipCommand, directorydomain.Membership](
			directorycommands.NewRegisterMembershipCommandHandler(store),
		),

		// payouts
		mediator.RegisterRequestHandler[payoutqueries.ListTransfersQuery, []core.Transfer](
			payoutqueries.NewListTransfersQueryHandler(store),
		),
	)
}

func routes(cfg config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(core.CorrelationIDHTTPMiddleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", core.CallerHeader, core.CorrelationIDHeader},
		ExposedHeaders: []string{"Location", core.CorrelationIDHeader},
	}).Handler)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(core.CallerHTTPMiddleware)

		r.Post("/memberships/profiles", directorycommands.HandleRegisterProfile)
		r.Post("/memberships/servers", directorycommands.HandleRegisterServer)

		r.Post("/recipients", treasurycommands.HandleCreateRecipient)
		r.Get("/recipients/{id}", treasuryqueries.HandleGetRecipient)

		r.Get("/slots/{id}", treasuryqueries.HandleGetSlot)
		r.Post("/slots/{id}/deposits", treasurycommands.HandleDepositToSlot)
		r.Put("/slots/{id}/actions/claim", treasurycommands.HandleClaim)
		r.Put("/slots/{id}/actions/assign-role", treasurycommands.HandleAssignRole)

		r.Get("/game-sessions", gamesessionqueries.HandleListSessions)
		r.Post("/game-sessions", gamesessioncommands.HandleCreateSession)
		r.Get("/game-sessions/discovery", gamesessionqueries.HandleListDiscovery)
		r.Get("/game-sessions/{id}", gamesessionqueries.HandleGetSession)

		r.Put("/game-sessions/{id}/actions/host-join", gamesessioncommands.HandleHostJoin)
		r.Put("/game-sessions/{id}/actions/join", gamesessioncommands.HandleJoinSession)
		r.Put("/game-sessions/{id}/actions/deposit", gamesessioncommands.HandleDeposit)
		r.Put("/game-sessions/{id}/actions/reject-deposits", gamesessioncommands.HandleRejectDeposits)
		r.Put("/game-sessions/{id}/actions/settle", gamesessioncommands.HandleSettleSession)
		r.Put("/game-sessions/{id}/actions/publish", gamesessioncommands.HandlePublishSession)
		r.Put("/game-sessions/{id}/actions/unpublish", gamesessioncommands.HandleUnpublishSession)
		r.Put("/game-sessions/{id}/actions/close", gamesessioncommands.HandleCloseSession)

		r.Post("/game-sessions/{id}/bonuses", gamesessioncommands.HandleAttachBonus)

		r.Get("/game-sessions/{id}/checkpoints", gamesessionqueries.HandleListCheckpoints)
		r.Get("/game-sessions/{id}/checkpoints/{version}", gamesessionqueries.HandleGetCheckpoint)

		r.Get("/transfers", payoutqueries.HandleListTransfers)
	})

	return r
}
