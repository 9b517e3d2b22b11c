// Package app assembles the services selected on the command line.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/gosettle/internal/adapter/client"
	"github.com/ibrahimkeyboad/gosettle/internal/adapter/handler"
	"github.com/ibrahimkeyboad/gosettle/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/gosettle/internal/adapter/storage"
	"github.com/ibrahimkeyboad/gosettle/internal/adapter/storage/memory"
	"github.com/ibrahimkeyboad/gosettle/internal/core/bank"
	"github.com/ibrahimkeyboad/gosettle/internal/core/coin"
	"github.com/ibrahimkeyboad/gosettle/internal/core/config"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging/inmem"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging/kafka"
	"github.com/ibrahimkeyboad/gosettle/internal/core/phone"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
	"github.com/ibrahimkeyboad/gosettle/internal/core/worker"
)

type Mode string

const (
	ModeBank  Mode = "bank"
	ModeCoin  Mode = "coin"
	ModePhone Mode = "phone"
	ModeAll   Mode = "all"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeBank, ModeCoin, ModePhone, ModeAll:
		return m, nil
	default:
		return "", fmt.Errorf("unknown service %q (want bank, coin, phone or all)", s)
	}
}

// unit is one service: its HTTP app and the relay draining its outbox.
type unit struct {
	name  string
	port  string
	app   *fiber.App
	relay *worker.Relay
}

// Server runs one or more services over a shared fabric.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	bus    messaging.Bus
	codec  messaging.Codec
	units  []unit

	engine *bank.Engine
}

func New(ctx context.Context, cfg *config.Config, mode Mode, logger *slog.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger, codec: messaging.JSONCodec{}}

	// 1. Storage
	if cfg.Database.URL != "" {
		if cfg.Database.MigrateOnStart {
			if err := storage.Migrate(ctx, cfg.Database.URL); err != nil {
				return nil, err
			}
			logger.Info("✅ Migrations applied")
		}
		pool, err := storage.ConnectDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		s.pool = pool
	} else {
		logger.Warn("DATABASE_URL is empty, using in-memory stores")
	}

	// 2. Fabric
	bus, err := s.newBus(mode)
	if err != nil {
		s.closePool()
		return nil, err
	}
	s.bus = bus

	// 3. Services
	if mode == ModeBank || mode == ModeAll {
		if err := s.addBank(mode); err != nil {
			s.shutdownResources()
			return nil, err
		}
	}
	if mode == ModeCoin || mode == ModeAll {
		if err := s.addCoin(mode); err != nil {
			s.shutdownResources()
			return nil, err
		}
	}
	if mode == ModePhone || mode == ModeAll {
		if err := s.addPhone(mode); err != nil {
			s.shutdownResources()
			return nil, err
		}
	}
	return s, nil
}

func (s *Server) newBus(mode Mode) (messaging.Bus, error) {
	m := s.cfg.Messaging
	retry := messaging.RetryPolicy{
		MaxAttempts:     m.MaxAttempts,
		InitialInterval: m.InitialInterval,
		MaxInterval:     m.MaxInterval,
	}
	if len(m.Brokers) > 0 {
		return kafka.New(kafka.Config{Brokers: m.Brokers, Retry: retry}, s.logger)
	}
	if mode != ModeAll {
		s.logger.Warn("KAFKA_BROKERS is empty; the in-memory bus only reaches services in this process", "service", mode)
	}
	return inmem.New(inmem.Config{Partitions: m.Partitions, Retry: retry}, s.logger), nil
}

func (s *Server) relay(name string, outbox saga.Outbox) *worker.Relay {
	o := s.cfg.Outbox
	return worker.NewRelay(outbox, s.bus, worker.RelayConfig{
		PollInterval: o.PollInterval,
		Lease:        o.Lease,
		RetryStep:    o.RetryStep,
		BatchSize:    o.BatchSize,
		MaxAttempts:  o.MaxAttempts,
	}, s.logger.With("service", name))
}

func (s *Server) port(mode Mode, own string) string {
	if mode == ModeAll {
		return own
	}
	return s.cfg.HTTP.Port
}

func (s *Server) idempotency(service string) middleware.IdempotencyStore {
	if s.pool != nil {
		return storage.NewIdempotencyStore(s.pool, service)
	}
	return memory.NewIdempotencyStore()
}

func (s *Server) addBank(mode Mode) error {
	logger := s.logger.With("service", bank.ConsumerGroup)

	var (
		store  bank.Store
		outbox saga.Outbox
	)
	if s.pool != nil {
		pg := storage.NewBankStore(s.pool)
		store, outbox = pg, pg.Outbox()
	} else {
		mem := memory.NewBankStore()
		store, outbox = mem, mem
	}

	var customers bank.CustomerDirectory
	if url := s.cfg.Services.CustomerURL; url != "" {
		customers = client.NewCustomerClient(url, s.cfg.Breaker, logger)
	} else {
		logger.Warn("CUSTOMER_SERVICE_URL is empty, every customer is treated as PERSONAL")
		customers = client.StaticCustomers{Default: domain.CustomerPersonal}
	}

	engine := bank.NewEngine(store, customers, logger)
	if err := bank.NewSagaHandlers(engine, s.codec, logger).Register(s.bus); err != nil {
		return err
	}
	s.engine = engine

	app := handler.NewApp(bank.ConsumerGroup, s.cfg.HTTP, logger)
	handler.RegisterBank(app, engine, s.idempotency("bank"), s.cfg.Admin.APIKeyHash, logger)
	s.units = append(s.units, unit{
		name:  bank.ConsumerGroup,
		port:  s.port(mode, s.cfg.HTTP.BankPort),
		app:   app,
		relay: s.relay(bank.ConsumerGroup, outbox),
	})
	return nil
}

func (s *Server) addCoin(mode Mode) error {
	logger := s.logger.With("service", coin.ConsumerGroup)

	var (
		store  coin.Store
		outbox saga.Outbox
	)
	if s.pool != nil {
		pg := storage.NewCoinStore(s.pool)
		store, outbox = pg, pg.Outbox()
	} else {
		mem := memory.NewCoinStore()
		store, outbox = mem, mem
	}

	svc := coin.NewService(store, s.codec, logger)
	if err := coin.NewSagaHandlers(svc, logger).Register(s.bus); err != nil {
		return err
	}

	app := handler.NewApp(coin.ConsumerGroup, s.cfg.HTTP, logger)
	handler.RegisterCoin(app, svc, s.idempotency("coin"), logger)
	s.units = append(s.units, unit{
		name:  coin.ConsumerGroup,
		port:  s.port(mode, s.cfg.HTTP.CoinPort),
		app:   app,
		relay: s.relay(coin.ConsumerGroup, outbox),
	})
	return nil
}

func (s *Server) addPhone(mode Mode) error {
	logger := s.logger.With("service", phone.ConsumerGroup)

	var (
		store  phone.Store
		outbox saga.Outbox
	)
	if s.pool != nil {
		pg := storage.NewPhoneStore(s.pool)
		store, outbox = pg, pg.Outbox()
	} else {
		mem := memory.NewPhoneStore()
		store, outbox = mem, mem
	}

	// In-process the engine serves card transfers directly.
	var gateway phone.BankGateway
	if s.engine != nil {
		gateway = engineGateway{engine: s.engine, booked: s.idempotency("bank"), logger: logger}
	} else {
		gateway = client.NewBankClient(s.cfg.Services.BankURL, s.cfg.Breaker, logger)
	}

	svc := phone.NewService(store, gateway, s.codec, logger)
	if err := phone.NewSagaHandlers(svc, logger).Register(s.bus); err != nil {
		return err
	}

	app := handler.NewApp(phone.ConsumerGroup, s.cfg.HTTP, logger)
	handler.RegisterPhone(app, svc, s.idempotency("phone"), logger)
	s.units = append(s.units, unit{
		name:  phone.ConsumerGroup,
		port:  s.port(mode, s.cfg.HTTP.PhonePort),
		app:   app,
		relay: s.relay(phone.ConsumerGroup, outbox),
	})
	return nil
}

// Run serves until ctx is cancelled, then shuts everything down.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. Start Workers
	for _, u := range s.units {
		u.relay.Start(ctx)
	}
	if s.engine != nil && s.cfg.Ledger.MonthlyResetEnabled {
		loc, err := time.LoadLocation(s.cfg.Ledger.MonthlyResetZone)
		if err != nil {
			return fmt.Errorf("invalid MONTHLY_RESET_ZONE: %w", err)
		}
		worker.StartMonthlyReset(ctx, s.engine, loc, s.logger)
	}

	busDone := make(chan error, 1)
	go func() { busDone <- s.bus.Run(ctx) }()

	// 2. Start Servers
	serveErr := make(chan error, len(s.units))
	for _, u := range s.units {
		go func(u unit) {
			s.logger.Info("🚀 Server starting", "service", u.name, "env", s.cfg.Env, "port", u.port)
			if err := u.app.Listen(":" + u.port); err != nil {
				serveErr <- fmt.Errorf("%s: %w", u.name, err)
			}
		}(u)
	}

	// 3. Block until stop or a listener dies
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		s.logger.Error("Server forced to shutdown", "error", runErr)
	}
	s.logger.Info("🛑 Shutting down server...")

	// 4. Stop accepting requests and finish active ones
	for _, u := range s.units {
		if err := u.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			s.logger.Error("Server shutdown failed", "service", u.name, "error", err)
		}
	}

	// 5. Stop consumers and workers, then release the fabric and database
	cancel()
	<-busDone
	s.shutdownResources()

	s.logger.Info("👋 Server exited successfully")
	return runErr
}

func (s *Server) shutdownResources() {
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.Error("Bus close failed", "error", err)
		}
	}
	s.closePool()
}

func (s *Server) closePool() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("✅ Database connection closed")
	}
}
