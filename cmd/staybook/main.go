package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"staybook/internal/app/commands"
	bookingapp "staybook/internal/app/handlers/booking"
	payoutapp "staybook/internal/app/handlers/payout"
	pricingapp "staybook/internal/app/handlers/pricing"
	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	"staybook/internal/domain/catalog"
	kafkabroker "staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/config"
	mongodb "staybook/internal/infra/db/mongo"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/memory"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}

	if cfg.SeedFixtures {
		path := os.Getenv("PROPERTY_FIXTURES")
		if path == "" {
			path = "fixtures/properties.json"
		}
		if err := loadPropertyFixtures(ctx, app.uowFactory, path, logger); err != nil {
			logger.Warn("property fixtures load failed", "error", err, "path", path)
		}
	}

	server := ginserver.NewServer(cfg, obs.Middleware{
		Logger: logger,
		Actor:  ginserver.ActorKind,
	}, obs.HealthHandlers{Checks: app.checks}, app.handlers)

	if app.relay != nil {
		go func() {
			if err := app.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox relay stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers   ginserver.Handlers
	uowFactory uow.UoWFactory
	relay      *infraoutbox.Worker
	checks     map[string]func(ctx context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, error) {
	var (
		uowFactory  uow.UoWFactory
		outboxStore appoutbox.Outbox
		flushable   middleware.Flusher
		idStore     middleware.IdempotencyStore
		relay       *infraoutbox.Worker
		checks      = map[string]func(ctx context.Context) error{}
	)

	switch cfg.StorageMode {
	case "mongo":
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, fmt.Errorf("mongo connect: %w", err)
		}
		store := infraoutbox.NewStore(client.DB)
		uowFactory = mongodb.Factory{
			DB:           client.DB,
			BookingRepo:  mongodb.NewBookingRepository(client.DB),
			PropertyRepo: mongodb.NewPropertyRepository(client.DB),
			PayoutRepo:   mongodb.NewPayoutRepository(client.DB),
		}
		outboxStore = store
		flushable = store
		idStore = mongodb.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)
		checks["mongo"] = client.Ping
		if len(cfg.KafkaBrokers) > 0 {
			producer, err := kafkabroker.NewProducer(cfg.KafkaBrokers, "staybook-outbox-relay")
			if err != nil {
				return application{}, fmt.Errorf("kafka producer: %w", err)
			}
			relay = &infraoutbox.Worker{
				Store:       store,
				Producer:    producer,
				Logger:      logger,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Backoff:     cfg.RetryBackoff,
			}
		}
	default:
		memOutbox := memory.NewOutbox()
		uowFactory = memory.Factory{
			BookingRepo:  memory.NewBookingRepository(),
			PropertyRepo: memory.NewPropertyRepository(),
			PayoutRepo:   memory.NewPayoutRepository(),
		}
		outboxStore = memOutbox
		flushable = memOutbox
		idStore = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		checks["storage"] = func(context.Context) error { return nil }
	}

	var payments policies.PaymentsPort = memory.NewPayments()
	encoder := appoutbox.JSONEventEncoder{}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory: uowFactory,
		Outbox:     outboxStore,
		Encoder:    encoder,
	})
	commands.RegisterHandler(commandBus, bookingapp.AcceptBookingCommand{}.Key(), &bookingapp.AcceptBookingHandler{
		Outbox:  outboxStore,
		Encoder: encoder,
		Logger:  logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.DeclineBookingCommand{}.Key(), &bookingapp.DeclineBookingHandler{
		Outbox:  outboxStore,
		Encoder: encoder,
		Logger:  logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{
		Payments: payments,
		Outbox:   outboxStore,
		Encoder:  encoder,
		Logger:   logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.CompleteBookingCommand{}.Key(), &bookingapp.CompleteBookingHandler{
		PayoutDelayDays: cfg.PayoutDelayDays,
		Outbox:          outboxStore,
		Encoder:         encoder,
		Logger:          logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.MarkNoShowCommand{}.Key(), &bookingapp.MarkNoShowHandler{
		Outbox:  outboxStore,
		Encoder: encoder,
		Logger:  logger,
	})
	for _, action := range []string{"begin", "settle", "fail", "retry"} {
		handler := &payoutapp.AdvanceHandler{
			Action:  action,
			Outbox:  outboxStore,
			Encoder: encoder,
			Logger:  logger,
		}
		commands.RegisterHandler(commandBus, payoutapp.AdvanceCommand{Action: action}.Key(), handler)
	}

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, bookingapp.GuestBookingsQuery{}.Key(), &bookingapp.GuestBookingsHandler{Factory: uowFactory})
	queries.RegisterHandler(queryBus, bookingapp.BookingByIDQuery{}.Key(), &bookingapp.BookingByIDHandler{Factory: uowFactory})
	queries.RegisterHandler(queryBus, bookingapp.RefundPreviewQuery{}.Key(), &bookingapp.RefundPreviewHandler{Factory: uowFactory})
	queries.RegisterHandler(queryBus, pricingapp.QuoteStayQuery{}.Key(), &pricingapp.QuoteStayHandler{Factory: uowFactory})
	queries.RegisterHandler(queryBus, payoutapp.ByBookingQuery{}.Key(), &payoutapp.ByBookingHandler{Factory: uowFactory})
	queries.RegisterHandler(queryBus, payoutapp.DueQuery{}.Key(), &payoutapp.DueHandler{Factory: uowFactory})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Validation(),
		middleware.Idempotency(idStore, nil),
		middleware.Transaction(uowFactory, nil),
		middleware.OutboxFlush(flushable),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus)

	return application{
		handlers: ginserver.Handlers{
			Booking: ginserver.BookingHandler{
				Commands: commandBusWithMiddleware,
				Queries:  queryBusWithMiddleware,
			},
			Payout: ginserver.PayoutHandler{
				Commands: commandBusWithMiddleware,
				Queries:  queryBusWithMiddleware,
			},
		},
		uowFactory: uowFactory,
		relay:      relay,
		checks:     checks,
	}, nil
}

type propertyFixture struct {
	ID                 string `json:"id"`
	Host               string `json:"host"`
	Title              string `json:"title"`
	City               string `json:"city"`
	Country            string `json:"country"`
	GuestsLimit        int    `json:"guests_limit"`
	InstantBook        bool   `json:"instant_book"`
	NightlyRate        string `json:"nightly_rate"`
	CleaningFee        string `json:"cleaning_fee"`
	ServiceFeeGuest    string `json:"service_fee_guest"`
	ServiceFeeHost     string `json:"service_fee_host"`
	VATRatePercent     string `json:"vat_rate_percent"`
	Currency           string `json:"currency"`
	CancellationPolicy string `json:"cancellation_policy"`
}

func loadPropertyFixtures(ctx context.Context, factory uow.UoWFactory, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("property fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	if len(fixtures) == 0 {
		return nil
	}

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	for _, fx := range fixtures {
		property, err := fixtureToProperty(fx)
		if err != nil {
			_ = unit.Rollback(ctx)
			return fmt.Errorf("fixture %s: %w", fx.ID, err)
		}
		if err := unit.Properties().Save(ctx, property); err != nil {
			_ = unit.Rollback(ctx)
			return fmt.Errorf("fixture %s: %w", fx.ID, err)
		}
	}
	if err := unit.Commit(ctx); err != nil {
		return err
	}
	logger.Info("property fixtures loaded", "count", len(fixtures), "path", path)
	return nil
}

func fixtureToProperty(fx propertyFixture) (*catalog.Property, error) {
	amounts := map[string]string{
		"nightly_rate":      fx.NightlyRate,
		"cleaning_fee":      fx.CleaningFee,
		"service_fee_guest": fx.ServiceFeeGuest,
		"service_fee_host":  fx.ServiceFeeHost,
		"vat_rate_percent":  fx.VATRatePercent,
	}
	parsed := make(map[string]decimal.Decimal, len(amounts))
	for name, raw := range amounts {
		if raw == "" {
			raw = "0"
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		parsed[name] = value
	}
	property := &catalog.Property{
		ID:                 catalog.PropertyID(fx.ID),
		Host:               catalog.HostID(fx.Host),
		Title:              fx.Title,
		City:               fx.City,
		Country:            fx.Country,
		GuestsLimit:        fx.GuestsLimit,
		InstantBook:        fx.InstantBook,
		NightlyRate:        parsed["nightly_rate"],
		CleaningFee:        parsed["cleaning_fee"],
		ServiceFeeGuest:    parsed["service_fee_guest"],
		ServiceFeeHost:     parsed["service_fee_host"],
		VATRatePercent:     parsed["vat_rate_percent"],
		Currency:           fx.Currency,
		CancellationPolicy: fx.CancellationPolicy,
		State:              catalog.PropertyActive,
	}
	if err := property.Validate(); err != nil {
		return nil, err
	}
	return property, nil
}
