package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/postgresstore"
	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/danribes/mystic-ecom-sub011/api"
	"github.com/danribes/mystic-ecom-sub011/api/background"
	"github.com/danribes/mystic-ecom-sub011/cache"
	"github.com/danribes/mystic-ecom-sub011/config"
	"github.com/danribes/mystic-ecom-sub011/core/webhook"
	"github.com/danribes/mystic-ecom-sub011/database"
	"github.com/danribes/mystic-ecom-sub011/email"
	"github.com/danribes/mystic-ecom-sub011/events"
	"github.com/danribes/mystic-ecom-sub011/rate"
	"github.com/danribes/mystic-ecom-sub011/sms"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "GOVOD"
	var cfg config.Config
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	rdb := cache.Open(cfg.Redis)
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
	defer cancel()
	if err := cache.StatusCheck(ctx, rdb); err != nil {
		logger.WithError(err).Warn("redis unavailable, webhook deduplication falls back to order state")
	}

	sessionManager := scs.New()
	sessionManager.Store = postgresstore.New(db.DB)
	sessionManager.Lifetime = cfg.Auth.SessionLifetime

	bg := background.New(logger)

	pcfg := webhook.PipelineConfig{
		DB:     db,
		Log:    logger,
		Runner: bg,
		Admin:  cfg.Admin,
	}

	if cfg.Email.Address != "" {
		pcfg.Mailer = email.New(cfg.Email.Address, cfg.Email.Password, cfg.Email.Host, cfg.Email.Port)
	}

	if cfg.SMS.AccountSID != "" {
		pcfg.Texter = sms.New(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From)
	}

	if cfg.Kafka.Enabled {
		producer, err := events.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		pub := events.New(producer, cfg.Kafka.Topic)
		defer pub.Close()

		pcfg.Publisher = pub
	}

	pp, err := paypal.NewClient(
		cfg.Paypal.ClientID,
		cfg.Paypal.Secret,
		cfg.Paypal.URL,
	)
	if err != nil {
		return fmt.Errorf("failed to build the paypal client: %w", err)
	}

	if _, err = pp.GetAccessToken(context.TODO()); err != nil {
		return fmt.Errorf("failed to get the first paypal access token: %w", err)
	}

	strp := &stripecl.API{}
	strp.Init(cfg.Stripe.APISecret, nil)

	limiter := rate.NewLimiter(cfg.Rate.Burst, time.Duration(cfg.Rate.ExpiryMinutes)*time.Minute, cfg.Rate.RPS)
	defer limiter.Stop()

	mux := api.APIMux(api.APIConfig{
		CorsOrigin: cfg.Cors.Origin,
		Log:        logger,
		DB:         db,
		Session:    sessionManager,
		Paypal:     pp,
		Stripe:     strp,
		StripeCfg:  cfg.Stripe,
		Pipeline:   webhook.NewPipeline(pcfg),
		Guard:      webhook.NewGuard(rdb, logger),
		Limiter:    limiter,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
