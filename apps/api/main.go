package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/darasa/shule/apps/api/echo"
	"github.com/darasa/shule/core"
	"github.com/darasa/shule/core/course"
	"github.com/darasa/shule/core/notification"
	"github.com/darasa/shule/core/ratelimit"
	"github.com/darasa/shule/core/user"
	emailsvc "github.com/darasa/shule/services/email"
	logsvc "github.com/darasa/shule/services/logger"
	pushsvc "github.com/darasa/shule/services/push"
	smssvc "github.com/darasa/shule/services/sms"
	"github.com/darasa/shule/storage/database"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	if err := conf.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	policies := ratelimit.DefaultPolicies()
	if err := ratelimit.ValidatePolicies(policies); err != nil {
		log.Fatalf("invalid rate limit policies: %v", err)
	}

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	smsSvc := smssvc.NewService(conf, logger)

	usrRepo := database.NewUserRepository(db)
	notifRepo := database.NewNotificationRepository(db)
	crsRepo := database.NewCourseRepository(db)

	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	notifSvc := notification.NewService(notifRepo, usrRepo, mailSvc, newPushService(conf, logger), smsSvc, logger, conf)
	crsSvc := course.NewService(crsRepo, notifSvc, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter := newLimiter(ctx, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			CourseSvc:  crsSvc,
			NotifSvc:   notifSvc,
			Limiter:    limiter,
			Policies:   policies,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sdCtx, sdCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer sdCancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(sdCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return sqlx.NewDb(db, conf.Database.Engine), nil
}

// newPushService returns nil when VAPID keys are absent; the notification
// service skips the push channel for a nil sender.
func newPushService(conf *core.Config, logger core.Logger) notification.PushSender {
	if conf.Push.VAPIDPublicKey == "" || conf.Push.VAPIDPrivateKey == "" {
		logger.Info("VAPID keys not configured; push notifications disabled")
		return nil
	}
	return pushsvc.NewWebpushService(conf, logger)
}

// newLimiter uses the shared Redis counter when Redis is configured so limits
// hold across instances; otherwise a per-process in-memory store with a
// janitor bounding its growth.
func newLimiter(ctx context.Context, conf *core.Config) ratelimit.Limiter {
	if conf.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		return ratelimit.NewRedisStore(client)
	}

	store := ratelimit.NewStore()
	store.StartJanitor(ctx, conf.RateLimit.CleanupInterval)
	return store
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
