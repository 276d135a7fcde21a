package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-grant-engine/authcode"
	authcoderepofake "github.com/jrsteele09/go-grant-engine/authcode/repofake"
	"github.com/jrsteele09/go-grant-engine/claims"
	"github.com/jrsteele09/go-grant-engine/consent"
	consentrepofake "github.com/jrsteele09/go-grant-engine/consent/repofake"
	"github.com/jrsteele09/go-grant-engine/deviceflow"
	devicerepofake "github.com/jrsteele09/go-grant-engine/deviceflow/repofake"
	"github.com/jrsteele09/go-grant-engine/grants"
	"github.com/jrsteele09/go-grant-engine/internal/config"
	"github.com/jrsteele09/go-grant-engine/redisstore"
	"github.com/jrsteele09/go-grant-engine/token"
	"github.com/jrsteele09/go-grant-engine/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-grant-engine/token/refresh/repofake"
	tokenrepofake "github.com/jrsteele09/go-grant-engine/token/repofake"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}

	displayAppname(cfg.AppName)
	logger := newLogger(cfg)

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("buildEngine: %w", err)
	}

	server := &http.Server{Addr: cfg.Port, Handler: engine.routes()}
	go listenAndServe(server, logger)
	waitForStopSignal()
	returnError = shutdown(server)
	return returnError
}

// engine bundles the wired lifecycle services the admin surface exposes.
type engine struct {
	tokens       *token.Service
	refresh      *refresh.Manager
	authCodes    *authcode.Manager
	consents     *consent.Evaluator
	devices      *deviceflow.Authorizer
	throttle     *deviceflow.Throttle
	consolidator *grants.Consolidator
	signer       *token.KeyPairSigner
	log          zerolog.Logger
}

func buildEngine(cfg *config.Config, logger zerolog.Logger) (*engine, error) {
	keyPair, err := token.GenerateRSAKeyPair(uuid.New().String(), 2048)
	if err != nil {
		return nil, err
	}
	signer := token.NewKeyPairSigner(keyPair)

	var (
		refreshRepo   refresh.Repo
		referenceRepo token.ReferenceRepo
		authCodeRepo  authcode.Repo
		consentRepo   consent.Repo
		deviceRepo    deviceflow.Repo
		throttleCache deviceflow.ThrottleCache
	)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}

		refreshRepo = redisstore.NewRefreshTokenStore(rdb, redisstore.WithLogger(logger))
		referenceRepo = redisstore.NewReferenceTokenStore(rdb, redisstore.WithLogger(logger))
		authCodeRepo = redisstore.NewAuthCodeStore(rdb, redisstore.WithLogger(logger))
		consentRepo = redisstore.NewConsentStore(rdb, redisstore.WithLogger(logger))
		deviceRepo = redisstore.NewDeviceFlowStore(rdb, redisstore.WithLogger(logger))
		throttleCache = redisstore.NewThrottleCache(rdb)
	} else {
		refreshRepo = refreshrepofake.NewFakeRefreshTokenRepo()
		referenceRepo = tokenrepofake.NewFakeReferenceRepo()
		authCodeRepo = authcoderepofake.NewFakeAuthCodeRepo()
		consentRepo = consentrepofake.NewFakeConsentRepo()
		deviceRepo = devicerepofake.NewFakeDeviceRepo()
		throttleCache = devicerepofake.NewFakeThrottleCache(nil)
	}

	profile := allowAllProfile{}

	aggregator, err := claims.NewAggregator(profile)
	if err != nil {
		return nil, err
	}

	engineDefaults := config.Engine{}
	tokens, err := token.NewService(aggregator, signer, referenceRepo, cfg.Issuer,
		token.WithDefaultLifetimes(engineDefaults.GetDefaultIdentityTokenLifetime(), engineDefaults.GetDefaultAccessTokenLifetime()),
		token.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	refreshManager, err := refresh.NewManager(refreshRepo, profile, refresh.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	authCodes, err := authcode.NewManager(authCodeRepo)
	if err != nil {
		return nil, err
	}

	consents, err := consent.NewEvaluator(consentRepo, consent.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	devices, err := deviceflow.NewAuthorizer(deviceRepo, deviceflow.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	throttle, err := deviceflow.NewThrottle(throttleCache)
	if err != nil {
		return nil, err
	}

	consolidator, err := grants.NewConsolidator(grants.Stores{
		AuthorizationCodes: authCodeRepo,
		RefreshTokens:      refreshRepo,
		ReferenceTokens:    referenceRepo,
		Consents:           consentRepo,
	}, grants.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &engine{
		tokens:       tokens,
		refresh:      refreshManager,
		authCodes:    authCodes,
		consents:     consents,
		devices:      devices,
		throttle:     throttle,
		consolidator: consolidator,
		signer:       signer,
		log:          logger,
	}, nil
}

func (e *engine) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		jwks, err := e.signer.GetJWKS()
		if err != nil {
			http.Error(w, "jwks unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	})
	mux.HandleFunc("GET /grants/{subject}", func(w http.ResponseWriter, r *http.Request) {
		allGrants, err := e.consolidator.GetAllGrants(r.Context(), r.PathValue("subject"))
		if err != nil {
			http.Error(w, "failed to load grants", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(allGrants)
	})
	return mux
}

// allowAllProfile is the development profile collaborator: no extra claims,
// every subject active. Production deployments inject their own.
type allowAllProfile struct{}

func (allowAllProfile) GetProfileData(context.Context, claims.ProfileRequest) ([]claims.Claim, error) {
	return nil, nil
}

func (allowAllProfile) IsActive(context.Context, claims.IsActiveRequest) (bool, error) {
	return true, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.Log.Pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}

func listenAndServe(server *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
