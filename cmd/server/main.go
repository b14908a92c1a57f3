package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-auth-service"
)

// userStoreAdapter narrows the Users repository to the surface the
// account state machine consumes.
type userStoreAdapter struct {
	users auth.Users
}

func (a userStoreAdapter) Register(ctx context.Context, user *auth.User) (*auth.User, error) {
	return a.users.Register(ctx, user)
}

func (a userStoreAdapter) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return a.users.GetByEmail(ctx, email)
}

func (a userStoreAdapter) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func (a userStoreAdapter) MarkEmailVerified(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return a.users.MarkEmailVerified(ctx, id)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("auth-service"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := auth.NewConfigFromEnv()
	if err != nil {
		lgr.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if cfg.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(cfg))
		fmt.Println("============")
	}

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		lgr.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		lgr.Error("failed to reach redis", "error", err)
		os.Exit(1)
	}

	otp := auth.NewOTPIssuer(
		auth.NewChallengeStore(rdb, cfg.ChallengePrefix),
		auth.WithChallengeTTL(cfg.ChallengeTTL),
		auth.WithIssuerLogger(lgr.GetLogger("otp")),
	)

	tokens := auth.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		lgr.GetLogger("tokens"),
	)

	mailer := auth.NewSMTPMailer(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.EmailAddress,
		cfg.EmailPassword,
		cfg.EmailAddress,
		auth.WithVerifyBaseURL(cfg.VerifyURL),
		auth.WithMailTimeout(cfg.MailTimeout),
		auth.WithMailerLogger(lgr.GetLogger("mailer")),
	)

	accounts := auth.NewAccounts(
		userStoreAdapter{users: repo.Users()},
		otp,
		tokens,
		mailer,
		auth.WithAccountsLogger(lgr.GetLogger("accounts")),
	)

	app := fiber.New(fiber.Config{
		AppName: "auth-service",
	})

	auth.RegisterAuthRoutes(app,
		auth.WithControllerAccounts(accounts),
		auth.WithControllerSessions(auth.NewSessionManager(tokens, cfg)),
		auth.WithControllerLogger(lgr.GetLogger("http")),
		auth.WithControllerDebug(cfg.Debug),
	)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			lgr.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	lgr.Info("auth service listening", "port", cfg.Port)

	WaitExitSignal()

	if err := app.Shutdown(); err != nil {
		lgr.Error("shutdown error", "error", err)
	}
}

func openDatabase(ctx context.Context, cfg *auth.EnvConfig) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.NewCreateTable().
		Model((*auth.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
