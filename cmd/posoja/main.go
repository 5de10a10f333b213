package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/erazemk/posoja/internal/api"
	"github.com/erazemk/posoja/internal/auth"
	"github.com/erazemk/posoja/internal/config"
	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/imaging"
	"github.com/erazemk/posoja/internal/lending"
	"github.com/erazemk/posoja/internal/media"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/notify"
	"github.com/erazemk/posoja/internal/store"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	level  slog.Leveler
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.level.Level()
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		level:  lr.level,
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		level:  lr.level,
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If the config names a file, all levels are also written there.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	cleanup := func() {}
	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	newHandler := func(w io.Writer) slog.Handler { return slog.NewTextHandler(w, opts) }
	if strings.EqualFold(cfg.Format, "json") {
		newHandler = func(w io.Writer) slog.Handler { return slog.NewJSONHandler(w, opts) }
	}

	logger := slog.New(&levelRouter{level: level, stdout: newHandler(stdoutW), stderr: newHandler(stderrW)})
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

func main() {
	fs := flag.NewFlagSet("posoja", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	var dbPath string
	fs.StringVar(&dbPath, "db", "", "")
	fs.StringVar(&dbPath, "d", "", "")

	var addr string
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")

	var adminUser string
	fs.StringVar(&adminUser, "user", "", "")
	fs.StringVar(&adminUser, "u", "", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: posoja [flags]

Flags:
  -c, -config <path>      YAML config file (default: environment only)
  -d, -db <path>          SQLite database path (default: posoja.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Flags override the config file, which overrides POSOJA_* environment defaults.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if adminUser != "" {
		cfg.Auth.AdminUsername = adminUser
	}
	if logPath != "" {
		cfg.Log.File = logPath
	}

	logger, closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, logger); err != nil {
		slog.Error("fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.Database.Path)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// Generated on first run and kept in the database.
		if secret, err = store.GetJWTSecret(ctx, database); err != nil {
			return err
		}
	}
	issuer := auth.NewIssuer(secret, cfg.Auth.TokenTTL)

	disk, err := media.NewDiskStore(media.Options{
		Dir:      cfg.Media.Dir,
		MaxBytes: cfg.Media.MaxBytes,
		Image: imaging.Options{
			MaxDimension: cfg.Media.MaxDimension,
			Quality:      cfg.Media.JPEGQuality,
		},
	}, logger)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(notify.LogGateway{Log: logger}, logger, notify.DispatcherOptions{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		SendTimeout: cfg.Notify.SendTimeout,
	})

	svc := lending.New(database, logger, dispatcher, disk, lending.Options{
		DefaultTrustScore: cfg.Lending.DefaultTrustScore,
		MinTrustScore:     cfg.Lending.MinTrustScore,
		ReturnTrustBonus:  cfg.Lending.ReturnTrustBonus,
		ReminderRepeat:    cfg.Lending.ReminderRepeat,
		ResponseLink:      cfg.Server.ResponseLink,
	})

	if err := seedAdmin(ctx, database, svc, cfg.Auth.AdminUsername); err != nil {
		return err
	}

	go svc.RunReminders(ctx, cfg.Lending.ReminderInterval)
	go purgeRevokedTokens(ctx, database, cfg.Auth.TokenPurgeInterval)

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(api.Config{
			Lending:   svc,
			Issuer:    issuer,
			DB:        database,
			Media:     disk,
			Log:       logger,
			MaxUpload: cfg.Media.MaxBytes,
		}),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.Server.Addr, "public_url", cfg.Server.PublicURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		slog.Error("notifications not drained", "error", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// seedAdmin creates the first admin account when the database has no users
// and prints its generated password once.
func seedAdmin(ctx context.Context, database *sql.DB, svc *lending.Service, username string) error {
	n, err := store.CountUsers(ctx, database)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	if _, err := svc.RegisterUser(ctx, lending.UserInput{
		Username: username,
		Password: password,
		Role:     model.RoleAdmin,
	}); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	printInitResult(username, password)
	return nil
}

// printInitResult prints the first-run admin credentials to stdout.
func printInitResult(username, password string) {
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
}

// purgeRevokedTokens drops revocation entries for tokens that have expired
// on their own.
func purgeRevokedTokens(ctx context.Context, database *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeRevokedTokens(ctx, database, now)
			if err != nil {
				slog.Error("purging revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged revoked tokens", "count", n)
			}
		}
	}
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
