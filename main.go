package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/kardianos/osext"
	_ "github.com/mattn/go-sqlite3" // Just needed for the sqlite driver
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	eventdesk "github.com/derWhity/eventdesk/internal"
	"github.com/derWhity/eventdesk/internal/ctxhelper"
	"github.com/derWhity/eventdesk/internal/log"
	"github.com/derWhity/eventdesk/internal/migrate"
	eventrepo "github.com/derWhity/eventdesk/internal/repos/event/sqlite"
	regrepo "github.com/derWhity/eventdesk/internal/repos/registration/sqlite"
	sessionrepo "github.com/derWhity/eventdesk/internal/repos/session/inmem"
	userrepo "github.com/derWhity/eventdesk/internal/repos/user/sqlite"
)

const (
	appName    = "Eventdesk"
	appVersion = "0.1.0"
	dbFile     = "eventdesk.db"
	// Time given to running requests when shutting down
	shutdownTimeout = 10 * time.Second
)

// Checks and tries to create the given directory recursively (or exits if this fails)
func checkAndCreateDir(path string, logger *logrus.Entry) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithField(log.FldPath, path).Info("Directory does not exist - trying to create...")
			if err = os.MkdirAll(path, os.ModePerm); err != nil {
				logger.WithError(err).Fatal("Failed to create directory")
			}
			logger.Info("Directory created successfully")
		} else {
			logger.WithError(err).Fatal("Stat has failed")
		}
	} else if !fileInfo.IsDir() {
		logger.Fatalf("'%s' is not a directory. Remove the plain file if you want to continue", path)
	}
}

// watchdog pings the alive endpoint and notifies systemd as long as it answers
func watchdog(listenAddr string, logger *logrus.Entry) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		logger.WithError(err).Error("Cannot determine the port for the systemd watchdog")
		return
	}
	logger.Info("Activating systemd watchdog goroutine")
	url := fmt.Sprintf("http://127.0.0.1:%s/alive", port)
	for {
		if resp, err := http.Get(url); err == nil {
			resp.Body.Close()
			daemon.SdNotify(false, "WATCHDOG=1")
		}
		time.Sleep(interval / 3)
	}
}

func main() {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}

	configFile := flag.String(
		"config",
		filepath.Join(execDir, "config.json"),
		"The configuration file to load the application's configuration from",
	)
	envFile := flag.String("env", ".env", "Optional file with environment variables overriding the configuration")
	flag.Parse()

	ctx := context.Background()

	// Initialize the logger
	logger := logrus.WithField(log.FldVersion, appVersion)
	logger.Infof("%s version %s is starting up...", appName, appVersion)
	ctx = ctxhelper.WithLogger(ctx, logger)

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).WithField(log.FldFile, *envFile).Warn("Failed to load environment file")
	}

	// Load the main configuration file
	cs := eventdesk.NewConfigService(*configFile)
	if err := cs.Load(ctx); err != nil {
		logger.WithError(err).Error("Cannot load config. Using defaults")
	}
	conf := cs.GetConfig(ctx)

	logger.Infof("Using '%s' as data directory", conf.DataDir)
	checkAndCreateDir(conf.DataDir, logger)

	// Set up the database connection and perform pending migrations
	dbFileName := path.Join(conf.DataDir, dbFile)
	var db *sqlx.DB
	if db, err = sqlx.Open("sqlite3", dbFileName); err != nil {
		logger.WithError(err).Fatal("Failed to open database connection")
	}
	// Seat accounting relies on transactions not running in parallel
	db.SetMaxOpenConns(1)
	defer db.Close()
	logger.Info("Performing database migrations...")
	if err = migrate.ExecuteMigrationsOnDb(db, logger); err != nil {
		logger.WithError(err).Fatal("Database migration has failed. Please check database for consistency and try again.")
	}

	userRepo := userrepo.New(db, logger)
	eventRepo := eventrepo.New(db, logger)
	registrationRepo := regrepo.New(db, logger)
	sessionRepo := sessionrepo.New()
	defer sessionRepo.Close()

	evSrv := eventdesk.NewEventService(eventRepo, cs, logger)
	regSrv := eventdesk.NewRegistrationService(registrationRepo, evSrv, cs, logger)
	sessServ := eventdesk.NewSessionService(sessionRepo, userRepo, logger)

	if err = sessServ.EnsureDefaultAdmin(ctx, conf.DefaultAdmin); err != nil {
		logger.WithError(err).Fatal("Failed to create the default admin user")
	}

	httpLogger := logger.WithField(log.FldTransport, "HTTP")
	h := eventdesk.MakeHTTPHandler(eventdesk.Services{
		Events:        evSrv,
		Registrations: regSrv,
		Sessions:      sessServ,
		Config:        cs,
	}, filepath.Join(execDir, "ui"), httpLogger)

	listener, err := net.Listen("tcp", conf.ListenAddress)
	if err != nil {
		httpLogger.WithError(err).Fatal("Failed to open listening port")
	}
	if conf.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, conf.MaxConnections)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errs := make(chan error, 2)

	// Listen for stop signals that will end the service
	go func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		sig := <-c
		logger.Info("Caught signal to stop. Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to stop the HTTP server gracefully")
		}
		errs <- fmt.Errorf("%s", sig)
	}()

	go func() {
		httpLogger.WithFields(logrus.Fields{
			"addr":           conf.ListenAddress,
			"maxConnections": conf.MaxConnections,
		}).Info("Starting listening port")
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			errs <- err
		}
	}()

	// Watchdog for systemd
	go watchdog(conf.ListenAddress, logger)

	// Notify systemd that we are ready to go (if available)
	daemon.SdNotify(false, "READY=1")

	logger.WithError(<-errs).Info("Shutdown complete")
}
