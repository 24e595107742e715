package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"metrogrid.gg/internal/persistence/auditdb"
	"metrogrid.gg/internal/sim/catalog"
	"metrogrid.gg/internal/sim/room"
	"metrogrid.gg/internal/sim/roommgr"
	"metrogrid.gg/internal/sim/tuning"
	"metrogrid.gg/internal/transport/httpapi"
	"metrogrid.gg/internal/transport/ws"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the tx audit index")
		logJSON    = flag.Bool("log_json", false, "emit logs as json")
	)
	flag.Parse()

	logrus.SetOutput(os.Stdout)
	if *logJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if lvl, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("MG_LOG_LEVEL"))); err == nil {
		logrus.SetLevel(lvl)
	}
	logger := logrus.WithField("component", "server")

	secret := []byte(strings.TrimSpace(os.Getenv("MG_TOKEN_SECRET")))
	if len(secret) == 0 {
		logger.Warn("MG_TOKEN_SECRET unset; resume tokens use an ephemeral secret")
		secret = []byte(time.Now().UTC().Format(time.RFC3339Nano))
	}

	cats, err := catalog.Load(filepath.Join(*configDir, "buildings.json"))
	if err != nil {
		logger.WithError(err).Fatal("load building catalog")
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithField("path", tp).Warn("tuning not found; using defaults")
			tune = tuning.Defaults()
		} else {
			logger.WithError(err).Fatal("load tuning")
		}
	}

	var idx *auditdb.SQLiteIndex
	if !*disableDB {
		idx, err = auditdb.OpenSQLite(filepath.Join(*dataDir, "audit.db"))
		if err != nil {
			logger.WithError(err).Fatal("open audit index")
		}
		defer idx.Close()
		if err := idx.UpsertCatalog(cats); err != nil {
			logger.WithError(err).Warn("audit index: upsert catalog")
		}
	}

	var audit room.TxAuditLogger
	if idx != nil {
		audit = idx
	}
	mgr := roommgr.New(roommgr.Options{
		Tuning:  tune,
		Catalog: cats,
		Audit:   audit,
		Log:     logrus.WithField("component", "roommgr"),
	})
	defer mgr.Close()

	ctx, cancel := signalContext()
	defer cancel()

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	var auditQ httpapi.AuditQuerier
	if idx != nil {
		auditQ = idx
	}
	httpapi.NewAPI(mgr, auditQ, logrus.WithField("component", "httpapi")).Register(r)
	r.HandleFunc("/v1/ws", ws.NewServer(mgr, cats, tune, secret, logrus.WithField("component", "ws")).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.WithFields(logrus.Fields{
		"addr":    *addr,
		"catalog": cats.Digest[:12],
	}).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("ListenAndServe")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
