package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zspgw.org/internal/access"
	"zspgw.org/internal/audit"
	"zspgw.org/internal/config"
	"zspgw.org/internal/httpapi"
	"zspgw.org/internal/obs"
	"zspgw.org/internal/provider"
	"zspgw.org/internal/provider/remote"
	"zspgw.org/internal/scheduler"
	"zspgw.org/internal/store/pg"
	"zspgw.org/internal/workflow"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Storage: Postgres when configured, in-memory otherwise. The in-memory
	// store loses pending revocations on restart; use it for dev only.
	var (
		db         *sql.DB
		schedStore scheduler.Store = scheduler.NewMemoryStore()
		sinks                      = []audit.Sink{audit.NewLogSink()}
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		db = pgStore.DB()
		schedStore = pgStore.Revocations()
		sinks = append(sinks, pgStore.Audit())
	} else {
		log.Print("ZSPGW_PG_DSN not set: pending revocations will not survive a restart")
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("kafka audit sink: %v", err)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	recorder := audit.NewRecorder(sinks...)

	// Access provider clients: remote directory/authority when configured,
	// the in-memory directory otherwise.
	var (
		groupClient     provider.GroupClient
		authorityClient provider.AuthorityClient
	)
	if cfg.DirectoryURL != "" || cfg.AuthorityURL != "" {
		cred, err := provider.NewCredential(cfg.ServiceSecret, "zsp-gateway")
		if err != nil {
			log.Fatalf("provider credential: %v", err)
		}
		groupClient = remote.New(cfg.DirectoryURL, cred)
		authorityClient = remote.New(cfg.AuthorityURL, cred)
	} else {
		dir := provider.NewDirectory()
		groupClient = dir
		authorityClient = dir
	}
	groups := provider.NewGroupAccess(groupClient)
	roles := provider.NewRoleAccess(authorityClient, cfg.RoleDefinitions)

	// The scheduler executes revocations through the orchestrator, and the
	// orchestrator registers timers with the scheduler; the closure breaks
	// the construction cycle.
	var svc *access.Service
	sched := scheduler.New(schedStore, func(ctx context.Context, entry scheduler.Entry) error {
		return svc.ExecuteRevocation(ctx, entry)
	}, scheduler.Config{
		Interval:      cfg.PollInterval,
		AlarmAttempts: cfg.AlarmAttempts,
	})
	svc = access.NewService(groups, roles, sched, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	var runner *workflow.Runner
	if cfg.Backup.Enabled {
		runner = workflow.NewRunner(svc, []workflow.Job{{
			WorkflowID:  "nightly-backup",
			PrincipalID: cfg.Backup.PrincipalID,
			Grants: []workflow.RoleGrant{
				{Scope: cfg.Backup.KeyVaultScope, Role: "Key Vault Secrets User"},
				{Scope: cfg.Backup.StorageScope, Role: "Storage Blob Data Contributor"},
			},
			DurationMinutes: cfg.Backup.DurationMinutes,
			FireAt:          cfg.Backup.FireAt,
		}})
		runner.Start(ctx)
	}

	limits := access.Limits{
		MaxDurationMinutes:  cfg.MaxDurationMinutes,
		MinJustificationLen: cfg.MinJustificationLen,
	}
	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, limits)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("starting zsp-gateway %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	if runner != nil {
		runner.Stop()
	}
	sched.Stop()
	log.Println("stopped")
}
