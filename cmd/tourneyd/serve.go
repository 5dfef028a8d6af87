package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/tourney-core/internal/api"
	"github.com/nerrad567/tourney-core/internal/audit"
	"github.com/nerrad567/tourney-core/internal/auth"
	"github.com/nerrad567/tourney-core/internal/events"
	"github.com/nerrad567/tourney-core/internal/infrastructure/config"
	"github.com/nerrad567/tourney-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/tourney-core/internal/infrastructure/keyring"
	"github.com/nerrad567/tourney-core/internal/infrastructure/logging"
	"github.com/nerrad567/tourney-core/internal/infrastructure/mqtt"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer log.Close() //nolint:errcheck // best effort on exit
			return run(cmd.Context(), cfg, log, cmd.OutOrStdout())
		},
	}
}

// run is the server lifecycle, separated from the command for testability.
// It returns when ctx is cancelled; deferred closes run in reverse order.
func run(ctx context.Context, cfg *config.Config, log *logging.Logger, out io.Writer) error {
	defer keyring.Purge()

	log.Info("starting Tourney Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	st, err := openAuthStack(cfg, db, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing session store", "error", closeErr)
		}
	}()

	checks := map[string]api.HealthChecker{"database": db}

	auditRepo := audit.NewSQLiteRepository(db.DB)
	auditSink := events.NewAuditSink(auditRepo, log.Logger)
	sinks := []auth.EventSink{auditSink}
	runners := []func(context.Context){auditSink.Run}

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := connectMQTT(ctx, cfg, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttSink := events.NewMQTTSink(mqttClient, log.Logger)
		sinks = append(sinks, mqttSink)
		runners = append(runners, mqttSink.Run)
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := connectInflux(ctx, cfg, log)
		if influxErr != nil {
			return influxErr
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		sinks = append(sinks, events.NewInfluxSink(influxClient))
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Workers outlive the shutdown signal: they stop after the API server
	// has drained and before the MQTT, InfluxDB and database handles close.
	workers := newWorkerGroup()
	defer func() {
		log.Info("draining event queues")
		workers.Stop()
	}()
	for _, runner := range runners {
		workers.Go(runner)
	}

	service := st.service(events.NewFanout(sinks...), "api", log)

	if cfg.Security.Bootstrap.AdminEmail != "" {
		generated, seedErr := service.SeedAdministrator(ctx, cfg.Security.Bootstrap.AdminEmail, cfg.Security.Bootstrap.AdminPassword)
		if seedErr != nil {
			return fmt.Errorf("seeding administrator: %w", seedErr)
		}
		if generated != "" {
			// Shown once on the console, never logged.
			fmt.Fprintf(out, "Generated administrator password for %s: %s\n", cfg.Security.Bootstrap.AdminEmail, generated)
		}
	}

	if interval := cfg.GetSweepInterval(); interval > 0 {
		workers.Go(func(ctx context.Context) { service.RunExpirySweep(ctx, interval) })
		log.Info("session expiry sweep enabled", "interval", interval)
	}

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Service:  service,
		Verifier: st.verifier(log),
		Audit:    auditRepo,
		Checks:   checks,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server (drains in-flight requests)
	// 2. Event workers and expiry sweep (queued events are delivered)
	// 3. InfluxDB and MQTT (if enabled)
	// 4. Session store and database

	log.Info("Tourney Core stopped")
	return nil
}

func connectMQTT(ctx context.Context, cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(ctx, cfg.MQTT, cfg.Server.ID)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

func connectInflux(ctx context.Context, cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}
