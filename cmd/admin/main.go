package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"crimewatch/backend/internal/blob"
	"crimewatch/backend/internal/changefeed"
	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/dispatch"
	"crimewatch/backend/internal/logger"
	"crimewatch/backend/internal/storage"

	"github.com/redis/go-redis/v9"
)

const usage = `Usage: admin <command> [args]
  status <alert_id> <New|In Progress|Resolved> [team]
  alerts [limit]
  reconcile`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogger("crimewatch-admin", cfg.LogLevel)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}

	// Status changes go through the same change feed as the API so dashboards update.
	var pub changefeed.Publisher
	if cfg.ChangeFeedDriver != "postgres" {
		pub = changefeed.NewRedisPublisher(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
	}
	storageSvc := storage.NewStorageService(db, pub, log)
	ctx := context.Background()

	command := os.Args[1]

	switch command {
	case "status":
		if len(os.Args) < 4 {
			fmt.Println("Usage: admin status <alert_id> <status> [team]")
			os.Exit(1)
		}
		var team *string
		if len(os.Args) > 4 {
			t := strings.Join(os.Args[4:], " ")
			team = &t
		}
		alert, err := storageSvc.UpdateAlertStatus(ctx, os.Args[2], os.Args[3], team)
		if err != nil {
			log.WithError(err).Fatal("error updating alert")
		}
		fmt.Printf("Alert %s is now %s.\n", alert.AlertID, alert.Status)
	case "alerts":
		limit := 20
		if len(os.Args) > 2 {
			limit, err = strconv.Atoi(os.Args[2])
			if err != nil {
				fmt.Println("Invalid limit. Please provide an integer.")
				os.Exit(1)
			}
		}
		if err := printAlerts(ctx, storageSvc, limit); err != nil {
			log.WithError(err).Fatal("error listing alerts")
		}
	case "reconcile":
		if cfg.MinioAccessKey == "" {
			fmt.Println("MINIO_ACCESS_KEY is required for reconcile")
			os.Exit(1)
		}
		blobs, err := blob.NewMinioStore(blob.MinioConfig{
			Endpoint:   cfg.MinioEndpoint,
			AccessKey:  cfg.MinioAccessKey,
			SecretKey:  cfg.MinioSecretKey,
			Bucket:     cfg.MinioBucket,
			UseSSL:     cfg.MinioUseSSL,
			PublicBase: cfg.MinioPublicBase,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to create minio client")
		}
		r := &dispatch.Reconciler{Blobs: blobs, Index: storageSvc, Grace: config.OrphanGracePeriod, Log: log}
		deleted, err := r.Run(ctx)
		if err != nil {
			log.WithError(err).Fatal("reconcile failed")
		}
		fmt.Printf("Removed %d orphan recordings.\n", len(deleted))
		for _, key := range deleted {
			fmt.Println("  " + key)
		}
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func printAlerts(ctx context.Context, s storage.Storage, limit int) error {
	alerts, err := s.ListAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Println("No alerts.")
		return nil
	}
	for _, a := range alerts {
		team := "-"
		if a.DispatchTeam != nil {
			team = *a.DispatchTeam
		}
		fmt.Printf("%s  %-11s  %s  %-28s  %-20s  team=%s\n",
			a.ReportedTime.Local().Format(time.RFC3339), a.Status, a.AlertID, a.Location, a.ReportedBy, team)
	}
	return nil
}
