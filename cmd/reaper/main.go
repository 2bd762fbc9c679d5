// Command reaper runs the reservation sweep outside the API process.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketing/src/boot"
	"ticketing/src/config"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		log.Printf("reaper: %s\n", err.Error())
		os.Exit(1)
	}
}

func run() error {
	if os.Getenv("API_ENV") == "local" {
		if err := godotenv.Load(); err != nil {
			log.Printf("No .env loaded: %s\n", err.Error())
		}
	}
	cfg := config.Load()

	var once bool
	flagSet := pflag.NewFlagSet("reaper", pflag.ContinueOnError)
	flagSet.BoolVar(&once, "once", false, "run a single sweep and exit")
	flagSet.DurationVar(&cfg.ReservationTTL, "ttl", cfg.ReservationTTL, "reclaim reservations held longer than this")
	flagSet.DurationVar(&cfg.ReaperInterval, "interval", cfg.ReaperInterval, "time between sweeps")
	flagSet.IntVar(&cfg.ReaperBatchSize, "batch", cfg.ReaperBatchSize, "maximum reservations reclaimed per sweep")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if cfg.ReservationTTL <= 0 {
		return fmt.Errorf("--ttl must be positive, got %s", cfg.ReservationTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb := boot.InitDb()
	sink, closeAudit := boot.InitAudit(cfg)
	defer closeAudit()
	svc := boot.InitServices(ctx, cfg, gdb, sink)

	if once {
		started := time.Now()
		res := svc.Reaper.Tick(ctx)
		log.Printf("finalized=%d reclaimed=%d skipped=%d failed=%d in %s\n",
			res.Finalized, res.Reclaimed, res.Skipped, res.Failed, time.Since(started))
		if res.Failed > 0 {
			return fmt.Errorf("%d reservations could not be reclaimed", res.Failed)
		}
		return nil
	}

	boot.InitScheduler(ctx, svc.Reaper)
	defer boot.StopScheduler(svc.Reaper)
	<-ctx.Done()
	log.Println("Shutting down...")
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Reclaims expired reservations and finalizes ended events.

Usage:
  reaper [flags]

Flags:
%s`, flagSet.FlagUsages())
}
