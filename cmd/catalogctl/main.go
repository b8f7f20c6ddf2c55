// Command catalogctl administers the catalog.
//
// Subcommands:
//
//	import  load products and orders JSON files into PostgreSQL in one
//	        transaction, optionally asking every catalog instance to reload
//	reload  publish a reload event to the catalog-reload topic
//
// Usage:
//
//	go run ./cmd/catalogctl import -products data/products.json -orders data/orders.json -reload
//	go run ./cmd/catalogctl reload -reason "manual refresh"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/postgres"
	"github.com/goccy/go-json"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "import":
		err = runImport(ctx, os.Args[2:])
	case "reload":
		err = runReload(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(os.Stderr, "validation failed:")
			for field, msg := range verr.Fields {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
			}
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: catalogctl <import|reload> [flags]")
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "configs/development.yaml", "path to config file")
	productsPath := fs.String("products", "data/products.json", "products JSON file")
	ordersPath := fs.String("orders", "data/orders.json", "orders JSON file (empty clears order history)")
	reload := fs.Bool("reload", false, "publish a reload event after importing")
	dryRun := fs.Bool("dry-run", false, "validate the files without writing")
	requestedBy := fs.String("by", currentUser(), "name recorded on the reload event")
	_ = fs.Parse(args)

	cfg, err := setup(*configPath)
	if err != nil {
		return err
	}

	var target publisher.Importer = noopImporter{}
	if !*dryRun {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		pg := catalog.NewPostgresSource(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		target = pg
	}

	var events kafka.Publisher
	if *reload && !*dryRun {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CatalogReload)
		defer producer.Close()
		events = producer
	}

	result, err := publisher.New(target, events).Import(ctx, &ingestion.ImportRequest{
		ProductsPath: *productsPath,
		OrdersPath:   *ordersPath,
		RequestedBy:  *requestedBy,
		Reload:       *reload,
		DryRun:       *dryRun,
	})
	if result != nil {
		printJSON(result)
	}
	return err
}

func runReload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	configPath := fs.String("config", "configs/development.yaml", "path to config file")
	reason := fs.String("reason", "manual", "reason recorded on the reload event")
	requestedBy := fs.String("by", currentUser(), "name recorded on the reload event")
	_ = fs.Parse(args)

	cfg, err := setup(*configPath)
	if err != nil {
		return err
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CatalogReload)
	defer producer.Close()

	id, err := publisher.New(noopImporter{}, producer).RequestReload(ctx, *reason, *requestedBy)
	if err != nil {
		return err
	}
	printJSON(map[string]string{"eventId": id, "topic": cfg.Kafka.Topics.CatalogReload})
	return nil
}

func setup(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("config loaded", "path", configPath)
	return cfg, nil
}

// noopImporter stands in for PostgreSQL when nothing is written.
type noopImporter struct{}

func (noopImporter) Import(context.Context, []catalog.Product, []catalog.Order) error { return nil }

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
