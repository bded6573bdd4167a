// Command seed loads the flight catalogue from a YAML file. Re-running it
// updates flights in place; -reset wipes the catalogue first.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Domenick1991/travelgo/config"
	"github.com/Domenick1991/travelgo/internal/logger"
	"github.com/Domenick1991/travelgo/internal/repository"
	"github.com/Domenick1991/travelgo/internal/service/flights"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type catalogue struct {
	Flights []flights.CreateFlightInput `yaml:"flights"`
}

func main() {
	file := flag.String("file", "config/flights.yaml", "flight catalogue to import")
	reset := flag.Bool("reset", false, "delete every flight and finished booking before importing")
	flag.Parse()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logger.New(cfg.Log)

	cat, err := loadCatalogue(*file)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// No cache here: the API's flights cache expires on its own TTL.
	svc := flights.NewFlightService(repository.NewFlightRepository(pool), nil, log)
	res, err := svc.Import(ctx, cat.Flights, *reset)
	if err != nil {
		log.Fatalf("import flights: %v", err)
	}
	log.WithFields(logrus.Fields{
		"removed": res.Removed,
		"created": res.Created,
		"updated": res.Updated,
		"skipped": res.Skipped,
	}).Info("flight catalogue imported")
}

func loadCatalogue(path string) (*catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	var cat catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	return &cat, nil
}
