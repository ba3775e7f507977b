package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"pawn-pos/internal/config"
	"pawn-pos/internal/db"
	"pawn-pos/internal/importer"
	"pawn-pos/internal/logging"
	pricingrepo "pawn-pos/internal/repository/pricing"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to price estimate percentage CSV")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	ctx := context.Background()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.Named("importer")

	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.String("file", filePath), zap.Error(err))
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, pricingrepo.NewPostgres(pool, logger))

	start := time.Now()
	res, err := imp.Run(ctx)
	if err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}

	fmt.Printf("Imported %d metal types and %d percentages in %s\n", res.MetalTypes, res.Percentages, time.Since(start).Truncate(time.Millisecond))
}
