package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/athapong/papergraph/pkg/collection"
	"github.com/athapong/papergraph/pkg/embedding"
	"github.com/athapong/papergraph/pkg/graph/storage"
)

var (
	envFile   = flag.String("env", ".env", "Path to environment file")
	dataDir   = flag.String("data", "./data", "Directory collections are stored in")
	logLevel  = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	timeout   = flag.Duration("timeout", 0, "Optional timeout for create/train operations")
	id        = flag.String("id", "", "Collection identifier")
	input     = flag.String("input", "", "Directory containing input documents (create)")
	overwrite = flag.Bool("overwrite", false, "Replace an existing collection (create)")
	sentence  = flag.String("sentence", "", "Statement to score (predict)")

	dim       = flag.Int("dim", 0, "Embedding dimensionality (train, 0 = default)")
	epochs    = flag.Int("epochs", 0, "Training epochs (train, 0 = default)")
	margin    = flag.Float64("margin", 0, "Ranking loss margin (train, 0 = default)")
	lr        = flag.Float64("lr", 0, "Learning rate (train, 0 = default)")
	negatives = flag.Int("negatives", 0, "Negative samples per positive (train, 0 = default)")
	batchSize = flag.Int("batch", 0, "Mini-batch size (train, 0 = default)")
	distNorm  = flag.String("norm", "", "Distance norm, L1 or L2 (train)")
	seed      = flag.Int64("seed", 0, "Random seed (train, 0 = time-based)")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(*envFile); err != nil {
		logger.Debugf("No env file loaded from %s: %v", *envFile, err)
	}

	store, err := collection.NewStore(*dataDir)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}

	opts := []collection.Option{
		collection.WithLogger(logger),
		collection.WithTrainingConfig(embedding.Config{
			Dim:          *dim,
			Epochs:       *epochs,
			Margin:       *margin,
			LearningRate: *lr,
			Negatives:    *negatives,
			BatchSize:    *batchSize,
			Norm:         embedding.Norm(*distNorm),
			Seed:         *seed,
		}),
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		exporter, err := storage.NewNeo4jExporter(uri, os.Getenv("NEO4J_USERNAME"), os.Getenv("NEO4J_PASSWORD"))
		if err != nil {
			logger.Fatalf("Failed to connect graph exporter: %v", err)
		}
		defer exporter.Close()
		opts = append(opts, collection.WithExporter(exporter))
	}
	service := collection.NewService(store, opts...)

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	switch flag.Arg(0) {
	case "create":
		runCreate(ctx, logger, service)
	case "train":
		runTrain(ctx, logger, service)
	case "predict":
		runPredict(ctx, logger, service)
	case "list":
		runList(ctx, logger, service)
	case "detail":
		runDetail(ctx, logger, service)
	case "viz":
		runViz(ctx, logger, service)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: papergraph [flags] <command>

Commands:
  create    ingest documents into a collection (-id, -input, [-overwrite])
  train     train an embedding model (-id, [-dim -epochs -margin -lr ...])
  predict   score a statement's plausibility (-id, -sentence)
  list      list collections
  detail    show one collection (-id)
  viz       print the collection's visualization page (-id)

Flags:`)
	flag.PrintDefaults()
}

func runCreate(ctx context.Context, logger *logrus.Logger, service *collection.Service) {
	if *id == "" || *input == "" {
		logger.Fatal("create requires -id and -input")
	}

	docs, err := readDocuments(*input)
	if err != nil {
		logger.Fatalf("Failed to read input directory: %v", err)
	}
	logger.Infof("Ingesting %d documents into %q...", len(docs), *id)

	g, err := service.Create(ctx, *id, docs, *overwrite)
	if err != nil {
		logger.Fatalf("Create failed: %v", err)
	}
	logger.Infof("Collection %q created with %d entities and %d triples", *id, len(g.Entities), g.Size())
}

func runTrain(ctx context.Context, logger *logrus.Logger, service *collection.Service) {
	if *id == "" {
		logger.Fatal("train requires -id")
	}

	start := time.Now()
	model, err := service.Train(ctx, *id)
	if err != nil {
		logger.Fatalf("Training failed: %v", err)
	}
	logger.Infof("Trained %s model (dim=%d) for %q in %s", model.Name, model.Dim, *id, time.Since(start).Round(time.Millisecond))
}

func runPredict(ctx context.Context, logger *logrus.Logger, service *collection.Service) {
	if *id == "" || *sentence == "" {
		logger.Fatal("predict requires -id and -sentence")
	}

	score, err := service.Score(ctx, *id, *sentence)
	if err != nil {
		logger.Fatalf("Prediction failed: %v", err)
	}
	fmt.Printf("%.6f\n", score)
}

func runList(ctx context.Context, logger *logrus.Logger, service *collection.Service) {
	collections, err := service.List(ctx)
	if err != nil {
		logger.Fatalf("List failed: %v", err)
	}
	for _, meta := range collections {
		fmt.Printf("%s\tsize=%d\tmodel=%s\tcreated=%s\n", meta.KID, meta.Size, meta.AIModels, meta.Created.Format(time.RFC3339))
	}
}

func runDetail(ctx context.Context, logger *logrus.Logger, service *collection.Service) {
	if *id == "" {
		logger.Fatal("detail requires -id")
	}

	detail, err := service.Get(ctx, *id)
	if err != nil {
		logger.Fatalf("Detail failed: %v", err)
	}
	fmt.Printf("kid: %s\nsize: %d\nmodel: %s\ncreated: %s\nknowledge base:\n",
		detail.KID, detail.Size, detail.AIModels, detail.Created.Format(time.RFC3339))
	for _, name := range detail.KnowledgeBase {
		fmt.Printf("  - %s\n", name)
	}
}

func runViz(ctx context.Context, logger *logrus.Logger, service *collection.Service) {
	if *id == "" {
		logger.Fatal("viz requires -id")
	}

	page, err := service.Visualization(ctx, *id)
	if err != nil {
		logger.Fatalf("Visualization failed: %v", err)
	}
	os.Stdout.Write(page)
}

// readDocuments reads every supported file in the input directory, in
// lexical order.
func readDocuments(inputDir string) ([]collection.Document, error) {
	supported := map[string]bool{
		".pdf": true, ".html": true, ".htm": true, ".txt": true, ".md": true,
	}

	var docs []collection.Document
	err := filepath.Walk(inputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !supported[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, collection.Document{Name: filepath.Base(path), Content: content})
		return nil
	})
	return docs, err
}
