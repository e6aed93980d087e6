// Dataset reset tool. Deletes every document across the fixed collection
// list and zeroes the counters. Irreversible, so it demands two distinct
// confirmations before touching anything.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/dvloznov/registration-tracker/internal/config"
	infraFS "github.com/dvloznov/registration-tracker/internal/infra/firestore"
	"github.com/dvloznov/registration-tracker/internal/logger"
	"github.com/dvloznov/registration-tracker/internal/stats"
)

const confirmPhrase = "DELETE ALL DATA"

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.ProjectID == "" {
		log.Fatal().Msg("GCP_PROJECT is required")
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("This will permanently delete ALL data in project %s:\n", cfg.ProjectID)
	for _, col := range stats.AllCollections {
		fmt.Printf("  - %s\n", col)
	}
	fmt.Print("Continue? [y/N]: ")

	answer, _ := reader.ReadString('\n')
	if !strings.EqualFold(strings.TrimSpace(answer), "y") {
		fmt.Println("Aborted.")
		return
	}

	fmt.Printf("Type %q to confirm: ", confirmPhrase)
	phrase, _ := reader.ReadString('\n')
	if strings.TrimSpace(phrase) != confirmPhrase {
		fmt.Println("Confirmation phrase did not match. Aborted.")
		return
	}

	ctx := context.Background()

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Firestore client")
	}
	defer fsClient.Close()

	engine := stats.NewEngine(
		infraFS.NewCounterRepo(fsClient),
		infraFS.NewScanner(fsClient),
		nil, nil,
		stats.Thresholds{},
		log,
	)

	deleted, err := engine.ClearAll(ctx)
	for col, n := range deleted {
		fmt.Printf("%s: %d deleted\n", col, n)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Reset failed part way through; rerun to finish")
	}

	fmt.Println("All collections cleared and counters reset.")
}
