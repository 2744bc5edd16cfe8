package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/infra"
	"server/internal/ledger"
)

// Operator tool for manual credit adjustments (support refunds, promos).
func main() {
	_ = godotenv.Load()

	var (
		idFlag     string
		amountFlag int
		reasonFlag string
	)
	flag.StringVar(&idFlag, "id", "", "user ID to credit (UUID)")
	flag.IntVar(&amountFlag, "amount", 0, "number of credits to grant")
	flag.StringVar(&reasonFlag, "reason", "Manual adjustment", "transaction reason recorded in the ledger")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	if userID == "" {
		exitWithError(errors.New("-id is required"))
	}
	if amountFlag <= 0 {
		exitWithError(errors.New("-amount must be positive"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "grantcredits").Logger()
	creditLedger := ledger.New(repo.NewLedgerStore(pool), logger)

	if err := creditLedger.Grant(ctx, userID, amountFlag, reasonFlag); err != nil {
		exitWithError(fmt.Errorf("grant failed: %w", err))
	}

	balance, err := creditLedger.Balance(ctx, userID)
	if err != nil {
		exitWithError(fmt.Errorf("read balance failed: %w", err))
	}
	fmt.Printf("granted %d credits to %s (balance now %d)\n", amountFlag, userID, balance)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
