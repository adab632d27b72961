// grantcredits is an operator tool that appends a credit grant to a user's
// ledger, for promotions and support reconciliation.
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
	"github.com/shopspring/decimal"

	"vibevideo/internal/adapter/repo"
)

func main() {
	var (
		userFlag   string
		amountFlag string
		reasonFlag string
	)

	flag.StringVar(&userFlag, "user", "", "user ID to credit (UUID)")
	flag.StringVar(&amountFlag, "amount", "", "credit amount to grant")
	flag.StringVar(&reasonFlag, "reason", "manual grant", "description recorded on the transaction")
	flag.Parse()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(amountFlag))
	if err != nil {
		exitWithError(fmt.Errorf("-amount is not a number: %w", err))
	}
	if !amount.IsPositive() {
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

	ledger := repo.NewLedgerRepository(pool)
	if err := ledger.Grant(ctx, userID, amount, reasonFlag); err != nil {
		exitWithError(fmt.Errorf("failed to grant credits: %w", err))
	}

	balance, err := ledger.GetBalance(ctx, userID)
	if err != nil {
		exitWithError(fmt.Errorf("failed to read balance: %w", err))
	}
	fmt.Printf("User %s credited %s (%s)\n", userID, amount.String(), reasonFlag)
	fmt.Printf("balance=%s\n", balance.Amount.String())
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
