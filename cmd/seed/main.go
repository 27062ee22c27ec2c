package main

import (
	"context"
	"flag"
	"math/rand"
	"time"

	"github.com/coinbox-app/coinbox-api/configs"
	"github.com/coinbox-app/coinbox-api/pkg"
	"github.com/coinbox-app/coinbox-api/pkg/database"
	"github.com/coinbox-app/coinbox-api/pkg/models"
	"github.com/coinbox-app/coinbox-api/pkg/repositories"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var jst = time.FixedZone("JST", 9*60*60)

// main seeds dummy ledger entries for one user: 0..maxPerDay normal
// transactions per day going back the requested number of days, amounts drawn
// from the allowed denominations, all inside a single transaction.
func main() {
	userID := flag.Int64("userId", 0, "Target user id (required)")
	days := flag.Int("days", 365, "How many days back to fill")
	maxPerDay := flag.Int("maxPerDay", 3, "Max entries per day (0..50)")

	flag.Parse()

	// Initialize logger
	pkg.InitLogger()
	logger := pkg.Logger
	defer logger.Sync()

	if *userID <= 0 {
		logger.Fatal("userId must be a positive integer")
	}
	if *days < 1 {
		logger.Fatal("days must be >= 1")
	}
	if *maxPerDay < 0 || *maxPerDay > 50 {
		logger.Fatal("maxPerDay must be 0..50")
	}

	cfg, err := configs.Load(logger)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Initialize postgres db
	dbConfig := database.Config{
		PrimaryDSN:  cfg.PrimaryDbAddr,
		ReplicaDSNs: []string{cfg.ReplicaDbAddr},
		MaxConns:    cfg.MaxDbCons,
		MinConns:    cfg.MinDbCons,
	}

	ctx := context.Background()
	db, closer, err := database.New(ctx, logger, dbConfig)
	if err != nil {
		logger.Fatal("failed to init DB", zap.Error(err))
	}
	defer closer()

	// Initialize db migrations
	if err = database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		logger.Fatal("failed to run database migrations", zap.Error(err))
	}

	userRepo := repositories.NewUserRepository(db)
	txRepo := repositories.NewTransactionRepository(db)

	if _, err = userRepo.FindById(ctx, *userID); err != nil {
		logger.Fatal("user not found", zap.Int64("user_id", *userID), zap.Error(err))
	}

	memo := "dummy"
	today := time.Now().In(jst)
	start := today.AddDate(0, 0, -(*days - 1))

	// Seed data within a transaction to ensure atomicity.
	inserted := 0
	err = db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
			n := rand.Intn(*maxPerDay + 1)
			for i := 0; i < n; i++ {
				amount := pkg.NormalAmounts[rand.Intn(len(pkg.NormalAmounts))]
				ts := time.Date(d.Year(), d.Month(), d.Day(),
					rand.Intn(24), rand.Intn(60), rand.Intn(60), 0, jst,
				).Format("2006-01-02T15:04:05.000-07:00")

				_, err := txRepo.Insert(ctx, tx, models.Transaction{
					UserID:     *userID,
					Kind:       pkg.TxKindNormal,
					Amount:     amount,
					OccurredAt: ts,
					Memo:       &memo,
					RecordedAt: ts,
				})
				if err != nil {
					return err
				}
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		logger.Fatal("failed to seed data", zap.Error(err))
	}
	logger.Info("dummy transactions seeded",
		zap.Int64("user_id", *userID),
		zap.Int("inserted", inserted),
	)
}
