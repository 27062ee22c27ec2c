package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/coinbox-app/coinbox-api/configs"
	"github.com/coinbox-app/coinbox-api/internal/services"
	"github.com/coinbox-app/coinbox-api/pkg"
	"github.com/coinbox-app/coinbox-api/pkg/database"
	"github.com/coinbox-app/coinbox-api/pkg/models"
	"github.com/coinbox-app/coinbox-api/pkg/repositories"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const usage = `Usage:
  userctl create --email admin@example.com --password secret
  userctl list [--limit 50] [--offset 0] [--search keyword] [--json]
  userctl delete --userId 1 [--hard]

delete without --hard removes only the user's transactions; with --hard the
user row goes too (the ledger follows via the FK cascade semantics).`

type env struct {
	logger   *zap.Logger
	db       *database.DB
	userRepo repositories.UserRepository
	txRepo   repositories.TransactionRepository
	ledger   services.LedgerService
}

func main() {
	pkg.InitLogger()
	logger := pkg.Logger
	defer logger.Sync()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := configs.Load(logger)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	db, closer, err := database.New(ctx, logger, database.Config{
		PrimaryDSN:  cfg.PrimaryDbAddr,
		ReplicaDSNs: []string{cfg.ReplicaDbAddr},
		MaxConns:    cfg.MaxDbCons,
		MinConns:    cfg.MinDbCons,
	})
	if err != nil {
		logger.Fatal("failed to init DB", zap.Error(err))
	}
	defer closer()

	if err = database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		logger.Fatal("failed to run database migrations", zap.Error(err))
	}

	userRepo := repositories.NewUserRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	e := &env{
		logger:   logger,
		db:       db,
		userRepo: userRepo,
		txRepo:   txRepo,
		ledger:   services.NewLedgerService(logger, db, txRepo, userRepo),
	}

	switch os.Args[1] {
	case "create":
		err = e.create(ctx, os.Args[2:])
	case "list":
		err = e.list(ctx, os.Args[2:])
	case "delete":
		err = e.delete(ctx, os.Args[2:])
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
	if err != nil {
		logger.Fatal("command failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func (e *env) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	email := fs.String("email", "", "Email (required)")
	password := fs.String("password", "", "Password (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		fmt.Println(usage)
		os.Exit(1)
	}

	if existing, err := e.userRepo.FindByEmail(ctx, *email); err == nil {
		return fmt.Errorf("user already exists: email=%s, id=%d", *email, existing.ID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), 10)
	if err != nil {
		return err
	}

	var id int64
	err = e.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		id, err = e.userRepo.Create(ctx, tx, models.User{
			Email:        *email,
			PasswordHash: string(hash),
		})
		return err
	})
	if err != nil {
		return err
	}
	e.logger.Info("user created", zap.Int64("user_id", id), zap.String("email", *email))
	return nil
}

func (e *env) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("limit", 50, "Max rows (1..500)")
	offset := fs.Int("offset", 0, "Rows to skip")
	search := fs.String("search", "", "Case-insensitive email substring")
	asJSON := fs.Bool("json", false, "JSON output for piping")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *limit < 1 {
		*limit = 50
	}
	if *limit > 500 {
		*limit = 500
	}
	if *offset < 0 {
		*offset = 0
	}

	users, err := e.userRepo.List(ctx, repositories.UserFilter{
		Search: *search,
		Limit:  *limit,
		Offset: *offset,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		type row struct {
			ID        int64  `json:"id"`
			Email     string `json:"email"`
			CreatedAt string `json:"createdAt"`
		}
		rows := make([]row, 0, len(users))
		for _, u := range users {
			rows = append(rows, row{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05")})
		}
		out, err := json.MarshalIndent(map[string]any{"count": len(rows), "items": rows}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(users) == 0 {
		fmt.Println("(no users)")
		return nil
	}
	fmt.Printf("%6s  %-40s  %s\n", "id", "email", "created_at")
	for _, u := range users {
		fmt.Printf("%6d  %-40s  %s\n", u.ID, u.Email, u.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("\ncount=%d (limit=%d, offset=%d)\n", len(users), *limit, *offset)
	return nil
}

func (e *env) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	userID := fs.Int64("userId", 0, "Target user id (required)")
	hard := fs.Bool("hard", false, "Also delete the user row")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID <= 0 {
		fmt.Println(usage)
		os.Exit(1)
	}

	traceID := "userctl"
	if *hard {
		out, err := e.ledger.DeleteAccount(ctx, traceID, *userID)
		if err != nil {
			return err
		}
		e.logger.Info("account deleted",
			zap.Int64("user_id", *userID),
			zap.Int64("transactions_deleted", out.TransactionsDeleted),
			zap.Bool("account_deleted", out.AccountDeleted),
		)
		return nil
	}

	out, err := e.ledger.Reset(ctx, traceID, *userID)
	if err != nil {
		return err
	}
	e.logger.Info("transactions deleted",
		zap.Int64("user_id", *userID),
		zap.Int64("deleted", out.Deleted),
	)
	return nil
}
