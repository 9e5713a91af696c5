package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/0xcafe-io/iz"
	"github.com/alecthomas/kong"
	"github.com/rs/cors"

	"github.com/mishacol/balance-tracker/api"
	"github.com/mishacol/balance-tracker/internal/backup"
	"github.com/mishacol/balance-tracker/internal/finance"
	"github.com/mishacol/balance-tracker/internal/rates"
	"github.com/mishacol/balance-tracker/internal/storage"
	"github.com/mishacol/balance-tracker/logging"
)

var cli struct {
	Serve serveCmd `cmd:"" default:"1" help:"Run the HTTP API server."`
}

type serveCmd struct {
	Port           string        `help:"Port to listen on." env:"APP_PORT" default:"8080"`
	LogLevel       string        `help:"Log level [debug info warning error]." env:"LOG_LEVEL" default:"debug"`
	LocalStore     string        `help:"Path of the offline local state slot." env:"LOCAL_STORE_PATH" default:"local_state.json"`
	BackupInterval time.Duration `help:"Automatic backup interval." env:"BACKUP_INTERVAL" default:"24h"`
}

var corsConf = cors.New(cors.Options{
	AllowedOrigins:   []string{"*"},
	AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	AllowedHeaders:   []string{"Authorization", "Content-Type"},
	AllowCredentials: true,
})

func (cmd *serveCmd) Run() error {
	if err := logging.Init(cmd.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logging.Logger.Info("application starting...")

	db, err := storage.Init()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	storageInstance := storage.NewPostgresStorage(db)
	localStore := storage.NewLocalStore(cmd.LocalStore)

	tracker := finance.NewTracker(storageInstance, rates.DefaultTable(), localStore)
	backups := backup.NewManager(storageInstance)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go backups.RunScheduler(schedulerCtx, cmd.BackupInterval)

	server := http.NewServeMux()
	handlers := api.NewApi(&tracker, backups)

	// USER ENDPOINTS.
	server.HandleFunc("POST /api/register", iz.Bind(handlers.SaveUserHandler)) // Create User
	server.HandleFunc("POST /api/login", iz.Bind(handlers.LoginUserHandler))   // Login User
	server.HandleFunc("GET /api/logout", iz.Bind(handlers.LogoutUserHandler))  // Logout User
	server.HandleFunc("GET /api/check-token", iz.Bind(handlers.CheckToken))    // Check User Token
	server.HandleFunc("GET /api/account", iz.Bind(handlers.GetAccountInfo))    // Account Info

	// PROFILE ENDPOINTS.
	server.HandleFunc("GET /api/profile", iz.Bind(handlers.GetProfileHandler))    // Get Profile
	server.HandleFunc("PUT /api/profile", iz.Bind(handlers.UpdateProfileHandler)) // Update Profile

	// TRANSACTION ENDPOINTS.
	server.HandleFunc("POST /api/transaction", iz.Bind(handlers.SaveTransactionHandler))           // Create Transaction
	server.HandleFunc("GET /api/transaction", iz.Bind(handlers.GetFilteredTransactionsHandler))    // Get Transactions with filters
	server.HandleFunc("GET /api/transaction/{id}", iz.Bind(handlers.GetTransactionByIdHandler))    // Get Transaction by ID
	server.HandleFunc("PUT /api/transaction/{id}", iz.Bind(handlers.UpdateTransactionHandler))     // Update Transaction
	server.HandleFunc("DELETE /api/transaction/{id}", iz.Bind(handlers.DeleteTransactionHandler))  // Delete Transaction

	// ANALYTICS ENDPOINTS.
	server.HandleFunc("GET /api/summary", iz.Bind(handlers.GetSummaryHandler))                  // Financial summary for a period
	server.HandleFunc("GET /api/summary/categories", iz.Bind(handlers.GetCategoryTotalsHandler)) // Per-category expense totals
	server.HandleFunc("GET /api/trend", iz.Bind(handlers.GetTrendHandler))                      // Period-over-period spending trend
	server.HandleFunc("GET /api/categories", iz.Bind(handlers.GetCategoriesHandler))            // Known category taxonomy

	// BACKUP ENDPOINTS.
	server.HandleFunc("POST /api/backup", iz.Bind(handlers.CreateBackupHandler))               // Create Backup
	server.HandleFunc("GET /api/backup", iz.Bind(handlers.ListBackupsHandler))                 // List Backups
	server.HandleFunc("POST /api/backup/{id}/restore", iz.Bind(handlers.RestoreBackupHandler)) // Restore Backup (replace)
	server.HandleFunc("DELETE /api/backup/{id}", iz.Bind(handlers.DeleteBackupHandler))        // Delete Backup
	server.HandleFunc("GET /api/export", handlers.ExportHandler)                               // Download User Data
	server.HandleFunc("POST /api/import", iz.Bind(handlers.ImportHandler))                     // Import User Data

	fmt.Println("Starting server on port: ", cmd.Port)
	handlerWithCors := corsConf.Handler(server)
	if err := http.ListenAndServe(":"+cmd.Port, handlerWithCors); err != nil {
		logging.Logger.Errorf("failed to start server: %v", err)
		return err
	}
	return nil
}

func main() {
	ctx := kong.Parse(&cli)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
