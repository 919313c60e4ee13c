package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qazbazaar/internal/config"
	"qazbazaar/internal/models"
	"qazbazaar/internal/repository"

	"github.com/alexedwards/scs/v2"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

type application struct {
	errorLog   *log.Logger
	infoLog    *log.Logger
	session    *scs.SessionManager
	products   productStore
	categories categoryStore
	orders     orderStore
	addresses  addressStore
	wishlist   wishlistStore
	carts      cartStore
	reviews    reviewStore
	users      userStore
	views      viewStore
	health     map[string]func(context.Context) error
	viewQueue  chan models.ViewEvent
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "qazbazaar",
		Short:        "QazBazaar storefront and back-office API",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().String("addr", ":4000", "HTTP network address")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and start the HTTP server",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the relational schema",
		RunE:  runMigrate,
	})

	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a back-office administrator account",
		RunE:  runCreateAdmin,
	}
	createAdmin.Flags().String("email", "", "administrator email")
	createAdmin.Flags().String("password", "", "administrator password")
	_ = createAdmin.MarkFlagRequired("email")
	_ = createAdmin.MarkFlagRequired("password")
	root.AddCommand(createAdmin)

	return root
}

func newLoggers() (infoLog, errorLog *log.Logger) {
	infoLog = log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime)
	errorLog = log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)
	return infoLog, errorLog
}

func openDB(cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	infoLog, errorLog := newLoggers()

	db, err := openDB(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	infoLog.Println("Connected to database!")

	if err := models.Migrate(cmd.Context(), db); err != nil {
		return err
	}

	mongoDB, err := models.OpenMongo(cmd.Context(), cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer mongoDB.Close(context.Background())
	views := &models.ViewModel{Collection: mongoDB.Views}
	if err := views.EnsureIndexes(cmd.Context()); err != nil {
		return err
	}

	numbers, err := models.NewOrderNumberGenerator(cfg.Store.OrderPrefix)
	if err != nil {
		return err
	}

	session := scs.New()
	session.Lifetime = cfg.Session.Lifetime
	session.Cookie.HttpOnly = true
	session.Cookie.Secure = cfg.Session.Secure
	session.Cookie.SameSite = http.SameSiteLaxMode

	app := &application{
		errorLog:   errorLog,
		infoLog:    infoLog,
		session:    session,
		products:   &models.ProductModel{DB: db},
		categories: &models.CategoryModel{DB: db},
		orders:     &models.OrderModel{DB: db, Numbers: numbers},
		addresses:  &models.AddressModel{DB: db},
		wishlist:   &models.WishlistModel{DB: db},
		carts:      &models.CartModel{DB: db},
		reviews:    &models.ReviewModel{DB: db},
		users:      &repository.UserRepository{DB: db},
		views:      views,
		health: map[string]func(context.Context) error{
			"postgres": db.PingContext,
			"mongo":    mongoDB.Ping,
		},
		viewQueue: make(chan models.ViewEvent, cfg.Store.ViewQueueSize),
	}

	workerDone := make(chan struct{})
	go app.viewWorker(workerDone)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		ErrorLog:          errorLog,
		Handler:           app.routes(),
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		infoLog.Printf("Starting QazBazaar on %s", cfg.Server.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		infoLog.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errorLog.Printf("shutdown: %v", err)
		}
	}

	close(app.viewQueue)
	<-workerDone
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	infoLog, _ := newLoggers()

	db, err := openDB(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := models.Migrate(cmd.Context(), db); err != nil {
		return err
	}
	infoLog.Println("Schema is up to date")
	return nil
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	infoLog, _ := newLoggers()
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	db, err := openDB(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	users := &repository.UserRepository{DB: db}
	id, err := users.Insert(cmd.Context(), email, password, models.RoleAdmin)
	if err != nil {
		return err
	}
	infoLog.Printf("Created administrator %s (%s)", email, id)
	return nil
}
