package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/mindengage-quiz/internal/api/http"
	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/config"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/review"
	"github.com/mind-engage/mindengage-quiz/internal/submission"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
	"github.com/mind-engage/mindengage-quiz/internal/users"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	driver := db.Driver(cfg.DBDriver)
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	tests := quiz.NewSQLStore(dbh)
	accounts := users.NewStore(dbh)
	subs := submission.NewService(submission.NewSQLStore(dbh, driver, events), tests, nil)
	grading := review.NewService(dbh, driver, events, nil)

	if cfg.AdminBootstrap != "" {
		bootstrapAdmin(ctx, accounts, cfg.AdminBootstrap)
	}

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local accounts (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, accounts))
		r.Post("/auth/register", api.RegisterHandler(accounts))
	}

	// Protected API (JWT → stored role → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(accounts, cfg.AllowRoleClaimFallback))
		api.MountQuiz(pr, api.Deps{
			Tests:       tests,
			Submissions: subs,
			Grading:     grading,
			Accounts:    accounts,
			Events:      events,
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (mode=%s, db=%s, site=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.SiteID)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

func bootstrapAdmin(ctx context.Context, accounts *users.Store, creds string) {
	username, password, ok := strings.Cut(creds, ":")
	if !ok || username == "" || password == "" {
		log.Fatalf("ADMIN_BOOTSTRAP must be username:password")
	}
	ins, _, err := accounts.Upsert(ctx, []users.Account{{
		Username: username, Name: username, Role: users.RoleAdmin, Password: password,
	}})
	if err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}
	if ins > 0 {
		log.Printf("created admin account %q", username)
	}
}
