// Package server wires configuration, services, handlers and middleware
// into one chi router and runs it with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/cardbook/internal/auth"
	"github.com/sakif/cardbook/internal/config"
	"github.com/sakif/cardbook/internal/handler"
	"github.com/sakif/cardbook/internal/mail"
	"github.com/sakif/cardbook/internal/middleware"
	"github.com/sakif/cardbook/internal/repository"
	"github.com/sakif/cardbook/internal/service"
	"github.com/sakif/cardbook/internal/validation"
)

// Server owns the router and the auth rate limiter. The store is owned by
// the caller, which closes it after Start returns.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	store   repository.Store
	limiter *middleware.KeyedRateLimiter
}

// New builds the dependency graph on top of store.
func New(cfg *config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpire, cfg.Auth.ResetTokenExpire)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		limiter: middleware.NewKeyedRateLimiter(cfg.AuthRatePerMinute),
	}
	s.setupRoutes(tokens)
	return s, nil
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) mailer() mail.Mailer {
	if s.config.Mail.Host == "" {
		return mail.NewLogMailer(s.logger)
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     s.config.Mail.Host,
		Port:     s.config.Mail.Port,
		User:     s.config.Mail.User,
		Password: s.config.Mail.Password,
		From:     s.config.Mail.From,
	})
}

func (s *Server) setupRoutes(tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Recoverer(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	st := s.store
	v := validation.New()
	res := handler.NewResponder(s.logger, s.config.IsProduction())

	bookmarkSvc := service.NewBookmarkService(st.BookmarkLists(), st.Bookmarks(), st.Cards(), s.logger)
	userSvc := service.NewUserService(st.Users(), st.Messages(), bookmarkSvc, tokens,
		auth.NewPasswordService(), s.mailer(), s.config.Auth.ResetURL, s.logger)
	cardSvc := service.NewCardService(st.Cards(), st.Canvases(), st.Bookmarks(), st.Users(), s.logger)
	messageSvc := service.NewMessageService(st.Messages(), st.Cards(), st.Bookmarks(), s.logger)

	var google handler.GoogleAuth
	if s.config.Google.Enabled() {
		google = auth.NewGoogleProvider(s.config.Google.ClientID, s.config.Google.ClientSecret, s.config.Google.CallbackURL)
	}

	users := handler.NewUserHandler(userSvc, google, v, res, s.logger)
	bookmarks := handler.NewBookmarkHandler(bookmarkSvc, v, res, s.logger)
	cards := handler.NewCardHandler(cardSvc, v, res, s.logger)
	messages := handler.NewMessageHandler(messageSvc, v, res, s.logger)

	requireAuth := auth.RequireAuth(tokens, st.Users())
	optionalAuth := auth.OptionalAuth(tokens, st.Users())
	rateLimit := middleware.RateLimit(s.limiter)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(rateLimit).Post("/sign-up", users.HandleSignUp)
			r.With(rateLimit).Post("/login", users.HandleLogin)
			r.With(rateLimit).Post("/send-reset-mail", users.HandleSendResetMail)
			r.Put("/reset-password", users.HandleResetPassword)
			if google != nil {
				r.Get("/google", users.HandleGoogleLogin)
				r.Get("/google/callback", users.HandleGoogleCallback)
			}

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Put("/password", users.HandleChangePassword)
				r.Patch("/profile", users.HandleUpdateProfile)
				r.Get("/me", users.HandleMe)
				r.Get("/navbar", users.HandleNavbar)
			})
		})

		r.Route("/bookmark-list", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/cards/{cardId}", bookmarks.HandleAddBookmark)
			r.Delete("/cards/{cardId}", bookmarks.HandleRemoveBookmark)
			r.Post("/cards/{cardId}/pin", bookmarks.HandlePin)
			r.Delete("/cards/{cardId}/pin", bookmarks.HandleUnpin)
			r.Patch("/cards/{cardId}/notes", bookmarks.HandleEditAnnotation)

			r.Get("/groups", bookmarks.HandleListGroups)
			r.Post("/groups", bookmarks.HandleCreateGroup)
			r.Patch("/groups/order", bookmarks.HandleReorderGroups)
			r.Patch("/groups/{groupId}", bookmarks.HandleRenameGroup)
			r.Delete("/groups/{groupId}", bookmarks.HandleDeleteGroup)
			r.Patch("/groups/{groupId}/order", bookmarks.HandleReorderGroup)
			r.Get("/groups/{groupId}/cards", bookmarks.HandleListGroupContents)

			r.Get("/tags", bookmarks.HandleListTags)
			r.Get("/tags/{tag}", bookmarks.HandleListByTag)
			r.Get("/search", bookmarks.HandleSearch)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", cards.HandleListOwn)
			r.Post("/", cards.HandleCreate)
			r.Get("/{cardId}", cards.HandleGetOwn)
			r.Delete("/{cardId}", cards.HandleDelete)
			r.Get("/{cardId}/canvas", cards.HandleGetCanvas)
			r.Patch("/{cardId}/canvas", cards.HandleSaveCanvas)
			r.Post("/{cardId}/publish", cards.HandlePublish)
			r.Put("/{cardId}/job-info", cards.HandleEditJobInfo)
		})

		r.Route("/homepage/{cardId}", func(r chi.Router) {
			r.With(optionalAuth).Get("/", cards.HandleHomepage)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Put("/page-title", cards.HandleRenameTitle)
				r.Post("/link", cards.HandleAddLink)
				r.Patch("/link/{linkId}", cards.HandleEditLink)
				r.Delete("/link/{linkId}", cards.HandleDeleteLink)
				r.Patch("/link/{linkId}/order", cards.HandleReorderLink)
				r.Patch("/job-info/toggle", cards.HandleToggleField)
			})
		})

		r.Route("/messages", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", messages.HandleInbox)
			r.Post("/{cardId}", messages.HandleNotify)
			r.Patch("/{messageId}/read", messages.HandleMarkRead)
		})

		r.Get("/card-wall", cards.HandleCardWall)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"success","data":{"ok":true}}`))
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds.
func (s *Server) Start() error {
	defer s.limiter.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("store", s.config.Store.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Close releases what New started without serving, for tests.
func (s *Server) Close() {
	s.limiter.Stop()
}
