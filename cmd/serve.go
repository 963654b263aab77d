package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/portcullis-auth/portcullis/internal/accounts"
	"github.com/portcullis-auth/portcullis/internal/credential"
	"github.com/portcullis-auth/portcullis/internal/db/bunx"
	"github.com/portcullis-auth/portcullis/internal/policy"
	"github.com/portcullis-auth/portcullis/internal/server"
	"github.com/portcullis-auth/portcullis/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the auth API server",
	Long:  `Starts the HTTP server exposing login, logout, whoami, and policy administration endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Printf("Connected to database")

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()

		if err := rdb.Ping(cmd.Context()).Err(); err != nil {
			return fmt.Errorf("failed to connect to session store: %w", err)
		}
		log.Printf("Connected to session store")

		codec, err := credential.NewCodec([]byte(cfg.SigningSecret), cfg.TokenLifetime)
		if err != nil {
			return fmt.Errorf("failed to create credential codec: %w", err)
		}

		accountRepo := accounts.NewBunAccountRepository(db)
		sessions := session.NewCache(rdb, codec, accountRepo, session.DefaultKeyPrefix)

		enforcer, err := policy.NewEnforcer(db)
		if err != nil {
			return fmt.Errorf("failed to create policy enforcer: %w", err)
		}

		seeded, err := enforcer.Bootstrap()
		if err != nil {
			return fmt.Errorf("failed to bootstrap policy rules: %w", err)
		}
		if seeded {
			log.Printf("Seeded bootstrap policy rules into empty store")
		}

		r := server.NewRouter(server.RouterOptions{
			Codec:    codec,
			Sessions: sessions,
			Accounts: accountRepo,
			Enforcer: enforcer,
			Cfg:      cfg,
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s (environment: %s)", cfg.ServerAddr, cfg.Environment)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
