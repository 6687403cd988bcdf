package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/notes-backend/internal/api"
	"github.com/kuitang/notes-backend/internal/auth"
	"github.com/kuitang/notes-backend/internal/config"
	"github.com/kuitang/notes-backend/internal/crypto"
	"github.com/kuitang/notes-backend/internal/notes"
	"github.com/kuitang/notes-backend/internal/obs"
	"github.com/kuitang/notes-backend/internal/s3client"
	"github.com/kuitang/notes-backend/internal/store/boltstore"
	"github.com/kuitang/notes-backend/internal/store/memstore"
	"github.com/kuitang/notes-backend/internal/store/s3store"
	"github.com/kuitang/notes-backend/internal/store/sqlitestore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the notes API (default)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := obs.Pkg("server")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.PrintStartupSummary()

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("store_close_failed", "error", err)
		}
	}()

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: api.NewRouter(api.RouterConfig{
			Service:           notes.NewService(store),
			Verifier:          verifier,
			ExpectedProjectID: cfg.ProjectID,
			CORSOrigins:       cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", "addr", cfg.ListenAddr, "store", cfg.StoreBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server_shutting_down", "grace", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func buildVerifier(ctx context.Context, cfg *config.Config) (*auth.Verifier, error) {
	var revocations auth.RevocationChecker
	if cfg.RevocationFile != "" {
		list, err := auth.LoadRevocationFile(cfg.RevocationFile)
		if err != nil {
			return nil, err
		}
		obs.Pkg("server").Info("revocations_loaded", "subjects", list.Len())
		revocations = list
	}
	return auth.NewVerifier(ctx, auth.VerifierConfig{
		Issuer:      cfg.TokenIssuer,
		Audience:    cfg.TokenAudience,
		JWKSURL:     cfg.TokenJWKSURL,
		Revocations: revocations,
	})
}

// openStore builds the configured backend and its close function.
func openStore(ctx context.Context, cfg *config.Config) (notes.Store, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.StoreBackend {
	case config.StoreMemory:
		return memstore.New(), noClose, nil

	case config.StoreSQLite:
		var key []byte
		if cfg.StoreMasterKey != "" {
			master, err := crypto.ParseMasterKey(cfg.StoreMasterKey)
			if err != nil {
				return nil, nil, err
			}
			key = crypto.DeriveStoreKey(master, "notes", 1)
		}
		store, err := sqlitestore.Open(ctx, sqlitestore.Options{Path: cfg.StorePath, Key: key})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.StoreBolt:
		store, err := boltstore.Open(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.StoreS3:
		client, err := s3client.New(ctx, s3client.Config{
			Endpoint:        cfg.AWSEndpointS3,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			BucketName:      cfg.AWSBucketName,
			UsePathStyle:    cfg.AWSUsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		obs.Pkg("server").Info("s3_bucket_ready", "bucket", client.BucketName())
		return s3store.New(client), noClose, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
