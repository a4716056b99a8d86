package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/friendbook-app/backend/internal/auth"
	"github.com/friendbook-app/backend/internal/comments"
	"github.com/friendbook-app/backend/internal/config"
	"github.com/friendbook-app/backend/internal/database"
	"github.com/friendbook-app/backend/internal/friends"
	"github.com/friendbook-app/backend/internal/ids"
	"github.com/friendbook-app/backend/internal/logging"
	"github.com/friendbook-app/backend/internal/messages"
	"github.com/friendbook-app/backend/internal/notifications"
	"github.com/friendbook-app/backend/internal/posts"
	"github.com/friendbook-app/backend/internal/realtime"
	"github.com/friendbook-app/backend/internal/server"
	"github.com/friendbook-app/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "friendbook-api",
		Short: "Friendbook backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("access-ttl-minutes", defaults.GetInt("auth.access_ttl_minutes"), "Access token TTL in minutes")
	cmd.PersistentFlags().Int("refresh-ttl-hours", defaults.GetInt("auth.refresh_ttl_hours"), "Refresh token TTL in hours")
	cmd.PersistentFlags().Int("send-buffer", defaults.GetInt("realtime.send_buffer"), "Per-connection outbound frame buffer")
	cmd.PersistentFlags().Int("handshake-timeout-seconds", defaults.GetInt("realtime.handshake_timeout_seconds"), "Websocket handshake timeout in seconds")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "auth.access_ttl_minutes", "access-ttl-minutes")
	bindFlag(cmd, "auth.refresh_ttl_hours", "refresh-ttl-hours")
	bindFlag(cmd, "realtime.send_buffer", "send-buffer")
	bindFlag(cmd, "realtime.handshake_timeout_seconds", "handshake-timeout-seconds")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	idProvider := ids.NewUUIDProvider()

	tokenManager := auth.NewTokenManager(auth.TokenManagerConfig{
		SigningSecret:  []byte(appConfig.SigningSecret),
		Issuer:         "friendbook-auth",
		Audience:       "friendbook-api",
		AccessTokenTTL: appConfig.AccessTokenTTL,
	})

	refreshStore, err := auth.NewRefreshStore(auth.RefreshStoreConfig{
		Database:   db,
		IDProvider: idProvider,
		TokenTTL:   appConfig.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	usersService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
	})
	if err != nil {
		return err
	}

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, logger)

	notificationsService, err := notifications.NewService(notifications.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Senders:    usersService,
		Pusher:     dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	postsService, err := posts.NewService(posts.ServiceConfig{
		Database:      db,
		IDProvider:    idProvider,
		Users:         usersService,
		Notifications: notificationsService,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	commentsService, err := comments.NewService(comments.ServiceConfig{
		Database:      db,
		IDProvider:    idProvider,
		Users:         usersService,
		Posts:         postsService,
		Notifications: notificationsService,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	friendsService, err := friends.NewService(friends.ServiceConfig{
		Database:      db,
		IDProvider:    idProvider,
		Users:         usersService,
		Notifications: notificationsService,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	messagesService, err := messages.NewService(messages.ServiceConfig{
		Database:      db,
		IDProvider:    idProvider,
		Users:         usersService,
		Notifications: notificationsService,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	realtimeHandler, err := realtime.NewHandler(realtime.HandlerConfig{
		Registry:         registry,
		Tokens:           tokenManager,
		Logger:           logger,
		SendBuffer:       appConfig.SendBuffer,
		HandshakeTimeout: appConfig.HandshakeTimeout,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:  tokenManager,
		RefreshTokens: refreshStore,
		Users:         usersService,
		Posts:         postsService,
		Comments:      commentsService,
		Friends:       friendsService,
		Messages:      messagesService,
		Notifications: notificationsService,
		Realtime:      realtimeHandler,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
