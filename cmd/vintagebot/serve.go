package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meowtytyshka/vintagebot/bot"
	"github.com/meowtytyshka/vintagebot/browse"
	"github.com/meowtytyshka/vintagebot/catalog"
	"github.com/meowtytyshka/vintagebot/form"
	"github.com/meowtytyshka/vintagebot/inquiry"
	"github.com/meowtytyshka/vintagebot/internal/healthcheck"
	"github.com/meowtytyshka/vintagebot/moderation"
	"github.com/meowtytyshka/vintagebot/session"
	"github.com/meowtytyshka/vintagebot/telegram"
	"github.com/meowtytyshka/vintagebot/texts"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(flagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or VINTAGEBOT_TELEGRAM_BOT_TOKEN)")
			}
			adminID := flagOrViperInt64(cmd, "admin-chat-id", "admin_chat_id")
			if adminID == 0 {
				return fmt.Errorf("missing admin_chat_id (set via --admin-chat-id or VINTAGEBOT_ADMIN_CHAT_ID)")
			}
			baseURL := strings.TrimRight(strings.TrimSpace(flagOrViperString(cmd, "telegram-base-url", "telegram.base_url")), "/")
			dataDir := strings.TrimSpace(flagOrViperString(cmd, "data-dir", "data_dir"))
			textsFile := strings.TrimSpace(flagOrViperString(cmd, "texts-file", "texts_file"))
			pageSize := flagOrViperInt(cmd, "catalog-page-size", "catalog.page_size")
			sessionTTL := flagOrViperDuration(cmd, "session-ttl", "session.ttl")
			pollTimeout := flagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout")
			healthListen := healthcheck.NormalizeListen(flagOrViperString(cmd, "health-listen", "health.listen"))

			logger, err := loggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			api, err := telegram.NewClient(nil, baseURL, token)
			if err != nil {
				return err
			}
			me, err := api.GetMe(ctx)
			if err != nil {
				return err
			}

			store, err := catalog.NewStore(dataDir)
			if err != nil {
				return err
			}
			if err := store.Ensure(ctx); err != nil {
				return err
			}
			bundle, err := texts.Load(textsFile)
			if err != nil {
				return err
			}
			sessions := session.NewManager(sessionTTL)

			gate, err := moderation.NewGate(moderation.GateOptions{
				Logger: logger, Store: store, Sender: api, Texts: bundle, AdminID: adminID,
			})
			if err != nil {
				return err
			}
			formEngine, err := form.NewEngine(form.EngineOptions{
				Logger: logger, Sessions: sessions, Sender: api, Texts: bundle, Submitter: gate,
			})
			if err != nil {
				return err
			}
			browser, err := browse.NewBrowser(browse.BrowserOptions{
				Logger: logger, Store: store, Sender: api, Texts: bundle, AdminID: adminID, PageSize: pageSize,
			})
			if err != nil {
				return err
			}
			inquiryEngine, err := inquiry.NewEngine(inquiry.EngineOptions{
				Logger: logger, Store: store, Sessions: sessions, Sender: api, Texts: bundle, AdminID: adminID,
			})
			if err != nil {
				return err
			}
			router, err := bot.NewRouter(bot.RouterOptions{
				Logger: logger, Client: api, Sessions: sessions, Texts: bundle,
				Form: formEngine, Gate: gate, Browser: browser, Inquiry: inquiryEngine,
				AdminID: adminID, PollTimeout: pollTimeout,
			})
			if err != nil {
				return err
			}

			if healthListen != "" {
				healthServer, err := healthcheck.StartServer(ctx, logger, healthListen, "bot")
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = healthServer.Shutdown(shutdownCtx)
				}()
			}

			go sessions.Run(ctx, logger)

			logger.Info("bot_start",
				"bot_username", me.Username,
				"bot_id", me.ID,
				"data_dir", dataDir,
				"page_size", pageSize,
				"session_ttl", sessionTTL.String(),
				"poll_timeout", pollTimeout.String(),
			)
			return router.Run(ctx)
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().String("telegram-base-url", "https://api.telegram.org", "Telegram API base URL.")
	cmd.Flags().Int64("admin-chat-id", 0, "Chat id of the shop operator.")
	cmd.Flags().String("data-dir", "./data", "Directory for the catalog and pending queue files.")
	cmd.Flags().String("texts-file", "", "YAML file overriding individual reply templates.")
	cmd.Flags().Int("catalog-page-size", 8, "Lots per catalog page.")
	cmd.Flags().Duration("session-ttl", 30*time.Minute, "Idle conversation expiry.")
	cmd.Flags().Duration("telegram-poll-timeout", 50*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().String("health-listen", "", "Health endpoint listen address (empty disables it).")

	return cmd
}
