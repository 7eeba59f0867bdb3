/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/config"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/container"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Assessment Workflow API server.
The server listens on the configured host and port, runs the review SLA
monitor and dispatches workflow events to webhooks, websocket clients and
notification channels.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if host, _ := cmd.Flags().GetString("host"); cmd.Flags().Changed("host") {
			cfg.Server.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}

		// 2. 日志
		log, err := logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.SetDefault(log)
		// gorm 经 logrus 标准记录器输出 SQL 日志
		if err := logger.Apply(logrus.StandardLogger(), cfg.Log); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if config.IsProduction(cfg) {
			gin.SetMode(gin.ReleaseMode)
		}

		// 3. 配置热更新,仅日志配置生效
		if configPath != "" {
			watcher := config.NewWatcher(cfg, configPath)
			watcher.OnLogChange(func(lc config.LogConfig) {
				for _, l := range []*logrus.Logger{log, logrus.StandardLogger()} {
					if err := logger.Apply(l, lc); err != nil {
						log.WithError(err).Warn("failed to apply log config")
						return
					}
				}
				log.WithField("level", lc.Level).Info("log config reloaded")
			})
			watcher.OnError(func(err error) {
				log.WithError(err).Warn("config reload failed")
			})
			if err := watcher.Start(); err != nil {
				log.WithError(err).Warn("config watcher not started")
			}
			defer watcher.Stop()
		}

		// 4. 初始化容器
		ctr, err := container.NewContainer(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer func() {
			if err := ctr.Close(); err != nil {
				log.WithError(err).Warn("failed to close container")
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctr.Start(ctx)

		// 5. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           ctr.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			log.WithField("addr", addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		// 等待中断信号或监听失败
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
		}

		log.Info("shutting down server")

		// 优雅关闭
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}

// LoadConfig 加载配置
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}
