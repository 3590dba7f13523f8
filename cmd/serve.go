package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens-cli/internal/logger"
	"github.com/KaramelBytes/datalens-cli/internal/server"
	"github.com/KaramelBytes/datalens-cli/internal/session"
)

var (
	srvAddr        string
	srvCORSOrigins []string
	srvModel       string
	srvProvider    string
	srvOllamaHost  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve one analysis session over HTTP",
	Example: `  datalens serve
  datalens serve --addr 127.0.0.1:9090 --provider ollama
  datalens serve --cors-origin http://localhost:5173`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: srvProvider, OllamaHost: srvOllamaHost})
		if err != nil {
			return err
		}
		model := selectModel(c, srvModel, provider)
		addr := srvAddr
		if addr == "" {
			addr = c.ServerAddr
		}
		if addr == "" {
			addr = ":8080"
		}
		if debug {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}

		log := logger.L()
		sess := session.New(session.Config{
			Runtime:     rt,
			Model:       model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
			Logger:      log,
		})
		srv := server.New(server.Options{
			Session:        sess,
			Printer:        newPrinter(),
			Logger:         log,
			MaxUploadBytes: int64(c.MaxUploadMB) << 20,
			AllowOrigins:   srvCORSOrigins,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Printf("✓ Serving session %s on %s (model %s via %s)\n", sess.ID(), addr, model, provider)
		return srv.Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().StringSliceVar(&srvCORSOrigins, "cors-origin", nil, "allowed CORS origin (repeatable)")
	serveCmd.Flags().StringVar(&srvModel, "model", "", "model to use (default from config or provider)")
	serveCmd.Flags().StringVar(&srvProvider, "provider", "", "generation provider")
	serveCmd.Flags().StringVar(&srvOllamaHost, "ollama-host", "", "Ollama host (default from config)")
}
