package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pkgsync/cmd/root"
	"pkgsync/controllers"
	"pkgsync/internal/logger"
	"pkgsync/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	optListen string
	optSocket string
	optRoot   string
)

var serverCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动blob镜像HTTP服务",
	Long: `Serve a directory as an http blob store. Archives and package files are read with
GET /blobs/<key> and written with PUT /blobs/<key>; /healthz and /metrics report state.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return startServer(ctx)
	},
}

/**
 * Run the blob mirror until ctx is cancelled
 * @param {context.Context} ctx - Cancelled on SIGINT/SIGTERM
 * @returns {error} Returns error if no listener could be created or serving fails
 */
func startServer(ctx context.Context) error {
	cfg := root.Config()
	if optListen != "" {
		cfg.Server.Address = optListen
	}
	if optSocket != "" {
		cfg.Server.Socket = optSocket
	}
	if optRoot != "" {
		cfg.Server.Root = optRoot
	}
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	mirror, err := services.NewMirrorServer(cfg, root.Metrics())
	if err != nil {
		return err
	}

	addrs := []ListenAddr{{Network: "tcp", Address: cfg.Server.Address}}
	if cfg.Server.Socket != "" && IsUnixSocketSupported() {
		addrs = append(addrs, ListenAddr{Network: "unix", Address: cfg.Server.Socket})
	}
	listeners, err := CreateListeners(addrs)
	if len(listeners) == 0 {
		return fmt.Errorf("no listener available: %w", err)
	}
	err = nil

	srv := &http.Server{
		Handler:           controllers.NewRouter(mirror),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, len(listeners))
	var wg sync.WaitGroup
	for _, l := range listeners {
		logger.Infof("Serving %s on %s://%s", mirror.Store().Root(), l.Addr().Network(), l.Addr().String())
		wg.Add(1)
		go func(l net.Listener) {
			defer wg.Done()
			if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(l)
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down blob mirror")
	case err = <-errCh:
		logger.Errorf("Blob mirror failed: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	wg.Wait()
	return err
}

func init() {
	serverCmd.Flags().StringVar(&optListen, "listen", "", "Listen address, overrides server.address")
	serverCmd.Flags().StringVar(&optSocket, "socket", "", "Unix socket path, overrides server.socket")
	serverCmd.Flags().StringVar(&optRoot, "root", "", "Directory to serve, overrides server.root")
	root.RootCmd.AddCommand(serverCmd)
}
