// Command hutzd is an example daemon wiring transport/tcp,
// server.Processor, demux.Demultiplexer and config.ServerConfig
// together: it registers a demo resource, snapshots the registration set
// via store/resource, serves Prometheus metrics and a websocket upgrade
// demo on a separate admin address, and watches config.yaml for changes
// with fsnotify.
package main

import (
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/badu/hutz/config"
	"github.com/badu/hutz/demux"
	"github.com/badu/hutz/mimereg"
	"github.com/badu/hutz/request"
	"github.com/badu/hutz/server"
	"github.com/badu/hutz/store/resource"
	"github.com/badu/hutz/transport/tcp"
	"github.com/badu/hutz/transport/wsupgrade"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var cfgPath string
	root := &cobra.Command{
		Use:   "hutzd",
		Short: "example daemon embedding the hutz HTTP core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath, logger)
		},
	}
	root.Flags().StringVar(&cfgPath, "config", "config.yaml", "path to config.yaml")

	if err := root.Execute(); err != nil {
		logger.Fatal().Err(err).Msg("hutzd: exiting")
	}
}

func run(cfgPath string, logger zerolog.Logger) error {
	cfg := config.Default()
	if _, err := os.Stat(cfgPath); err == nil {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	d := demux.New(logger)
	registerDemoHandlers(d)
	snapshotResources(cfg.SnapshotPath, d, logger)

	proc := server.New(d, logger)
	proc.SetLimits(cfg.MaxHeaderBytes, cfg.MaxContentLength)

	if cfg.AdminAddr != "" {
		go serveAdmin(cfg.AdminAddr, d, logger)
	}

	ln, err := newListener(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info().Str("addr", cfg.ListenAddr).Bool("tls", cfg.TLSCertFile != "").Msg("hutzd: listening")

	watchConfigReloads(cfgPath, logger)

	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Warn().Err(err).Msg("hutzd: accept failed")
			continue
		}
		dev := tcp.NewDevice(conn)
		dev.ReadTimeout = cfg.ReadTimeout
		dev.WriteTimeout = cfg.WriteTimeout

		go func() {
			defer dev.Close()
			for proc.HandleOneRequest(dev) {
			}
		}()
	}
}

// listener is the accept-loop surface both tcp.KeepAliveListener and
// tcp.TLSListener satisfy.
type listener interface {
	Accept() (net.Conn, error)
	Close() error
}

// newListener picks a plain or TLS-terminated listener depending on
// whether cfg names a certificate.
func newListener(cfg config.ServerConfig, logger zerolog.Logger) (listener, error) {
	if cfg.TLSCertFile == "" {
		return tcp.Listen(cfg.ListenAddr, cfg.ReadTimeout)
	}
	return tcp.ListenTLS(cfg.ListenAddr, cfg.TLSCertFile, cfg.TLSKeyFile, cfg.ReadTimeout)
}

func registerDemoHandlers(d *demux.Demultiplexer) {
	plain := mimereg.MIME{
		Type:    d.RegisterMimeType("text"),
		Subtype: d.RegisterMimeSubtype("plain"),
	}
	d.Connect("demo-root", "/", request.MethodGET, plain, plain, func(req *request.Request, resp *demux.Response) int {
		resp.SetHeader("Content-Type", "text/plain")
		resp.Write([]byte("hutzd is running\n"))
		return 200
	})
}

// snapshotResources persists the set of resources registered at startup to
// a bbolt-backed store for restart diagnostics, when cfg.SnapshotPath is
// set. Failures are logged, not fatal: the snapshot is diagnostic only.
func snapshotResources(path string, d *demux.Demultiplexer, logger zerolog.Logger) {
	if path == "" {
		return
	}
	store, err := resource.Open(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("hutzd: resource snapshot disabled")
		return
	}
	defer store.Close()

	entries := make([]resource.Entry, 0, len(d.Snapshot()))
	for _, s := range d.Snapshot() {
		entries = append(entries, resource.Entry{
			Path:        s.Path,
			Method:      s.Method,
			ContentType: s.ContentType,
			AcceptType:  s.AcceptType,
		})
	}
	if err := store.Save(time.Now().UTC().Format(time.RFC3339), entries); err != nil {
		logger.Warn().Err(err).Msg("hutzd: resource snapshot write failed")
	}
}

// serveAdmin runs a plain net/http server on addr exposing Prometheus
// metrics and a websocket echo demo, separate from the core request
// cycle: neither concern belongs on the trie/demux/lexer hot path, but
// both need a real net/http.ResponseWriter/Request pair to work with the
// libraries backing them (promhttp, gorilla/websocket).
func serveAdmin(addr string, d *demux.Demultiplexer, logger zerolog.Logger) {
	upgrader := wsupgrade.New()
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.Metrics())
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("hutzd: websocket upgrade failed")
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	})
	logger.Info().Str("addr", addr).Msg("hutzd: admin server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn().Err(err).Msg("hutzd: admin server stopped")
	}
}

// watchConfigReloads logs when config.yaml changes on disk; wiring a
// changed listen address to a live listener would require rebinding the
// socket, left to the caller's own reconciliation loop.
func watchConfigReloads(cfgPath string, logger zerolog.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn().Err(err).Msg("hutzd: config watch disabled")
		return
	}
	if err := watcher.Add(cfgPath); err != nil {
		logger.Warn().Err(err).Msg("hutzd: config watch disabled")
		return
	}
	go func() {
		for event := range watcher.Events {
			if event.Op&fsnotify.Write == fsnotify.Write {
				logger.Info().Str("path", cfgPath).Msg("hutzd: config changed, restart to apply")
			}
		}
	}()
}
