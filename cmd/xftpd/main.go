// Command xftpd runs the FTP server against a directory tree rooted
// at -dir, with anonymous-only login.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/duskvale/xftpd/internal/ftpd"
	"github.com/duskvale/xftpd/internal/xchacha"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		port     = pflag.IntP("port", "p", 2121, "TCP port to listen on")
		dir      = pflag.StringP("dir", "d", "", "directory to serve (default: current directory)")
		readOnly = pflag.Bool("read-only", false, "reject all write commands")
		pskFile  = pflag.String("psk", "", "path to a 32-byte pre-shared key file, enabling AUTH XCRYPT")
		metrics  = pflag.String("metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9273); disabled if empty")
		help     = pflag.BoolP("help", "h", false, "show usage")
	)
	pflag.Parse()

	if *help {
		pflag.Usage()
		return 0
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	root := *dir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			logger.Error("getwd failed", "error", err)
			return 1
		}
		root = wd
	}

	driver, err := ftpd.NewFSDriver(root, *readOnly)
	if err != nil {
		logger.Error("driver init failed", "error", err, "dir", root)
		return 1
	}

	options := []ftpd.Option{
		ftpd.WithDriver(driver),
		ftpd.WithLogger(logger),
	}

	if *pskFile != "" {
		raw, err := os.ReadFile(*pskFile)
		if err != nil {
			logger.Error("reading psk file failed", "error", err, "path", *pskFile)
			return 1
		}
		psk, err := xchacha.ParsePSK(raw)
		if err != nil {
			logger.Error("invalid psk", "error", err, "path", *pskFile)
			return 1
		}
		options = append(options, ftpd.WithPSK(psk))
	}

	if *metrics != "" {
		collector := ftpd.NewPrometheusCollector(defaultRegisterer())
		options = append(options, ftpd.WithMetricsCollector(collector))
		go serveMetrics(logger, *metrics)
	}

	srv, err := ftpd.NewServer(options...)
	if err != nil {
		logger.Error("server init failed", "error", err)
		return 1
	}

	addr := net.JoinHostPort("", strconv.Itoa(*port))
	logger.Info("serving", "addr", addr, "dir", root, "read_only", *readOnly)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != ftpd.ErrServerClosed {
			logger.Error("serve failed", "error", err)
			if isAddrInUse(err) {
				fmt.Fprintf(os.Stderr, "xftpd: address %s is already in use\n", addr)
			}
			return 1
		}
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
			return 1
		}
	}
	return 0
}

func isAddrInUse(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "listen"
}
