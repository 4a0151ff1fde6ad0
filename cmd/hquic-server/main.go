// Command hquic-server is a demo HTTP-over-QUIC server.
//
// The server accepts connections on a UDP port, serves a small set of
// fixed routes, and keeps running until interrupted. Without -cert and
// -key it generates a short-lived self-signed credential on startup and
// prints the certificate so clients can pin it.
//
// Usage:
//
//	hquic-server [flags]
//
// Flags:
//
//	-addr string          Listen address (default ":4433")
//	-config string        Configuration file path (YAML)
//	-cert string          Certificate PEM file (generated if empty)
//	-key string           Private key PEM file (generated if empty)
//	-write-cert string    Write the generated certificate PEM to this file
//	-protocol-log string  Write protocol events to this file
//	-verbose              Mirror protocol events to stderr
//
// Examples:
//
//	# Start with a generated credential on the default port
//	hquic-server
//
//	# Start with persistent credentials and protocol logging
//	hquic-server -cert server.pem -key server.key -protocol-log server.hqlog
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hquic-project/hquic-go/pkg/cert"
	"github.com/hquic-project/hquic-go/pkg/log"
	"github.com/hquic-project/hquic-go/pkg/transport"
	"github.com/hquic-project/hquic-go/pkg/wire"
)

var (
	flagAddr        = flag.String("addr", "", "Listen address (default \":4433\")")
	flagConfig      = flag.String("config", "", "Configuration file path (YAML)")
	flagCert        = flag.String("cert", "", "Certificate PEM file (generated if empty)")
	flagKey         = flag.String("key", "", "Private key PEM file (generated if empty)")
	flagWriteCert   = flag.String("write-cert", "", "Write the generated certificate PEM to this file")
	flagProtocolLog = flag.String("protocol-log", "", "Write protocol events to this file")
	flagVerbose     = flag.Bool("verbose", false, "Mirror protocol events to stderr")
)

func main() {
	flag.Parse()
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	cfg := DefaultConfig()
	if *flagConfig != "" {
		loaded, err := LoadConfig(*flagConfig)
		if err != nil {
			stdlog.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	cfg.applyFlags(*flagAddr, *flagCert, *flagKey, *flagProtocolLog)

	cred, err := loadCredential(cfg)
	if err != nil {
		stdlog.Fatalf("Failed to load credential: %v", err)
	}
	stdlog.Printf("Certificate valid until %s", cred.ExpiresAt().Format("2006-01-02 15:04:05"))

	if *flagWriteCert != "" {
		pem := cert.EncodeCertPEM(cred.Certificate)
		if err := os.WriteFile(*flagWriteCert, pem, 0644); err != nil {
			stdlog.Fatalf("Failed to write certificate: %v", err)
		}
		stdlog.Printf("Certificate written to %s", *flagWriteCert)
	}

	logger, closeLogger, err := buildLogger(cfg.ProtocolLog, *flagVerbose)
	if err != nil {
		stdlog.Fatalf("Failed to open protocol log: %v", err)
	}
	defer closeLogger()

	server, err := transport.NewServer(transport.ServerConfig{
		Handshake: &transport.HandshakeConfig{
			Certificate: cred.TLSCertificate(),
			Protocols:   cfg.Protocols,
		},
		Address:         cfg.Address,
		MaxIdleTimeout:  time.Duration(cfg.IdleTimeout),
		KeepAlivePeriod: time.Duration(cfg.KeepAlive),
		Logger:          logger,
		Handler:         newRouter(),
		OnConnect: func(conn *transport.ServerConn) {
			stdlog.Printf("Connection %s from %s (%s)",
				shortID(conn.ConnID()), conn.RemoteAddr(), conn.Protocol())
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			stdlog.Printf("Connection %s closed", shortID(conn.ConnID()))
		},
		OnError: func(conn *transport.ServerConn, err error) {
			if conn != nil {
				stdlog.Printf("Connection %s error: %v", shortID(conn.ConnID()), err)
				return
			}
			stdlog.Printf("Server error: %v", err)
		},
	})
	if err != nil {
		stdlog.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	stdlog.Printf("Listening on %s (protocols: %v)", server.Addr(), cfg.Protocols)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	stdlog.Printf("Received signal: %v, shutting down", sig)
	if err := server.Stop(); err != nil {
		stdlog.Printf("Error stopping server: %v", err)
	}
}

// loadCredential reads the configured certificate pair, or generates a
// self-signed one when no files are configured.
func loadCredential(cfg *Config) (*cert.DevCredential, error) {
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		stdlog.Printf("Loading credential from %s", cfg.CertFile)
		return cert.ReadCredentialFiles(cfg.CertFile, cfg.KeyFile)
	}
	stdlog.Printf("Generating self-signed credential for %v", cfg.Hosts)
	return cert.GenerateDevCredential(cfg.Hosts...)
}

// buildLogger assembles the protocol logger from the configured sinks.
func buildLogger(path string, verbose bool) (log.Logger, func(), error) {
	var loggers []log.Logger

	var fileLogger *log.FileLogger
	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, nil, err
		}
		fileLogger = fl
		loggers = append(loggers, fl)
		stdlog.Printf("Protocol log: %s", fl.Path())
	}
	if verbose {
		loggers = append(loggers, log.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, nil))))
	}

	closer := func() {
		if fileLogger != nil {
			fileLogger.Close()
		}
	}

	switch len(loggers) {
	case 0:
		return nil, closer, nil
	case 1:
		return loggers[0], closer, nil
	default:
		return log.NewMultiLogger(loggers...), closer, nil
	}
}

// newRouter builds the demo route table.
func newRouter() transport.Handler {
	return transport.HandlerFunc(func(ex *transport.Exchange) {
		req := ex.Request()
		stdlog.Printf("%s %s (stream %d)", req.Method, req.Target, ex.StreamID())

		status, body := route(req)
		resp := wire.NewResponse(status)
		resp.Header.Add("content-type", "text/plain")
		resp.Header.Add("server", "hquic-server")

		if err := ex.SendResponse(resp); err != nil {
			stdlog.Printf("Failed to send response: %v", err)
			return
		}
		if len(body) > 0 {
			if _, err := ex.Write(body); err != nil {
				stdlog.Printf("Failed to send body: %v", err)
				return
			}
		}
		if err := ex.Finish(); err != nil {
			stdlog.Printf("Failed to finish exchange: %v", err)
		}
	})
}

func route(req *wire.Request) (int, []byte) {
	if req.Method != "GET" {
		return 405, []byte("method not allowed\n")
	}
	switch req.Target {
	case "/":
		return 200, []byte("Hello from server!")
	case "/test":
		return 200, []byte("test endpoint\n")
	case "/health":
		return 200, []byte("ok\n")
	default:
		return 404, []byte(fmt.Sprintf("no such resource: %s\n", req.Target))
	}
}

// shortID truncates a connection UUID for log readability.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
