// Command hquic-client is a demo HTTP-over-QUIC client.
//
// The client connects to a server, issues one request per target path,
// prints the responses, and closes the connection gracefully.
//
// Usage:
//
//	hquic-client [flags] [target ...]
//
// Flags:
//
//	-addr string          Server address (default "localhost:4433")
//	-ca string            Certificate PEM file to pin as the only trust root
//	-server-name string   Expected server name (default "localhost")
//	-insecure             Skip certificate verification (development only)
//	-protocol string      ALPN identifiers, comma separated (default "h3")
//	-protocol-log string  Write protocol events to this file
//	-parallel             Issue all requests concurrently on one connection
//
// Examples:
//
//	# Fetch the root resource from a local server
//	hquic-client -insecure
//
//	# Pin the server certificate and fetch several resources in parallel
//	hquic-client -ca server.pem -parallel / /test /health
package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hquic-project/hquic-go/pkg/cert"
	"github.com/hquic-project/hquic-go/pkg/log"
	"github.com/hquic-project/hquic-go/pkg/transport"
	"github.com/hquic-project/hquic-go/pkg/wire"
)

var (
	flagAddr        = flag.String("addr", "localhost:4433", "Server address")
	flagCA          = flag.String("ca", "", "Certificate PEM file to pin as the only trust root")
	flagServerName  = flag.String("server-name", "localhost", "Expected server name")
	flagInsecure    = flag.Bool("insecure", false, "Skip certificate verification (development only)")
	flagProtocols   = flag.String("protocol", transport.DefaultProtocol, "ALPN identifiers, comma separated")
	flagProtocolLog = flag.String("protocol-log", "", "Write protocol events to this file")
	flagParallel    = flag.Bool("parallel", false, "Issue all requests concurrently on one connection")
)

func main() {
	flag.Parse()
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"/"}
	}

	handshake := &transport.HandshakeConfig{
		ServerName:         *flagServerName,
		Protocols:          strings.Split(*flagProtocols, ","),
		InsecureSkipVerify: *flagInsecure,
	}
	if *flagCA != "" {
		pem, err := os.ReadFile(*flagCA)
		if err != nil {
			stdlog.Fatalf("Failed to read CA file: %v", err)
		}
		pinned, err := cert.DecodeCertPEM(pem)
		if err != nil {
			stdlog.Fatalf("Failed to parse CA file: %v", err)
		}
		cred := &cert.DevCredential{Certificate: pinned}
		handshake.RootCAs = cred.Pool()
	}

	var logger log.Logger
	if *flagProtocolLog != "" {
		fl, err := log.NewFileLogger(*flagProtocolLog)
		if err != nil {
			stdlog.Fatalf("Failed to open protocol log: %v", err)
		}
		defer fl.Close()
		logger = fl
	}

	client, err := transport.NewClient(transport.ClientConfig{
		Handshake:      handshake,
		ConnectTimeout: 10 * time.Second,
		Logger:         logger,
	})
	if err != nil {
		stdlog.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := client.Connect(ctx, *flagAddr)
	if err != nil {
		stdlog.Fatalf("Failed to connect to %s: %v", *flagAddr, err)
	}
	defer conn.Close()
	stdlog.Printf("Connected to %s (%s)", conn.RemoteAddr(), conn.Protocol())

	failed := false
	if *flagParallel {
		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, target := range targets {
			wg.Add(1)
			go func(target string) {
				defer wg.Done()
				if err := fetch(ctx, conn, target); err != nil {
					stdlog.Printf("GET %s failed: %v", target, err)
					mu.Lock()
					failed = true
					mu.Unlock()
				}
			}(target)
		}
		wg.Wait()
	} else {
		for _, target := range targets {
			if err := fetch(ctx, conn, target); err != nil {
				stdlog.Printf("GET %s failed: %v", target, err)
				failed = true
			}
		}
	}

	if failed {
		os.Exit(1)
	}
}

// fetch runs one request/response exchange and prints the result.
func fetch(ctx context.Context, conn *transport.ClientConn, target string) error {
	start := time.Now()

	ex, err := conn.RoundTrip(ctx, wire.NewRequest("GET", target))
	if err != nil {
		return err
	}
	defer ex.Close()

	body, err := ex.ReadAllBody()
	if err != nil {
		return err
	}

	resp := ex.Response()
	stdlog.Printf("GET %s -> %d (%d bytes, %s)", target, resp.Status, len(body), time.Since(start).Round(time.Microsecond))
	for _, f := range resp.Header {
		stdlog.Printf("  %s: %s", f.Name, f.Value)
	}
	if len(body) > 0 {
		stdlog.Printf("  %s", strings.TrimRight(string(body), "\n"))
	}
	return nil
}
