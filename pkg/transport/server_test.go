package transport_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hquic-project/hquic-go/pkg/cert"
	"github.com/hquic-project/hquic-go/pkg/transport"
	"github.com/hquic-project/hquic-go/pkg/wire"
)

// startServer starts a server on a random loopback port and returns it
// together with the credential clients need to trust it.
func startServer(t *testing.T, config transport.ServerConfig) (*transport.Server, *cert.DevCredential) {
	t.Helper()

	cred, err := cert.GenerateDevCredential("localhost", "127.0.0.1")
	if err != nil {
		t.Fatalf("GenerateDevCredential: %v", err)
	}

	if config.Handshake == nil {
		config.Handshake = &transport.HandshakeConfig{
			Certificate: cred.TLSCertificate(),
			Protocols:   []string{transport.DefaultProtocol},
		}
	} else {
		config.Handshake.Certificate = cred.TLSCertificate()
	}
	config.Address = "127.0.0.1:0"

	server, err := transport.NewServer(config)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	return server, cred
}

// dial connects a client to the server with the given protocol list.
func dial(t *testing.T, server *transport.Server, cred *cert.DevCredential, protocols []string) (*transport.ClientConn, error) {
	t.Helper()

	client, err := transport.NewClient(transport.ClientConfig{
		Handshake: &transport.HandshakeConfig{
			RootCAs:    cred.Pool(),
			ServerName: "localhost",
			Protocols:  protocols,
		},
		ConnectTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Connect(ctx, server.Addr().String())
}

func TestRequestResponseRoundTrip(t *testing.T) {
	server, cred := startServer(t, transport.ServerConfig{
		Handler: transport.FixedResponseHandler(200, "text/plain", []byte("Hello from server!")),
	})

	conn, err := dial(t, server, cred, []string{transport.DefaultProtocol})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, transport.DefaultProtocol, conn.Protocol())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := wire.NewRequest("GET", "/")
	ex, err := conn.RoundTrip(ctx, req)
	require.NoError(t, err)
	defer ex.Close()

	resp := ex.Response()
	assert.Equal(t, 200, resp.Status)
	ct, ok := resp.Header.Get("content-type")
	assert.True(t, ok)
	assert.Equal(t, "text/plain", ct)

	body, err := ex.ReadAllBody()
	require.NoError(t, err)
	assert.Equal(t, "Hello from server!", string(body))
}

func TestProtocolMismatch(t *testing.T) {
	server, cred := startServer(t, transport.ServerConfig{
		Handler: transport.FixedResponseHandler(200, "text/plain", nil),
	})

	// The server only speaks h3; a client offering h2 never gets past
	// the handshake.
	conn, err := dial(t, server, cred, []string{"h2"})
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
}

func TestConcurrentExchangesOneConnection(t *testing.T) {
	server, cred := startServer(t, transport.ServerConfig{
		Handler: transport.HandlerFunc(func(ex *transport.Exchange) {
			resp := wire.NewResponse(200)
			resp.Header.Add("content-type", "text/plain")
			if err := ex.SendResponse(resp); err != nil {
				return
			}
			fmt.Fprintf(ex, "you requested %s", ex.Request().Target)
			ex.Finish()
		}),
	})

	conn, err := dial(t, server, cred, []string{transport.DefaultProtocol})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			target := fmt.Sprintf("/item/%d", i)
			ex, err := conn.RoundTrip(ctx, wire.NewRequest("GET", target))
			if err != nil {
				errs[i] = err
				return
			}
			defer ex.Close()

			body, err := ex.ReadAllBody()
			if err != nil {
				errs[i] = err
				return
			}
			if want := "you requested " + target; string(body) != want {
				errs[i] = fmt.Errorf("body = %q, want %q", body, want)
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "exchange %d", i)
	}
}

func TestBodyBeforeResponseRejected(t *testing.T) {
	writeErrs := make(chan error, 1)

	server, cred := startServer(t, transport.ServerConfig{
		Handler: transport.HandlerFunc(func(ex *transport.Exchange) {
			// Body bytes before response metadata must be refused
			// without disturbing the exchange.
			_, err := ex.Write([]byte("too early"))
			writeErrs <- err

			resp := wire.NewResponse(204)
			if err := ex.SendResponse(resp); err != nil {
				return
			}
			ex.Finish()
		}),
	})

	conn, err := dial(t, server, cred, []string{transport.DefaultProtocol})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ex, err := conn.RoundTrip(ctx, wire.NewRequest("GET", "/"))
	require.NoError(t, err)
	defer ex.Close()

	assert.Equal(t, 204, ex.Response().Status)

	body, err := ex.ReadAllBody()
	require.NoError(t, err)
	assert.Empty(t, body)

	select {
	case err := <-writeErrs:
		assert.ErrorIs(t, err, transport.ErrResponseNotSent)
	case <-time.After(5 * time.Second):
		t.Fatal("handler never reported the early write result")
	}
}

func TestDoubleResponseRejected(t *testing.T) {
	resendErrs := make(chan error, 1)

	server, cred := startServer(t, transport.ServerConfig{
		Handler: transport.HandlerFunc(func(ex *transport.Exchange) {
			if err := ex.SendResponse(wire.NewResponse(200)); err != nil {
				return
			}
			resendErrs <- ex.SendResponse(wire.NewResponse(500))
			ex.Finish()
		}),
	})

	conn, err := dial(t, server, cred, []string{transport.DefaultProtocol})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ex, err := conn.RoundTrip(ctx, wire.NewRequest("GET", "/"))
	require.NoError(t, err)
	defer ex.Close()

	assert.Equal(t, 200, ex.Response().Status)

	select {
	case err := <-resendErrs:
		assert.ErrorIs(t, err, transport.ErrResponseAlreadySent)
	case <-time.After(5 * time.Second):
		t.Fatal("handler never reported the second send result")
	}
}

func TestFinishIdempotent(t *testing.T) {
	finishErrs := make(chan error, 1)

	server, cred := startServer(t, transport.ServerConfig{
		Handler: transport.HandlerFunc(func(ex *transport.Exchange) {
			if err := ex.SendResponse(wire.NewResponse(200)); err != nil {
				return
			}
			if err := ex.Finish(); err != nil {
				finishErrs <- err
				return
			}
			finishErrs <- ex.Finish()
		}),
	})

	conn, err := dial(t, server, cred, []string{transport.DefaultProtocol})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ex, err := conn.RoundTrip(ctx, wire.NewRequest("GET", "/"))
	require.NoError(t, err)
	defer ex.Close()

	_, err = ex.ReadAllBody()
	require.NoError(t, err)

	select {
	case err := <-finishErrs:
		assert.ErrorIs(t, err, transport.ErrAlreadyFinished)
	case <-time.After(5 * time.Second):
		t.Fatal("handler never reported the second finish result")
	}
}

func TestExchangeFailureIsolation(t *testing.T) {
	server, cred := startServer(t, transport.ServerConfig{
		Handler: transport.HandlerFunc(func(ex *transport.Exchange) {
			if ex.Request().Target == "/broken" {
				// Produce nothing: the supervisor resets the stream.
				return
			}
			resp := wire.NewResponse(200)
			if err := ex.SendResponse(resp); err != nil {
				return
			}
			ex.Write([]byte("ok"))
			ex.Finish()
		}),
	})

	conn, err := dial(t, server, cred, []string{transport.DefaultProtocol})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The broken exchange fails.
	broken, err := conn.RoundTrip(ctx, wire.NewRequest("GET", "/broken"))
	if err == nil {
		_, err = broken.ReadAllBody()
		broken.Close()
	}
	require.Error(t, err)

	// The same connection still serves fresh exchanges.
	ex, err := conn.RoundTrip(ctx, wire.NewRequest("GET", "/ok"))
	require.NoError(t, err)
	defer ex.Close()

	body, err := ex.ReadAllBody()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestConnectionFaultFailsInFlightExchange(t *testing.T) {
	type fault struct {
		ex  *transport.Exchange
		err error
	}
	faults := make(chan fault, 1)

	server, cred := startServer(t, transport.ServerConfig{
		Handler: transport.HandlerFunc(func(ex *transport.Exchange) {
			if ex.Request().Target != "/stall" {
				resp := wire.NewResponse(200)
				if err := ex.SendResponse(resp); err != nil {
					return
				}
				ex.Write([]byte("ok"))
				ex.Finish()
				return
			}

			if err := ex.SendResponse(wire.NewResponse(200)); err != nil {
				return
			}
			// Keep the body open until the peer tears the connection
			// down underneath us.
			for {
				if _, err := ex.Write(make([]byte, 1024)); err != nil {
					select {
					case faults <- fault{ex: ex, err: err}:
					default:
					}
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}),
	})

	conn, err := dial(t, server, cred, []string{transport.DefaultProtocol})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ex, err := conn.RoundTrip(ctx, wire.NewRequest("GET", "/stall"))
	require.NoError(t, err)
	assert.Equal(t, 200, ex.Response().Status)

	// Make sure the server is mid-body before pulling the connection away.
	_, err = ex.ReadBody()
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	select {
	case f := <-faults:
		require.Error(t, f.err)
		assert.Equal(t, transport.StateFailed, f.ex.State())
	case <-time.After(10 * time.Second):
		t.Fatal("server exchange never observed the connection fault")
	}

	// The server keeps accepting fresh connections after the fault.
	conn2, err := dial(t, server, cred, []string{transport.DefaultProtocol})
	require.NoError(t, err)
	defer conn2.Close()

	ex2, err := conn2.RoundTrip(ctx, wire.NewRequest("GET", "/"))
	require.NoError(t, err)
	defer ex2.Close()

	body, err := ex2.ReadAllBody()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestInvalidRequestRejectedLocally(t *testing.T) {
	server, cred := startServer(t, transport.ServerConfig{
		Handler: transport.FixedResponseHandler(200, "text/plain", nil),
	})

	conn, err := dial(t, server, cred, []string{transport.DefaultProtocol})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// An invalid method never leaves the client.
	_, err = conn.RoundTrip(ctx, &wire.Request{Method: "", Target: "/"})
	require.Error(t, err)

	// The connection is still usable afterwards.
	ex, err := conn.RoundTrip(ctx, wire.NewRequest("GET", "/"))
	require.NoError(t, err)
	ex.Close()
}

func TestServerCallbacks(t *testing.T) {
	connected := make(chan string, 1)
	disconnected := make(chan string, 1)

	server, cred := startServer(t, transport.ServerConfig{
		Handler: transport.FixedResponseHandler(200, "text/plain", nil),
		OnConnect: func(conn *transport.ServerConn) {
			connected <- conn.ConnID()
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			disconnected <- conn.ConnID()
		},
	})

	conn, err := dial(t, server, cred, []string{transport.DefaultProtocol})
	require.NoError(t, err)

	var connID string
	select {
	case connID = <-connected:
		assert.NotEmpty(t, connID)
	case <-time.After(5 * time.Second):
		t.Fatal("OnConnect never fired")
	}

	assert.Equal(t, 1, server.ConnectionCount())

	require.NoError(t, conn.Close())

	select {
	case id := <-disconnected:
		assert.Equal(t, connID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("OnDisconnect never fired")
	}

	assert.Equal(t, 0, server.ConnectionCount())
}

func TestServerStopWithoutStart(t *testing.T) {
	cred, err := cert.GenerateDevCredential("localhost")
	require.NoError(t, err)

	server, err := transport.NewServer(transport.ServerConfig{
		Handshake: &transport.HandshakeConfig{
			Certificate: cred.TLSCertificate(),
			Protocols:   []string{transport.DefaultProtocol},
		},
		Handler: transport.FixedResponseHandler(200, "text/plain", nil),
	})
	require.NoError(t, err)
	require.NoError(t, server.Stop())
}

func TestNewServerValidation(t *testing.T) {
	cred, err := cert.GenerateDevCredential("localhost")
	require.NoError(t, err)

	tests := []struct {
		name   string
		config transport.ServerConfig
	}{
		{
			name: "missing handler",
			config: transport.ServerConfig{
				Handshake: &transport.HandshakeConfig{
					Certificate: cred.TLSCertificate(),
					Protocols:   []string{transport.DefaultProtocol},
				},
			},
		},
		{
			name: "missing certificate",
			config: transport.ServerConfig{
				Handshake: &transport.HandshakeConfig{
					Protocols: []string{transport.DefaultProtocol},
				},
				Handler: transport.FixedResponseHandler(200, "text/plain", nil),
			},
		},
		{
			name: "empty protocols",
			config: transport.ServerConfig{
				Handshake: &transport.HandshakeConfig{
					Certificate: cred.TLSCertificate(),
				},
				Handler: transport.FixedResponseHandler(200, "text/plain", nil),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transport.NewServer(tt.config)
			require.Error(t, err)
		})
	}
}

func TestClientConnectRefused(t *testing.T) {
	client, err := transport.NewClient(transport.ClientConfig{
		Handshake: &transport.HandshakeConfig{
			InsecureSkipVerify: true,
			Protocols:          []string{transport.DefaultProtocol},
		},
		ConnectTimeout: 2 * time.Second,
	})
	require.NoError(t, err)

	_, err = client.Connect(context.Background(), "127.0.0.1:1")
	require.Error(t, err)
	require.False(t, errors.Is(err, context.Canceled))
}
