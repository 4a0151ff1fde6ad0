// Command hquic-log views and analyzes protocol log files.
//
// Log files are created by running hquic-server or hquic-client with
// the -protocol-log flag.
//
// Usage:
//
//	hquic-log <command> [flags] <file.hqlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	hquic-log view server.hqlog
//
//	# View only wire-layer events for one connection
//	hquic-log view -layer wire -conn-id abc12345 server.hqlog
//
//	# Show statistics
//	hquic-log stats server.hqlog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hquic-project/hquic-go/pkg/log"
)

const usage = `hquic-log - protocol log analyzer

Usage:
  hquic-log <command> [flags] <file.hqlog>

Commands:
  view     View log file in human-readable format
  stats    Show statistics about the log file

Use "hquic-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "view":
		err = runView(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", cmd, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hquic-log %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func runView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	connID := fs.String("conn-id", "", "Filter by connection ID (exact match)")
	layerName := fs.String("layer", "", "Filter by layer: transport, wire, exchange")
	directionName := fs.String("direction", "", "Filter by direction: in, out")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one log file, got %d", fs.NArg())
	}

	filter := log.Filter{ConnectionID: *connID}
	if *layerName != "" {
		layer, err := parseLayer(*layerName)
		if err != nil {
			return err
		}
		filter.Layer = &layer
	}
	if *directionName != "" {
		direction, err := parseDirection(*directionName)
		if err != nil {
			return err
		}
		filter.Direction = &direction
	}

	reader, err := log.NewFilteredReader(fs.Arg(0), filter)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(formatEvent(event))
	}
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one log file, got %d", fs.NArg())
	}

	reader, err := log.NewReader(fs.Arg(0))
	if err != nil {
		return err
	}
	defer reader.Close()

	var (
		total       int
		byLayer     = map[log.Layer]int{}
		byCategory  = map[log.Category]int{}
		connections = map[string]struct{}{}
		errors      int
	)

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		total++
		byLayer[event.Layer]++
		byCategory[event.Category]++
		connections[event.ConnectionID] = struct{}{}
		if event.Error != nil {
			errors++
		}
	}

	fmt.Printf("Events:      %d\n", total)
	fmt.Printf("Connections: %d\n", len(connections))
	fmt.Printf("Errors:      %d\n", errors)
	fmt.Println("By layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerExchange} {
		if n := byLayer[layer]; n > 0 {
			fmt.Printf("  %-10s %d\n", layer, n)
		}
	}
	fmt.Println("By category:")
	for _, category := range []log.Category{log.CategoryMessage, log.CategoryHandshake, log.CategoryState, log.CategoryError} {
		if n := byCategory[category]; n > 0 {
			fmt.Printf("  %-10s %d\n", category, n)
		}
	}
	return nil
}

func parseLayer(name string) (log.Layer, error) {
	switch strings.ToLower(name) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "exchange":
		return log.LayerExchange, nil
	default:
		return 0, fmt.Errorf("unknown layer: %s", name)
	}
}

func parseDirection(name string) (log.Direction, error) {
	switch strings.ToLower(name) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("unknown direction: %s", name)
	}
}

// formatEvent renders one event as a single line.
func formatEvent(event log.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %-9s %-3s %-9s conn=%s",
		event.Timestamp.Format("15:04:05.000000"),
		event.Layer,
		event.Direction,
		event.Category,
		shortID(event.ConnectionID))

	if event.StreamID != nil {
		fmt.Fprintf(&b, " stream=%d", *event.StreamID)
	}

	switch {
	case event.Handshake != nil:
		fmt.Fprintf(&b, " protocol=%s", event.Handshake.Protocol)
		if event.Handshake.ServerName != "" {
			fmt.Fprintf(&b, " server-name=%s", event.Handshake.ServerName)
		}
	case event.Frame != nil:
		fmt.Fprintf(&b, " frame=0x%x size=%d", event.Frame.Type, event.Frame.Size)
	case event.Exchange != nil:
		ex := event.Exchange
		fmt.Fprintf(&b, " %s", ex.Type)
		if ex.Type == log.MessageTypeRequest {
			fmt.Fprintf(&b, " %s %s", ex.Method, ex.Target)
		} else if ex.Status != nil {
			fmt.Fprintf(&b, " status=%d", *ex.Status)
		}
		if ex.ProcessingTime != nil {
			fmt.Fprintf(&b, " took=%s", *ex.ProcessingTime)
		}
	case event.StateChange != nil:
		sc := event.StateChange
		fmt.Fprintf(&b, " %s %s->%s", sc.Entity, sc.OldState, sc.NewState)
		if sc.Reason != "" {
			fmt.Fprintf(&b, " (%s)", sc.Reason)
		}
	case event.Error != nil:
		fmt.Fprintf(&b, " error=%q context=%s", event.Error.Message, event.Error.Context)
	}

	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
