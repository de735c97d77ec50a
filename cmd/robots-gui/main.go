package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amalg/go-robots/internal/ui"
)

func main() {
	port := flag.Uint("port", 0, "UDP port to receive draw messages on (required)")
	clientEndpoint := flag.String("client-endpoint", "", "client UDP host:port for input messages (required)")
	logFile := flag.String("log", "", "log file path (default: discard logs)")
	flag.Parse()

	if *clientEndpoint == "" || *port == 0 {
		flag.Usage()
		os.Exit(1)
	}

	// Redirect log output IMMEDIATELY — any stderr output would corrupt
	// Bubbletea's terminal rendering.
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(io.Discard)
	}

	clientAddr, err := net.ResolveUDPAddr("udp", *clientEndpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid client endpoint: %v\n", err)
		os.Exit(1)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(*port)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind UDP port %d: %v\n", *port, err)
		os.Exit(1)
	}
	defer conn.Close()

	model := ui.NewModel(conn, clientAddr)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running GUI: %v\n", err)
		os.Exit(1)
	}
}
