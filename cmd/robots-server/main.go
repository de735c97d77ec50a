package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amalg/go-robots/internal/discovery"
	"github.com/amalg/go-robots/internal/server"
)

func main() {
	bombTimer := flag.Uint("bomb-timer", 0, "turns until a bomb explodes (u16, required)")
	playersCount := flag.Uint("players-count", 0, "players needed to start a game (u8, required)")
	turnDuration := flag.Uint64("turn-duration", 0, "milliseconds between turns (required)")
	explosionRadius := flag.Uint("explosion-radius", 0, "explosion reach in cells (u16)")
	initialBlocks := flag.Uint("initial-blocks", 0, "blocks rolled at game start (u16)")
	gameLength := flag.Uint("game-length", 0, "turns per game (u16, required)")
	serverName := flag.String("server-name", "", "server name, max 255 bytes (required)")
	port := flag.Uint("port", 0, "TCP port to listen on (required)")
	seed := flag.Uint("seed", 0, "RNG seed (default: current time)")
	sizeX := flag.Uint("size-x", 0, "grid width (u16, required)")
	sizeY := flag.Uint("size-y", 0, "grid height (u16, required)")
	announce := flag.Bool("announce", false, "advertise this server on the local network")
	flag.Parse()

	if *playersCount > 255 {
		fmt.Fprintln(os.Stderr, "players-count must fit in 8 bits")
		os.Exit(1)
	}
	if *serverName == "" {
		fmt.Fprintln(os.Stderr, "server-name is required")
		flag.Usage()
		os.Exit(1)
	}

	seedValue := uint32(time.Now().Unix())
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedValue = uint32(*seed)
		}
	})

	cfg := server.Config{
		ServerName:      *serverName,
		Port:            uint16(*port),
		BombTimer:       uint16(*bombTimer),
		PlayersCount:    uint8(*playersCount),
		TurnDuration:    time.Duration(*turnDuration) * time.Millisecond,
		ExplosionRadius: uint16(*explosionRadius),
		InitialBlocks:   uint16(*initialBlocks),
		GameLength:      uint16(*gameLength),
		SizeX:           uint16(*sizeX),
		SizeY:           uint16(*sizeY),
		Seed:            seedValue,
	}

	srv, err := server.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if *announce {
		gameAddr := fmt.Sprintf("%s:%d", localIP(), *port)
		an := discovery.NewAnnouncer(func() discovery.ServerInfo {
			return discovery.ServerInfo{
				Hello:         srv.Hello(),
				PlayersJoined: srv.PlayersJoined(),
				GameAddr:      gameAddr,
			}
		})
		an.Start()
		defer an.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		srv.Stop()
		os.Exit(0)
	}()

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		os.Exit(1)
	}
}

// localIP picks an address other players can reach, for the discovery
// advertisement.
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return "127.0.0.1"
}
