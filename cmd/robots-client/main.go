package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/amalg/go-robots/internal/client"
	"github.com/amalg/go-robots/internal/discovery"
)

func main() {
	serverEndpoint := flag.String("server-endpoint", "", "server host:port (required unless -discover finds one)")
	guiEndpoint := flag.String("gui-endpoint", "", "GUI host:port (required)")
	playerName := flag.String("player-name", "", "player name, max 255 bytes (required)")
	port := flag.Uint("port", 0, "local UDP port for GUI messages (required)")
	discover := flag.Bool("discover", false, "browse the local network for servers")
	flag.Parse()

	if *discover {
		addr, ok := browseServers(*serverEndpoint == "")
		if *serverEndpoint == "" {
			if !ok {
				os.Exit(1)
			}
			*serverEndpoint = addr
		} else {
			// An explicit endpoint was given; browsing was informational.
			return
		}
	}

	if *serverEndpoint == "" || *guiEndpoint == "" || *playerName == "" {
		flag.Usage()
		os.Exit(1)
	}

	c, err := client.New(client.Config{
		ServerEndpoint: *serverEndpoint,
		GUIEndpoint:    *guiEndpoint,
		PlayerName:     *playerName,
		Port:           uint16(*port),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Client failed: %v\n", err)
		os.Exit(1)
	}
}

// browseServers prints whatever advertises itself within a few seconds.
// When picking is true it also returns the first server's endpoint so the
// caller can connect straight to it.
func browseServers(picking bool) (string, bool) {
	fmt.Println("Searching for servers...")
	servers, err := discovery.Browse(3 * time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
		os.Exit(1)
	}
	if len(servers) == 0 {
		fmt.Println("No servers found.")
		return "", false
	}

	for _, s := range servers {
		fmt.Printf("  %-20s %d/%d players  %dx%d grid, %d turns  %s\n",
			s.Hello.ServerName, s.PlayersJoined, s.Hello.PlayersCount,
			s.Hello.SizeX, s.Hello.SizeY, s.Hello.GameLength, s.GameAddr)
	}

	if !picking {
		return "", true
	}
	first := servers[0]
	fmt.Printf("Connecting to %q at %s...\n", first.Hello.ServerName, first.GameAddr)
	return first.GameAddr, true
}
