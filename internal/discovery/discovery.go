package discovery

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/amalg/go-robots/internal/protocol"
)

const (
	// BroadcastPort is the UDP port advertisements go to.
	BroadcastPort = 9998
	// announceInterval is how often a server re-advertises itself.
	announceInterval = time.Second
)

// ServerInfo is one server advertisement: the world configuration the
// server greets every connection with, the current lobby occupancy, and
// the TCP endpoint to connect to. Discovery sits next to the game
// protocol — it only tells clients where Hello will come from and what
// it will say.
type ServerInfo struct {
	Hello         protocol.Hello `json:"hello"`
	PlayersJoined int            `json:"players_joined"`
	GameAddr      string         `json:"game_addr"`
}

// valid filters out datagrams that parsed as JSON but describe no world a
// client could join.
func (info ServerInfo) valid() bool {
	return info.GameAddr != "" && info.Hello.SizeX > 0 && info.Hello.SizeY > 0 &&
		info.Hello.PlayersCount > 0
}

// --- Announcer ---

// Announcer periodically broadcasts a server advertisement. The snapshot
// callback is polled before every send, so occupancy tracks the live
// lobby without anyone pushing updates in.
type Announcer struct {
	snapshot func() ServerInfo
	done     chan struct{}
}

// NewAnnouncer creates an announcer that advertises whatever snapshot
// returns.
func NewAnnouncer(snapshot func() ServerInfo) *Announcer {
	return &Announcer{
		snapshot: snapshot,
		done:     make(chan struct{}),
	}
}

// Start begins broadcasting.
func (a *Announcer) Start() {
	go a.run()
}

// Stop stops the announcer.
func (a *Announcer) Stop() {
	select {
	case <-a.done:
	default:
		close(a.done)
	}
}

func (a *Announcer) run() {
	// ListenPacket rather than DialUDP: dialing 255.255.255.255 silently
	// drops sends on Linux without SO_BROADCAST.
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		log.Printf("[DISCOVERY] broadcast socket: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()

	for {
		a.announce(conn)
		select {
		case <-a.done:
			return
		case <-ticker.C:
		}
	}
}

func (a *Announcer) announce(conn net.PacketConn) {
	data, err := json.Marshal(a.snapshot())
	if err != nil {
		return
	}
	for _, dst := range broadcastAddrs() {
		conn.WriteTo(data, dst)
	}
}

// broadcastAddrs lists every destination an advertisement should reach:
// the loopback (same-machine browsing works even where the firewall eats
// LAN broadcast), the global broadcast address, and each interface's own
// broadcast address as a fallback.
func broadcastAddrs() []*net.UDPAddr {
	dsts := []*net.UDPAddr{
		{IP: net.IPv4(127, 0, 0, 1), Port: BroadcastPort},
		{IP: net.IPv4bcast, Port: BroadcastPort},
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return dsts
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagBroadcast == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			ip4 := ipnet.IP.To4()
			bcast := make(net.IP, len(ip4))
			for i := range bcast {
				bcast[i] = ip4[i] | ^ipnet.Mask[i]
			}
			dsts = append(dsts, &net.UDPAddr{IP: bcast, Port: BroadcastPort})
		}
	}
	return dsts
}

// --- Browse ---

// Browse collects advertisements for the given duration and returns one
// entry per server, sorted by name then address, so callers can print a
// stable list or just connect to the first hit.
func Browse(wait time.Duration) ([]ServerInfo, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: BroadcastPort})
	if err != nil {
		return nil, fmt.Errorf("listen on discovery port %d: %w (is another browser running?)", BroadcastPort, err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(wait))

	// Servers re-announce every second, so the same GameAddr shows up
	// repeatedly; the newest advertisement wins.
	seen := make(map[string]ServerInfo)
	buf := make([]byte, 4096)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			// Deadline reached (or the socket died): report what we have.
			break
		}
		var info ServerInfo
		if err := json.Unmarshal(buf[:n], &info); err != nil || !info.valid() {
			continue
		}
		seen[info.GameAddr] = info
	}

	servers := make([]ServerInfo, 0, len(seen))
	for _, info := range seen {
		servers = append(servers, info)
	}
	slices.SortFunc(servers, func(a, b ServerInfo) int {
		if c := strings.Compare(a.Hello.ServerName, b.Hello.ServerName); c != 0 {
			return c
		}
		return strings.Compare(a.GameAddr, b.GameAddr)
	})
	return servers, nil
}
