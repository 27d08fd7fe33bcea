package node

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Node identifies one running ingestor process.
type Node struct {
	ID         string
	Hostname   string
	IPAddress  string
	Version    string
	CommitHash string
}

// Set at build time with -ldflags "-X".
var Version = "development"
var CommitHash = "unknown"

var (
	current     Node
	currentOnce sync.Once
)

// GetNodeInfo returns the same Node for the whole process lifetime.
func GetNodeInfo() Node {
	currentOnce.Do(func() {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}

		current = Node{
			ID:         uuid.NewString(),
			Hostname:   hostname,
			IPAddress:  firstUnicastAddress(),
			Version:    Version,
			CommitHash: CommitHash,
		}
	})

	return current
}

// ClientID derives a broker client id that stays unique when several
// ingestors share the same configured prefix.
func (n Node) ClientID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, n.ID[:8])
}

func firstUnicastAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.To4() == nil {
			continue
		}
		return ipNet.IP.String()
	}

	return "127.0.0.1"
}
