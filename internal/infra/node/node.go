package node

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Node describes the running process. The id is random per process so two
// load generator replicas never share a Kafka client id.
type Node struct {
	ID         string
	IPAddress  string
	Version    string
	CommitHash string
}

var _ slog.LogValuer = &Node{}

// LogValue groups the node fields so the startup log carries them as one attribute.
func (n *Node) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", n.ID),
		slog.String("ip_address", n.IPAddress),
		slog.String("version", n.Version),
		slog.String("commit_hash", n.CommitHash),
	)
}

// Set at build time with -ldflags "-X".
var Version = "development"
var CommitHash = "unknown"

var (
	nodeID     string
	nodeIDOnce sync.Once
	nodeIP     string
	nodeIPOnce sync.Once
)

func GetNodeInfo() *Node {
	return &Node{
		ID:         getNodeID(),
		IPAddress:  getNodeIPAddress(),
		Version:    Version,
		CommitHash: CommitHash,
	}
}

// ClientID returns "<role>-<first uuid block>[-<suffix>]", stable for the
// lifetime of the process.
func ClientID(role string, suffix string) string {
	short, _, _ := strings.Cut(getNodeID(), "-")
	if suffix == "" {
		return fmt.Sprintf("%s-%s", role, short)
	}
	return fmt.Sprintf("%s-%s-%s", role, short, suffix)
}

func getNodeID() string {
	nodeIDOnce.Do(func() {
		nodeID = uuid.New().String()
	})
	return nodeID
}

func getNodeIPAddress() string {
	nodeIPOnce.Do(func() {
		nodeIP = outboundIPAddress()
	})
	return nodeIP
}

// outboundIPAddress picks the local address of the default route. No packet
// is sent for a UDP dial.
func outboundIPAddress() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
