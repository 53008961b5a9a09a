package detector

import (
	"fmt"
	"net"
	"time"
)

// DefaultDialTimeout bounds a single port probe.
const DefaultDialTimeout = time.Second

// PortDetector detects a service by attempting a TCP connection.
// It is used for services whose OS-level pid is unreliable because the
// launched process re-forks and detaches its long-lived descendant.
type PortDetector struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func (d PortDetector) Alive() (bool, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	addr := net.JoinHostPort(d.Host, fmt.Sprintf("%d", d.Port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false, nil
	}
	_ = conn.Close()
	return true, nil
}

func (d PortDetector) Describe() string { return fmt.Sprintf("port:%s:%d", d.Host, d.Port) }
