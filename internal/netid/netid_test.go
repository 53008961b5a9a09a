package netid

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeRunner(ip string, statusJSON string, fail bool) func(context.Context, string, ...string) ([]byte, error) {
	return func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if fail {
			return nil, errors.New("exit status 1")
		}
		switch args[0] {
		case "ip":
			return []byte(ip + "\n"), nil
		case "status":
			return []byte(statusJSON), nil
		}
		return nil, errors.New("unexpected args")
	}
}

func TestIPv4Trimmed(t *testing.T) {
	r := NewWithRunner(fakeRunner("100.64.0.7", "{}", false))
	assert.Equal(t, "100.64.0.7", r.IPv4())
}

func TestDNSNameStripsTrailingDot(t *testing.T) {
	r := NewWithRunner(fakeRunner("", `{"Self":{"DNSName":"mymac.example.ts.net."}}`, false))
	assert.Equal(t, "mymac.example.ts.net", r.DNSName())
}

func TestHostPrefersDNS(t *testing.T) {
	r := NewWithRunner(fakeRunner("100.64.0.7", `{"Self":{"DNSName":"mymac.example.ts.net."}}`, false))
	assert.Equal(t, "mymac.example.ts.net", r.Host())
}

func TestHostFallsBackToIP(t *testing.T) {
	r := NewWithRunner(fakeRunner("100.64.0.7", `{"Self":{"DNSName":""}}`, false))
	assert.Equal(t, "100.64.0.7", r.Host())
}

func TestHostEmptyWhenDisconnected(t *testing.T) {
	r := NewWithRunner(fakeRunner("", "", true))
	assert.Equal(t, "", r.Host())
}

func TestDNSNameBadJSON(t *testing.T) {
	r := NewWithRunner(fakeRunner("", "not-json", false))
	assert.Equal(t, "", r.DNSName())
}

func TestRequireIPv4(t *testing.T) {
	r := NewWithRunner(fakeRunner("100.64.0.7", "{}", false))
	ip, err := r.RequireIPv4()
	require.NoError(t, err)
	assert.Equal(t, "100.64.0.7", ip)

	r = NewWithRunner(fakeRunner("", "", true))
	_, err = r.RequireIPv4()
	require.ErrorIs(t, err, ErrNoAddress)
}
