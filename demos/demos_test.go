package demos

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog()
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	t.Run("TCPHandshakePolicy", func(t *testing.T) {
		e, err := c.Lookup(TCPHandshakeID)
		require.NoError(t, err)
		assert.True(t, e.RequiresNetwork)
		assert.True(t, e.RequiresElevated)
		assert.Equal(t, "NET_RAW", e.Capability)
		assert.Equal(t, 30*time.Second, e.MaxRuntime)
	})

	t.Run("PureDemosAreIsolated", func(t *testing.T) {
		for _, id := range []string{IPPacketAnatomyID, DNSQueryID} {
			e, err := c.Lookup(id)
			require.NoError(t, err)
			assert.False(t, e.RequiresNetwork, id)
			assert.False(t, e.RequiresElevated, id)
		}
	})
}

func TestTCPHandshakeValidation(t *testing.T) {
	c, err := NewCatalog()
	require.NoError(t, err)

	tests := []struct {
		name    string
		params  string
		wantErr bool
	}{
		{"Valid", `{"target_ip":"8.8.8.8","target_port":443}`, false},
		{"ValidWithSourcePort", `{"target_ip":"1.1.1.1","target_port":80,"timeout":3,"source_port":40000}`, false},
		{"Loopback", `{"target_ip":"127.0.0.1","target_port":80}`, true},
		{"PrivateTen", `{"target_ip":"10.1.2.3","target_port":80}`, true},
		{"PrivateOneSevenTwo", `{"target_ip":"172.20.0.1","target_port":80}`, true},
		{"PrivateOneNineTwo", `{"target_ip":"192.168.1.1","target_port":80}`, true},
		{"LinkLocal", `{"target_ip":"169.254.169.254","target_port":80}`, true},
		{"Multicast", `{"target_ip":"224.0.0.1","target_port":80}`, true},
		{"Broadcast", `{"target_ip":"255.255.255.255","target_port":80}`, true},
		{"ZeroNet", `{"target_ip":"0.1.2.3","target_port":80}`, true},
		{"IPv6", `{"target_ip":"2001:4860:4860::8888","target_port":80}`, true},
		{"Hostname", `{"target_ip":"example.com","target_port":80}`, true},
		{"PortZero", `{"target_ip":"8.8.8.8","target_port":0}`, true},
		{"TimeoutTooLong", `{"target_ip":"8.8.8.8","target_port":80,"timeout":31}`, true},
		{"PrivilegedSourcePort", `{"target_ip":"8.8.8.8","target_port":80,"source_port":80}`, true},
		{"UnknownField", `{"target_ip":"8.8.8.8","target_port":80,"flags":"S"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, params, err := c.Validate(TCPHandshakeID, json.RawMessage(tt.params))
			if tt.wantErr {
				assert.ErrorIs(t, err, job.ErrValidation)
				return
			}
			require.NoError(t, err)
			p, ok := params.(*TCPHandshakeParams)
			require.True(t, ok)
			assert.GreaterOrEqual(t, p.Timeout, 1)
		})
	}
}

func TestPerformHandshake(t *testing.T) {
	t.Run("Connected", func(t *testing.T) {
		ln, err := net.Listen("tcp4", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		go func() {
			conn, acceptErr := ln.Accept()
			if acceptErr == nil {
				conn.Close()
			}
		}()

		target := netip.MustParseAddrPort(ln.Addr().String())
		report, err := performHandshake(context.Background(), target, 0, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, true, report["connected"])
		steps, ok := report["steps"].([]map[string]any)
		require.True(t, ok)
		assert.Len(t, steps, 3)
		assert.Equal(t, "SYN-ACK", steps[1]["name"])
	})

	t.Run("Refused", func(t *testing.T) {
		ln, err := net.Listen("tcp4", "127.0.0.1:0")
		require.NoError(t, err)
		target := netip.MustParseAddrPort(ln.Addr().String())
		require.NoError(t, ln.Close())

		report, err := performHandshake(context.Background(), target, 0, 2*time.Second)
		require.Error(t, err)
		require.NotNil(t, report)
		assert.Equal(t, false, report["connected"])
		assert.Contains(t, report["reason"], "refused")
	})
}

func TestIPPacketAnatomy(t *testing.T) {
	c, err := NewCatalog()
	require.NoError(t, err)

	t.Run("KnownHeader", func(t *testing.T) {
		e, params, err := c.Validate(IPPacketAnatomyID, json.RawMessage(
			`{"source_ip":"192.168.0.1","destination_ip":"192.168.0.199","ttl":64,"protocol":"tcp","identification":28,"dont_fragment":true}`))
		require.NoError(t, err)

		out, err := e.Run(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, 20, out["header_bytes"])
		assert.Equal(t, true, out["checksum_valid"])

		b, err := hex.DecodeString(out["header_hex"].(string))
		require.NoError(t, err)
		assert.Equal(t, byte(0x45), b[0])
		assert.Equal(t, []byte{0x00, 0x14}, b[2:4])
		assert.Equal(t, []byte{0x40, 0x00}, b[6:8])
		assert.Equal(t, byte(64), b[8])
		assert.Equal(t, byte(6), b[9])
	})

	t.Run("PayloadExtendsTotalLength", func(t *testing.T) {
		e, params, err := c.Validate(IPPacketAnatomyID, json.RawMessage(
			`{"source_ip":"1.2.3.4","destination_ip":"5.6.7.8","protocol":"udp","payload":"hello"}`))
		require.NoError(t, err)
		out, err := e.Run(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, 25, out["total_bytes"])
	})

	t.Run("Invalid", func(t *testing.T) {
		for name, params := range map[string]string{
			"BadSource":   `{"source_ip":"nope","destination_ip":"5.6.7.8"}`,
			"BadTTL":      `{"source_ip":"1.2.3.4","destination_ip":"5.6.7.8","ttl":0}`,
			"BadProtocol": `{"source_ip":"1.2.3.4","destination_ip":"5.6.7.8","protocol":"sctp"}`,
		} {
			t.Run(name, func(t *testing.T) {
				_, _, err := c.Validate(IPPacketAnatomyID, json.RawMessage(params))
				assert.ErrorIs(t, err, job.ErrValidation)
			})
		}
	})
}

func TestHeaderChecksum(t *testing.T) {
	// Example header from RFC 1071 style walkthroughs.
	b, err := hex.DecodeString("450000730000400040110000c0a80001c0a800c7")
	require.NoError(t, err)
	assert.Equal(t, uint16(0xb861), headerChecksum(b))
}

func TestDNSQuery(t *testing.T) {
	c, err := NewCatalog()
	require.NoError(t, err)

	t.Run("BuildsAndDecodes", func(t *testing.T) {
		e, params, err := c.Validate(DNSQueryID, json.RawMessage(`{"domain":"example.com","record_type":"mx","query_id":4660}`))
		require.NoError(t, err)
		out, err := e.Run(context.Background(), params)
		require.NoError(t, err)

		msg, err := hex.DecodeString(out["message_hex"].(string))
		require.NoError(t, err)
		assert.Equal(t, []byte{0x12, 0x34}, msg[0:2])
		assert.Equal(t, len(msg), out["message_bytes"])

		header := out["header"].(map[string]any)
		assert.Equal(t, true, header["recursion_desired"])
		questions := out["questions"].([]map[string]any)
		require.Len(t, questions, 1)
		assert.Equal(t, "example.com.", questions[0]["name"])
		assert.Equal(t, "MX", questions[0]["type"])
	})

	t.Run("RecursionDisabled", func(t *testing.T) {
		e, params, err := c.Validate(DNSQueryID, json.RawMessage(`{"domain":"example.org","recursion_desired":false}`))
		require.NoError(t, err)
		out, err := e.Run(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, false, out["header"].(map[string]any)["recursion_desired"])
	})

	t.Run("Invalid", func(t *testing.T) {
		for name, params := range map[string]string{
			"Empty":       `{"domain":""}`,
			"BadChar":     `{"domain":"exa mple.com"}`,
			"Hyphen":      `{"domain":"-bad.com"}`,
			"UnknownType": `{"domain":"example.com","record_type":"SRV"}`,
		} {
			t.Run(name, func(t *testing.T) {
				_, _, err := c.Validate(DNSQueryID, json.RawMessage(params))
				assert.ErrorIs(t, err, job.ErrValidation)
			})
		}
	})
}
