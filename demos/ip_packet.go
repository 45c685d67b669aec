package demos

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
)

const maxPayloadLen = 1400

var ipProtocols = map[string]int{
	"icmp": 1,
	"tcp":  6,
	"udp":  17,
}

// IPPacketParams are the inputs of the ip-packet-anatomy demo.
type IPPacketParams struct {
	SourceIP       string `json:"source_ip" jsonschema:"description=Source IPv4 address"`
	DestinationIP  string `json:"destination_ip" jsonschema:"description=Destination IPv4 address"`
	TTL            int    `json:"ttl,omitempty" jsonschema:"minimum=1,maximum=255,default=64"`
	Protocol       string `json:"protocol,omitempty" jsonschema:"enum=tcp,enum=udp,enum=icmp,default=tcp"`
	Payload        string `json:"payload,omitempty" jsonschema:"maxLength=1400"`
	Identification int    `json:"identification,omitempty" jsonschema:"minimum=0,maximum=65535"`
	DontFragment   bool   `json:"dont_fragment,omitempty"`
}

// ApplyDefaults implements catalog.Defaulter.
func (p *IPPacketParams) ApplyDefaults() {
	p.TTL = 64
	p.Protocol = "tcp"
}

// Validate implements catalog.Params.
func (p *IPPacketParams) Validate() error {
	if a, err := netip.ParseAddr(p.SourceIP); err != nil || !a.Is4() {
		return catalog.Invalid("source_ip", "invalid IPv4 address: %q", p.SourceIP)
	}
	if a, err := netip.ParseAddr(p.DestinationIP); err != nil || !a.Is4() {
		return catalog.Invalid("destination_ip", "invalid IPv4 address: %q", p.DestinationIP)
	}
	if p.TTL < 1 || p.TTL > 255 {
		return catalog.Invalid("ttl", "must be between 1 and 255, got: %d", p.TTL)
	}
	if _, ok := ipProtocols[p.Protocol]; !ok {
		return catalog.Invalid("protocol", "must be one of tcp, udp, icmp, got: %q", p.Protocol)
	}
	if len(p.Payload) > maxPayloadLen {
		return catalog.Invalid("payload", "must be at most %d bytes, got: %d", maxPayloadLen, len(p.Payload))
	}
	if p.Identification < 0 || p.Identification > 0xffff {
		return catalog.Invalid("identification", "must be between 0 and 65535, got: %d", p.Identification)
	}
	return nil
}

func ipPacketAnatomyEntry() catalog.Entry {
	return catalog.Define(catalog.Info{
		ID:          IPPacketAnatomyID,
		Name:        "IPv4 Packet Anatomy",
		Description: "Build an IPv4 header field by field and compute its checksum.",
		Category:    "layer3",
		MaxRuntime:  10 * time.Second,
	}, runIPPacketAnatomy)
}

func runIPPacketAnatomy(_ context.Context, p *IPPacketParams) (map[string]any, error) {
	h := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + len(p.Payload),
		ID:       p.Identification,
		TTL:      p.TTL,
		Protocol: ipProtocols[p.Protocol],
		Src:      net.ParseIP(p.SourceIP),
		Dst:      net.ParseIP(p.DestinationIP),
	}
	if p.DontFragment {
		h.Flags = ipv4.DontFragment
	}

	b, err := marshalWire(h)
	if err != nil {
		return nil, err
	}
	h.Checksum = int(headerChecksum(b))
	binary.BigEndian.PutUint16(b[10:12], uint16(h.Checksum))

	packet := append(append([]byte(nil), b...), p.Payload...)
	return map[string]any{
		"header_hex":   hex.EncodeToString(b),
		"packet_hex":   hex.EncodeToString(packet),
		"header_bytes": len(b),
		"total_bytes":  len(packet),
		"fields": []map[string]any{
			{"name": "version", "bits": 4, "value": h.Version},
			{"name": "ihl", "bits": 4, "value": h.Len / 4, "description": "header length in 32-bit words"},
			{"name": "tos", "bits": 8, "value": h.TOS},
			{"name": "total_length", "bits": 16, "value": h.TotalLen},
			{"name": "identification", "bits": 16, "value": h.ID},
			{"name": "flags", "bits": 3, "value": int(h.Flags), "dont_fragment": p.DontFragment},
			{"name": "fragment_offset", "bits": 13, "value": h.FragOff},
			{"name": "ttl", "bits": 8, "value": h.TTL},
			{"name": "protocol", "bits": 8, "value": h.Protocol, "description": p.Protocol},
			{"name": "checksum", "bits": 16, "value": fmt.Sprintf("0x%04x", h.Checksum)},
			{"name": "source", "bits": 32, "value": p.SourceIP},
			{"name": "destination", "bits": 32, "value": p.DestinationIP},
		},
		"checksum_valid": headerChecksum(b) == 0,
	}, nil
}

// marshalWire encodes h in network byte order. ipv4.Header.Marshal uses the
// raw-socket layout of the host, which swaps two fields on some BSDs.
func marshalWire(h *ipv4.Header) ([]byte, error) {
	b, err := h.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal IPv4 header: %w", err)
	}
	binary.BigEndian.PutUint16(b[2:4], uint16(h.TotalLen))
	binary.BigEndian.PutUint16(b[6:8], uint16((h.FragOff&0x1fff)|int(h.Flags<<13)))
	return b, nil
}

// headerChecksum is the RFC 1071 ones' complement sum over b. It returns 0
// for a header that already carries a valid checksum.
func headerChecksum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
