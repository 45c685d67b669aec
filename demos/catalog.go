package demos

import (
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
)

// Demo identifiers.
const (
	TCPHandshakeID    = "tcp-handshake"
	IPPacketAnatomyID = "ip-packet-anatomy"
	DNSQueryID        = "dns-query"
)

// Entries returns the static demo registrations.
func Entries() []catalog.Entry {
	return []catalog.Entry{
		tcpHandshakeEntry(),
		ipPacketAnatomyEntry(),
		dnsQueryEntry(),
	}
}

// NewCatalog builds the production catalog.
func NewCatalog() (*catalog.Catalog, error) {
	return catalog.New(Entries()...)
}
