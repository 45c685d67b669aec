package demos

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/dns/dnsmessage"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
)

var dnsRecordTypes = map[string]dnsmessage.Type{
	"A":     dnsmessage.TypeA,
	"AAAA":  dnsmessage.TypeAAAA,
	"MX":    dnsmessage.TypeMX,
	"TXT":   dnsmessage.TypeTXT,
	"NS":    dnsmessage.TypeNS,
	"CNAME": dnsmessage.TypeCNAME,
}

// DNSQueryParams are the inputs of the dns-query demo.
type DNSQueryParams struct {
	Domain           string `json:"domain" jsonschema:"description=Name to query,example=example.com"`
	RecordType       string `json:"record_type,omitempty" jsonschema:"enum=A,enum=AAAA,enum=MX,enum=TXT,enum=NS,enum=CNAME,default=A"`
	QueryID          int    `json:"query_id,omitempty" jsonschema:"minimum=0,maximum=65535"`
	RecursionDesired *bool  `json:"recursion_desired,omitempty" jsonschema:"default=true"`
}

// ApplyDefaults implements catalog.Defaulter.
func (p *DNSQueryParams) ApplyDefaults() {
	p.RecordType = "A"
}

// Validate implements catalog.Params.
func (p *DNSQueryParams) Validate() error {
	if err := checkDomain(p.Domain); err != nil {
		return catalog.Invalid("domain", "%s", err)
	}
	if _, ok := dnsRecordTypes[strings.ToUpper(p.RecordType)]; !ok {
		return catalog.Invalid("record_type", "unsupported record type: %q", p.RecordType)
	}
	if p.QueryID < 0 || p.QueryID > 0xffff {
		return catalog.Invalid("query_id", "must be between 0 and 65535, got: %d", p.QueryID)
	}
	return nil
}

func checkDomain(d string) error {
	name := strings.TrimSuffix(d, ".")
	if name == "" || len(name) > 253 {
		return fmt.Errorf("must be 1 to 253 characters")
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" || len(label) > 63 {
			return fmt.Errorf("invalid label in %q", d)
		}
		for _, r := range label {
			ok := r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			if !ok {
				return fmt.Errorf("invalid character %q in %q", r, d)
			}
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return fmt.Errorf("label %q must not start or end with a hyphen", label)
		}
	}
	return nil
}

func dnsQueryEntry() catalog.Entry {
	return catalog.Define(catalog.Info{
		ID:          DNSQueryID,
		Name:        "DNS Query Message",
		Description: "Assemble a DNS query in wire format and decode it back section by section.",
		Category:    "application",
		MaxRuntime:  10 * time.Second,
	}, runDNSQuery)
}

func runDNSQuery(_ context.Context, p *DNSQueryParams) (map[string]any, error) {
	fqdn := strings.TrimSuffix(p.Domain, ".") + "."
	name, err := dnsmessage.NewName(fqdn)
	if err != nil {
		return nil, fmt.Errorf("invalid domain: %w", err)
	}
	qtype := dnsRecordTypes[strings.ToUpper(p.RecordType)]
	rd := p.RecursionDesired == nil || *p.RecursionDesired

	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{ID: uint16(p.QueryID), RecursionDesired: rd})
	b.EnableCompression()
	if err := b.StartQuestions(); err != nil {
		return nil, fmt.Errorf("failed to start question section: %w", err)
	}
	if err := b.Question(dnsmessage.Question{Name: name, Type: qtype, Class: dnsmessage.ClassINET}); err != nil {
		return nil, fmt.Errorf("failed to add question: %w", err)
	}
	msg, err := b.Finish()
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	var parser dnsmessage.Parser
	hdr, err := parser.Start(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built message: %w", err)
	}
	questions, err := parser.AllQuestions()
	if err != nil {
		return nil, fmt.Errorf("failed to parse questions: %w", err)
	}

	decoded := make([]map[string]any, 0, len(questions))
	for _, q := range questions {
		decoded = append(decoded, map[string]any{
			"name":  q.Name.String(),
			"type":  strings.TrimPrefix(q.Type.String(), "Type"),
			"class": strings.TrimPrefix(q.Class.String(), "Class"),
		})
	}

	return map[string]any{
		"message_hex":   hex.EncodeToString(msg),
		"message_bytes": len(msg),
		"transport":     "udp/53",
		"header": map[string]any{
			"id":                  int(hdr.ID),
			"response":            hdr.Response,
			"opcode":              int(hdr.OpCode),
			"recursion_desired":   hdr.RecursionDesired,
			"recursion_available": hdr.RecursionAvailable,
			"rcode":               strings.TrimPrefix(hdr.RCode.String(), "RCode"),
		},
		"questions": decoded,
	}, nil
}
