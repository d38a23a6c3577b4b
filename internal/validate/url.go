package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrDisallowedDomain = errors.New("URL domain not allowed")
	ErrSSRFRisk         = errors.New("URL poses SSRF risk")
)

// URLConstraints bounds what an advertiser-supplied URL may point at.
type URLConstraints struct {
	AllowedSchemes []string
	AllowedDomains []string // empty allows any public domain
	BlockPrivate   bool     // reject hosts resolving to private or local addresses
	MaxLength      int      // 0 means no limit
}

// DefaultURLConstraints is the strict profile: HTTPS only, no private
// addresses. Click-through destinations use this.
var DefaultURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

// PublicWebURLConstraints additionally admits plain HTTP, for creative
// media hosted on legacy CDNs.
var PublicWebURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

// URL validates urlStr against the constraints and returns the trimmed
// string on success.
func URL(urlStr string, constraints URLConstraints) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return "", ErrEmpty
	}
	if constraints.MaxLength > 0 && len(urlStr) > constraints.MaxLength {
		return "", fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, constraints.MaxLength)
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if len(constraints.AllowedSchemes) > 0 && !slices.Contains(constraints.AllowedSchemes, parsed.Scheme) {
		return "", fmt.Errorf("%w: got %q, allowed: %v", ErrDisallowedScheme, parsed.Scheme, constraints.AllowedSchemes)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}

	if len(constraints.AllowedDomains) > 0 && !domainAllowed(hostname, constraints.AllowedDomains) {
		return "", fmt.Errorf("%w: %q not in allowlist", ErrDisallowedDomain, hostname)
	}

	if constraints.BlockPrivate {
		if err := checkSSRF(hostname); err != nil {
			return "", err
		}
	}

	return urlStr, nil
}

// domainAllowed matches the domain itself and any subdomain of it.
func domainAllowed(hostname string, domains []string) bool {
	for _, domain := range domains {
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			return true
		}
	}
	return false
}

// checkSSRF rejects hostnames that resolve into private or local address
// space. Unresolvable hostnames pass: a creative pointing at a dead domain
// fails at fetch time, not here, and transient DNS trouble must not reject
// legitimate campaigns.
func checkSSRF(hostname string) error {
	lower := strings.ToLower(hostname)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || lower == "localhost.localdomain" {
		return fmt.Errorf("%w: localhost not allowed", ErrSSRFRisk)
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: private IP address %s", ErrSSRFRisk, ip.String())
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// TargetURL validates a creative's click-through destination.
func TargetURL(urlStr string) (string, error) {
	return URL(urlStr, DefaultURLConstraints)
}

// MediaURL validates a creative's image URL.
func MediaURL(urlStr string) (string, error) {
	return URL(urlStr, PublicWebURLConstraints)
}
