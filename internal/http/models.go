package http

import (
	"net/netip"
	"time"

	"github.com/Flarenzy/rirblocks/internal/domain"
)

// CountryResponse summarises the stored blocks of one country.
type CountryResponse struct {
	Country     string    `json:"country" example:"JP"`
	IPv4Count   int       `json:"ipv4_count" example:"3120"`
	IPv6Count   int       `json:"ipv6_count" example:"1854"`
	RunID       string    `json:"run_id,omitempty" example:"0b6c2f5e-8a61-4f0e-9b36-3a3f7c1d2e11"`
	GeneratedAt time.Time `json:"generated_at" example:"2024-05-10T15:04:05Z"`
}

// BlocksResponse is the canonical block list of one country and family.
type BlocksResponse struct {
	Country string   `json:"country" example:"JP"`
	Family  string   `json:"family" example:"ipv4"`
	Count   int      `json:"count" example:"2"`
	Blocks  []string `json:"blocks" example:"1.0.16.0/20,1.0.64.0/18"`
}

// LookupResponse lists the countries an address is allocated to.
type LookupResponse struct {
	IP        string   `json:"ip" example:"1.0.16.1"`
	Countries []string `json:"countries" example:"JP"`
}

// ErrorResponse is a simple envelope for error messages.
type ErrorResponse struct {
	Error string `json:"error" example:"country not found"`
}

func countryToResponse(s domain.CountrySummary) CountryResponse {
	return CountryResponse{
		Country:     s.Country,
		IPv4Count:   s.IPv4Count,
		IPv6Count:   s.IPv6Count,
		RunID:       s.RunID,
		GeneratedAt: s.GeneratedAt,
	}
}

func countriesToResponse(summaries []domain.CountrySummary) []CountryResponse {
	out := make([]CountryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, countryToResponse(s))
	}
	return out
}

func blocksToResponse(list domain.BlockList) BlocksResponse {
	return BlocksResponse{
		Country: list.Country,
		Family:  list.Family.String(),
		Count:   len(list.Blocks),
		Blocks:  prefixStrings(list.Blocks),
	}
}

func lookupToResponse(res domain.LookupResult) LookupResponse {
	return LookupResponse{
		IP:        res.Addr.String(),
		Countries: res.Countries,
	}
}

func prefixStrings(prefixes []netip.Prefix) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, p.String())
	}
	return out
}
