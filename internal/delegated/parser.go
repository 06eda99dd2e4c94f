// Package delegated parses RIR delegated-extended statistics files.
//
// Each record line has the form
//
//	registry|cc|type|start|value|date|status[|opaque-id[|extensions...]]
//
// For ipv4 records value is a number of addresses, for ipv6 records it is a
// prefix length.
package delegated

import (
	"bufio"
	"errors"
	"fmt"
	"iter"
	"net/netip"
	"strconv"
	"strings"

	"github.com/Flarenzy/rirblocks/internal/domain"
)

const (
	fieldRegistry = iota
	fieldCountry
	fieldType
	fieldStart
	fieldValue
	fieldDate
	fieldStatus

	minFields = fieldValue + 1

	maxLineBytes = 1 << 20
)

type ReservedMatch uint8

const (
	// ReservedMatchLine skips any line containing "reserved".
	ReservedMatchLine ReservedMatch = iota
	// ReservedMatchStatus skips only records whose status field is "reserved".
	ReservedMatchStatus
)

func ParseReservedMatch(s string) (ReservedMatch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "line":
		return ReservedMatchLine, nil
	case "status":
		return ReservedMatchStatus, nil
	default:
		return 0, fmt.Errorf("%w: reserved match %q", domain.ErrInvalidInput, s)
	}
}

func (m ReservedMatch) String() string {
	if m == ReservedMatchStatus {
		return "status"
	}
	return "line"
}

// Parser is stateless and safe for concurrent use.
type Parser struct {
	Reserved ReservedMatch
}

// ParseLine parses one line for the given country. It returns ok=false with a
// nil error and a zero record for lines that are skipped: comments, summaries,
// reserved entries, short lines, other countries and non-IP record types.
func (p Parser) ParseLine(line, country string) (domain.AllocationRecord, bool, error) {
	if strings.HasPrefix(line, "#") || strings.Contains(line, "*") {
		return domain.AllocationRecord{}, false, nil
	}
	if p.Reserved == ReservedMatchLine && strings.Contains(line, "reserved") {
		return domain.AllocationRecord{}, false, nil
	}

	fields := strings.Split(line, "|")
	if len(fields) < minFields || fields[fieldCountry] != country {
		return domain.AllocationRecord{}, false, nil
	}
	if p.Reserved == ReservedMatchStatus && len(fields) > fieldStatus && fields[fieldStatus] == "reserved" {
		return domain.AllocationRecord{}, false, nil
	}

	var (
		rec domain.AllocationRecord
		err error
	)
	switch fields[fieldType] {
	case "ipv4":
		err = parseIPv4(&rec, fields[fieldStart], fields[fieldValue])
	case "ipv6":
		err = parseIPv6(&rec, fields[fieldStart], fields[fieldValue])
	default:
		return domain.AllocationRecord{}, false, nil
	}
	if err != nil {
		return domain.AllocationRecord{}, false, err
	}

	rec.Registry = fields[fieldRegistry]
	rec.Country = fields[fieldCountry]
	if len(fields) > fieldDate {
		rec.Date = fields[fieldDate]
	}
	if len(fields) > fieldStatus {
		rec.Status = fields[fieldStatus]
	}
	return rec, true, nil
}

func parseIPv4(rec *domain.AllocationRecord, start, value string) error {
	addr, err := netip.ParseAddr(start)
	if err != nil {
		return &domain.FormatError{Field: "start", Value: start, Err: err}
	}
	if !addr.Is4() {
		return &domain.FormatError{Field: "start", Value: start, Err: errors.New("not an IPv4 address")}
	}
	count, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return &domain.FormatError{Field: "value", Value: value, Err: err}
	}

	rec.Family = domain.FamilyIPv4
	rec.Start = addr
	rec.Value = count
	return nil
}

func parseIPv6(rec *domain.AllocationRecord, start, value string) error {
	addr, err := netip.ParseAddr(start)
	if err != nil {
		return &domain.FormatError{Field: "start", Value: start, Err: err}
	}
	bits, err := strconv.ParseUint(value, 10, 8)
	if err != nil {
		return &domain.FormatError{Field: "value", Value: value, Err: err}
	}
	cidr := start + "/" + value
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return &domain.FormatError{Field: "start/value", Value: cidr, Err: err}
	}
	if !prefix.Addr().Is6() {
		return &domain.FormatError{Field: "start/value", Value: cidr, Err: errors.New("not an IPv6 network")}
	}

	rec.Family = domain.FamilyIPv6
	rec.Start = addr
	rec.Value = bits
	return nil
}

// Records scans text and yields every record matching country, or the
// FormatError of each malformed line. A read failure is yielded last.
func (p Parser) Records(text, country string) iter.Seq2[domain.AllocationRecord, error] {
	return func(yield func(domain.AllocationRecord, error) bool) {
		scanner := bufio.NewScanner(strings.NewReader(text))
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		lineNo := 0
		for scanner.Scan() {
			lineNo++
			rec, ok, err := p.ParseLine(scanner.Text(), country)
			if err != nil {
				var formatErr *domain.FormatError
				if errors.As(err, &formatErr) {
					formatErr.Line = lineNo
				}
				if !yield(domain.AllocationRecord{}, err) {
					return
				}
				continue
			}
			if ok && !yield(rec, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(domain.AllocationRecord{}, fmt.Errorf("scan after line %d: %w", lineNo, err))
		}
	}
}
