// Package cidr converts IPv4 address ranges into CIDR blocks and keeps
// blocks in canonical order.
package cidr

import (
	"errors"
	"math/bits"
	"net/netip"

	"github.com/Flarenzy/rirblocks/internal/domain"
)

const ipv4Space = uint64(1) << 32

// Decompose returns the minimal ordered list of aligned blocks covering the
// count addresses starting at start. A zero count yields no blocks.
func Decompose(start uint32, count uint64) ([]netip.Prefix, error) {
	if count > ipv4Space-uint64(start) {
		return nil, &domain.OverflowError{Start: start, Count: count}
	}
	if count == 0 {
		return nil, nil
	}

	cur := uint64(start)
	end := cur + count - 1

	var out []netip.Prefix
	for cur <= end {
		exp := min(alignExp(cur), FloorLog2(end-cur+1))
		out = append(out, netip.PrefixFrom(addrFrom32(uint32(cur)), 32-int(exp)))
		cur += uint64(1) << exp
	}
	return out, nil
}

// DecomposeAddr is Decompose for an IPv4 netip.Addr.
func DecomposeAddr(start netip.Addr, count uint64) ([]netip.Prefix, error) {
	if !start.Is4() {
		return nil, &domain.FormatError{
			Field: "start",
			Value: start.String(),
			Err:   errors.New("not an IPv4 address"),
		}
	}
	return Decompose(To32(start), count)
}

// FloorLog2 returns the exponent of the largest power of two not above n.
// FloorLog2(0) is 0.
func FloorLog2(n uint64) uint {
	if n == 0 {
		return 0
	}
	return uint(bits.Len64(n) - 1)
}

// alignExp is the largest block exponent that can start at cur.
func alignExp(cur uint64) uint {
	if cur == 0 {
		return 32
	}
	return uint(bits.TrailingZeros64(cur))
}

// To32 returns the big-endian integer value of an IPv4 address.
func To32(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func addrFrom32(v uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}
