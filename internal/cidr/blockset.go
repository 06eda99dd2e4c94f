package cidr

import (
	"iter"
	"net/netip"

	"github.com/anacrolix/multiless"
	"github.com/google/btree"
)

const blockSetDegree = 32

// Compare orders prefixes by address family (IPv4 first), then address as
// an unsigned integer, then prefix length.
func Compare(a, b netip.Prefix) int {
	return multiless.New().Int(
		familyRank(a), familyRank(b),
	).Cmp(
		a.Addr().Compare(b.Addr()),
	).Int(
		a.Bits(), b.Bits(),
	).OrderingInt()
}

func familyRank(p netip.Prefix) int {
	if p.Addr().Is4() {
		return 4
	}
	return 6
}

// BlockSet is an ordered set of canonical prefixes. It is not safe for
// concurrent use.
type BlockSet struct {
	tree *btree.BTreeG[netip.Prefix]
}

func NewBlockSet() *BlockSet {
	return &BlockSet{
		tree: btree.NewG(blockSetDegree, func(a, b netip.Prefix) bool {
			return Compare(a, b) < 0
		}),
	}
}

// Insert adds p in canonical form. It reports whether the set grew; invalid
// prefixes and duplicates leave the set unchanged.
func (s *BlockSet) Insert(p netip.Prefix) bool {
	if !p.IsValid() {
		return false
	}
	_, replaced := s.tree.ReplaceOrInsert(p.Masked())
	return !replaced
}

func (s *BlockSet) Contains(p netip.Prefix) bool {
	return p.IsValid() && s.tree.Has(p.Masked())
}

func (s *BlockSet) Len() int {
	return s.tree.Len()
}

func (s *BlockSet) All() iter.Seq[netip.Prefix] {
	return func(yield func(netip.Prefix) bool) {
		s.tree.Ascend(func(p netip.Prefix) bool {
			return yield(p)
		})
	}
}

// Prefixes returns the set contents in order.
func (s *BlockSet) Prefixes() []netip.Prefix {
	out := make([]netip.Prefix, 0, s.tree.Len())
	for p := range s.All() {
		out = append(out, p)
	}
	return out
}
