package collector

import (
	"github.com/kolkov/copygc/internal/gc/fatptr"
	"github.com/kolkov/copygc/internal/gc/memprot"
)

// Generation decides, per surviving object, whether a collection copies it
// within the managed heap or promotes it out. All methods, PromoteAlloc
// included, are called with the collector lock held.
type Generation interface {
	// Init is called when an object is first allocated, and again for the
	// new address when an object is copied.
	Init(p fatptr.FatPtr)
	// Rekey transfers an object's history from its pre-copy address to its
	// post-copy address and credits one survival.
	Rekey(old, new fatptr.FatPtr)
	// ShouldPromote reports whether the next collection should move the
	// object out of the managed heap instead of copying it.
	ShouldPromote(p fatptr.FatPtr) bool
	// PromoteAlloc reserves promotion space for an object. Returns the
	// destination address, or false if the policy does not promote.
	PromoteAlloc(md Metadata) (uintptr, bool)
	// Collected is called when a collection determines the object is
	// unreachable and erases it.
	Collected(p fatptr.FatPtr)
}

// NoPromotion is the trivial generation policy: every survivor is copied,
// nothing is ever promoted, no history is kept.
type NoPromotion struct{}

func (NoPromotion) Init(fatptr.FatPtr)                    {}
func (NoPromotion) Rekey(_, _ fatptr.FatPtr)              {}
func (NoPromotion) ShouldPromote(fatptr.FatPtr) bool      { return false }
func (NoPromotion) PromoteAlloc(Metadata) (uintptr, bool) { return 0, false }
func (NoPromotion) Collected(fatptr.FatPtr)               {}

// Aging counts how many collections each object survives and promotes
// survivors that cross the threshold into an immortal side arena. Promoted
// objects leave the managed heap for good; the collection returns their
// new pointers to the caller, which owns them from then on.
type Aging struct {
	// Threshold is the survival count at which an object is promoted.
	Threshold int

	survivals map[fatptr.FatPtr]int
	arena     promoteArena
}

// NewAging builds an aging policy promoting objects that survive threshold
// collections.
func NewAging(threshold int) *Aging {
	return &Aging{
		Threshold: threshold,
		survivals: make(map[fatptr.FatPtr]int),
	}
}

func (a *Aging) Init(p fatptr.FatPtr) {
	if _, ok := a.survivals[p]; !ok {
		a.survivals[p] = 0
	}
}

func (a *Aging) Rekey(old, new fatptr.FatPtr) {
	a.survivals[new] = a.survivals[old] + 1
	delete(a.survivals, old)
}

func (a *Aging) ShouldPromote(p fatptr.FatPtr) bool {
	return a.survivals[p] >= a.Threshold
}

func (a *Aging) PromoteAlloc(md Metadata) (uintptr, bool) {
	addr, err := a.arena.reserve(md)
	if err != nil {
		// Arena exhaustion degrades to regular copying; the object stays
		// in the managed heap and ages further.
		return 0, false
	}
	return addr, true
}

func (a *Aging) Collected(p fatptr.FatPtr) {
	delete(a.survivals, p)
}

// promoteArena is a grow-only chunk list for promoted objects. Chunks are
// mmap'd and registered like heap spaces so fault classification and
// Contains-style checks keep working for promoted pointers, and they are
// never unmapped: promotion is one-way.
type promoteArena struct {
	chunks [][]byte
	cursor uintptr
}

const promoteChunkSize = 1 << 16

func (ar *promoteArena) reserve(md Metadata) (uintptr, error) {
	need := md.Size + md.Align
	if len(ar.chunks) > 0 {
		chunk := ar.chunks[len(ar.chunks)-1]
		base := memprot.SliceAddr(chunk)
		pad := alignPadding(base+ar.cursor, md.Align)
		if ar.cursor+pad+md.Size <= uintptr(len(chunk)) {
			addr := base + ar.cursor + pad
			ar.cursor += pad + md.Size
			return addr, nil
		}
	}
	size := uintptr(promoteChunkSize)
	if need > size {
		size = need
	}
	chunk, err := memprot.MapSpace(size)
	if err != nil {
		return 0, err
	}
	memprot.RegisterHeap(memprot.SliceAddr(chunk), uintptr(len(chunk)))
	ar.chunks = append(ar.chunks, chunk)
	base := memprot.SliceAddr(chunk)
	pad := alignPadding(base, md.Align)
	ar.cursor = pad + md.Size
	return base + pad, nil
}
