package mips

import "errors"

// MAXPAGES is the fixed per-process page-table size (§3). Entry 31 is
// reserved for the user stack at USERSTACKTOP.
const MAXPAGES = 32

// TLBSize is the number of hardware TLB entries (§1).
const TLBSize = 32

// Page-table entry-lo flag bits, low 12 bits of the word.
const (
	PTEGlobal uint32 = 1 << 8
	PTEValid  uint32 = 1 << 9
	PTEDirty  uint32 = 1 << 10
)

const PFNShift = 12

// PTE is one per-process page-table entry: a 32-bit VPN/ASID entry-hi and
// a 32-bit flags+PFN entry-lo, matching the hardware TLB's native format.
type PTE struct {
	EntryHI uint32 // VPN | ASID
	EntryLO uint32 // PFN<<12 | flags
}

func (p PTE) Valid() bool { return p.EntryLO&PTEValid != 0 }
func (p PTE) Dirty() bool { return p.EntryLO&PTEDirty != 0 }
func (p PTE) Frame() uint32 {
	return p.EntryLO &^ 0xFFF
}

// PageTable is a fixed per-user-process array of PTEs (§3 "Per-user page table").
type PageTable [MAXPAGES]PTE

// NewPageTable builds the identity-VPN, ASID-tagged, all-invalid table a
// freshly created user process starts with.
func NewPageTable(asid uint32) PageTable {
	var pt PageTable
	for i := range pt {
		pt[i] = PTE{
			EntryHI: (uint32(i) << PFNShift) | asid,
			EntryLO: 0,
		}
	}
	return pt
}

// TLBEntry mirrors the hardware's 32-slot associative TLB.
type TLBEntry struct {
	Valid bool
	PTE   PTE
}

// MMU is the hardware TLB plus the random-replacement index the BIOS's
// TLBWR instruction advances.
type MMU struct {
	tlb    [TLBSize]TLBEntry
	random int
}

func NewMMU() *MMU {
	return &MMU{}
}

var ErrTLBMiss = errors.New("mips: tlb miss")

// Probe implements TLBP: linear search by VPN|ASID in entry-hi.
func (m *MMU) Probe(entryHI uint32) (int, error) {
	for i, e := range m.tlb {
		if e.Valid && e.PTE.EntryHI == entryHI {
			return i, nil
		}
	}
	return -1, ErrTLBMiss
}

// WriteIndexed implements TLBWI: write a PTE to a specific, previously
// probed TLB slot.
func (m *MMU) WriteIndexed(idx int, p PTE) {
	m.tlb[idx] = TLBEntry{Valid: true, PTE: p}
}

// WriteRandom implements TLBWR: write a PTE into a pseudo-random slot
// (here, round-robin) the way the BIOS spec leaves unspecified beyond
// "some free or evictable slot".
func (m *MMU) WriteRandom(p PTE) {
	m.tlb[m.random] = TLBEntry{Valid: true, PTE: p}
	m.random = (m.random + 1) % TLBSize
}

// Flush invalidates the whole TLB, e.g. on a context switch between
// differently-ASID'd address spaces in a stricter implementation; PandOS's
// nucleus never needs this because TLB entries are tagged by ASID and the
// kernel itself runs unmapped, but it mirrors FlushTLB for completeness
// and is used by tests.
func (m *MMU) Flush() {
	for i := range m.tlb {
		m.tlb[i].Valid = false
	}
}

// VPNFromEntryHI clamps a missing virtual page number to [0, MAXPAGES-1],
// the refill handler's contract (§4.7).
func VPNFromEntryHI(entryHI uint32) int {
	vpn := int(entryHI >> PFNShift)
	if vpn < 0 {
		return 0
	}
	if vpn >= MAXPAGES {
		return MAXPAGES - 1
	}
	return vpn
}
