package mips

import "testing"

func TestProbeWriteIndexedRoundTrip(t *testing.T) {
	m := NewMMU()
	pte := PTE{EntryHI: 0x1000, EntryLO: 0x2000 | PTEValid}

	if _, err := m.Probe(pte.EntryHI); err != ErrTLBMiss {
		t.Fatalf("Probe on an empty TLB = %v, want ErrTLBMiss", err)
	}

	m.WriteIndexed(5, pte)
	idx, err := m.Probe(pte.EntryHI)
	if err != nil {
		t.Fatalf("Probe after WriteIndexed: %v", err)
	}
	if idx != 5 {
		t.Fatalf("Probe() = %d, want 5", idx)
	}
}

func TestWriteRandomAdvances(t *testing.T) {
	m := NewMMU()
	for i := 0; i < TLBSize+3; i++ {
		m.WriteRandom(PTE{EntryHI: uint32(i), EntryLO: PTEValid})
	}
	// The counter must have wrapped: slot 0 was overwritten by entry TLBSize.
	idx, err := m.Probe(uint32(TLBSize))
	if err != nil {
		t.Fatalf("Probe after wraparound: %v", err)
	}
	if idx != 0 {
		t.Fatalf("WriteRandom did not wrap to slot 0, landed entry %d in slot %d", TLBSize, idx)
	}
}

func TestFlushInvalidatesAll(t *testing.T) {
	m := NewMMU()
	m.WriteIndexed(3, PTE{EntryHI: 0xABC, EntryLO: PTEValid})
	m.Flush()
	if _, err := m.Probe(0xABC); err != ErrTLBMiss {
		t.Fatalf("Probe after Flush = %v, want ErrTLBMiss", err)
	}
}

func TestVPNFromEntryHIClamps(t *testing.T) {
	cases := []struct {
		entryHI uint32
		want    int
	}{
		{entryHI: 0, want: 0},
		{entryHI: 5 << PFNShift, want: 5},
		{entryHI: 1000 << PFNShift, want: MAXPAGES - 1},
	}
	for _, c := range cases {
		if got := VPNFromEntryHI(c.entryHI); got != c.want {
			t.Errorf("VPNFromEntryHI(%#x) = %d, want %d", c.entryHI, got, c.want)
		}
	}
}

func TestPTEAccessors(t *testing.T) {
	p := PTE{EntryLO: (0xABCDE << PFNShift) | PTEValid | PTEDirty}
	if !p.Valid() || !p.Dirty() {
		t.Fatalf("Valid()/Dirty() = %v/%v, want true/true", p.Valid(), p.Dirty())
	}
	if got := p.Frame(); got != 0xABCDE<<PFNShift {
		t.Fatalf("Frame() = %#x, want %#x", got, 0xABCDE<<PFNShift)
	}
}
