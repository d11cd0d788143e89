package fatptr

import (
	"math/rand"
	"sync"
	"testing"
	"unsafe"
)

func TestNewMasksTagByte(t *testing.T) {
	tests := []struct {
		name     string
		addr     uintptr
		wantAddr uintptr
	}{
		{name: "zero", addr: 0, wantAddr: 0},
		{name: "plain address", addr: 0x7F0012345678, wantAddr: 0x7F0012345678},
		{name: "address with stray tag bits", addr: 0xAB00_0000_1234_5678, wantAddr: 0x1234_5678},
		{name: "max encodable address", addr: MaxAddr - 1, wantAddr: MaxAddr - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.addr)
			if got := p.Addr(); got != tt.wantAddr {
				t.Errorf("New(%#x).Addr() = %#x, want %#x", tt.addr, got, tt.wantAddr)
			}
			if p.Word()&TagMask != Tag {
				t.Errorf("New(%#x) missing tag byte: word %#x", tt.addr, p.Word())
			}
		})
	}
}

func TestEmptyHandle(t *testing.T) {
	e := Empty()
	if !e.IsEmpty() {
		t.Fatal("Empty().IsEmpty() = false")
	}
	if e != New(0) {
		t.Error("Empty() != New(0)")
	}
	if New(0x1000).IsEmpty() {
		t.Error("non-null handle reported empty")
	}
}

func TestMaybePtrOnConstructedWindow(t *testing.T) {
	var win [2]uintptr
	p := New(0xDEAD00)
	win[0] = Header
	win[1] = p.Word()
	if !MaybePtr(uintptr(unsafe.Pointer(&win[0]))) {
		t.Error("MaybePtr = false on a constructed FatPtr window")
	}
}

func TestMaybePtrRejectsRandomWindows(t *testing.T) {
	// A uniformly random window should essentially never pass: it must hit
	// all 64 header bits and the 8 tag bits.
	rng := rand.New(rand.NewSource(1))
	var win [2]uintptr
	for i := 0; i < 1_000_000; i++ {
		win[0] = uintptr(rng.Uint64())
		win[1] = uintptr(rng.Uint64())
		if MaybePtr(uintptr(unsafe.Pointer(&win[0]))) {
			t.Fatalf("random window passed MaybePtr: header=%#x ptr=%#x", win[0], win[1])
		}
	}
}

func TestMaybePtrRejectsPartialMatches(t *testing.T) {
	tests := []struct {
		name   string
		header uintptr
		word   uintptr
	}{
		{name: "header only", header: Header, word: 0x1234},
		{name: "tag only", header: 0x1234, word: Tag | 0x1000},
		{name: "wrong tag byte", header: Header, word: uintptr(0x9E)<<56 | 0x1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win := [2]uintptr{tt.header, tt.word}
			if MaybePtr(uintptr(unsafe.Pointer(&win[0]))) {
				t.Errorf("MaybePtr accepted header=%#x word=%#x", tt.header, tt.word)
			}
		})
	}
}

func TestTestPtrSnapshot(t *testing.T) {
	win := [2]uintptr{Header, New(0xBEEF00).Word()}
	got, ok := TestPtr(uintptr(unsafe.Pointer(&win[0])))
	if !ok {
		t.Fatal("TestPtr failed on valid window")
	}
	if got.Addr() != 0xBEEF00 {
		t.Errorf("TestPtr snapshot addr = %#x, want 0xBEEF00", got.Addr())
	}

	win[1] = 0 // slot no longer looks like a pointer
	if _, ok := TestPtr(uintptr(unsafe.Pointer(&win[0]))); ok {
		t.Error("TestPtr succeeded on clobbered window")
	}
}

func TestAtomicLoadDetectsCorruptTag(t *testing.T) {
	p := New(0x4000)
	if _, err := p.AtomicLoad(); err != nil {
		t.Fatalf("AtomicLoad on valid handle: %v", err)
	}
	p.ptr = 0x4000 // strip the tag
	if _, err := p.AtomicLoad(); err != ErrInvalidPointer {
		t.Errorf("AtomicLoad on corrupt handle: err = %v, want ErrInvalidPointer", err)
	}
}

func TestAtomicUpdate(t *testing.T) {
	p := New(0x1000)
	p.AtomicUpdate(New(0x2000))
	if got := p.Addr(); got != 0x2000 {
		t.Errorf("after AtomicUpdate, Addr() = %#x, want 0x2000", got)
	}
}

func TestCompareExchange(t *testing.T) {
	t.Run("success returns empty", func(t *testing.T) {
		p := New(0x1000)
		prev, ok := p.CompareExchange(New(0x1000), New(0x2000))
		if !ok {
			t.Fatal("CompareExchange failed with matching expected value")
		}
		if !prev.IsEmpty() {
			t.Errorf("success returned non-empty observed value %#x", prev.Addr())
		}
		if p.Addr() != 0x2000 {
			t.Errorf("pointer word not installed: %#x", p.Addr())
		}
	})

	t.Run("failure returns observed", func(t *testing.T) {
		p := New(0x3000)
		prev, ok := p.CompareExchange(New(0x1000), New(0x2000))
		if ok {
			t.Fatal("CompareExchange succeeded with mismatched expected value")
		}
		if prev.Addr() != 0x3000 {
			t.Errorf("observed value = %#x, want 0x3000", prev.Addr())
		}
		if p.Addr() != 0x3000 {
			t.Errorf("pointer word mutated on failed exchange: %#x", p.Addr())
		}
	})
}

// TestAtomicOpsLinearizable hammers one slot from many goroutines and checks
// every observed value is one that some writer actually installed.
func TestAtomicOpsLinearizable(t *testing.T) {
	p := New(0x1000)
	valid := map[uintptr]bool{0x1000: true}
	for i := uintptr(1); i <= 8; i++ {
		valid[0x1000+i*0x100] = true
	}

	var wg sync.WaitGroup
	for i := uintptr(1); i <= 8; i++ {
		wg.Add(1)
		go func(addr uintptr) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				p.AtomicUpdate(New(addr))
				got, err := p.AtomicLoad()
				if err != nil {
					t.Error(err)
					return
				}
				if !valid[got.Addr()] {
					t.Errorf("observed address %#x never written", got.Addr())
					return
				}
				p.CompareExchange(got, New(addr))
			}
		}(0x1000 + i*0x100)
	}
	wg.Wait()
}

func TestScanMemory(t *testing.T) {
	// Plant two FatPtrs in a word array surrounded by noise.
	buf := make([]uintptr, 32)
	for i := range buf {
		buf[i] = uintptr(0x1111_2222_3333_4444)
	}
	p1, p2 := New(0xAAAA00), New(0xBBBB00)
	buf[4], buf[5] = Header, p1.Word()
	buf[20], buf[21] = Header, p2.Word()

	base := uintptr(unsafe.Pointer(&buf[0]))
	var found []uintptr
	ScanMemory(base, base+uintptr(len(buf))*WordSize, func(slot uintptr) {
		found = append(found, slot)
	})

	want := []uintptr{base + 4*WordSize, base + 20*WordSize}
	if len(found) != len(want) {
		t.Fatalf("found %d slots, want %d", len(found), len(want))
	}
	for i := range want {
		if found[i] != want[i] {
			t.Errorf("slot %d = %#x, want %#x", i, found[i], want[i])
		}
	}
}

// TestScanMemoryTrailingWindow plants pointers in the last aligned window
// of the scanned range. A 16-byte region is exactly one window, and a
// larger region's final window ends exactly at the scan end; both must be
// inspected — this is the shape of a minimum-size object whose whole
// payload is a single pointer field.
func TestScanMemoryTrailingWindow(t *testing.T) {
	t.Run("region is exactly one window", func(t *testing.T) {
		win := [2]uintptr{Header, New(0xDD00).Word()}
		base := uintptr(unsafe.Pointer(&win[0]))
		n := 0
		ScanMemory(base, base+Size, func(slot uintptr) {
			if slot != base {
				t.Errorf("slot = %#x, want %#x", slot, base)
			}
			n++
		})
		if n != 1 {
			t.Fatalf("found %d slots in a single-window region, want 1", n)
		}
	})

	t.Run("pointer in final window of larger region", func(t *testing.T) {
		buf := make([]uintptr, 8)
		buf[6], buf[7] = Header, New(0xEE00).Word()
		base := uintptr(unsafe.Pointer(&buf[0]))
		end := base + uintptr(len(buf))*WordSize
		var found []uintptr
		ScanMemory(base, end, func(slot uintptr) {
			found = append(found, slot)
		})
		if len(found) != 1 || found[0] != base+6*WordSize {
			t.Fatalf("found = %#x, want [%#x]", found, base+6*WordSize)
		}
	})
}

func TestScanMemoryUnalignedStart(t *testing.T) {
	buf := make([]uintptr, 8)
	buf[2], buf[3] = Header, New(0xCC00).Word()
	base := uintptr(unsafe.Pointer(&buf[0]))

	n := 0
	ScanMemory(base+3, base+uintptr(len(buf))*WordSize, func(uintptr) { n++ })
	if n != 1 {
		t.Errorf("unaligned scan found %d slots, want 1", n)
	}
}
