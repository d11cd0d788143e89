package rootscan

import (
	"strings"
	"testing"
)

func TestParseMapsLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantOK    bool
		wantStart uintptr
		wantEnd   uintptr
		wantPerms string
		wantPath  string
	}{
		{
			name:      "data segment with path",
			line:      "00601000-00602000 rw-p 00001000 08:01 131090   /usr/bin/app",
			wantOK:    true,
			wantStart: 0x601000,
			wantEnd:   0x602000,
			wantPerms: "rw-p",
			wantPath:  "/usr/bin/app",
		},
		{
			name:      "anonymous mapping without path",
			line:      "7f0000000000-7f0000021000 rw-p 00000000 00:00 0",
			wantOK:    true,
			wantStart: 0x7f0000000000,
			wantEnd:   0x7f0000021000,
			wantPerms: "rw-p",
			wantPath:  "",
		},
		{
			name:   "malformed address range",
			line:   "notanaddr rw-p 0 0 0",
			wantOK: false,
		},
		{
			name:   "too few fields",
			line:   "00601000-00602000 rw-p",
			wantOK: false,
		},
		{
			name:   "empty line",
			line:   "",
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseMapsLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.start != tt.wantStart || got.end != tt.wantEnd {
				t.Errorf("range = %#x-%#x, want %#x-%#x",
					got.start, got.end, tt.wantStart, tt.wantEnd)
			}
			if got.perms != tt.wantPerms {
				t.Errorf("perms = %q, want %q", got.perms, tt.wantPerms)
			}
			if got.path != tt.wantPath {
				t.Errorf("path = %q, want %q", got.path, tt.wantPath)
			}
		})
	}
}

func TestDataSegmentsFiltering(t *testing.T) {
	const maps = `00400000-00500000 r-xp 00000000 08:01 131090   /usr/bin/app
00600000-00601000 r--p 00000000 08:01 131090   /usr/bin/app
00601000-00602000 rw-p 00001000 08:01 131090   /usr/bin/app
7f0000000000-7f0000021000 rw-p 00000000 00:00 0
7f0000100000-7f0000200000 rw-p 00000000 08:01 99   /lib/libc.so.6
7f0000300000-7f0000301000 ---p 00000000 08:01 131090   /usr/bin/app
`
	got := dataSegments(strings.NewReader(maps), "/usr/bin/app")

	// Text segment excluded (executable), libc excluded (different file),
	// anonymous excluded (no path), no-access segment excluded.
	want := []uintptr{0x600000, 0x601000}
	if len(got) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(got), len(want), got)
	}
	for i, region := range got {
		if region.start != want[i] {
			t.Errorf("segment %d starts at %#x, want %#x", i, region.start, want[i])
		}
	}
}
