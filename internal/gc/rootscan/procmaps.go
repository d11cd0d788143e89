package rootscan

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// mapsRegion is one parsed line of /proc/self/maps.
type mapsRegion struct {
	start uintptr
	end   uintptr
	perms string
	path  string
}

// parseMapsLine parses one line of the form
//
//	START-END PERMS OFFSET DEV INODE        PATH
//
// Returns false on any malformed field.
func parseMapsLine(line string) (mapsRegion, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return mapsRegion{}, false
	}
	mid := strings.IndexByte(fields[0], '-')
	if mid < 0 {
		return mapsRegion{}, false
	}
	start, err := strconv.ParseUint(fields[0][:mid], 16, 64)
	if err != nil {
		return mapsRegion{}, false
	}
	end, err := strconv.ParseUint(fields[0][mid+1:], 16, 64)
	if err != nil {
		return mapsRegion{}, false
	}
	region := mapsRegion{
		start: uintptr(start),
		end:   uintptr(end),
		perms: fields[1],
	}
	if len(fields) >= 6 {
		region.path = fields[5]
	}
	return region, true
}

// dataSegments returns the regions of r (in /proc/self/maps format) that
// belong to the executable at exePath and are readable but not executable:
// the initialized and uninitialized data segments.
func dataSegments(r io.Reader, exePath string) []mapsRegion {
	var out []mapsRegion
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		region, ok := parseMapsLine(sc.Text())
		if !ok {
			continue
		}
		if exePath == "" || !strings.Contains(region.path, exePath) {
			continue
		}
		if !strings.Contains(region.perms, "r") || strings.Contains(region.perms, "x") {
			continue
		}
		out = append(out, region)
	}
	return out
}
