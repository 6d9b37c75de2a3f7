package scan

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Region describes one mapped executable range from /proc/self/maps.
type Region struct {
	Start, End uintptr
	Module     string // basename of the mapped file, or "" for anonymous
}

// Scanner enumerates mapped executable regions and searches them for
// wildcarded byte patterns. Results are cached by (module, pattern text)
// since the same signature is frequently re-resolved.
type Scanner struct {
	cache    *lru.Cache[cacheKey, uintptr]
	readMaps func() ([]Region, error)
	readMem  func(addr uintptr, n int) ([]byte, error)
}

type cacheKey struct {
	module  string
	pattern string
}

// New constructs a Scanner backed by /proc/self/maps and /proc/self/mem on
// Linux.
func New() (*Scanner, error) {
	cache, err := lru.New[cacheKey, uintptr](64)
	if err != nil {
		return nil, fmt.Errorf("scan: building cache: %w", err)
	}
	return &Scanner{
		cache:    cache,
		readMaps: readProcMaps,
		readMem:  readProcMem,
	}, nil
}

// Find returns the first absolute address matching pattern within regions
// whose module name matches moduleFilter (or any executable region if
// moduleFilter is empty), or ok=false if nothing matched.
func (s *Scanner) Find(pattern Pattern, moduleFilter string) (addr uintptr, ok bool, err error) {
	key := cacheKey{module: moduleFilter, pattern: pattern.Text}
	if cached, found := s.cache.Get(key); found {
		return cached, true, nil
	}

	regions, err := s.readMaps()
	if err != nil {
		return 0, false, fmt.Errorf("scan: reading memory map: %w", err)
	}

	for _, r := range regions {
		if moduleFilter != "" && r.Module != moduleFilter {
			continue
		}

		size := int(r.End - r.Start)
		data, err := s.readMem(r.Start, size)
		if err != nil {
			continue // unreadable region; keep scanning others
		}

		for off := 0; off+len(pattern.Bytes) <= len(data); off++ {
			if pattern.matchAt(data, off) {
				found := r.Start + uintptr(off)
				s.cache.Add(key, found)
				return found, true, nil
			}
		}
	}

	return 0, false, nil
}

// readProcMaps parses /proc/self/maps for readable, executable regions.
func readProcMaps() ([]Region, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var regions []Region
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		perms := fields[1]
		if !strings.Contains(perms, "r") || !strings.Contains(perms, "x") {
			continue
		}

		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(bounds[0], 16, 64)
		end, err2 := strconv.ParseUint(bounds[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}

		module := ""
		if len(fields) >= 6 {
			module = fileBase(fields[5])
		}

		regions = append(regions, Region{
			Start:  uintptr(start),
			End:    uintptr(end),
			Module: module,
		})
	}
	return regions, sc.Err()
}

// readProcMem reads n bytes at addr via /proc/self/mem, which supports
// pread at arbitrary offsets into the process's own address space.
func readProcMem(addr uintptr, n int) ([]byte, error) {
	f, err := os.Open("/proc/self/mem")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.ReadAt(buf, int64(addr))
	if err != nil && read == 0 {
		return nil, err
	}
	return buf[:read], nil
}

func fileBase(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
