// Package hosts reads local A and AAAA records from /etc/hosts-style files.
package hosts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/common/utils"
	"github.com/haukened/simpledns/internal/dns/domain"
)

const utf8BOM = "\ufeff"

// Parse reads hosts lines of the form "<address> <name> [<name>...]" and
// returns one A or AAAA record per (address, name) pair.
//
// Rules:
//   - Whole-line and inline '#' comments and blank lines are skipped
//   - Lines whose first field is not an IP address are skipped
//   - Wildcards and names starting with '.' are skipped
//   - Zone-scoped IPv6 addresses (fe80::1%eth0) are skipped
//   - Duplicate (name, address) pairs keep the first occurrence
func Parse(r io.Reader, source string, ttl uint32, logger log.Logger) ([]domain.ResourceRecord, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	scanner := bufio.NewScanner(r)

	seen := make(map[string]struct{})
	var out []domain.ResourceRecord

	logger.Debug(map[string]any{"source": source}, "parse_hosts_start")

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if lineNum == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		addr, err := netip.ParseAddr(fields[0])
		if err != nil || addr.Zone() != "" {
			logger.Debug(map[string]any{"line": lineNum, "addr": fields[0]}, "hosts_skip_invalid_addr")
			continue
		}
		addr = addr.Unmap()

		for _, raw := range fields[1:] {
			if strings.HasPrefix(raw, ".") || strings.Contains(raw, "*") {
				logger.Debug(map[string]any{"line": lineNum, "raw": raw}, "hosts_skip_invalid_token")
				continue
			}
			name := utils.CanonicalDNSName(raw)

			key := name + "|" + addr.String()
			if _, ok := seen[key]; ok {
				continue
			}

			rr, err := newAddressRecord(name, addr, ttl)
			if err != nil {
				logger.Debug(map[string]any{"line": lineNum, "name": name, "error": err.Error()}, "hosts_skip_invalid_name")
				continue
			}
			seen[key] = struct{}{}
			out = append(out, rr)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hosts file %s: %w", source, err)
	}

	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_hosts_done")
	return out, nil
}

func newAddressRecord(name string, addr netip.Addr, ttl uint32) (domain.ResourceRecord, error) {
	if !validName(name) {
		return domain.ResourceRecord{}, fmt.Errorf("invalid host name %q", name)
	}
	var data domain.RData = domain.A{Addr: addr}
	if addr.Is6() {
		data = domain.AAAA{Addr: addr}
	}
	return domain.NewResourceRecord(name, domain.RRClassIN, ttl, data)
}

// validName enforces the wire limits: at most 253 characters overall and
// labels of 1 to 63 characters.
func validName(name string) bool {
	if name == "" || len(name) > 253 {
		return false
	}
	for _, label := range strings.Split(name, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
	}
	return true
}

// Load parses the hosts file at path. An empty path yields nothing; a missing
// file is logged and yields nothing.
func Load(path string, ttl uint32, logger log.Logger) ([]domain.ResourceRecord, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn(map[string]any{"path": path}, "Hosts file not found, continuing without it")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open hosts file: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := Parse(f, path, ttl, logger)
	if err != nil {
		return nil, err
	}
	logger.Info(map[string]any{
		"path":    path,
		"records": len(records),
	}, "Loaded hosts file")
	return records, nil
}
