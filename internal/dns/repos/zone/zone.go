// Package zone loads local records from zone files in YAML, JSON or TOML.
// A zone file names its apex with zone_root and maps owner names to record
// types to one value or a list of values:
//
//	zone_root: example.com
//	"@":
//	  MX: "10 mail.example.com."
//	www:
//	  A: ["192.0.2.1", "192.0.2.2"]
package zone

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/haukened/simpledns/internal/dns/common/rrdata"
	"github.com/haukened/simpledns/internal/dns/common/utils"
	"github.com/haukened/simpledns/internal/dns/domain"
)

const rootKey = "zone_root"

// LoadZoneDirectory walks dir, loading every supported zone file, and returns
// their records in file order. Files with other extensions are ignored.
// Any file that fails to parse fails the whole load.
func LoadZoneDirectory(dir string, defaultTTL uint32) ([]domain.ResourceRecord, error) {
	var records []domain.ResourceRecord

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		_, zoneRecords, err := loadZoneFile(path, defaultTTL)
		if err != nil {
			return fmt.Errorf("error parsing zone file %s: %w", path, err)
		}
		records = append(records, zoneRecords...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// expandName returns the fully qualified owner for a label: '@' is the root,
// a trailing dot marks an absolute name, anything else is relative to root.
func expandName(label, root string) string {
	if label == "@" {
		return root
	}
	if strings.HasSuffix(label, ".") {
		return label
	}
	return label + "." + root
}

// toStringValues converts a parsed value (string or list of strings) into
// non-empty strings. Other element types are skipped.
func toStringValues(val any) []string {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}

// buildResourceRecords creates one IN record per value for the owner fqdn.
func buildResourceRecords(fqdn string, rrType string, values []string, ttl uint32) ([]domain.ResourceRecord, error) {
	rType := domain.RRTypeFromString(rrType)
	if rType == 0 {
		return nil, fmt.Errorf("unknown record type %q for %s", rrType, fqdn)
	}
	records := make([]domain.ResourceRecord, 0, len(values))
	for _, s := range values {
		data, err := rrdata.Parse(rType, s)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", fqdn, rType, err)
		}
		rr, err := domain.NewResourceRecord(fqdn, domain.RRClassIN, ttl, data)
		if err != nil {
			return nil, err
		}
		records = append(records, rr)
	}
	return records, nil
}

// parserFor picks the koanf parser for a zone file extension, or nil.
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".json":
		return json.Parser()
	case ".toml":
		return toml.Parser()
	default:
		return nil
	}
}

// loadZoneFile parses a single zone file and returns its canonical root and
// records, ordered by owner name then type. Unsupported extensions yield
// nothing and no error.
func loadZoneFile(path string, defaultTTL uint32) (string, []domain.ResourceRecord, error) {
	parser := parserFor(path)
	if parser == nil {
		return "", nil, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return "", nil, fmt.Errorf("failed to load zone file %s: %w", path, err)
	}

	root := utils.CanonicalDNSName(k.String(rootKey))
	if root == "" {
		return "", nil, fmt.Errorf("zone file %s missing '%s'", path, rootKey)
	}

	raw := k.Raw()
	owners := make([]string, 0, len(raw))
	for name := range raw {
		if name != rootKey {
			owners = append(owners, name)
		}
	}
	sort.Strings(owners)

	var records []domain.ResourceRecord
	for _, name := range owners {
		rawMap, ok := raw[name].(map[string]any)
		if !ok {
			continue
		}
		fqdn := utils.CanonicalDNSName(expandName(name, root))

		types := make([]string, 0, len(rawMap))
		for rrType := range rawMap {
			types = append(types, rrType)
		}
		sort.Strings(types)

		for _, rrType := range types {
			values := toStringValues(rawMap[rrType])
			if len(values) == 0 {
				continue
			}
			recs, err := buildResourceRecords(fqdn, rrType, values, defaultTTL)
			if err != nil {
				return "", nil, fmt.Errorf("invalid record in %s: %w", path, err)
			}
			records = append(records, recs...)
		}
	}
	return root, records, nil
}
