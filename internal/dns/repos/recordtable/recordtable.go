// Package recordtable holds the locally authoritative records. A Table is
// built once from every configured record source and never changes
// afterwards, so lookups need no locking.
package recordtable

import (
	"fmt"
	"slices"
	"sort"

	"github.com/haukened/simpledns/internal/dns/common/utils"
	"github.com/haukened/simpledns/internal/dns/domain"
	"github.com/haukened/simpledns/internal/dns/services/resolver"
)

// Table is an in-memory implementation of resolver.RecordTable.
type Table struct {
	zones map[string]map[string][]domain.ResourceRecord
	//    apex → key → record set
	count int
}

// New groups records by registrable domain and by (name, type, class).
// Owner names are stored canonically; every record is validated.
func New(records []domain.ResourceRecord) (*Table, error) {
	t := &Table{
		zones: make(map[string]map[string][]domain.ResourceRecord),
	}
	for i, rr := range records {
		if err := rr.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rr.Name = utils.CanonicalDNSName(rr.Name)
		apex := utils.GetApexDomain(rr.Name)

		zone, ok := t.zones[apex]
		if !ok {
			zone = make(map[string][]domain.ResourceRecord)
			t.zones[apex] = zone
		}
		key := recordKey(rr.Name, rr.Type, rr.Class)
		zone[key] = append(zone[key], rr)
		t.count++
	}
	return t, nil
}

// recordKey returns a consistent key for a name, type and class.
// Format: "name|type|class" (e.g. "www.example.com|A|IN"); the pipe keeps
// it unambiguous next to colons in IPv6 text.
func recordKey(name string, t domain.RRType, c domain.RRClass) string {
	return utils.CanonicalDNSName(name) + "|" + t.String() + "|" + c.String()
}

// Lookup returns a copy of the record set matching the question's name
// (case-insensitive), type and class.
func (t *Table) Lookup(q domain.Question) ([]domain.ResourceRecord, bool) {
	name := utils.CanonicalDNSName(q.Name)
	zone, ok := t.zones[utils.GetApexDomain(name)]
	if !ok {
		return nil, false
	}
	records, ok := zone[recordKey(name, q.Type, q.Class)]
	if !ok || len(records) == 0 {
		return nil, false
	}
	return slices.Clone(records), true
}

// Zones returns the sorted list of apex domains that have local records.
func (t *Table) Zones() []string {
	zones := make([]string, 0, len(t.zones))
	for apex := range t.zones {
		zones = append(zones, apex)
	}
	sort.Strings(zones)
	return zones
}

// Count returns the total number of records across all zones.
func (t *Table) Count() int {
	return t.count
}

var _ resolver.RecordTable = (*Table)(nil)
