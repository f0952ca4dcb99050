package domain

import (
	"fmt"
	"strconv"

	"github.com/haukened/simpledns/internal/dns/common/utils"
)

// ResourceRecord represents a DNS resource record (RR) as it appears in the
// answer, authority and additional sections. The rdata length is not stored;
// the codec derives it from Data when encoding.
type ResourceRecord struct {
	Name  string
	Type  RRType
	Class RRClass
	TTL   uint32
	Data  RData
}

// NewResourceRecord constructs a ResourceRecord whose type is taken from the
// payload and validates it.
func NewResourceRecord(name string, class RRClass, ttl uint32, data RData) (ResourceRecord, error) {
	if data == nil {
		return ResourceRecord{}, fmt.Errorf("record data must not be nil")
	}
	rr := ResourceRecord{
		Name:  name,
		Type:  data.Type(),
		Class: class,
		TTL:   ttl,
		Data:  data,
	}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// Validate checks whether the ResourceRecord fields are consistent.
func (rr ResourceRecord) Validate() error {
	if rr.Data == nil {
		return fmt.Errorf("record %q has no data", rr.Name)
	}
	if rr.Data.Type() != rr.Type {
		return fmt.Errorf("record %q: type %s does not match data type %s", rr.Name, rr.Type, rr.Data.Type())
	}
	if rr.Type == 0 {
		return fmt.Errorf("record %q: type must not be zero", rr.Name)
	}
	return nil
}

// String renders the record as a zone-file line.
func (rr ResourceRecord) String() string {
	data := "<nil>"
	if rr.Data != nil {
		data = rr.Data.String()
	}
	return utils.PresentationDNSName(rr.Name) + " " + strconv.FormatUint(uint64(rr.TTL), 10) + " " +
		rr.Class.String() + " " + rr.Type.String() + " " + data
}
