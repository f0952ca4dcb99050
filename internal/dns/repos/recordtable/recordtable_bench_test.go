package recordtable

import (
	"fmt"
	"testing"

	"github.com/haukened/simpledns/internal/dns/domain"
)

func BenchmarkTable_Lookup(b *testing.B) {
	records := make([]domain.ResourceRecord, 0, 1000)
	for i := 0; i < 1000; i++ {
		records = append(records, a(fmt.Sprintf("host%d.example.com", i), "10.0.0.1"))
	}
	table, err := New(records)
	if err != nil {
		b.Fatal(err)
	}
	q := domain.Question{Name: "host500.example.com.", Type: domain.RRTypeA, Class: domain.RRClassIN}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		table.Lookup(q)
	}
}
