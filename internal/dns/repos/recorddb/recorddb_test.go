package recorddb

import (
	"context"
	"database/sql"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/common/rrdata"
	"github.com/haukened/simpledns/internal/dns/domain"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpen_CreatesSchema(t *testing.T) {
	s, path := openTemp(t)

	_, err := os.Stat(path)
	require.NoError(t, err)

	var n int
	err = s.conn.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_Reopen(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "host.lan", domain.RRTypeA, 60, "10.0.0.1"))
	require.NoError(t, s.Close())

	again, err := Open(path, nil)
	require.NoError(t, err)
	defer func() { _ = again.Close() }()

	records, err := again.Records(ctx, 300)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestInsertAndRecords(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "host.lan", domain.RRTypeA, 60, "10.0.0.1"))
	require.NoError(t, s.Insert(ctx, "host.lan", domain.RRTypeAAAA, 0, "fd00::1"))
	require.NoError(t, s.Insert(ctx, "lan", domain.RRTypeMX, 3600, "10 mail.lan."))
	require.NoError(t, s.Insert(ctx, "lan", domain.RRTypeTXT, 120, `"hello world"`))

	records, err := s.Records(ctx, 300)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, domain.ResourceRecord{
		Name: "host.lan", Type: domain.RRTypeA, Class: domain.RRClassIN, TTL: 60,
		Data: domain.A{Addr: netip.MustParseAddr("10.0.0.1")},
	}, records[0])
	assert.Equal(t, uint32(300), records[1].TTL, "zero ttl takes the default")
	assert.Equal(t, domain.MX{Preference: 10, Exchange: "mail.lan"}, records[2].Data)
	assert.Equal(t, domain.TXT{Strings: []string{"hello world"}}, records[3].Data)
}

func TestInsert_RejectsInvalidValue(t *testing.T) {
	s, _ := openTemp(t)
	err := s.Insert(context.Background(), "host.lan", domain.RRTypeA, 60, "not-an-ip")
	assert.ErrorIs(t, err, rrdata.ErrInvalidValue)
}

func TestRecords_InvalidRows(t *testing.T) {
	tests := []struct {
		name  string
		row   []any
		wants string
	}{
		{"unknown type", []any{"a.lan", "BOGUS", "IN", 60, "x"}, "unknown type"},
		{"unknown class", []any{"a.lan", "A", "XX", 60, "10.0.0.1"}, "unknown class"},
		{"bad value", []any{"a.lan", "A", "IN", 60, "nope"}, "a.lan A"},
		{"ttl too large", []any{"a.lan", "A", "IN", int64(1) << 32, "10.0.0.1"}, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := openTemp(t)
			_, err := s.conn.Exec(`INSERT INTO records (name, type, class, ttl, value) VALUES (?, ?, ?, ?, ?)`, tt.row...)
			require.NoError(t, err)

			_, err = s.Records(context.Background(), 300)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRecord)
			assert.Contains(t, err.Error(), tt.wants)
		})
	}
}

func TestRecords_NullTTL(t *testing.T) {
	s, _ := openTemp(t)
	_, err := s.conn.Exec(`INSERT INTO records (name, type, value) VALUES ('n.lan', 'NS', 'ns1.lan.')`)
	require.NoError(t, err)

	records, err := s.Records(context.Background(), 86400)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint32(86400), records[0].TTL)
	assert.Equal(t, domain.RRClassIN, records[0].Class)
	assert.Equal(t, domain.NS{Host: "ns1.lan"}, records[0].Data)
}

func TestLoad(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "printer.lan", domain.RRTypeA, 60, "10.0.0.9"))
	require.NoError(t, s.Close())

	core, logs := observer.New(zapcore.InfoLevel)
	records, err := Load(ctx, path, 300, log.NewZapLogger(zap.New(core)))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "printer.lan", records[0].Name)
	assert.Equal(t, 1, logs.FilterMessage("Loaded records from database").Len())
}

func TestLoad_DoesNotWrite(t *testing.T) {
	// a database made by hand, without the migration bookkeeping table
	path := filepath.Join(t.TempDir(), "hand.db")
	raw, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE records (id INTEGER PRIMARY KEY, name TEXT, type TEXT, class TEXT, ttl INTEGER, value TEXT)`)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO records (name, type, class, ttl, value) VALUES ('nas.lan', 'A', 'IN', 60, '10.0.0.2')`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	records, err := Load(context.Background(), path, 300, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "nas.lan", records[0].Name)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "loading leaves the file untouched")

	raw, err = sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	defer func() { _ = raw.Close() }()
	var n int
	require.NoError(t, raw.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'schema_migrations'`).Scan(&n))
	assert.Zero(t, n)
}

func TestOpenReadOnly_RejectsInsert(t *testing.T) {
	_, path := openTemp(t)

	ro, err := OpenReadOnly(path, nil)
	require.NoError(t, err)
	defer func() { _ = ro.Close() }()

	err = ro.Insert(context.Background(), "host.lan", domain.RRTypeA, 60, "10.0.0.1")
	assert.Error(t, err)
}

func TestLoad_MissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	raw, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE other (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = Load(context.Background(), path, 300, nil)
	assert.ErrorContains(t, err, "records")
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")
	core, logs := observer.New(zapcore.WarnLevel)

	records, err := Load(context.Background(), path, 300, log.NewZapLogger(zap.New(core)))
	require.NoError(t, err)
	assert.Nil(t, records)
	assert.Equal(t, 1, logs.FilterMessage("Record database not found, continuing without it").Len())

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist, "a missing database is not created")
}

func TestLoad_EmptyPath(t *testing.T) {
	records, err := Load(context.Background(), "", 300, nil)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestLoad_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not sqlite, just some text that is long enough"), 0o600))

	_, err := Load(context.Background(), path, 300, nil)
	assert.Error(t, err)
}

func TestToRecord(t *testing.T) {
	rr, err := toRecord("x.lan", "cname", "IN", sql.NullInt64{Int64: 5, Valid: true}, "y.lan.", 300)
	require.NoError(t, err)
	assert.Equal(t, domain.RRTypeCNAME, rr.Type)
	assert.Equal(t, uint32(5), rr.TTL)
	assert.Equal(t, domain.CNAME{Target: "y.lan"}, rr.Data)
}
