package hosts

import (
	"bytes"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/domain"
)

func TestParse_Basic(t *testing.T) {
	input := "\ufeff# comment\n" + `
127.0.0.1 localhost
::1 localhost ip6-localhost
192.168.1.10 NAS.home.lan nas # inline comment
# wildcard-like entries should be ignored
0.0.0.0 *.bad.example.com .also.bad.example.com
not-an-ip host.lan
fe80::1%eth0 linklocal.lan
10.0.0.5
`
	got, err := Parse(bytes.NewBufferString(input), "hosts-src", 120, nil)
	require.NoError(t, err)

	want := []domain.ResourceRecord{
		{Name: "localhost", Type: domain.RRTypeA, Class: domain.RRClassIN, TTL: 120, Data: domain.A{Addr: netip.MustParseAddr("127.0.0.1")}},
		{Name: "localhost", Type: domain.RRTypeAAAA, Class: domain.RRClassIN, TTL: 120, Data: domain.AAAA{Addr: netip.MustParseAddr("::1")}},
		{Name: "ip6-localhost", Type: domain.RRTypeAAAA, Class: domain.RRClassIN, TTL: 120, Data: domain.AAAA{Addr: netip.MustParseAddr("::1")}},
		{Name: "nas.home.lan", Type: domain.RRTypeA, Class: domain.RRClassIN, TTL: 120, Data: domain.A{Addr: netip.MustParseAddr("192.168.1.10")}},
		{Name: "nas", Type: domain.RRTypeA, Class: domain.RRClassIN, TTL: 120, Data: domain.A{Addr: netip.MustParseAddr("192.168.1.10")}},
	}
	assert.Equal(t, want, got)
}

func TestParse_MappedAddressIsA(t *testing.T) {
	got, err := Parse(strings.NewReader("::ffff:10.0.0.1 mapped.lan\n"), "s", 60, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.RRTypeA, got[0].Type)
	assert.Equal(t, domain.A{Addr: netip.MustParseAddr("10.0.0.1")}, got[0].Data)
}

func TestParse_Duplicates(t *testing.T) {
	input := "10.0.0.1 dup.lan dup.lan\n10.0.0.1 DUP.lan.\n10.0.0.2 dup.lan\n"
	got, err := Parse(strings.NewReader(input), "s", 60, nil)
	require.NoError(t, err)
	require.Len(t, got, 2, "same name with a second address is kept")
	assert.Equal(t, domain.A{Addr: netip.MustParseAddr("10.0.0.2")}, got[1].Data)
}

func TestParse_InvalidNames(t *testing.T) {
	long := strings.Repeat("a", 64) + ".lan"
	got, err := Parse(strings.NewReader("10.0.0.1 "+long+" a..b ok.lan\n"), "s", 60, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok.lan", got[0].Name)
}

func TestParse_ScannerError(t *testing.T) {
	huge := "10.0.0.1 " + strings.Repeat("a", 70*1024) + "\n"
	got, err := Parse(strings.NewReader(huge), "big", 60, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "big")
	assert.Nil(t, got)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(path, []byte("10.0.0.7 printer.lan\n"), 0o644))

	core, logs := observer.New(zapcore.InfoLevel)
	got, err := Load(path, 300, log.NewZapLogger(zap.New(core)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(300), got[0].TTL)
	assert.Equal(t, 1, logs.FilterMessage("Loaded hosts file").Len())
}

func TestLoad_MissingAndEmpty(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	got, err := Load(filepath.Join(t.TempDir(), "nope"), 300, log.NewZapLogger(zap.New(core)))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, logs.FilterMessage("Hosts file not found, continuing without it").Len())

	got, err = Load("", 300, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoad_Directory(t *testing.T) {
	_, err := Load(t.TempDir(), 300, nil)
	assert.Error(t, err)
}
