package announce

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() Service {
	return Service{
		InstanceName: "test-registry",
		CommandPort:  40321,
		IPv4Address:  net.ParseIP("127.0.0.1"),
		StatusAddr:   "239.17.12.1:9999",
	}
}

func TestAnnouncerAdvertiseRespondsToProbe(t *testing.T) {
	a, err := New(testService(), NoopLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Advertise())
	defer a.Withdraw()

	found, err := Probe(2 * time.Second)
	require.NoError(t, err)
	assert.True(t, found, "expected an mDNS answer while the announcer is advertising")
}

func TestAnnouncerAdvertiseIsIdempotent(t *testing.T) {
	a, err := New(testService(), NoopLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Advertise())
	assert.NoError(t, a.Advertise())
	assert.NoError(t, a.Withdraw())
}

func TestAnnouncerWithdrawIsIdempotent(t *testing.T) {
	a, err := New(testService(), NoopLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Advertise())
	require.NoError(t, a.Withdraw())
	assert.NoError(t, a.Withdraw())
}

func TestServiceRecordsIncludeStatusAddr(t *testing.T) {
	svc := testService()
	records := svc.records(defaultTTL)
	require.Len(t, records, 4)

	var sawTXT bool
	for _, r := range records {
		if r.rtype == typeTXT {
			sawTXT = true
			assert.Contains(t, string(r.data), "status-addr=239.17.12.1:9999")
		}
	}
	assert.True(t, sawTXT, "expected a TXT record among the service records")
}
