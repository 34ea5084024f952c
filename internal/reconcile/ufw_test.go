package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUfwStatusNumbered(t *testing.T) {
	out := []byte(`Status: active

     To                         Action      From
     --                         ------      ----
[ 1] 2222/tcp                   ALLOW IN    Anywhere
[ 2] OpenSSH                    ALLOW IN    Anywhere
[ 3] 80/tcp                     DENY IN     10.0.0.0/8
[ 4] 2222/tcp (v6)              ALLOW IN    Anywhere (v6)
[ 5] 1000:2000/tcp              ALLOW IN    Anywhere
`)

	rules := parseUfwStatusNumbered(out)
	require.Len(t, rules, 5)

	assert.Equal(t, 1, rules[0].Number)
	assert.Equal(t, 2222, rules[0].Port)
	assert.Equal(t, "tcp", rules[0].Protocol)
	assert.Equal(t, "ALLOW", rules[0].Action)
	assert.Equal(t, "IN", rules[0].Direction)
	assert.False(t, rules[0].V6)

	assert.Equal(t, "OpenSSH", rules[1].Service)
	assert.Zero(t, rules[1].Port)

	assert.Equal(t, "DENY", rules[2].Action)
	assert.Equal(t, "10.0.0.0/8", rules[2].From)

	assert.True(t, rules[3].V6)
	assert.Equal(t, 2222, rules[3].Port)

	// A port range is not a single managed port; it surfaces as a service.
	assert.Equal(t, "1000:2000/tcp", rules[4].Service)
	assert.Zero(t, rules[4].Port)
}

func TestParseUfwStatusNumberedSkipsNonRuleLines(t *testing.T) {
	out := []byte("Status: active\n\nTo  Action  From\n--  ------  ----\n")
	assert.Empty(t, parseUfwStatusNumbered(out))
}

func TestParsePortProto(t *testing.T) {
	tests := []struct {
		in      string
		port    int
		proto   string
		isRange bool
		ok      bool
	}{
		{in: "22/tcp", port: 22, proto: "tcp", ok: true},
		{in: "80", port: 80, ok: true},
		{in: "53/udp", port: 53, proto: "udp", ok: true},
		{in: "1000:2000/tcp", proto: "tcp", isRange: true, ok: false},
		{in: "OpenSSH", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			port, proto, isRange, ok := parsePortProto(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.proto, proto)
			assert.Equal(t, tt.isRange, isRange)
		})
	}
}

func TestUniqueInts(t *testing.T) {
	assert.Equal(t, []int{2222, 80}, uniqueInts([]int{2222, 80, 2222, -1, 0}))
	assert.Empty(t, uniqueInts(nil))
}
