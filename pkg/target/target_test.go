package target

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand_SingleIP(t *testing.T) {
	hosts, err := Expand("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, hosts)
}

func TestExpand_CIDR(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []string
	}{
		{
			name: "slash 30 excludes network and broadcast",
			spec: "192.168.1.0/30",
			want: []string{"192.168.1.1", "192.168.1.2"},
		},
		{
			name: "slash 31 keeps both addresses",
			spec: "10.0.0.0/31",
			want: []string{"10.0.0.0", "10.0.0.1"},
		},
		{
			name: "slash 32 is a single host",
			spec: "10.1.2.3/32",
			want: []string{"10.1.2.3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := Expand(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hosts)
		})
	}
}

func TestExpand_CIDRUsableCountAscending(t *testing.T) {
	hosts, err := Expand("10.0.0.0/24")
	require.NoError(t, err)
	require.Len(t, hosts, 254)
	assert.Equal(t, "10.0.0.1", hosts[0])
	assert.Equal(t, "10.0.0.254", hosts[len(hosts)-1])

	seen := make(map[string]bool)
	for _, h := range hosts {
		assert.False(t, seen[h], "duplicate host %s", h)
		seen[h] = true
	}
}

func TestExpand_CIDRTooLarge(t *testing.T) {
	_, err := Expand("10.0.0.0/16")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTargetTooLarge))
}

func TestExpand_Range(t *testing.T) {
	hosts, err := Expand("10.0.0.1-10.0.0.3")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, hosts)
}

func TestExpand_RangeErrors(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want error
	}{
		{"start after end", "10.0.0.9-10.0.0.1", ErrInvalidTarget},
		{"ipv6 range unsupported", "::1-::5", ErrInvalidTarget},
		{"too large", "10.0.0.0-10.1.0.0", ErrTargetTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Expand(tt.spec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestExpand_Hostname(t *testing.T) {
	hosts, err := Expand("scanme.example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{"scanme.example.org"}, hosts)

	// Hyphenated hostnames are not IP ranges.
	hosts, err = Expand("my-host.example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{"my-host.example.org"}, hosts)
}

func TestExpand_Invalid(t *testing.T) {
	for _, spec := range []string{"", "   ", "not a host!", "bad_label.example", "-leading.example"} {
		_, err := Expand(spec)
		assert.True(t, errors.Is(err, ErrInvalidTarget), "spec %q: got %v", spec, err)
	}
}

func TestResolve_AllAddressesAscending(t *testing.T) {
	lookup := func(ctx context.Context, host string) ([]string, error) {
		require.Equal(t, "db.internal", host)
		return []string{"10.0.0.9", "10.0.0.2"}, nil
	}

	hosts, err := Resolve(context.Background(), []string{"192.168.1.5", "db.internal"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.168.1.5", "10.0.0.2", "10.0.0.9"}, hosts)
}

func TestResolve_FailureIsInvalidTarget(t *testing.T) {
	lookup := func(ctx context.Context, host string) ([]string, error) {
		return nil, fmt.Errorf("no such host")
	}

	_, err := Resolve(context.Background(), []string{"ghost.internal"}, lookup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTarget))
}

func TestResolve_Dedupes(t *testing.T) {
	lookup := func(ctx context.Context, host string) ([]string, error) {
		return []string{"10.0.0.2"}, nil
	}

	hosts, err := Resolve(context.Background(), []string{"10.0.0.2", "a.internal"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.2"}, hosts)
}
