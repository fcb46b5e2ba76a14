package packaging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		in      string
		out     string
		wantErr bool
	}{
		{in: "1.2.3.4", out: "1.2.3.4"},
		{in: " 1.2.3.4\n", out: "1.2.3.4"},
		{in: "0.0.0.0", out: "0.0.0.0"},
		{in: "1.2.3", out: "1.2.3.0"},
		{in: "v1.2.3", out: "1.2.3.0"},
		{in: "0.5.6-19-g17c8589", out: "0.5.6.19"},
		{in: "v0.5.6-19-g17c8589", out: "0.5.6.19"},
		{in: "1.2.3-45", out: "1.2.3.45"},
		{in: "1.2.3-beta.1", out: "1.2.3.0"},
		{in: "1.2.3+build.7", out: "1.2.3.0"},
		{in: "1.2", out: "1.2.0.0"},
		{in: "65535.1.1.1", out: "65535.1.1.1"},
		{in: "65536.1.1.1", wantErr: true},
		{in: "1.2.3-70000", wantErr: true},
		{in: "", wantErr: true},
		{in: "not a version", wantErr: true},
		{in: "1.2.3.4.5", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			version, err := FormatVersion(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.out, version)
		})
	}
}
