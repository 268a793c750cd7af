package series

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabelName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", ""},
		{"foo", "foo"},
		{"f_oo", "f_oo"},

		{"0foo", "_0foo"},
		{"cpu.time", "cpu_time"},
		{"disk/io", "disk_io"},
		{"rapl.package-0/energy", "rapl_package_0_energy"},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("Test%d", i+1), func(t *testing.T) {
			require.Equal(t, tt.want, LabelName(tt.key))
		})
	}
}
