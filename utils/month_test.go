package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-03", want: "2024-03"},
		{in: "2024-3", want: "2024-03"},
		{in: "2024-03-15", want: "2024-03"},
		{in: "2024/3", want: "2024-03"},
		{in: "2024/3/1", want: "2024-03"},
		{in: " 2024/12/31 ", want: "2024-12"},
		{in: "45352", want: "2024-03"},
		{in: "45352.5", want: "2024-03"},
		{in: "", wantErr: true},
		{in: "March", wantErr: true},
		{in: "2024-13", wantErr: true},
		{in: "2024-02-30", wantErr: true},
		{in: "2024/0/1", wantErr: true},
		{in: "0", wantErr: true},
		{in: "202403", wantErr: true},
		{in: "NaN", wantErr: true},
		{in: "Inf", wantErr: true},
		{in: "1e3", wantErr: true},
		{in: "-45352", wantErr: true},
		{in: "0x1p-2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeMonth(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsMonth(t *testing.T) {
	assert.True(t, IsMonth("2024-03"))
	assert.False(t, IsMonth("2024-3"))
	assert.False(t, IsMonth("2024-03-01"))
}
