package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/thermotrack/pkg/types"
)

func TestParsePoints(t *testing.T) {
	points, err := parsePoints([]string{"0:10", " 2.5 : -3 "})
	require.NoError(t, err)
	assert.Equal(t, []types.ControlPoint{{Time: 0, Temperature: 10}, {Time: 2.5, Temperature: -3}}, points)

	for _, bad := range []string{"10", "a:1", "1:b"} {
		_, err := parsePoints([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestSetpointCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"setpoint", "--at", "5", "--point", "0:10", "--point", "10:20"}, "15.00"},
		{[]string{"setpoint", "--at", "20", "--point", "0:10,10:20"}, "30.00"},
		{[]string{"setpoint", "--at", "1", "--point", "0:10"}, "N/A"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			setpointPoints = nil
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(tt.args)

			require.NoError(t, rootCmd.Execute())
			assert.Equal(t, tt.want, strings.TrimSpace(out.String()))
		})
	}
}
