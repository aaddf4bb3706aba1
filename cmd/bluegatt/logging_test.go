package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoggingCmd(args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("verbose", false, "")
	cmd.SetArgs(args)
	return cmd
}

func TestConfigureLogger(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    logrus.Level
		wantErr bool
	}{
		{"default is silent", nil, logrus.PanicLevel, false},
		{"verbose enables debug", []string{"--verbose"}, logrus.DebugLevel, false},
		{"log-level warn", []string{"--log-level", "warn"}, logrus.WarnLevel, false},
		{"log-level wins over verbose", []string{"--log-level", "error", "--verbose"}, logrus.ErrorLevel, false},
		{"invalid log-level", []string{"--log-level", "loud"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newLoggingCmd(tt.args...)
			require.NoError(t, cmd.Execute())

			logger, err := configureLogger(cmd, "verbose")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}
