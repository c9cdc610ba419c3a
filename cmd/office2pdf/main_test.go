// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/office2pdf/pkg/types"
)

// resetViper gives each test a clean viper with defaults and env binding.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	setDefaults(types.DefaultConfig())
	viper.SetEnvPrefix("OFFICE2PDF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	t.Cleanup(viper.Reset)
}

func TestLoadConfigDefaults(t *testing.T) {
	resetViper(t)
	got, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), got)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "office2pdf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
conversion:
  method: libreoffice
  backup_method: container
  timeout: 90s
  image_format: jpeg
paths:
  output_dir: out
`), 0o644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())
	t.Setenv("OFFICE2PDF_PATHS_TEMP_DIR", "staging")

	got, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, types.MethodLibreOffice, got.Conversion.Method)
	assert.Equal(t, types.MethodContainer, got.Conversion.BackupMethod)
	assert.Equal(t, 90*time.Second, got.Conversion.Timeout)
	assert.Equal(t, types.ImageJPEG, got.Conversion.ImageFormat)
	assert.Equal(t, "out", got.Paths.OutputDir)
	assert.Equal(t, "staging", got.Paths.TempDir)
	assert.Equal(t, 300, got.Conversion.DPI, "unset keys keep their defaults")
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		key, value, errMsg string
	}{
		{"conversion.method", "wordperfect", "conversion.method"},
		{"conversion.backup_method", "pandoc", "conversion.backup_method"},
		{"conversion.image_format", "gif", "image_format"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			resetViper(t)
			viper.Set(tt.key, tt.value)
			_, err := loadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.True(t, strings.HasPrefix(buf.String(), "office2pdf dev ("))
}
