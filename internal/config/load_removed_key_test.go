package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_RejectsUnknownKeys(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{
			name: "oidc skip tls verify",
			yaml: `
server:
  auth:
    oidc_enabled: true
    oidc_skip_tls_verify: true
`,
			key: "oidc_skip_tls_verify",
		},
		{
			name: "db role",
			yaml: `
server:
  auth:
    db_role_enabled: true
`,
			key: "db_role_enabled",
		},
		{
			name: "type mappings section",
			yaml: `
type_mappings:
  uuid_columns:
    users: [id]
`,
			key: "type_mappings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.SetConfigType("yaml")
			require.NoError(t, v.ReadConfig(strings.NewReader(tt.yaml)))

			_, err := decode(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
