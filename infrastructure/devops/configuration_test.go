package devops

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "piecework.app/piecework/config"
)

const databasesYAML = `
- name: piecework
  host: db.internal
  username: app
  password: s3cret
- name: reporting
  host: replica.internal:3307
  username: report
  password: r3port
`

type fakeSSM struct {
	value *string
	err   error
	input *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: f.value}}, nil
}

func TestLoadDSN(t *testing.T) {
	client := &fakeSSM{value: aws.String(databasesYAML)}

	dsn, err := LoadDSN(context.Background(), client, "databases", "piecework")
	require.NoError(t, err)
	assert.Equal(t, "databases", aws.ToString(client.input.Name))
	assert.True(t, aws.ToBool(client.input.WithDecryption))

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, "s3cret", cfg.Passwd)
	assert.Equal(t, "db.internal:3306", cfg.Addr)
	assert.Equal(t, "piecework", cfg.DBName)
	assert.True(t, cfg.ParseTime)
}

func TestLoadDSNKeepsExplicitPort(t *testing.T) {
	client := &fakeSSM{value: aws.String(databasesYAML)}
	dsn, err := LoadDSN(context.Background(), client, "databases", "reporting")
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "replica.internal:3307", cfg.Addr)
}

func TestLoadDSNErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeSSM
		want   string
	}{
		{name: "unknown schema", client: &fakeSSM{value: aws.String(databasesYAML)}, want: `no database named "missing"`},
		{name: "empty parameter", client: &fakeSSM{}, want: "has no value"},
		{name: "bad yaml", client: &fakeSSM{value: aws.String("name: [")}, want: "unmarshal yaml"},
		{name: "ssm failure", client: &fakeSSM{err: errors.New("access denied")}, want: "access denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDSN(context.Background(), tt.client, "databases", "missing")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolveDSNWithoutParameter(t *testing.T) {
	dsn, err := ResolveDSN(context.Background(), appconfig.DatabaseConfig{DSN: "app:pw@tcp(localhost:3306)/piecework?parseTime=true"})
	require.NoError(t, err)
	assert.Equal(t, "app:pw@tcp(localhost:3306)/piecework?parseTime=true", dsn)
}
