package devops

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	appconfig "piecework.app/piecework/config"
)

const defaultPort = "3306"

// DBEntry is one database server as stored in the SSM parameter.
type DBEntry struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

func NewSSMClient(ctx context.Context) (*ssm.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

func ParseDBEntries(data []byte) ([]DBEntry, error) {
	var entries []DBEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	return entries, nil
}

// DSN renders the entry as a MySQL connection string for schema.
func (e DBEntry) DSN(schema string) string {
	addr := e.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, defaultPort)
	}
	cfg := mysql.NewConfig()
	cfg.User = e.Username
	cfg.Passwd = e.Password
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.DBName = schema
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// LoadDSN reads the yaml list under parameter and returns the DSN of the
// entry named schema.
func LoadDSN(ctx context.Context, client ParameterGetter, parameter, schema string) (string, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(parameter),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", parameter, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", parameter)
	}
	entries, err := ParseDBEntries([]byte(*out.Parameter.Value))
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Name == schema {
			return e.DSN(schema), nil
		}
	}
	return "", fmt.Errorf("parameter %s has no database named %q", parameter, schema)
}

// ResolveDSN returns the configured DSN, or the one held in SSM when a
// parameter is named.
func ResolveDSN(ctx context.Context, cfg appconfig.DatabaseConfig) (string, error) {
	if cfg.SSMParameter == "" {
		return cfg.DSN, nil
	}
	client, err := NewSSMClient(ctx)
	if err != nil {
		return "", err
	}
	return LoadDSN(ctx, client, cfg.SSMParameter, cfg.Schema)
}
