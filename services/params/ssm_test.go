package params

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ssmMock struct {
	pages [][]types.Parameter
	calls int
	path  string
	err   error
}

func (m *ssmMock) GetParametersByPath(_ context.Context, in *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.path = aws.ToString(in.Path)
	out := &ssm.GetParametersByPathOutput{Parameters: m.pages[m.calls]}
	m.calls++
	if m.calls < len(m.pages) {
		out.NextToken = aws.String("next")
	}
	return out, nil
}

func param(name, value string) types.Parameter {
	return types.Parameter{Name: aws.String(name), Value: aws.String(value)}
}

func TestEnvName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"/janus/prod/secretKey", "SECRETKEY"},
		{"/janus/prod/database/password", "DATABASE_PASSWORD"},
		{"/janus/prod/server.rate-limit", "SERVER_RATE_LIMIT"},
		{"/janus/prod/", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, EnvName("/janus/prod/", tc.name), tc.name)
	}
}

func TestLoad(t *testing.T) {
	client := &ssmMock{pages: [][]types.Parameter{
		{param("/janus/prod/database/password", "s3cr3t"), param("/janus/prod/sendgridApiKey", "SG.x")},
		{param("/janus/prod/redis/address", "redis:6379")},
	}}
	env := make(map[string]string)
	n, err := Load(context.Background(), client, "janus/prod", func(k, v string) error {
		env[k] = v
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "/janus/prod/", client.path)
	assert.Equal(t, map[string]string{
		"DATABASE_PASSWORD": "s3cr3t",
		"SENDGRIDAPIKEY":    "SG.x",
		"REDIS_ADDRESS":     "redis:6379",
	}, env)
}

func TestLoad_Error(t *testing.T) {
	client := &ssmMock{err: errors.New("no credentials")}
	_, err := Load(context.Background(), client, "/janus/prod", func(string, string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, "no credentials", errors.Cause(err).Error())
}

func TestPrefixedSetenv(t *testing.T) {
	env := make(map[string]string)
	setenv := func(k, v string) error {
		env[k] = v
		return nil
	}
	require.NoError(t, PrefixedSetenv("prod", setenv)("SECRETKEY", "x"))
	require.NoError(t, PrefixedSetenv("", setenv)("DEBUG", "false"))
	assert.Equal(t, map[string]string{"PROD_SECRETKEY": "x", "DEBUG": "false"}, env)
}
