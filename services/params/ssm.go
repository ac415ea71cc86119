// Package params loads configuration from AWS SSM Parameter Store into the process environment.
package params

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/pkg/errors"
)

// SSMAPI is the subset of the SSM client the loader uses.
type SSMAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// EnvName maps a parameter name under prefix to an env var: /janus/prod/database/password -> DATABASE_PASSWORD.
func EnvName(prefix, name string) string {
	name = strings.TrimPrefix(name, prefix)
	name = strings.Trim(name, "/")
	return strings.ToUpper(strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(name))
}

// Load exports every (decrypted) parameter under path with setenv and returns how many were set.
func Load(ctx context.Context, client SSMAPI, path string, setenv func(key, value string) error) (int, error) {
	prefix := "/" + strings.Trim(path, "/") + "/"
	paginator := ssm.NewGetParametersByPathPaginator(client, &ssm.GetParametersByPathInput{
		Path:           aws.String(prefix),
		WithDecryption: aws.Bool(true),
		Recursive:      aws.Bool(true),
	})

	var n int
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return n, errors.Wrapf(err, "loading parameters under %s", prefix)
		}
		for _, param := range out.Parameters {
			key := EnvName(prefix, aws.ToString(param.Name))
			if key == "" {
				continue
			}
			if err := setenv(key, aws.ToString(param.Value)); err != nil {
				return n, errors.Wrapf(err, "setting %s", key)
			}
			n++
		}
	}
	return n, nil
}

// LoadFromAWS is Load with the default credentials chain, exporting to the environment.
// Names get envPrefix, the config ENV, so that they are read like any other setting.
func LoadFromAWS(ctx context.Context, region, path, envPrefix string) (int, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return 0, errors.Wrap(err, "loading AWS config")
	}
	return Load(ctx, ssm.NewFromConfig(cfg), path, PrefixedSetenv(envPrefix, os.Setenv))
}

func PrefixedSetenv(prefix string, setenv func(key, value string) error) func(key, value string) error {
	prefix = strings.ToUpper(strings.Trim(prefix, "_"))
	if prefix == "" {
		return setenv
	}
	return func(key, value string) error { return setenv(prefix+"_"+key, value) }
}
