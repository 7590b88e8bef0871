// Package identity resolves the caller's cloud identity. The workflow uses
// it as a credential preflight: resolving the account ID up front fails fast
// on bad credentials before any catalog or table work starts.
package identity

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/florinutz/icereplace/icereplaceerr"
)

// Provider resolves the caller's account identifier.
type Provider interface {
	AccountID(ctx context.Context) (string, error)
}

// stsAPI is the slice of the STS client the provider needs.
type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// STS resolves identity via AWS STS GetCallerIdentity.
type STS struct {
	client stsAPI
}

// OpenSTS builds an STS provider from the ambient AWS credential chain.
func OpenSTS(ctx context.Context, region string) (*STS, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, &icereplaceerr.AuthError{Err: err}
	}
	return &STS{client: sts.NewFromConfig(cfg)}, nil
}

// NewSTS wraps an existing client. Used by tests.
func NewSTS(client stsAPI) *STS {
	return &STS{client: client}
}

// AccountID returns the caller's AWS account ID.
func (s *STS) AccountID(ctx context.Context) (string, error) {
	out, err := s.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", &icereplaceerr.AuthError{Err: err}
	}
	if out.Account == nil || aws.ToString(out.Account) == "" {
		return "", &icereplaceerr.AuthError{Err: errors.New("sts returned no account id")}
	}
	return aws.ToString(out.Account), nil
}

// Static returns a fixed account ID. Used for tests and for catalogs that
// need no cloud identity.
type Static string

func (s Static) AccountID(context.Context) (string, error) {
	return string(s), nil
}
