// Package client wraps the AWS SDK service clients behind narrow
// interfaces so the deployment logic can be tested with mock
// implementations.
package client

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Clients bundles the service clients one deployment run needs.
type Clients struct {
	Beanstalk BeanstalkAPI
	ELB       ELBAPI
	IAM       IAMAPI
	S3        S3API
	STS       STSAPI
	ACM       ACMAPI
	Route53   Route53API
	EC2       EC2API
}

// LoadAWSConfig loads the default AWS SDK configuration for a region.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS SDK configuration: %w", err)
	}
	return cfg, nil
}

// New builds the service clients from a loaded SDK configuration.
func New(cfg aws.Config) *Clients {
	return &Clients{
		Beanstalk: elasticbeanstalk.NewFromConfig(cfg),
		ELB:       elbv2.NewFromConfig(cfg),
		IAM:       iam.NewFromConfig(cfg),
		S3:        s3.NewFromConfig(cfg),
		STS:       sts.NewFromConfig(cfg),
		ACM:       acm.NewFromConfig(cfg),
		Route53:   route53.NewFromConfig(cfg),
		EC2:       ec2.NewFromConfig(cfg),
	}
}
