package client

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/acm"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/route53"
)

// ACMAPI defines the certificate lookup operations used when enabling
// HTTPS on an environment.
type ACMAPI interface {
	DescribeCertificate(
		ctx context.Context,
		params *acm.DescribeCertificateInput,
		optFns ...func(*acm.Options),
	) (*acm.DescribeCertificateOutput, error)
}

// Route53API defines the DNS operations used for environment record
// management.
type Route53API interface {
	ListHostedZones(
		ctx context.Context,
		params *route53.ListHostedZonesInput,
		optFns ...func(*route53.Options),
	) (*route53.ListHostedZonesOutput, error)
	ChangeResourceRecordSets(
		ctx context.Context,
		params *route53.ChangeResourceRecordSetsInput,
		optFns ...func(*route53.Options),
	) (*route53.ChangeResourceRecordSetsOutput, error)
}

// EC2API defines the security group operations used when opening the
// HTTPS port.
type EC2API interface {
	DescribeSecurityGroups(
		ctx context.Context,
		params *ec2.DescribeSecurityGroupsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeSecurityGroupsOutput, error)
	AuthorizeSecurityGroupIngress(
		ctx context.Context,
		params *ec2.AuthorizeSecurityGroupIngressInput,
		optFns ...func(*ec2.Options),
	) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
}
