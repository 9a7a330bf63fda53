package client

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"
)

// BeanstalkAPI defines the Elastic Beanstalk operations used by the
// deployment logic. The concrete SDK client satisfies it directly.
type BeanstalkAPI interface {
	DescribeApplications(
		ctx context.Context,
		params *elasticbeanstalk.DescribeApplicationsInput,
		optFns ...func(*elasticbeanstalk.Options),
	) (*elasticbeanstalk.DescribeApplicationsOutput, error)
	CreateApplication(
		ctx context.Context,
		params *elasticbeanstalk.CreateApplicationInput,
		optFns ...func(*elasticbeanstalk.Options),
	) (*elasticbeanstalk.CreateApplicationOutput, error)
	DeleteApplication(
		ctx context.Context,
		params *elasticbeanstalk.DeleteApplicationInput,
		optFns ...func(*elasticbeanstalk.Options),
	) (*elasticbeanstalk.DeleteApplicationOutput, error)
	CreateApplicationVersion(
		ctx context.Context,
		params *elasticbeanstalk.CreateApplicationVersionInput,
		optFns ...func(*elasticbeanstalk.Options),
	) (*elasticbeanstalk.CreateApplicationVersionOutput, error)
	DescribeApplicationVersions(
		ctx context.Context,
		params *elasticbeanstalk.DescribeApplicationVersionsInput,
		optFns ...func(*elasticbeanstalk.Options),
	) (*elasticbeanstalk.DescribeApplicationVersionsOutput, error)
	DescribeEnvironments(
		ctx context.Context,
		params *elasticbeanstalk.DescribeEnvironmentsInput,
		optFns ...func(*elasticbeanstalk.Options),
	) (*elasticbeanstalk.DescribeEnvironmentsOutput, error)
	CreateEnvironment(
		ctx context.Context,
		params *elasticbeanstalk.CreateEnvironmentInput,
		optFns ...func(*elasticbeanstalk.Options),
	) (*elasticbeanstalk.CreateEnvironmentOutput, error)
	UpdateEnvironment(
		ctx context.Context,
		params *elasticbeanstalk.UpdateEnvironmentInput,
		optFns ...func(*elasticbeanstalk.Options),
	) (*elasticbeanstalk.UpdateEnvironmentOutput, error)
	TerminateEnvironment(
		ctx context.Context,
		params *elasticbeanstalk.TerminateEnvironmentInput,
		optFns ...func(*elasticbeanstalk.Options),
	) (*elasticbeanstalk.TerminateEnvironmentOutput, error)
	DescribeEvents(
		ctx context.Context,
		params *elasticbeanstalk.DescribeEventsInput,
		optFns ...func(*elasticbeanstalk.Options),
	) (*elasticbeanstalk.DescribeEventsOutput, error)
	ListAvailableSolutionStacks(
		ctx context.Context,
		params *elasticbeanstalk.ListAvailableSolutionStacksInput,
		optFns ...func(*elasticbeanstalk.Options),
	) (*elasticbeanstalk.ListAvailableSolutionStacksOutput, error)
}
