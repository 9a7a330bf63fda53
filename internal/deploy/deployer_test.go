package deploy

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drydock/internal/aws/client"
	apperrors "drydock/internal/errors"
)

func testDeployer(clients *client.Clients) *Deployer {
	d := NewDeployer(clients, testConfig(), noSecret)
	d.pollInterval = time.Millisecond
	return d
}

func TestEnsureApplicationCreatesWhenAbsent(t *testing.T) {
	var created *elasticbeanstalk.CreateApplicationInput
	eb := &mockBeanstalkAPI{
		describeApplicationsFunc: func(_ context.Context, _ *elasticbeanstalk.DescribeApplicationsInput, _ ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.DescribeApplicationsOutput, error) {
			return &elasticbeanstalk.DescribeApplicationsOutput{}, nil
		},
		createApplicationFunc: func(_ context.Context, params *elasticbeanstalk.CreateApplicationInput, _ ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.CreateApplicationOutput, error) {
			created = params
			return &elasticbeanstalk.CreateApplicationOutput{}, nil
		},
	}
	d := testDeployer(&client.Clients{Beanstalk: eb, ELB: &mockELBAPI{}})

	require.NoError(t, d.ensureApplication(context.Background()))
	require.NotNil(t, created)
	assert.Equal(t, "myapp", aws.ToString(created.ApplicationName))
	assert.Equal(t, "Application managed by drydock", aws.ToString(created.Description))
}

func TestEnsureApplicationKeepsExisting(t *testing.T) {
	eb := &mockBeanstalkAPI{
		describeApplicationsFunc: func(_ context.Context, _ *elasticbeanstalk.DescribeApplicationsInput, _ ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.DescribeApplicationsOutput, error) {
			return &elasticbeanstalk.DescribeApplicationsOutput{
				Applications: []ebtypes.ApplicationDescription{
					{ApplicationName: aws.String("myapp")},
				},
			}, nil
		},
	}
	d := testDeployer(&client.Clients{Beanstalk: eb, ELB: &mockELBAPI{}})

	require.NoError(t, d.ensureApplication(context.Background()))
}

func TestEnsureBucketSkipsExisting(t *testing.T) {
	createCalled := false
	s3Mock := &mockS3API{
		headBucketFunc: func(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
			return &s3.HeadBucketOutput{}, nil
		},
		createBucketFunc: func(_ context.Context, _ *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
			createCalled = true
			return &s3.CreateBucketOutput{}, nil
		},
	}
	d := testDeployer(&client.Clients{Beanstalk: &mockBeanstalkAPI{}, ELB: &mockELBAPI{}, S3: s3Mock})

	require.NoError(t, d.ensureBucket(context.Background(), "elasticbeanstalk-us-east-1-myapp"))
	assert.False(t, createCalled)
}

func TestEnsureBucketCreatesWithoutConstraintInUSEast1(t *testing.T) {
	var created *s3.CreateBucketInput
	s3Mock := &mockS3API{
		headBucketFunc: func(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
			return nil, apiErr("NotFound")
		},
		createBucketFunc: func(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
			created = params
			return &s3.CreateBucketOutput{}, nil
		},
	}
	d := testDeployer(&client.Clients{Beanstalk: &mockBeanstalkAPI{}, ELB: &mockELBAPI{}, S3: s3Mock})

	require.NoError(t, d.ensureBucket(context.Background(), "elasticbeanstalk-us-east-1-myapp"))
	require.NotNil(t, created)
	assert.Nil(t, created.CreateBucketConfiguration)
}

func TestEnsureBucketSetsLocationConstraint(t *testing.T) {
	var created *s3.CreateBucketInput
	s3Mock := &mockS3API{
		headBucketFunc: func(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
			return nil, apiErr("NotFound")
		},
		createBucketFunc: func(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
			created = params
			return &s3.CreateBucketOutput{}, nil
		},
	}
	cfg := testConfig()
	cfg.AWS.Region = "eu-west-1"
	d := NewDeployer(&client.Clients{Beanstalk: &mockBeanstalkAPI{}, ELB: &mockELBAPI{}, S3: s3Mock}, cfg, noSecret)

	require.NoError(t, d.ensureBucket(context.Background(), "elasticbeanstalk-eu-west-1-myapp"))
	require.NotNil(t, created)
	require.NotNil(t, created.CreateBucketConfiguration)
	assert.Equal(t, "eu-west-1", string(created.CreateBucketConfiguration.LocationConstraint))
}

func TestEnsureBucketToleratesOwnedBucketRace(t *testing.T) {
	s3Mock := &mockS3API{
		headBucketFunc: func(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
			return nil, apiErr("NotFound")
		},
		createBucketFunc: func(_ context.Context, _ *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
			return nil, apiErr("BucketAlreadyOwnedByYou")
		},
	}
	d := testDeployer(&client.Clients{Beanstalk: &mockBeanstalkAPI{}, ELB: &mockELBAPI{}, S3: s3Mock})

	require.NoError(t, d.ensureBucket(context.Background(), "elasticbeanstalk-us-east-1-myapp"))
}

func TestWaitForVersionProcessed(t *testing.T) {
	calls := 0
	eb := &mockBeanstalkAPI{
		describeApplicationVersionsFunc: func(_ context.Context, _ *elasticbeanstalk.DescribeApplicationVersionsInput, _ ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.DescribeApplicationVersionsOutput, error) {
			calls++
			status := ebtypes.ApplicationVersionStatusProcessing
			if calls >= 2 {
				status = ebtypes.ApplicationVersionStatusProcessed
			}
			return &elasticbeanstalk.DescribeApplicationVersionsOutput{
				ApplicationVersions: []ebtypes.ApplicationVersionDescription{
					{VersionLabel: aws.String("v20240101_120000"), Status: status},
				},
			}, nil
		},
	}
	d := testDeployer(&client.Clients{Beanstalk: eb, ELB: &mockELBAPI{}})

	require.NoError(t, d.waitForVersion(context.Background(), "v20240101_120000"))
	assert.Equal(t, 2, calls)
}

func TestWaitForVersionFailed(t *testing.T) {
	eb := &mockBeanstalkAPI{
		describeApplicationVersionsFunc: func(_ context.Context, _ *elasticbeanstalk.DescribeApplicationVersionsInput, _ ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.DescribeApplicationVersionsOutput, error) {
			return &elasticbeanstalk.DescribeApplicationVersionsOutput{
				ApplicationVersions: []ebtypes.ApplicationVersionDescription{
					{VersionLabel: aws.String("v20240101_120000"), Status: ebtypes.ApplicationVersionStatusFailed},
				},
			}, nil
		},
	}
	d := testDeployer(&client.Clients{Beanstalk: eb, ELB: &mockELBAPI{}})

	err := d.waitForVersion(context.Background(), "v20240101_120000")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindProcessing, apperrors.GetKind(err))
}
