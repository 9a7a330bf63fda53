package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"drydock/internal/aws/client"
	"drydock/internal/config"
	apperrors "drydock/internal/errors"
	"drydock/internal/output"
)

// Teardown terminates the environment and, when no other environments
// remain, removes the IAM roles, instance profile, artifact bucket, and
// the generated EB CLI configuration.
func (d *Deployer) Teardown(ctx context.Context) error {
	envName := d.cfg.Application.Environment

	_, err := d.resolver.Environment(ctx, envName)
	switch {
	case err == nil:
		output.Step("Terminating environment %s", envName)
		if _, err := d.clients.Beanstalk.TerminateEnvironment(ctx, &elasticbeanstalk.TerminateEnvironmentInput{
			EnvironmentName: aws.String(envName),
		}); err != nil {
			return apperrors.Remote("terminating environment", err)
		}
		if err := d.reconciler.waitForStatus(ctx, envName, ebtypes.EnvironmentStatusTerminated); err != nil {
			return err
		}
	case apperrors.IsNotFound(err):
		output.Info("Environment %s does not exist or is already terminated", envName)
	default:
		return err
	}

	inUse, err := d.anyEnvironmentsRemain(ctx)
	if err != nil {
		return err
	}
	if inUse {
		output.Warning("Other environments are still active, skipping resource cleanup")
	} else {
		output.Step("Cleaning up shared resources")
		if err := d.cleanupRole(ctx, d.cfg.IAM.ServiceRoleName, d.cfg.IAM.ServiceRolePolicies); err != nil {
			return err
		}
		if err := d.cleanupInstanceProfile(ctx); err != nil {
			return err
		}
		if err := d.deleteApplication(ctx); err != nil {
			return err
		}
		if err := d.cleanupBucket(ctx); err != nil {
			return err
		}
	}

	if err := RemoveEBCLIConfig(d.cfg.ProjectRoot); err != nil {
		return err
	}
	output.Success("Cleanup complete")
	return nil
}

func (d *Deployer) anyEnvironmentsRemain(ctx context.Context) (bool, error) {
	out, err := d.clients.Beanstalk.DescribeEnvironments(ctx, &elasticbeanstalk.DescribeEnvironmentsInput{
		IncludeDeleted: aws.Bool(false),
	})
	if err != nil {
		return false, apperrors.Remote("describing environments", err)
	}
	return len(out.Environments) > 0, nil
}

// deleteApplication removes the application record along with its
// registered versions. An already-absent application is fine.
func (d *Deployer) deleteApplication(ctx context.Context) error {
	appName := d.cfg.Application.Name
	output.Info("Deleting application %s", appName)

	if _, err := d.clients.Beanstalk.DeleteApplication(ctx, &elasticbeanstalk.DeleteApplicationInput{
		ApplicationName: aws.String(appName),
	}); err != nil {
		if client.IsNotFound(err) {
			return nil
		}
		return apperrors.Remote("deleting application", err)
	}
	return nil
}

// cleanupRole detaches the role's policies, deletes role-scoped custom
// policies, and removes the role. An absent role is fine.
func (d *Deployer) cleanupRole(ctx context.Context, roleName string, policies config.RolePolicies) error {
	output.Info("Cleaning up role %s", roleName)

	attached, err := d.clients.IAM.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if client.IsNotFound(err) {
			return nil
		}
		return apperrors.Remote("listing attached role policies", err)
	}

	customNames := make(map[string]struct{}, len(policies.CustomPolicies))
	for _, policyFile := range policies.CustomPolicies {
		name := fmt.Sprintf("%s-%s", roleName, strings.TrimSuffix(policyFile, ".json"))
		customNames[name] = struct{}{}
	}

	for _, p := range attached.AttachedPolicies {
		if _, err := d.clients.IAM.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(roleName),
			PolicyArn: p.PolicyArn,
		}); err != nil {
			output.Warning("Failed to detach policy %s: %v", aws.ToString(p.PolicyArn), err)
			continue
		}
		if _, custom := customNames[aws.ToString(p.PolicyName)]; custom {
			if _, err := d.clients.IAM.DeletePolicy(ctx, &iam.DeletePolicyInput{
				PolicyArn: p.PolicyArn,
			}); err != nil && !client.IsNotFound(err) {
				output.Warning("Failed to delete policy %s: %v", aws.ToString(p.PolicyName), err)
			}
		}
	}

	if _, err := d.clients.IAM.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(roleName),
	}); err != nil && !client.IsNotFound(err) {
		return apperrors.Remote("deleting role", err)
	}
	return nil
}

func (d *Deployer) cleanupInstanceProfile(ctx context.Context) error {
	profileName := d.cfg.IAM.InstanceProfileName
	roleName := d.cfg.IAM.InstanceRoleName
	output.Info("Cleaning up instance profile %s", profileName)

	if _, err := d.clients.IAM.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	}); err != nil && !client.IsNotFound(err) {
		output.Warning("Failed to remove role from instance profile: %v", err)
	}

	if _, err := d.clients.IAM.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
	}); err != nil && !client.IsNotFound(err) {
		return apperrors.Remote("deleting instance profile", err)
	}

	return d.cleanupRole(ctx, roleName, d.cfg.IAM.InstanceRolePolicies)
}

// cleanupBucket empties and removes the artifact bucket.
func (d *Deployer) cleanupBucket(ctx context.Context) error {
	bucket := d.cfg.ArtifactBucket()
	output.Info("Cleaning up artifact bucket %s", bucket)

	var token *string
	for {
		page, err := d.clients.S3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			if client.IsNotFound(err) {
				return nil
			}
			return apperrors.Remote("listing bucket objects", err)
		}

		if len(page.Contents) > 0 {
			objects := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
			for _, obj := range page.Contents {
				objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
			}
			if _, err := d.clients.S3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &s3types.Delete{Objects: objects},
			}); err != nil {
				return apperrors.Remote("deleting bucket objects", err)
			}
		}

		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		token = page.NextContinuationToken
	}

	if _, err := d.clients.S3.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	}); err != nil && !client.IsNotFound(err) {
		return apperrors.Remote("deleting artifact bucket", err)
	}
	return nil
}
