package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"drydock/internal/aws/client"
	"drydock/internal/bundle"
	"drydock/internal/config"
	"drydock/internal/constants"
	apperrors "drydock/internal/errors"
	"drydock/internal/output"
)

// Deployer sequences a full deployment: bundle, upload, register
// version, wait for processing, ensure IAM, reconcile the environment.
type Deployer struct {
	clients    *client.Clients
	cfg        *config.Config
	resolver   *Resolver
	reconciler *Reconciler
	iamMgr     *IAMManager

	pollInterval time.Duration
}

// NewDeployer wires a Deployer from the service clients and project
// configuration. The secret source is used only when an update must
// restore preserved OIDC listener state.
func NewDeployer(clients *client.Clients, cfg *config.Config, secret SecretSource) *Deployer {
	resolver := NewResolver(clients.Beanstalk, clients.ELB)
	return &Deployer{
		clients:      clients,
		cfg:          cfg,
		resolver:     resolver,
		reconciler:   NewReconciler(clients.Beanstalk, clients.ELB, resolver, cfg, secret),
		iamMgr:       NewIAMManager(clients.IAM, clients.STS, cfg.PoliciesDir()),
		pollInterval: constants.PollInterval,
	}
}

// Deploy runs the full deployment sequence. Any step failure aborts the
// run; no partial rollback is attempted beyond the preserve/restore
// protocol inside reconciliation.
func (d *Deployer) Deploy(ctx context.Context) error {
	output.Header(fmt.Sprintf("Deploying %s to %s", d.cfg.Application.Name, d.cfg.AWS.Region))

	if err := d.resolvePlatform(ctx); err != nil {
		return err
	}
	output.KeyValue("Platform", d.cfg.AWS.Platform)

	if err := WriteEBCLIConfig(d.cfg); err != nil {
		return err
	}

	if err := d.iamMgr.EnsureRole(ctx, d.cfg.IAM.ServiceRoleName, d.cfg.IAM.ServiceRolePolicies); err != nil {
		return err
	}
	if err := d.iamMgr.EnsureInstanceProfile(ctx, d.cfg.IAM); err != nil {
		return err
	}

	if err := d.ensureApplication(ctx); err != nil {
		return err
	}

	versionLabel := "v" + time.Now().Format("20060102_150405")
	if err := d.publishVersion(ctx, versionLabel); err != nil {
		return err
	}

	if err := d.reconciler.Reconcile(ctx, versionLabel); err != nil {
		return err
	}

	output.Success("Deployment of %s complete", versionLabel)
	return nil
}

func (d *Deployer) ensureApplication(ctx context.Context) error {
	appName := d.cfg.Application.Name
	out, err := d.clients.Beanstalk.DescribeApplications(ctx, &elasticbeanstalk.DescribeApplicationsInput{
		ApplicationNames: []string{appName},
	})
	if err != nil {
		return apperrors.Remote("describing application", err)
	}
	if len(out.Applications) > 0 {
		return nil
	}

	output.Step("Creating application %s", appName)
	description := d.cfg.Application.Description
	if description == "" {
		description = "Application managed by drydock"
	}
	if _, err := d.clients.Beanstalk.CreateApplication(ctx, &elasticbeanstalk.CreateApplicationInput{
		ApplicationName: aws.String(appName),
		Description:     aws.String(description),
	}); err != nil {
		return apperrors.Remote("creating application", err)
	}
	return nil
}

// publishVersion bundles the project, uploads the archive, registers
// the application version, and waits until the platform has processed
// it.
func (d *Deployer) publishVersion(ctx context.Context, versionLabel string) error {
	bucket := d.cfg.ArtifactBucket()
	if err := d.ensureBucket(ctx, bucket); err != nil {
		return err
	}

	output.Step("Creating application bundle")
	bundlePath, fileCount, err := bundle.Create(d.cfg.ProjectRoot)
	if err != nil {
		return err
	}
	defer os.Remove(bundlePath)
	output.Info("Bundled %d files", fileCount)

	key := fmt.Sprintf("app-%s.zip", versionLabel)
	if err := d.upload(ctx, bucket, key, bundlePath); err != nil {
		return err
	}

	if _, err := d.clients.Beanstalk.CreateApplicationVersion(ctx, &elasticbeanstalk.CreateApplicationVersionInput{
		ApplicationName: aws.String(d.cfg.Application.Name),
		VersionLabel:    aws.String(versionLabel),
		SourceBundle: &ebtypes.S3Location{
			S3Bucket: aws.String(bucket),
			S3Key:    aws.String(key),
		},
		Process: aws.Bool(true),
	}); err != nil {
		return apperrors.Remote("creating application version", err)
	}

	return d.waitForVersion(ctx, versionLabel)
}

// ensureBucket creates the artifact bucket when absent. Regions other
// than us-east-1 require an explicit location constraint.
func (d *Deployer) ensureBucket(ctx context.Context, bucket string) error {
	_, err := d.clients.S3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}
	if !client.IsNotFound(err) {
		return apperrors.Remote("checking artifact bucket", err)
	}

	output.Step("Creating artifact bucket %s", bucket)
	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if d.cfg.AWS.Region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(d.cfg.AWS.Region),
		}
	}
	if _, err := d.clients.S3.CreateBucket(ctx, input); err != nil {
		if client.IsAlreadyExists(err) {
			return nil
		}
		return apperrors.Remote("creating artifact bucket", err)
	}
	return nil
}

func (d *Deployer) upload(ctx context.Context, bucket, key, bundlePath string) error {
	f, err := os.Open(bundlePath)
	if err != nil {
		return apperrors.Processing(fmt.Sprintf("opening bundle: %v", err))
	}
	defer f.Close()

	output.Step("Uploading %s", key)
	if _, err := d.clients.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return apperrors.Remote("uploading application bundle", err)
	}
	return nil
}

// waitForVersion polls until the application version is processed. A
// failed version aborts the deployment.
func (d *Deployer) waitForVersion(ctx context.Context, versionLabel string) error {
	output.Step("Waiting for application version to be processed")
	for {
		out, err := d.clients.Beanstalk.DescribeApplicationVersions(ctx, &elasticbeanstalk.DescribeApplicationVersionsInput{
			ApplicationName: aws.String(d.cfg.Application.Name),
			VersionLabels:   []string{versionLabel},
		})
		if err != nil {
			return apperrors.Remote("describing application versions", err)
		}
		if len(out.ApplicationVersions) == 0 {
			return apperrors.NotFound("waiting for version",
				fmt.Sprintf("version %s not found", versionLabel))
		}

		switch status := out.ApplicationVersions[0].Status; status {
		case ebtypes.ApplicationVersionStatusProcessed:
			return nil
		case ebtypes.ApplicationVersionStatusFailed:
			return apperrors.Processing(
				fmt.Sprintf("version %s processing failed", versionLabel))
		default:
			slog.Debug("version still processing", "status", status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pollInterval):
		}
	}
}
