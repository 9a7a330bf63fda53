package deploy

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk/types"

	"drydock/internal/aws/client"
	"drydock/internal/config"
	"drydock/internal/constants"
	apperrors "drydock/internal/errors"
	"drydock/internal/output"
)

// Reconciler converges the environment on a desired version: create
// when the environment is absent, update when it exists. Updates are
// wrapped with preserve/restore so listener authentication survives
// the operation.
type Reconciler struct {
	eb       client.BeanstalkAPI
	elb      client.ELBAPI
	resolver *Resolver
	cfg      *config.Config
	secret   SecretSource

	// pollInterval is overridable in tests.
	pollInterval time.Duration
}

// NewReconciler builds a Reconciler. The secret source is consulted
// only when a preserved OIDC configuration must be restored.
func NewReconciler(eb client.BeanstalkAPI, elb client.ELBAPI, resolver *Resolver, cfg *config.Config, secret SecretSource) *Reconciler {
	return &Reconciler{
		eb:           eb,
		elb:          elb,
		resolver:     resolver,
		cfg:          cfg,
		secret:       secret,
		pollInterval: constants.PollInterval,
	}
}

// OptionSettings returns the option settings applied on both the
// create and update paths.
func (r *Reconciler) OptionSettings() []ebtypes.ConfigurationOptionSetting {
	return []ebtypes.ConfigurationOptionSetting{
		{
			Namespace:  aws.String("aws:autoscaling:launchconfiguration"),
			OptionName: aws.String("IamInstanceProfile"),
			Value:      aws.String(r.cfg.IAM.InstanceProfileName),
		},
		{
			Namespace:  aws.String("aws:elasticbeanstalk:environment"),
			OptionName: aws.String("ServiceRole"),
			Value:      aws.String(r.cfg.IAM.ServiceRoleName),
		},
		{
			Namespace:  aws.String("aws:autoscaling:launchconfiguration"),
			OptionName: aws.String("InstanceType"),
			Value:      aws.String(r.cfg.Instance.Type),
		},
		{
			Namespace:  aws.String("aws:autoscaling:asg"),
			OptionName: aws.String("MinSize"),
			Value:      aws.String(strconv.Itoa(r.cfg.Instance.Autoscaling.MinInstances)),
		},
		{
			Namespace:  aws.String("aws:autoscaling:asg"),
			OptionName: aws.String("MaxSize"),
			Value:      aws.String(strconv.Itoa(r.cfg.Instance.Autoscaling.MaxInstances)),
		},
	}
}

// Reconcile brings the environment to the given version. The load
// balancer type is set only on the create path: it is immutable once
// the environment exists.
func (r *Reconciler) Reconcile(ctx context.Context, versionLabel string) error {
	envName := r.cfg.Application.Environment
	settings := r.OptionSettings()

	_, err := r.resolver.Environment(ctx, envName)
	switch {
	case err == nil:
		return r.update(ctx, envName, versionLabel, settings)
	case apperrors.IsNotFound(err):
		return r.create(ctx, envName, versionLabel, settings)
	default:
		return err
	}
}

func (r *Reconciler) update(ctx context.Context, envName, versionLabel string, settings []ebtypes.ConfigurationOptionSetting) error {
	output.Step("Updating existing environment")

	snap, err := Preserve(ctx, r.elb, r.resolver, envName)
	if err != nil {
		return err
	}

	if _, err := r.eb.UpdateEnvironment(ctx, &elasticbeanstalk.UpdateEnvironmentInput{
		EnvironmentName: aws.String(envName),
		VersionLabel:    aws.String(versionLabel),
		OptionSettings:  settings,
	}); err != nil {
		return apperrors.Remote("updating environment", err)
	}

	if err := r.WaitForReady(ctx, envName); err != nil {
		return err
	}

	return Restore(ctx, r.elb, r.resolver, envName, snap, r.secret)
}

func (r *Reconciler) create(ctx context.Context, envName, versionLabel string, settings []ebtypes.ConfigurationOptionSetting) error {
	output.Step("Creating new environment")

	settings = append(settings, ebtypes.ConfigurationOptionSetting{
		Namespace:  aws.String("aws:elasticbeanstalk:environment"),
		OptionName: aws.String("LoadBalancerType"),
		Value:      aws.String(r.cfg.Instance.ELBType),
	})

	if _, err := r.eb.CreateEnvironment(ctx, &elasticbeanstalk.CreateEnvironmentInput{
		ApplicationName:   aws.String(r.cfg.Application.Name),
		EnvironmentName:   aws.String(envName),
		VersionLabel:      aws.String(versionLabel),
		SolutionStackName: aws.String(r.cfg.AWS.Platform),
		OptionSettings:    settings,
	}); err != nil {
		return apperrors.Remote("creating environment", err)
	}

	return r.WaitForReady(ctx, envName)
}

// WaitForReady blocks until the environment reports Ready. There is no
// hard timeout: the remote operation has no caller-controllable cap, so
// cancellation comes from the context.
func (r *Reconciler) WaitForReady(ctx context.Context, envName string) error {
	return r.waitForStatus(ctx, envName, ebtypes.EnvironmentStatusReady)
}

func (r *Reconciler) waitForStatus(ctx context.Context, envName string, target ebtypes.EnvironmentStatus) error {
	output.Step("Waiting for environment to be %s", target)
	tracker := newEventTracker(r.eb, envName)

	for {
		out, err := r.eb.DescribeEnvironments(ctx, &elasticbeanstalk.DescribeEnvironmentsInput{
			EnvironmentNames: []string{envName},
			IncludeDeleted:   aws.Bool(false),
		})
		if err != nil {
			if target == ebtypes.EnvironmentStatusTerminated && client.IsNotFound(err) {
				output.Success("Environment terminated")
				return nil
			}
			return apperrors.Remote("describing environment", err)
		}

		if len(out.Environments) == 0 {
			if target == ebtypes.EnvironmentStatusTerminated {
				output.Success("Environment terminated")
				return nil
			}
			return apperrors.NotFound("waiting for environment",
				fmt.Sprintf("environment %s not found", envName))
		}

		tracker.printNew(ctx)

		status := out.Environments[0].Status
		if status == target {
			output.Success("Environment reached %s state", target)
			return nil
		}
		if status == ebtypes.EnvironmentStatusTerminated && target != ebtypes.EnvironmentStatusTerminated {
			return apperrors.Processing(
				fmt.Sprintf("environment %s terminated while waiting for %s", envName, target))
		}
		if string(status) == "Failed" {
			return apperrors.Processing(
				fmt.Sprintf("environment %s failed to reach %s status", envName, target))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}
}
