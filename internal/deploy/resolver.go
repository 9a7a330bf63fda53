// Package deploy drives Elastic Beanstalk environment provisioning:
// bundling, version registration, IAM setup, create-or-update
// reconciliation with listener state preservation, and teardown.
package deploy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"drydock/internal/aws/client"
	"drydock/internal/constants"
	apperrors "drydock/internal/errors"
)

// Resolver locates remote resources by name and tag. All lookups are
// read-only; absence is reported as a typed not-found error so callers
// can distinguish a first deploy from a failed lookup.
type Resolver struct {
	eb  client.BeanstalkAPI
	elb client.ELBAPI
}

// NewResolver builds a Resolver.
func NewResolver(eb client.BeanstalkAPI, elb client.ELBAPI) *Resolver {
	return &Resolver{eb: eb, elb: elb}
}

// Environment returns the named environment, excluding deleted ones.
func (r *Resolver) Environment(ctx context.Context, envName string) (*ebtypes.EnvironmentDescription, error) {
	out, err := r.eb.DescribeEnvironments(ctx, &elasticbeanstalk.DescribeEnvironmentsInput{
		EnvironmentNames: []string{envName},
		IncludeDeleted:   aws.Bool(false),
	})
	if err != nil {
		return nil, apperrors.Remote("describing environment", err)
	}
	if len(out.Environments) == 0 {
		return nil, apperrors.NotFound("describing environment",
			fmt.Sprintf("environment %s not found", envName))
	}
	return &out.Environments[0], nil
}

// LoadBalancer returns the ARN of the application load balancer tagged
// to the environment. Tags are the only durable link: the balancer is
// recreated with a new identity across environment updates.
func (r *Resolver) LoadBalancer(ctx context.Context, envName string) (string, error) {
	var marker *string
	for {
		out, err := r.elb.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{
			Marker: marker,
		})
		if err != nil {
			return "", apperrors.Remote("describing load balancers", err)
		}

		for _, lb := range out.LoadBalancers {
			if lb.Type != elbtypes.LoadBalancerTypeEnumApplication {
				continue
			}
			tagged, err := r.balancerTaggedTo(ctx, aws.ToString(lb.LoadBalancerArn), envName)
			if err != nil {
				return "", err
			}
			if tagged {
				return aws.ToString(lb.LoadBalancerArn), nil
			}
		}

		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}
	return "", apperrors.NotFound("resolving load balancer",
		fmt.Sprintf("no load balancer found for environment %s", envName))
}

func (r *Resolver) balancerTaggedTo(ctx context.Context, lbARN, envName string) (bool, error) {
	tags, err := r.elb.DescribeTags(ctx, &elbv2.DescribeTagsInput{
		ResourceArns: []string{lbARN},
	})
	if err != nil {
		return false, apperrors.Remote("describing load balancer tags", err)
	}
	for _, desc := range tags.TagDescriptions {
		for _, tag := range desc.Tags {
			if aws.ToString(tag.Key) == constants.EnvironmentTagKey &&
				aws.ToString(tag.Value) == envName {
				return true, nil
			}
		}
	}
	return false, nil
}

// ListenerByPort returns the ARN of the balancer's listener on the
// given port.
func (r *Resolver) ListenerByPort(ctx context.Context, lbARN string, port int32) (string, error) {
	out, err := r.elb.DescribeListeners(ctx, &elbv2.DescribeListenersInput{
		LoadBalancerArn: aws.String(lbARN),
	})
	if err != nil {
		return "", apperrors.Remote("describing listeners", err)
	}
	for _, listener := range out.Listeners {
		if aws.ToInt32(listener.Port) == port {
			return aws.ToString(listener.ListenerArn), nil
		}
	}
	return "", apperrors.NotFound("resolving listener",
		fmt.Sprintf("no listener on port %d", port))
}

// HTTPSListener resolves the environment's HTTPS listener, confirming
// the environment exists first.
func (r *Resolver) HTTPSListener(ctx context.Context, envName string) (string, string, error) {
	if _, err := r.Environment(ctx, envName); err != nil {
		return "", "", err
	}
	lbARN, err := r.LoadBalancer(ctx, envName)
	if err != nil {
		return "", "", err
	}
	listenerARN, err := r.ListenerByPort(ctx, lbARN, constants.HTTPSPort)
	if err != nil {
		return "", "", err
	}
	return listenerARN, lbARN, nil
}

// HTTPListener resolves the balancer's plain HTTP listener.
func (r *Resolver) HTTPListener(ctx context.Context, lbARN string) (string, error) {
	return r.ListenerByPort(ctx, lbARN, constants.HTTPPort)
}

// TargetGroup returns the ARN of the balancer's first target group.
func (r *Resolver) TargetGroup(ctx context.Context, lbARN string) (string, error) {
	out, err := r.elb.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{
		LoadBalancerArn: aws.String(lbARN),
	})
	if err != nil {
		return "", apperrors.Remote("describing target groups", err)
	}
	if len(out.TargetGroups) == 0 {
		return "", apperrors.NotFound("resolving target group",
			"no target groups found for load balancer")
	}
	return aws.ToString(out.TargetGroups[0].TargetGroupArn), nil
}
