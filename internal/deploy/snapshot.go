package deploy

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"drydock/internal/authgate"
	"drydock/internal/aws/client"
	"drydock/internal/constants"
	apperrors "drydock/internal/errors"
	"drydock/internal/output"
)

// Snapshot captures the HTTPS listener's OIDC rule configuration ahead
// of an environment update that may discard it. The client secret is
// not part of the snapshot: the platform never returns it, so restore
// re-resolves it from the caller.
type Snapshot struct {
	LoadBalancerARN string
	Rule            authgate.RuleConfig
}

// SecretSource supplies the OIDC client secret at restore time.
type SecretSource func(ctx context.Context) (string, error)

// Preserve captures the environment's OIDC rule configuration. It
// returns nil when there is nothing to preserve: no load balancer yet
// (first deploy), no HTTPS listener, or no authentication rule.
func Preserve(ctx context.Context, elb client.ELBAPI, resolver *Resolver, envName string) (*Snapshot, error) {
	lbARN, err := resolver.LoadBalancer(ctx, envName)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	listenerARN, err := resolver.ListenerByPort(ctx, lbARN, constants.HTTPSPort)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	rules, err := elb.DescribeRules(ctx, &elbv2.DescribeRulesInput{
		ListenerArn: aws.String(listenerARN),
	})
	if err != nil {
		return nil, apperrors.Remote("describing listener rules", err)
	}

	rule, ok := authgate.CaptureRuleConfig(rules.Rules)
	if !ok {
		return nil, nil
	}

	output.Info("Preserved OIDC listener configuration")
	return &Snapshot{LoadBalancerARN: lbARN, Rule: rule}, nil
}

// Restore re-applies a preserved OIDC rule configuration. It must run
// only after the environment is back in its ready state: the listener
// may not exist during the update window, and its identity may have
// changed, so the listener is re-resolved by environment tag. A nil
// snapshot is a no-op.
func Restore(
	ctx context.Context,
	elb client.ELBAPI,
	resolver *Resolver,
	envName string,
	snap *Snapshot,
	secret SecretSource,
) error {
	if snap == nil {
		return nil
	}

	output.Step("Restoring OIDC listener configuration")
	listenerARN, lbARN, err := resolver.HTTPSListener(ctx, envName)
	if err != nil {
		return err
	}
	targetGroupARN, err := resolver.TargetGroup(ctx, lbARN)
	if err != nil {
		return err
	}

	clientSecret, err := secret(ctx)
	if err != nil {
		return err
	}

	return authgate.ApplyRules(ctx, elb, listenerARN, targetGroupARN, snap.Rule, clientSecret)
}
