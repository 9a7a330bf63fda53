package client

import (
	"context"

	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
)

// ELBAPI defines the Elastic Load Balancing v2 operations used for
// listener and rule management.
type ELBAPI interface {
	DescribeLoadBalancers(
		ctx context.Context,
		params *elbv2.DescribeLoadBalancersInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.DescribeLoadBalancersOutput, error)
	DescribeTags(
		ctx context.Context,
		params *elbv2.DescribeTagsInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.DescribeTagsOutput, error)
	DescribeListeners(
		ctx context.Context,
		params *elbv2.DescribeListenersInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.DescribeListenersOutput, error)
	CreateListener(
		ctx context.Context,
		params *elbv2.CreateListenerInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.CreateListenerOutput, error)
	ModifyListener(
		ctx context.Context,
		params *elbv2.ModifyListenerInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.ModifyListenerOutput, error)
	DescribeRules(
		ctx context.Context,
		params *elbv2.DescribeRulesInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.DescribeRulesOutput, error)
	CreateRule(
		ctx context.Context,
		params *elbv2.CreateRuleInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.CreateRuleOutput, error)
	DeleteRule(
		ctx context.Context,
		params *elbv2.DeleteRuleInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.DeleteRuleOutput, error)
	DescribeTargetGroups(
		ctx context.Context,
		params *elbv2.DescribeTargetGroupsInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.DescribeTargetGroupsOutput, error)
}
