package client

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/iam"
)

// IAMAPI defines the IAM operations used for role and instance profile
// management.
type IAMAPI interface {
	GetRole(
		ctx context.Context,
		params *iam.GetRoleInput,
		optFns ...func(*iam.Options),
	) (*iam.GetRoleOutput, error)
	CreateRole(
		ctx context.Context,
		params *iam.CreateRoleInput,
		optFns ...func(*iam.Options),
	) (*iam.CreateRoleOutput, error)
	DeleteRole(
		ctx context.Context,
		params *iam.DeleteRoleInput,
		optFns ...func(*iam.Options),
	) (*iam.DeleteRoleOutput, error)
	AttachRolePolicy(
		ctx context.Context,
		params *iam.AttachRolePolicyInput,
		optFns ...func(*iam.Options),
	) (*iam.AttachRolePolicyOutput, error)
	DetachRolePolicy(
		ctx context.Context,
		params *iam.DetachRolePolicyInput,
		optFns ...func(*iam.Options),
	) (*iam.DetachRolePolicyOutput, error)
	ListAttachedRolePolicies(
		ctx context.Context,
		params *iam.ListAttachedRolePoliciesInput,
		optFns ...func(*iam.Options),
	) (*iam.ListAttachedRolePoliciesOutput, error)
	CreatePolicy(
		ctx context.Context,
		params *iam.CreatePolicyInput,
		optFns ...func(*iam.Options),
	) (*iam.CreatePolicyOutput, error)
	DeletePolicy(
		ctx context.Context,
		params *iam.DeletePolicyInput,
		optFns ...func(*iam.Options),
	) (*iam.DeletePolicyOutput, error)
	GetInstanceProfile(
		ctx context.Context,
		params *iam.GetInstanceProfileInput,
		optFns ...func(*iam.Options),
	) (*iam.GetInstanceProfileOutput, error)
	CreateInstanceProfile(
		ctx context.Context,
		params *iam.CreateInstanceProfileInput,
		optFns ...func(*iam.Options),
	) (*iam.CreateInstanceProfileOutput, error)
	DeleteInstanceProfile(
		ctx context.Context,
		params *iam.DeleteInstanceProfileInput,
		optFns ...func(*iam.Options),
	) (*iam.DeleteInstanceProfileOutput, error)
	AddRoleToInstanceProfile(
		ctx context.Context,
		params *iam.AddRoleToInstanceProfileInput,
		optFns ...func(*iam.Options),
	) (*iam.AddRoleToInstanceProfileOutput, error)
	RemoveRoleFromInstanceProfile(
		ctx context.Context,
		params *iam.RemoveRoleFromInstanceProfileInput,
		optFns ...func(*iam.Options),
	) (*iam.RemoveRoleFromInstanceProfileOutput, error)
}
