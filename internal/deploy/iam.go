package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"drydock/internal/aws/client"
	"drydock/internal/config"
	"drydock/internal/constants"
	apperrors "drydock/internal/errors"
	"drydock/internal/output"
)

// IAMManager ensures the roles, custom policies, and the instance
// profile the environment depends on exist and are correctly attached.
type IAMManager struct {
	iam         client.IAMAPI
	sts         client.STSAPI
	policiesDir string
	accountID   string

	// propagationDelay gives IAM time to make a fresh instance profile
	// visible to Elastic Beanstalk. Overridable in tests.
	propagationDelay time.Duration
}

// NewIAMManager builds an IAMManager reading policy documents from
// policiesDir.
func NewIAMManager(iamClient client.IAMAPI, stsClient client.STSAPI, policiesDir string) *IAMManager {
	return &IAMManager{
		iam:              iamClient,
		sts:              stsClient,
		policiesDir:      policiesDir,
		propagationDelay: constants.ProfilePropagationDelay,
	}
}

// EnsureRole creates the role if absent and attaches its managed and
// custom policies. Existing roles are adopted, not recreated.
func (m *IAMManager) EnsureRole(ctx context.Context, roleName string, policies config.RolePolicies) error {
	_, err := m.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	switch {
	case err == nil:
		output.Info("Role %s already exists", roleName)
	case client.IsNotFound(err):
		output.Step("Creating role %s", roleName)
		trustDoc, err := m.loadPolicyDocument(policies.TrustPolicy)
		if err != nil {
			return err
		}
		if _, err := m.iam.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(roleName),
			AssumeRolePolicyDocument: aws.String(trustDoc),
		}); err != nil {
			return apperrors.Remote("creating role", err)
		}
	default:
		return apperrors.Remote("checking role", err)
	}

	for _, arn := range policies.ManagedPolicies {
		if _, err := m.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(roleName),
			PolicyArn: aws.String(arn),
		}); err != nil {
			if client.IsNotFound(err) {
				output.Warning("Managed policy %s not found, skipping", arn)
				continue
			}
			return apperrors.Remote("attaching managed policy", err)
		}
	}

	for _, policyFile := range policies.CustomPolicies {
		if err := m.ensureCustomPolicy(ctx, roleName, policyFile); err != nil {
			return err
		}
	}

	return nil
}

// ensureCustomPolicy creates the role-scoped policy from its JSON
// document if absent, adopting an existing one by its derived ARN, and
// attaches it to the role.
func (m *IAMManager) ensureCustomPolicy(ctx context.Context, roleName, policyFile string) error {
	policyName := fmt.Sprintf("%s-%s", roleName, strings.TrimSuffix(policyFile, ".json"))

	accountID, err := m.callerAccountID(ctx)
	if err != nil {
		return err
	}
	policyARN := fmt.Sprintf("arn:aws:iam::%s:policy/%s", accountID, policyName)

	doc, err := m.loadPolicyDocument(policyFile)
	if err != nil {
		return err
	}

	created, err := m.iam.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(doc),
	})
	switch {
	case err == nil:
		policyARN = aws.ToString(created.Policy.Arn)
		output.Info("Created policy %s", policyName)
	case client.IsAlreadyExists(err):
		output.Info("Policy %s already exists", policyName)
	default:
		return apperrors.Remote("creating policy", err)
	}

	attached, err := m.iam.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		return apperrors.Remote("listing attached role policies", err)
	}
	for _, p := range attached.AttachedPolicies {
		if aws.ToString(p.PolicyArn) == policyARN {
			return nil
		}
	}

	if _, err := m.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyARN),
	}); err != nil {
		return apperrors.Remote("attaching custom policy", err)
	}
	return nil
}

// EnsureInstanceProfile ensures the instance role exists and the
// profile carries exactly that role. A freshly created profile is
// followed by a fixed delay so Elastic Beanstalk can see it.
func (m *IAMManager) EnsureInstanceProfile(ctx context.Context, iamCfg config.IAMConfig) error {
	if err := m.EnsureRole(ctx, iamCfg.InstanceRoleName, iamCfg.InstanceRolePolicies); err != nil {
		return err
	}

	profileName := iamCfg.InstanceProfileName
	roleName := iamCfg.InstanceRoleName

	profile, err := m.iam.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
	})
	if client.IsNotFound(err) {
		output.Step("Creating instance profile %s", profileName)
		if _, err := m.iam.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
			InstanceProfileName: aws.String(profileName),
		}); err != nil {
			return apperrors.Remote("creating instance profile", err)
		}
		if err := m.addRole(ctx, profileName, roleName); err != nil {
			return err
		}
		return m.waitForPropagation(ctx)
	}
	if err != nil {
		return apperrors.Remote("checking instance profile", err)
	}

	roles := profile.InstanceProfile.Roles
	if len(roles) == 1 && aws.ToString(roles[0].RoleName) == roleName {
		return nil
	}
	for _, existing := range roles {
		if _, err := m.iam.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
			InstanceProfileName: aws.String(profileName),
			RoleName:            existing.RoleName,
		}); err != nil {
			return apperrors.Remote("removing role from instance profile", err)
		}
	}
	return m.addRole(ctx, profileName, roleName)
}

func (m *IAMManager) addRole(ctx context.Context, profileName, roleName string) error {
	if _, err := m.iam.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	}); err != nil {
		return apperrors.Remote("adding role to instance profile", err)
	}
	return nil
}

func (m *IAMManager) waitForPropagation(ctx context.Context) error {
	output.Info("Waiting for instance profile propagation")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.propagationDelay):
		return nil
	}
}

func (m *IAMManager) callerAccountID(ctx context.Context) (string, error) {
	if m.accountID != "" {
		return m.accountID, nil
	}
	identity, err := m.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", apperrors.Remote("resolving caller identity", err)
	}
	m.accountID = aws.ToString(identity.Account)
	return m.accountID, nil
}

// loadPolicyDocument reads a JSON policy file from the policies
// directory.
func (m *IAMManager) loadPolicyDocument(filename string) (string, error) {
	if filename == "" {
		return "", apperrors.Configuration("policy file name is empty", nil)
	}
	raw, err := os.ReadFile(filepath.Join(m.policiesDir, filename))
	if err != nil {
		return "", apperrors.Configuration(fmt.Sprintf("loading policy %s", filename), err)
	}
	if !json.Valid(raw) {
		return "", apperrors.Configuration(fmt.Sprintf("policy %s is not valid JSON", filename), nil)
	}
	return string(raw), nil
}
