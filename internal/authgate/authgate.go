// Package authgate configures OIDC authentication on the environment's
// HTTPS listener. It rewrites listener rules so every request must
// authenticate against the identity provider, with unmatched traffic
// denied by a fixed 503 response.
package authgate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"drydock/internal/aws/client"
	"drydock/internal/config"
	apperrors "drydock/internal/errors"
	"drydock/internal/output"
)

// RuleConfig holds the OIDC parameters applied to the authentication
// rule. The client secret is passed separately and never stored: the
// platform does not return it, so it cannot round-trip through a
// captured configuration.
type RuleConfig struct {
	Issuer                string
	AuthorizationEndpoint string
	TokenEndpoint         string
	UserInfoEndpoint      string
	ClientID              string
	SessionCookieName     string
	SessionTimeout        int64
	Scope                 string
}

// FromConfig builds a RuleConfig from the project's OIDC settings with
// environment overrides already applied.
func FromConfig(oidc config.OIDCConfig) RuleConfig {
	return RuleConfig{
		Issuer:                oidc.Issuer,
		AuthorizationEndpoint: oidc.Endpoints.Authorization,
		TokenEndpoint:         oidc.Endpoints.Token,
		UserInfoEndpoint:      oidc.Endpoints.UserInfo,
		ClientID:              oidc.ClientID,
		SessionCookieName:     oidc.Session.CookieName,
		SessionTimeout:        oidc.Session.SessionTimeoutSeconds(),
		Scope:                 oidc.Session.Scope,
	}
}

// CaptureRuleConfig extracts the OIDC parameters from an existing rule
// set. It returns false when no rule carries an authenticate-oidc
// action.
func CaptureRuleConfig(rules []elbtypes.Rule) (RuleConfig, bool) {
	for _, rule := range rules {
		if rule.IsDefault != nil && *rule.IsDefault {
			continue
		}
		for _, action := range rule.Actions {
			if action.Type != elbtypes.ActionTypeEnumAuthenticateOidc || action.AuthenticateOidcConfig == nil {
				continue
			}
			c := action.AuthenticateOidcConfig
			captured := RuleConfig{
				Issuer:                aws.ToString(c.Issuer),
				AuthorizationEndpoint: aws.ToString(c.AuthorizationEndpoint),
				TokenEndpoint:         aws.ToString(c.TokenEndpoint),
				UserInfoEndpoint:      aws.ToString(c.UserInfoEndpoint),
				ClientID:              aws.ToString(c.ClientId),
				SessionCookieName:     aws.ToString(c.SessionCookieName),
				SessionTimeout:        aws.ToInt64(c.SessionTimeout),
				Scope:                 aws.ToString(c.Scope),
			}
			return captured, true
		}
	}
	return RuleConfig{}, false
}

// ListenerResolver locates the listener and target group the gate
// operates on. Implemented by the deploy package's resolver.
type ListenerResolver interface {
	HTTPSListener(ctx context.Context, envName string) (listenerARN, loadBalancerARN string, err error)
	HTTPListener(ctx context.Context, loadBalancerARN string) (string, error)
	TargetGroup(ctx context.Context, loadBalancerARN string) (string, error)
}

// Gate configures OIDC authentication on a listener.
type Gate struct {
	elb      client.ELBAPI
	acm      client.ACMAPI
	resolver ListenerResolver
	project  string
}

// New builds a Gate.
func New(elb client.ELBAPI, acmClient client.ACMAPI, resolver ListenerResolver, projectName string) *Gate {
	return &Gate{elb: elb, acm: acmClient, resolver: resolver, project: projectName}
}

// Configure rewrites the environment's HTTPS listener so all traffic
// authenticates via OIDC. Existing non-default rules are removed first,
// the default action becomes a 503 deny, and HTTP traffic is redirected
// to HTTPS when an HTTP listener exists.
func (g *Gate) Configure(ctx context.Context, envName string, cfg RuleConfig, clientSecret string) error {
	if clientSecret == "" {
		return apperrors.Configuration("OIDC client secret is required", nil)
	}

	output.Step("Finding HTTPS listener")
	listenerARN, lbARN, err := g.resolver.HTTPSListener(ctx, envName)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.Configuration(
				"HTTPS listener not found, run 'drydock secure' first", err)
		}
		return err
	}

	domain, err := g.domainFromListener(ctx, listenerARN)
	if err != nil {
		return err
	}

	output.Step("Finding target group")
	targetGroupARN, err := g.resolver.TargetGroup(ctx, lbARN)
	if err != nil {
		return err
	}

	if err := ApplyRules(ctx, g.elb, listenerARN, targetGroupARN, cfg, clientSecret); err != nil {
		return err
	}

	if err := g.redirectHTTP(ctx, lbARN); err != nil {
		return err
	}

	output.Success("OIDC authentication configured for https://%s", domain)
	return nil
}

// ApplyRules replaces the listener's rule set with the single OIDC
// authentication rule and sets the deny-by-default action. Existing
// non-default rules are deleted first, so applying the same
// configuration twice converges on the same state.
func ApplyRules(
	ctx context.Context,
	elb client.ELBAPI,
	listenerARN, targetGroupARN string,
	cfg RuleConfig,
	clientSecret string,
) error {
	rules, err := elb.DescribeRules(ctx, &elbv2.DescribeRulesInput{
		ListenerArn: aws.String(listenerARN),
	})
	if err != nil {
		return apperrors.Remote("describing listener rules", err)
	}

	removed := 0
	for _, rule := range rules.Rules {
		if rule.IsDefault != nil && *rule.IsDefault {
			continue
		}
		if _, err := elb.DeleteRule(ctx, &elbv2.DeleteRuleInput{
			RuleArn: rule.RuleArn,
		}); err != nil {
			return apperrors.Remote("deleting listener rule", err)
		}
		removed++
	}
	slog.Debug("cleared listener rules", "removed", removed)

	output.Step("Setting default listener action to deny unauthorized access")
	if _, err := elb.ModifyListener(ctx, &elbv2.ModifyListenerInput{
		ListenerArn: aws.String(listenerARN),
		DefaultActions: []elbtypes.Action{
			{
				Type: elbtypes.ActionTypeEnumFixedResponse,
				FixedResponseConfig: &elbtypes.FixedResponseActionConfig{
					MessageBody: aws.String("Unauthorized Access"),
					StatusCode:  aws.String("503"),
					ContentType: aws.String("text/plain"),
				},
			},
		},
	}); err != nil {
		return apperrors.Remote("setting default listener action", err)
	}

	output.Step("Creating authentication rule")
	if _, err := elb.CreateRule(ctx, &elbv2.CreateRuleInput{
		ListenerArn: aws.String(listenerARN),
		Priority:    aws.Int32(1),
		Conditions: []elbtypes.RuleCondition{
			{
				Field:  aws.String("path-pattern"),
				Values: []string{"/*"},
			},
		},
		Actions: []elbtypes.Action{
			{
				Type:  elbtypes.ActionTypeEnumAuthenticateOidc,
				Order: aws.Int32(1),
				AuthenticateOidcConfig: &elbtypes.AuthenticateOidcActionConfig{
					Issuer:                   aws.String(cfg.Issuer),
					AuthorizationEndpoint:    aws.String(cfg.AuthorizationEndpoint),
					TokenEndpoint:            aws.String(cfg.TokenEndpoint),
					UserInfoEndpoint:         aws.String(cfg.UserInfoEndpoint),
					ClientId:                 aws.String(cfg.ClientID),
					ClientSecret:             aws.String(clientSecret),
					SessionCookieName:        aws.String(cfg.SessionCookieName),
					SessionTimeout:           aws.Int64(cfg.SessionTimeout),
					Scope:                    aws.String(cfg.Scope),
					OnUnauthenticatedRequest: elbtypes.AuthenticateOidcActionConditionalBehaviorEnumAuthenticate,
				},
			},
			{
				Type:           elbtypes.ActionTypeEnumForward,
				Order:          aws.Int32(2),
				TargetGroupArn: aws.String(targetGroupARN),
			},
		},
	}); err != nil {
		return apperrors.Remote("creating authentication rule", err)
	}

	return nil
}

// redirectHTTP points the HTTP listener's default action at HTTPS. A
// missing HTTP listener is tolerated.
func (g *Gate) redirectHTTP(ctx context.Context, lbARN string) error {
	output.Step("Configuring HTTP to HTTPS redirect")
	listenerARN, err := g.resolver.HTTPListener(ctx, lbARN)
	if err != nil {
		if apperrors.IsNotFound(err) {
			output.Info("HTTP listener not found, skipping redirect")
			return nil
		}
		return err
	}

	if _, err := g.elb.ModifyListener(ctx, &elbv2.ModifyListenerInput{
		ListenerArn: aws.String(listenerARN),
		DefaultActions: []elbtypes.Action{
			{
				Type: elbtypes.ActionTypeEnumRedirect,
				RedirectConfig: &elbtypes.RedirectActionConfig{
					Protocol:   aws.String("HTTPS"),
					Port:       aws.String("443"),
					StatusCode: elbtypes.RedirectActionStatusCodeEnumHttp301,
				},
			},
		},
	}); err != nil {
		return apperrors.Remote("configuring HTTP redirect", err)
	}
	return nil
}

// domainFromListener derives the public domain from the certificate
// attached to the HTTPS listener. A wildcard certificate name resolves
// to the project name.
func (g *Gate) domainFromListener(ctx context.Context, listenerARN string) (string, error) {
	listeners, err := g.elb.DescribeListeners(ctx, &elbv2.DescribeListenersInput{
		ListenerArns: []string{listenerARN},
	})
	if err != nil {
		return "", apperrors.Remote("describing HTTPS listener", err)
	}
	if len(listeners.Listeners) == 0 || len(listeners.Listeners[0].Certificates) == 0 {
		return "", apperrors.NotFound("describing HTTPS listener", "no certificate attached to HTTPS listener")
	}

	certARN := aws.ToString(listeners.Listeners[0].Certificates[0].CertificateArn)
	cert, err := g.acm.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
		CertificateArn: aws.String(certARN),
	})
	if err != nil {
		return "", apperrors.Remote("describing certificate", err)
	}

	domain := aws.ToString(cert.Certificate.DomainName)
	return strings.ReplaceAll(domain, "*", g.project), nil
}
