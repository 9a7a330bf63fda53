// Package secure enables HTTPS for an environment: certificate lookup,
// security group ingress, HTTPS listener creation, and a DNS record
// pointing the certificate domain at the load balancer.
package secure

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"

	"drydock/internal/aws/client"
	"drydock/internal/constants"
	"drydock/internal/deploy"
	apperrors "drydock/internal/errors"
	"drydock/internal/output"
)

const dnsRecordTTL = 300

// Securer wires the clients needed to enable HTTPS on an environment's
// load balancer.
type Securer struct {
	clients  *client.Clients
	resolver *deploy.Resolver
	project  string
}

// New builds a Securer.
func New(clients *client.Clients, projectName string) *Securer {
	return &Securer{
		clients:  clients,
		resolver: deploy.NewResolver(clients.Beanstalk, clients.ELB),
		project:  projectName,
	}
}

// EnableHTTPS configures the HTTPS listener with the given certificate,
// opens port 443 on the balancer's security groups, and upserts a CNAME
// from the certificate domain to the balancer. Steps already done are
// skipped, so the operation can be re-run safely.
func (s *Securer) EnableHTTPS(ctx context.Context, envName, certificateARN string) error {
	output.Step("Finding certificate")
	domain, err := s.certificateDomain(ctx, certificateARN)
	if err != nil {
		return err
	}
	output.KeyValue("Domain", domain)

	output.Step("Finding hosted zone")
	zoneID, err := s.hostedZoneID(ctx, domain)
	if err != nil {
		return err
	}

	output.Step("Finding load balancer")
	lbARN, err := s.resolver.LoadBalancer(ctx, envName)
	if err != nil {
		return err
	}
	lb, err := s.describeBalancer(ctx, lbARN)
	if err != nil {
		return err
	}

	output.Step("Ensuring security groups allow HTTPS")
	if err := s.ensureHTTPSIngress(ctx, lb.SecurityGroups); err != nil {
		return err
	}

	output.Step("Configuring HTTPS listener")
	if err := s.ensureHTTPSListener(ctx, lbARN, certificateARN); err != nil {
		return err
	}

	output.Step("Creating DNS record")
	if err := s.upsertCNAME(ctx, zoneID, domain, aws.ToString(lb.DNSName)); err != nil {
		return err
	}

	output.Success("HTTPS enabled for https://%s", domain)
	output.Info("DNS changes may take a few minutes to propagate")
	return nil
}

// certificateDomain resolves the certificate's domain name, substituting
// the project name for a wildcard label.
func (s *Securer) certificateDomain(ctx context.Context, certificateARN string) (string, error) {
	cert, err := s.clients.ACM.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
		CertificateArn: aws.String(certificateARN),
	})
	if err != nil {
		if client.IsNotFound(err) {
			return "", apperrors.NotFound("describing certificate",
				fmt.Sprintf("certificate %s not found", certificateARN))
		}
		return "", apperrors.Remote("describing certificate", err)
	}
	domain := aws.ToString(cert.Certificate.DomainName)
	return strings.ReplaceAll(domain, "*", s.project), nil
}

// hostedZoneID returns the most specific hosted zone whose name is a
// suffix of the domain.
func (s *Securer) hostedZoneID(ctx context.Context, domain string) (string, error) {
	zones, err := s.clients.Route53.ListHostedZones(ctx, &route53.ListHostedZonesInput{})
	if err != nil {
		return "", apperrors.Remote("listing hosted zones", err)
	}

	var best *r53types.HostedZone
	for i := range zones.HostedZones {
		zone := &zones.HostedZones[i]
		name := strings.TrimSuffix(aws.ToString(zone.Name), ".")
		if !strings.HasSuffix(domain, name) {
			continue
		}
		if best == nil || len(aws.ToString(zone.Name)) > len(aws.ToString(best.Name)) {
			best = zone
		}
	}
	if best == nil {
		return "", apperrors.NotFound("resolving hosted zone",
			fmt.Sprintf("no hosted zone found for domain %s", domain))
	}
	return aws.ToString(best.Id), nil
}

func (s *Securer) describeBalancer(ctx context.Context, lbARN string) (*elbtypes.LoadBalancer, error) {
	out, err := s.clients.ELB.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{
		LoadBalancerArns: []string{lbARN},
	})
	if err != nil {
		return nil, apperrors.Remote("describing load balancer", err)
	}
	if len(out.LoadBalancers) == 0 {
		return nil, apperrors.NotFound("describing load balancer", "load balancer not found")
	}
	return &out.LoadBalancers[0], nil
}

// ensureHTTPSIngress opens port 443 on each security group that does
// not already allow it. A duplicate-rule error from a concurrent change
// is tolerated.
func (s *Securer) ensureHTTPSIngress(ctx context.Context, groupIDs []string) error {
	for _, groupID := range groupIDs {
		sgs, err := s.clients.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
			GroupIds: []string{groupID},
		})
		if err != nil {
			return apperrors.Remote("describing security group", err)
		}
		if len(sgs.SecurityGroups) == 0 {
			continue
		}

		if allowsHTTPS(sgs.SecurityGroups[0].IpPermissions) {
			continue
		}

		output.Info("Adding HTTPS inbound rule to security group %s", groupID)
		_, err = s.clients.EC2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId: aws.String(groupID),
			IpPermissions: []ec2types.IpPermission{
				{
					IpProtocol: aws.String("tcp"),
					FromPort:   aws.Int32(constants.HTTPSPort),
					ToPort:     aws.Int32(constants.HTTPSPort),
					IpRanges: []ec2types.IpRange{
						{
							CidrIp:      aws.String("0.0.0.0/0"),
							Description: aws.String("HTTPS from anywhere"),
						},
					},
				},
			},
		})
		if err != nil && !client.IsAlreadyExists(err) {
			return apperrors.Remote("authorizing HTTPS ingress", err)
		}
	}
	return nil
}

func allowsHTTPS(permissions []ec2types.IpPermission) bool {
	for _, p := range permissions {
		if aws.ToString(p.IpProtocol) != "tcp" {
			continue
		}
		if aws.ToInt32(p.FromPort) <= constants.HTTPSPort && aws.ToInt32(p.ToPort) >= constants.HTTPSPort {
			return true
		}
	}
	return false
}

// ensureHTTPSListener creates the HTTPS listener forwarding to the HTTP
// listener's target group. An existing HTTPS listener is left as is.
func (s *Securer) ensureHTTPSListener(ctx context.Context, lbARN, certificateARN string) error {
	listeners, err := s.clients.ELB.DescribeListeners(ctx, &elbv2.DescribeListenersInput{
		LoadBalancerArn: aws.String(lbARN),
	})
	if err != nil {
		return apperrors.Remote("describing listeners", err)
	}

	var httpListener *elbtypes.Listener
	for i := range listeners.Listeners {
		switch aws.ToInt32(listeners.Listeners[i].Port) {
		case constants.HTTPSPort:
			output.Info("HTTPS listener already exists")
			return nil
		case constants.HTTPPort:
			httpListener = &listeners.Listeners[i]
		}
	}
	if httpListener == nil {
		return apperrors.NotFound("resolving listener", "no HTTP listener found")
	}

	var targetGroupARN string
	for _, action := range httpListener.DefaultActions {
		if action.TargetGroupArn != nil {
			targetGroupARN = aws.ToString(action.TargetGroupArn)
			break
		}
	}
	if targetGroupARN == "" {
		return apperrors.NotFound("resolving target group", "HTTP listener has no forward target")
	}

	if _, err := s.clients.ELB.CreateListener(ctx, &elbv2.CreateListenerInput{
		LoadBalancerArn: aws.String(lbARN),
		Protocol:        elbtypes.ProtocolEnumHttps,
		Port:            aws.Int32(constants.HTTPSPort),
		SslPolicy:       aws.String(constants.DefaultSSLPolicy),
		Certificates: []elbtypes.Certificate{
			{CertificateArn: aws.String(certificateARN)},
		},
		DefaultActions: []elbtypes.Action{
			{
				Type:           elbtypes.ActionTypeEnumForward,
				TargetGroupArn: aws.String(targetGroupARN),
			},
		},
	}); err != nil {
		return apperrors.Remote("creating HTTPS listener", err)
	}
	return nil
}

func (s *Securer) upsertCNAME(ctx context.Context, zoneID, domain, lbDNS string) error {
	_, err := s.clients.Route53.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &r53types.ChangeBatch{
			Changes: []r53types.Change{
				{
					Action: r53types.ChangeActionUpsert,
					ResourceRecordSet: &r53types.ResourceRecordSet{
						Name: aws.String(domain),
						Type: r53types.RRTypeCname,
						TTL:  aws.Int64(dnsRecordTTL),
						ResourceRecords: []r53types.ResourceRecord{
							{Value: aws.String(lbDNS)},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return apperrors.Remote("upserting DNS record", err)
	}
	return nil
}
