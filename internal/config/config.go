// Package config manages project configuration for drydock.
// It uses Viper for loading the drydock.yml file and supports placeholder
// substitution plus environment-variable overrides for OIDC parameters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"drydock/internal/constants"
	apperrors "drydock/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the project configuration loaded from drydock.yml.
type Config struct {
	Application ApplicationConfig `mapstructure:"application"`
	AWS         AWSConfig         `mapstructure:"aws"`
	Instance    InstanceConfig    `mapstructure:"instance"`
	IAM         IAMConfig         `mapstructure:"iam"`
	OIDC        *OIDCConfig       `mapstructure:"oidc"`

	// ProjectRoot and ProjectName are derived from the directory holding
	// the config file, not from the file itself.
	ProjectRoot string `mapstructure:"-"`
	ProjectName string `mapstructure:"-"`
}

// ApplicationConfig identifies the Elastic Beanstalk application and
// environment drydock manages.
type ApplicationConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Description string `mapstructure:"description"`
}

// AWSConfig holds region and solution stack settings.
type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Platform string `mapstructure:"platform"`
}

// AutoscalingConfig bounds the environment's auto scaling group.
type AutoscalingConfig struct {
	MinInstances int `mapstructure:"min_instances"`
	MaxInstances int `mapstructure:"max_instances"`
}

// InstanceConfig holds EC2 instance and load balancer settings.
type InstanceConfig struct {
	Type        string            `mapstructure:"type"`
	ELBType     string            `mapstructure:"elb_type"`
	Autoscaling AutoscalingConfig `mapstructure:"autoscaling"`
}

// RolePolicies describes the policy set attached to one IAM role.
// TrustPolicy and CustomPolicies are file names resolved against the
// policies directory; ManagedPolicies are full ARNs.
type RolePolicies struct {
	TrustPolicy     string   `mapstructure:"trust_policy"`
	ManagedPolicies []string `mapstructure:"managed_policies"`
	CustomPolicies  []string `mapstructure:"custom_policies"`
}

// IAMConfig names the roles and instance profile the environment uses.
type IAMConfig struct {
	ServiceRoleName      string       `mapstructure:"service_role_name"`
	InstanceRoleName     string       `mapstructure:"instance_role_name"`
	InstanceProfileName  string       `mapstructure:"instance_profile_name"`
	PoliciesDir          string       `mapstructure:"policies_dir"`
	ServiceRolePolicies  RolePolicies `mapstructure:"service_role_policies"`
	InstanceRolePolicies RolePolicies `mapstructure:"instance_role_policies"`
}

// OIDCEndpoints holds the identity provider endpoint URLs.
type OIDCEndpoints struct {
	Authorization string `mapstructure:"authorization" validate:"omitempty,url"`
	Token         string `mapstructure:"token" validate:"omitempty,url"`
	UserInfo      string `mapstructure:"userinfo" validate:"omitempty,url"`
}

// OIDCSession holds the non-sensitive session parameters applied to the
// authenticate-oidc listener action.
type OIDCSession struct {
	CookieName string `mapstructure:"cookie_name"`
	Timeout    int64  `mapstructure:"timeout"`
	Scope      string `mapstructure:"scope"`
}

// OIDCConfig holds the OIDC authentication parameters. The client secret
// deliberately has no field here: it is never read from or written to any
// config file.
type OIDCConfig struct {
	ClientID  string        `mapstructure:"client_id"`
	Issuer    string        `mapstructure:"issuer" validate:"omitempty,url"`
	Endpoints OIDCEndpoints `mapstructure:"endpoints"`
	Session   OIDCSession   `mapstructure:"session"`
}

var validate = validator.New()

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// Load reads and validates the configuration from drydock.yml under the
// given project root. String values may reference ${PROJECT_NAME} and
// ${AWS_REGION}; any other ${VAR} placeholder resolves from the process
// environment.
func Load(projectRoot string) (*Config, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, apperrors.Configuration("resolving project root", err)
	}
	projectName := filepath.Base(absRoot)

	v := viper.New()
	v.SetConfigFile(filepath.Join(absRoot, constants.ConfigFileName))
	v.SetConfigType("yaml")
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		return nil, apperrors.Configuration(
			fmt.Sprintf("reading %s", constants.ConfigFileName), err)
	}

	var cfg Config
	if err = v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Configuration("unmarshaling configuration", err)
	}

	cfg.ProjectRoot = absRoot
	cfg.ProjectName = projectName

	replacements := map[string]string{
		"PROJECT_NAME": projectName,
		"AWS_REGION":   cfg.AWS.Region,
	}
	expandPlaceholders(&cfg, replacements)

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that all required fields are present. The error message
// enumerates every missing field so the user can fix them in one pass.
func (c *Config) Validate() error {
	required := map[string]string{
		"application.name":          c.Application.Name,
		"application.environment":   c.Application.Environment,
		"aws.region":                c.AWS.Region,
		"aws.platform":              c.AWS.Platform,
		"instance.type":             c.Instance.Type,
		"instance.elb_type":         c.Instance.ELBType,
		"iam.service_role_name":     c.IAM.ServiceRoleName,
		"iam.instance_role_name":    c.IAM.InstanceRoleName,
		"iam.instance_profile_name": c.IAM.InstanceProfileName,
	}

	var missing []string
	for field, value := range required {
		if value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return apperrors.Configuration(
			fmt.Sprintf("missing required configuration fields in %s: %s",
				constants.ConfigFileName, strings.Join(missing, ", ")), nil)
	}

	if err := validate.Struct(c); err != nil {
		return apperrors.Configuration("configuration validation failed", err)
	}

	return nil
}

// PoliciesDir returns the absolute path of the IAM policy documents
// directory.
func (c *Config) PoliciesDir() string {
	dir := c.IAM.PoliciesDir
	if dir == "" {
		dir = constants.PoliciesDirName
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.ProjectRoot, dir)
}

// ArtifactBucket returns the S3 bucket name holding application version
// bundles for this application and region.
func (c *Config) ArtifactBucket() string {
	return fmt.Sprintf("elasticbeanstalk-%s-%s", c.AWS.Region, strings.ToLower(c.Application.Name))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("instance.autoscaling.min_instances", 1)
	v.SetDefault("instance.autoscaling.max_instances", 2)
	v.SetDefault("iam.policies_dir", constants.PoliciesDirName)
	v.SetDefault("oidc.session.cookie_name", "AWSELBAuthSessionCookie")
	v.SetDefault("oidc.session.timeout", 604800)
	v.SetDefault("oidc.session.scope", "openid")
}

// expandPlaceholders walks the string fields that commonly carry
// placeholders and substitutes them in place.
func expandPlaceholders(cfg *Config, replacements map[string]string) {
	fields := []*string{
		&cfg.Application.Name,
		&cfg.Application.Environment,
		&cfg.Application.Description,
		&cfg.AWS.Platform,
		&cfg.IAM.ServiceRoleName,
		&cfg.IAM.InstanceRoleName,
		&cfg.IAM.InstanceProfileName,
	}
	if cfg.OIDC != nil {
		fields = append(fields,
			&cfg.OIDC.ClientID,
			&cfg.OIDC.Issuer,
			&cfg.OIDC.Endpoints.Authorization,
			&cfg.OIDC.Endpoints.Token,
			&cfg.OIDC.Endpoints.UserInfo,
		)
	}
	for _, f := range fields {
		*f = expandString(*f, replacements)
	}
}

// expandString substitutes ${NAME} placeholders from the replacement map,
// falling back to the process environment for unknown names. Unresolvable
// placeholders are left verbatim.
func expandString(s string, replacements map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := replacements[name]; ok && value != "" {
			return value
		}
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}
