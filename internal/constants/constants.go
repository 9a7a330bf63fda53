// Package constants defines global constants used throughout drydock.
// It includes version information, file names, and AWS polling parameters.
package constants

import "time"

var version = "0.0.0-development" // Updated by CI/CD pipeline at build time

// GetVersion returns the current version of drydock.
func GetVersion() *string {
	return &version
}

// ProjectName is the name of the CLI tool and application
const ProjectName = "drydock"

// ConfigFileName is the name of the project-level configuration file,
// expected at the project root.
const ConfigFileName = "drydock.yml"

// IgnoreFileName is the name of the bundling exclusion file, one pattern
// per line, gitignore-like.
const IgnoreFileName = ".ebignore"

// PoliciesDirName is the default directory holding IAM policy documents.
const PoliciesDirName = "policies"

// EnvironmentTagKey is the tag Elastic Beanstalk places on resources it
// owns. Tags are the only durable link between an environment and its load
// balancer across updates.
const EnvironmentTagKey = "elasticbeanstalk:environment-name"

// PollInterval is the fixed sleep between status polls for application
// versions and environments. The remote operations have no
// caller-controllable cap, so polling loops run until the context is
// canceled.
const PollInterval = 5 * time.Second

// ProfilePropagationDelay is the fixed wait after creating an instance
// profile, allowing IAM to propagate it before Elastic Beanstalk looks it
// up.
const ProfilePropagationDelay = 10 * time.Second

// HTTPSPort and HTTPPort are the listener ports drydock manages.
const (
	HTTPSPort int32 = 443
	HTTPPort  int32 = 80
)

// DefaultSSLPolicy is the ELB security policy applied to HTTPS listeners
// drydock creates.
const DefaultSSLPolicy = "ELBSecurityPolicy-2016-08"
