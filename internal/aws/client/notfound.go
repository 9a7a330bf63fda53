package client

import (
	"errors"

	"github.com/aws/smithy-go"
)

// Error codes the AWS services return when a resource does not exist.
// Absence is a normal outcome for this tool (first deploy, torn-down
// environment), so callers translate these into typed not-found errors
// instead of failing.
var notFoundCodes = map[string]struct{}{
	"ResourceNotFoundException": {},
	"NoSuchEntity":              {},
	"NoSuchEntityException":     {},
	"NoSuchBucket":              {},
	"NoSuchKey":                 {},
	"NotFound":                  {},
	"NoSuchHostedZone":          {},
	"LoadBalancerNotFound":      {},
	"ListenerNotFound":          {},
	"RuleNotFound":              {},
	"TargetGroupNotFound":       {},
	"CertificateNotFound":       {},
	"InvalidGroup.NotFound":     {},
	"InstanceProfileNotFound":   {},
}

var alreadyExistsCodes = map[string]struct{}{
	"EntityAlreadyExists":         {},
	"BucketAlreadyOwnedByYou":     {},
	"BucketAlreadyExists":         {},
	"InvalidPermission.Duplicate": {},
	"PriorityInUse":               {},
}

// IsNotFound reports whether err is an AWS API error indicating the
// requested resource does not exist.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	_, ok := notFoundCodes[apiErr.ErrorCode()]
	return ok
}

// IsAlreadyExists reports whether err indicates the resource or
// permission already exists, which this tool treats as success when
// ensuring idempotent state.
func IsAlreadyExists(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	_, ok := alreadyExistsCodes[apiErr.ErrorCode()]
	return ok
}
