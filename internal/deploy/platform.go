package deploy

import (
	"context"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"

	"drydock/internal/aws/client"
	apperrors "drydock/internal/errors"
	"drydock/internal/output"
)

// latestDockerPlaceholder in aws.platform defers the solution stack
// choice to deploy time, when the newest Docker stack in the region is
// looked up.
const latestDockerPlaceholder = "${LATEST_DOCKER_PLATFORM}"

// resolvePlatform rewrites the configured platform to a concrete solution
// stack name. Values already naming a stack (they start with "64bit")
// pass through. The placeholder, an empty value, and EB CLI style
// platform names like "Docker running on 64bit Amazon Linux 2023" are
// resolved against the stacks available in the region; the EB CLI name
// narrows the candidates.
func (d *Deployer) resolvePlatform(ctx context.Context) error {
	platform := strings.TrimSpace(d.cfg.AWS.Platform)
	if strings.HasPrefix(platform, "64bit") {
		return nil
	}

	hint := ""
	if platform != "" && platform != latestDockerPlaceholder &&
		strings.Contains(strings.ToLower(platform), "docker") {
		hint = platform
	}

	stack, err := latestDockerStack(ctx, d.clients.Beanstalk, hint)
	if err != nil {
		return err
	}
	output.Info("Using solution stack %s", stack)
	d.cfg.AWS.Platform = stack
	return nil
}

// latestDockerStack returns the newest Docker solution stack in the
// region, preferring Amazon Linux 2023, then Amazon Linux 2. Within a
// generation the names sort lexicographically by version, so the maximum
// is the latest.
func latestDockerStack(ctx context.Context, eb client.BeanstalkAPI, hint string) (string, error) {
	out, err := eb.ListAvailableSolutionStacks(ctx, &elasticbeanstalk.ListAvailableSolutionStacksInput{})
	if err != nil {
		return "", apperrors.Remote("listing solution stacks", err)
	}

	var docker []string
	for _, stack := range out.SolutionStacks {
		if strings.Contains(stack, "Docker") {
			docker = append(docker, stack)
		}
	}
	if len(docker) == 0 {
		return "", apperrors.Configuration("no Docker solution stacks available in this region", nil)
	}

	if hint != "" {
		var hinted []string
		for _, stack := range docker {
			if strings.Contains(strings.ToLower(stack), strings.ToLower(hint)) {
				hinted = append(hinted, stack)
			}
		}
		if len(hinted) > 0 {
			docker = hinted
		}
	}

	if al2023 := stacksOfGeneration(docker, "Amazon Linux 2023", ""); len(al2023) > 0 {
		return slices.Max(al2023), nil
	}
	if al2 := stacksOfGeneration(docker, "Amazon Linux 2", "Amazon Linux 2023"); len(al2) > 0 {
		return slices.Max(al2), nil
	}
	return slices.Max(docker), nil
}

func stacksOfGeneration(stacks []string, want, exclude string) []string {
	var matched []string
	for _, stack := range stacks {
		if !strings.Contains(stack, want) {
			continue
		}
		if exclude != "" && strings.Contains(stack, exclude) {
			continue
		}
		matched = append(matched, stack)
	}
	return matched
}
