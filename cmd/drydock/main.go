// Package main implements the drydock CLI tool.
// It provisions Elastic Beanstalk environments and locks them behind
// OIDC authentication at the load balancer.
package main

import "drydock/cmd/drydock/cmd"

func main() {
	cmd.Execute()
}
