package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"drydock/internal/config"
	apperrors "drydock/internal/errors"
	"drydock/internal/output"
)

const ebConfigDirName = ".elasticbeanstalk"

// ebCLIConfig mirrors the layout the EB CLI expects in
// .elasticbeanstalk/config.yml.
type ebCLIConfig struct {
	BranchDefaults map[string]ebCLIBranch `yaml:"branch-defaults"`
	Global         ebCLIGlobal            `yaml:"global"`
}

type ebCLIBranch struct {
	Environment string  `yaml:"environment"`
	GroupSuffix *string `yaml:"group_suffix"`
}

type ebCLIGlobal struct {
	ApplicationName      string  `yaml:"application_name"`
	Branch               *string `yaml:"branch"`
	DefaultEC2Keyname    *string `yaml:"default_ec2_keyname"`
	DefaultPlatform      string  `yaml:"default_platform"`
	DefaultRegion        string  `yaml:"default_region"`
	IncludeGitSubmodules bool    `yaml:"include_git_submodules"`
	InstanceProfile      *string `yaml:"instance_profile"`
	PlatformName         *string `yaml:"platform_name"`
	PlatformVersion      *string `yaml:"platform_version"`
	Profile              *string `yaml:"profile"`
	Repository           *string `yaml:"repository"`
	SC                   string  `yaml:"sc"`
	WorkspaceType        string  `yaml:"workspace_type"`
}

// WriteEBCLIConfig emits an EB CLI configuration matching the project
// settings, so eb subcommands work alongside this tool.
func WriteEBCLIConfig(cfg *config.Config) error {
	ebDir := filepath.Join(cfg.ProjectRoot, ebConfigDirName)
	if err := os.MkdirAll(ebDir, 0o755); err != nil {
		return apperrors.Processing(fmt.Sprintf("creating %s directory: %v", ebConfigDirName, err))
	}

	doc := ebCLIConfig{
		BranchDefaults: map[string]ebCLIBranch{
			"main": {Environment: cfg.Application.Environment},
		},
		Global: ebCLIGlobal{
			ApplicationName:      cfg.Application.Name,
			DefaultPlatform:      ebCLIPlatformName(cfg.AWS.Platform),
			DefaultRegion:        cfg.AWS.Region,
			IncludeGitSubmodules: true,
			SC:                   "git",
			WorkspaceType:        "Application",
		},
	}

	raw, err := yaml.Marshal(doc)
	if err != nil {
		return apperrors.Processing(fmt.Sprintf("encoding EB CLI configuration: %v", err))
	}

	path := filepath.Join(ebDir, "config.yml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return apperrors.Processing(fmt.Sprintf("writing EB CLI configuration: %v", err))
	}
	output.Info("Wrote EB CLI configuration to %s", path)
	return nil
}

// RemoveEBCLIConfig deletes the generated EB CLI configuration
// directory. Used during teardown.
func RemoveEBCLIConfig(projectRoot string) error {
	ebDir := filepath.Join(projectRoot, ebConfigDirName)
	if err := os.RemoveAll(ebDir); err != nil {
		return apperrors.Processing(fmt.Sprintf("removing %s directory: %v", ebConfigDirName, err))
	}
	return nil
}

// ebCLIPlatformName converts a solution stack name to the platform
// string the EB CLI uses. Docker stacks become "Docker running on
// <os>"; other stacks pass through unchanged.
func ebCLIPlatformName(platform string) string {
	if !strings.Contains(platform, "Docker") || !strings.Contains(platform, "Amazon Linux") {
		return platform
	}
	parts := strings.Fields(platform)
	for i, part := range parts {
		if part == "Amazon" && i >= 1 && i+2 < len(parts) {
			osName := strings.Join(parts[i-1:i+3], " ")
			return "Docker running on " + osName
		}
	}
	return platform
}
