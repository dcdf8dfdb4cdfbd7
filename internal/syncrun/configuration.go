package syncrun

import (
	"fmt"
	"strings"

	"github.com/templatesync/templatesync/internal/registry"
)

const (
	// DefaultTemplateBranch is the template branch watched for changes.
	DefaultTemplateBranch = "main"
	// DefaultStateFilePath stores the sync marker next to the working directory.
	DefaultStateFilePath = ".templatesync-state.yaml"
	// DefaultConcurrency bounds how many forks are processed at once.
	DefaultConcurrency = 4

	templateBranchKeySuffixConstant  = "template.branch"
	stateFileKeySuffixConstant       = "state_file"
	labelKeySuffixConstant           = "label"
	concurrencyKeySuffixConstant     = "concurrency"
	configurationKeyTemplateConstant = "%s.%s"

	templateRepositoryMissingMessage = "sync.template.repository must be configured"
	templateRepositoryShapeMessage   = "sync.template.repository must use the owner/name form"
	concurrencyBoundsMessage         = "sync.concurrency must be positive"
	configurationErrorTemplate       = "invalid sync configuration: %s"
)

// TemplateConfiguration identifies the template repository being watched.
type TemplateConfiguration struct {
	Repository string `mapstructure:"repository" yaml:"repository"`
	Branch     string `mapstructure:"branch" yaml:"branch"`
}

// Configuration captures the sync command settings.
type Configuration struct {
	Template    TemplateConfiguration `mapstructure:"template" yaml:"template"`
	StateFile   string                `mapstructure:"state_file" yaml:"state_file"`
	Label       string                `mapstructure:"label" yaml:"label"`
	Concurrency int                   `mapstructure:"concurrency" yaml:"concurrency"`
	Forks       []registry.Fork       `mapstructure:"forks" yaml:"forks"`
}

// ConfigurationError reports an invalid sync configuration value.
type ConfigurationError struct {
	Message string
}

// Error describes the configuration problem.
func (configurationError ConfigurationError) Error() string {
	return fmt.Sprintf(configurationErrorTemplate, configurationError.Message)
}

// DefaultConfigurationValues returns the defaults registered under the given
// configuration prefix.
func DefaultConfigurationValues(configurationPrefix string) map[string]any {
	return map[string]any{
		prefixedKey(configurationPrefix, templateBranchKeySuffixConstant): DefaultTemplateBranch,
		prefixedKey(configurationPrefix, stateFileKeySuffixConstant):      DefaultStateFilePath,
		prefixedKey(configurationPrefix, labelKeySuffixConstant):          registry.DefaultTrackingBranchName,
		prefixedKey(configurationPrefix, concurrencyKeySuffixConstant):    DefaultConcurrency,
	}
}

// Normalized returns the configuration with whitespace trimmed and defaults applied.
func (configuration Configuration) Normalized() Configuration {
	normalizedConfiguration := configuration
	normalizedConfiguration.Template.Repository = strings.TrimSpace(configuration.Template.Repository)
	normalizedConfiguration.Template.Branch = strings.TrimSpace(configuration.Template.Branch)
	normalizedConfiguration.StateFile = strings.TrimSpace(configuration.StateFile)
	normalizedConfiguration.Label = strings.TrimSpace(configuration.Label)

	if len(normalizedConfiguration.Template.Branch) == 0 {
		normalizedConfiguration.Template.Branch = DefaultTemplateBranch
	}
	if len(normalizedConfiguration.StateFile) == 0 {
		normalizedConfiguration.StateFile = DefaultStateFilePath
	}
	if len(normalizedConfiguration.Label) == 0 {
		normalizedConfiguration.Label = registry.DefaultTrackingBranchName
	}
	if normalizedConfiguration.Concurrency == 0 {
		normalizedConfiguration.Concurrency = DefaultConcurrency
	}

	return normalizedConfiguration
}

// Validate checks the normalized configuration for structural problems.
func (configuration Configuration) Validate() error {
	if len(configuration.Template.Repository) == 0 {
		return ConfigurationError{Message: templateRepositoryMissingMessage}
	}

	repositorySegments := strings.Split(configuration.Template.Repository, "/")
	if len(repositorySegments) != 2 || len(repositorySegments[0]) == 0 || len(repositorySegments[1]) == 0 {
		return ConfigurationError{Message: templateRepositoryShapeMessage}
	}

	if configuration.Concurrency < 0 {
		return ConfigurationError{Message: concurrencyBoundsMessage}
	}

	return nil
}

func prefixedKey(configurationPrefix string, keySuffix string) string {
	if len(configurationPrefix) == 0 {
		return keySuffix
	}
	return fmt.Sprintf(configurationKeyTemplateConstant, configurationPrefix, keySuffix)
}
