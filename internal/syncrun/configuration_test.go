package syncrun_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/templatesync/templatesync/internal/registry"
	"github.com/templatesync/templatesync/internal/syncrun"
)

func TestDefaultConfigurationValues(testInstance *testing.T) {
	defaultValues := syncrun.DefaultConfigurationValues("sync")

	require.Equal(testInstance, syncrun.DefaultTemplateBranch, defaultValues["sync.template.branch"])
	require.Equal(testInstance, syncrun.DefaultStateFilePath, defaultValues["sync.state_file"])
	require.Equal(testInstance, registry.DefaultTrackingBranchName, defaultValues["sync.label"])
	require.Equal(testInstance, syncrun.DefaultConcurrency, defaultValues["sync.concurrency"])
}

func TestConfigurationNormalized(testInstance *testing.T) {
	configuration := syncrun.Configuration{
		Template: syncrun.TemplateConfiguration{Repository: "  acme/service-template  "},
	}.Normalized()

	require.Equal(testInstance, testTemplateRepositoryConstant, configuration.Template.Repository)
	require.Equal(testInstance, syncrun.DefaultTemplateBranch, configuration.Template.Branch)
	require.Equal(testInstance, syncrun.DefaultStateFilePath, configuration.StateFile)
	require.Equal(testInstance, registry.DefaultTrackingBranchName, configuration.Label)
	require.Equal(testInstance, syncrun.DefaultConcurrency, configuration.Concurrency)
}

func TestConfigurationValidate(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configuration syncrun.Configuration
		expectError   bool
	}{
		{
			name: "valid_configuration",
			configuration: syncrun.Configuration{
				Template: syncrun.TemplateConfiguration{Repository: testTemplateRepositoryConstant},
			},
		},
		{
			name:          "missing_template_repository",
			configuration: syncrun.Configuration{},
			expectError:   true,
		},
		{
			name: "malformed_template_repository",
			configuration: syncrun.Configuration{
				Template: syncrun.TemplateConfiguration{Repository: "no-owner-segment"},
			},
			expectError: true,
		},
		{
			name: "negative_concurrency",
			configuration: syncrun.Configuration{
				Template:    syncrun.TemplateConfiguration{Repository: testTemplateRepositoryConstant},
				Concurrency: -1,
			},
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			validationError := testCase.configuration.Normalized().Validate()
			if testCase.expectError {
				require.Error(testInstance, validationError)
				var configurationError syncrun.ConfigurationError
				require.ErrorAs(testInstance, validationError, &configurationError)
			} else {
				require.NoError(testInstance, validationError)
			}
		})
	}
}
