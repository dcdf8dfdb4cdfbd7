package registry_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/templatesync/templatesync/internal/registry"
)

func TestForksCommand(testInstance *testing.T) {
	testCases := []struct {
		name           string
		declarations   []registry.Fork
		arguments      []string
		expectError    bool
		expectedOutput string
	}{
		{
			name: "lists_registered_forks",
			declarations: []registry.Fork{
				{Identifier: testFirstForkIdentifierConstant},
				{Identifier: testSecondForkIdentifierConstant, TrackingBranch: testCustomTrackingBranchConstant, MainBranch: testCustomMainBranchConstant},
			},
			expectedOutput: "identifier,tracking_branch,main_branch\n" +
				"acme/dataset-x,template-sync,main\n" +
				"acme/dataset-y,upstream-sync,trunk\n",
		},
		{
			name:           "empty_registry_prints_header",
			declarations:   nil,
			expectedOutput: "identifier,tracking_branch,main_branch\n",
		},
		{
			name:           "invalid_declaration_fails",
			declarations:   []registry.Fork{{Identifier: "malformed"}},
			expectError:    true,
			expectedOutput: "identifier,tracking_branch,main_branch\n",
		},
		{
			name: "valid_forks_listed_despite_invalid_sibling",
			declarations: []registry.Fork{
				{Identifier: "malformed"},
				{Identifier: testFirstForkIdentifierConstant},
			},
			expectError: true,
			expectedOutput: "identifier,tracking_branch,main_branch\n" +
				"acme/dataset-x,template-sync,main\n",
		},
		{
			name:         "positional_arguments_rejected",
			declarations: []registry.Fork{{Identifier: testFirstForkIdentifierConstant}},
			arguments:    []string{"unexpected"},
			expectError:  true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			builder := &registry.CommandBuilder{
				ForksProvider: func() []registry.Fork { return testCase.declarations },
			}

			command, buildError := builder.Build()
			require.NoError(testInstance, buildError)

			outputBuffer := &bytes.Buffer{}
			command.SetOut(outputBuffer)
			command.SetErr(&bytes.Buffer{})
			command.SetArgs(testCase.arguments)

			executionError := command.Execute()
			if testCase.expectError {
				require.Error(testInstance, executionError)
			} else {
				require.NoError(testInstance, executionError)
			}
			if len(testCase.expectedOutput) > 0 {
				require.Equal(testInstance, testCase.expectedOutput, outputBuffer.String())
			}
		})
	}
}
