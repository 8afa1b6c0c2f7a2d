package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storywatch/storyfold/internal/registry"
)

// RegistryIssue is one problem found in a registry directory, either a
// CUE compile error or a cross-registry validation rule.
type RegistryIssue struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds registry validation results.
type ValidationResult struct {
	Valid     bool            `json:"valid"`
	Countries int             `json:"countries"`
	Enabled   int             `json:"enabled"`
	Issues    []RegistryIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <registry-dir>",
		Short: "Validate a CUE country registry",
		Long: `Compile and validate the CUE country registry without running anything
against a database. Reports every problem found, not just the first:
shape errors with source positions, then cross-registry rules such as
alias collisions and code format.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateRegistry(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidateRegistry(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	reg, loadErrs := registry.LoadDir(dir)
	if reg == nil {
		// The directory could not be compiled at all.
		msg := fmt.Sprintf("cannot load registry: %v", loadErrs[0])
		_ = formatter.Error(ErrCodeRegistry, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	formatter.VerboseLog("Compiled %d country declaration(s) from %s", reg.Len(), dir)

	result := ValidationResult{
		Valid:     len(loadErrs) == 0,
		Countries: reg.Len(),
		Enabled:   len(reg.EnabledCodes()),
		Issues:    registryIssues(loadErrs),
	}

	if opts.Format == "json" {
		return outputValidationJSON(cmd, result)
	}
	return outputValidationText(cmd, result)
}

// registryIssues flattens the mixed error list LoadDir returns.
func registryIssues(errs []error) []RegistryIssue {
	issues := make([]RegistryIssue, 0, len(errs))
	for _, err := range errs {
		var verr registry.ValidationError
		if errors.As(err, &verr) {
			msg := fmt.Sprintf("%s: %s", verr.Field, verr.Message)
			if verr.Country != "" {
				msg = fmt.Sprintf("country.%s: %s: %s", verr.Country, verr.Field, verr.Message)
			}
			issues = append(issues, RegistryIssue{Code: verr.Code, Message: msg})
			continue
		}
		issues = append(issues, RegistryIssue{Message: err.Error()})
	}
	return issues
}

// outputValidationJSON outputs the validation result as JSON.
func outputValidationJSON(cmd *cobra.Command, result ValidationResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.Valid {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    firstIssueCode(result.Issues),
			Message: fmt.Sprintf("registry validation failed with %d issue(s)", len(result.Issues)),
		}
	}
	if err := encodeResponse(cmd.OutOrStdout(), response); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("registry validation failed with %d issue(s)", len(result.Issues)))
	}
	return nil
}

// outputValidationText outputs the validation result as text.
func outputValidationText(cmd *cobra.Command, result ValidationResult) error {
	w := cmd.OutOrStdout()

	if result.Valid {
		fmt.Fprintf(w, "✓ Registry valid (%d countries, %d enabled)\n", result.Countries, result.Enabled)
		return nil
	}

	fmt.Fprintln(w, "✗ Registry validation failed")
	fmt.Fprintln(w)
	for _, issue := range result.Issues {
		if issue.Code != "" {
			fmt.Fprintf(w, "  [%s] %s\n", issue.Code, issue.Message)
			continue
		}
		fmt.Fprintf(w, "  %s\n", issue.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("registry validation failed with %d issue(s)", len(result.Issues)))
}

func firstIssueCode(issues []RegistryIssue) string {
	for _, issue := range issues {
		if issue.Code != "" {
			return issue.Code
		}
	}
	return ErrCodeRegistry
}
