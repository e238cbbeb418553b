package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// RuleInfo is one sanitizer rule in a rules report.
type RuleInfo struct {
	Pattern string `json:"pattern"`
	Replace string `json:"replace"`
}

// NewRulesCommand creates the rules command, which prints the sanitizer
// pipeline the current settings would assemble, in application order.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rules",
		Short:         "Show the active output sanitizer rules",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(rootOpts, cmd)
		},
	}
}

func runRules(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.LoadConfig()
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading settings", err)
	}
	pipeline, err := cfg.BuildSanitizer()
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "building sanitizer", err)
	}

	infos := make([]RuleInfo, 0, pipeline.Len())
	for _, rule := range pipeline.Rules() {
		infos = append(infos, RuleInfo{Pattern: rule.Pattern.String(), Replace: rule.Replace})
	}

	return formatter.Success(infos, func(w io.Writer) {
		if len(infos) == 0 {
			fmt.Fprintln(w, "no sanitizer rules active")
			return
		}
		for i, info := range infos {
			fmt.Fprintf(w, "%2d: %s -> %s\n", i+1, info.Pattern, info.Replace)
		}
	})
}
