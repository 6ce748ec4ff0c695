// Package cli implements the surveyctl command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"dqsurvey/internal/shared/config"
	"dqsurvey/internal/shared/telemetry"
)

var version = "dev"

// flags holds the persistent overrides of the client configuration.
type flags struct {
	scope    string
	backend  string
	storeDir string
	apiURL   string
}

type rootState struct {
	base  *config.ClientConfig
	flags flags
}

// config returns the effective client configuration: the injected base or
// the environment, with flag overrides applied.
func (s *rootState) config() config.ClientConfig {
	var cfg config.ClientConfig
	if s.base != nil {
		cfg = *s.base
	} else {
		cfg = config.LoadClient()
	}
	if s.flags.scope != "" {
		cfg.Scope = s.flags.scope
	}
	if s.flags.backend != "" {
		cfg.StoreBackend = s.flags.backend
	}
	if s.flags.storeDir != "" {
		cfg.StoreDir = s.flags.storeDir
	}
	if s.flags.apiURL != "" {
		cfg.APIURL = s.flags.apiURL
	}
	return cfg
}

func newRootCmd(base *config.ClientConfig) *cobra.Command {
	st := &rootState{base: base}
	cmd := &cobra.Command{
		Use:           "surveyctl",
		Short:         "Fill in and submit data-quality evaluation surveys",
		Long:          "surveyctl walks a dataset evaluation through its survey sections, submits each one to the storage service and exports the final summary.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return telemetry.SetLevel(st.config().LogLevel)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&st.flags.scope, "scope", "", "Survey scope (overrides SURVEY_SCOPE)")
	pf.StringVar(&st.flags.backend, "store", "", "Answer store backend: file, redis, mongo or memory (overrides SURVEY_STORE)")
	pf.StringVar(&st.flags.storeDir, "store-dir", "", "Directory of the file backend (overrides SURVEY_STORE_DIR)")
	pf.StringVar(&st.flags.apiURL, "api", "", "Storage service base URL (overrides SURVEY_API_URL)")

	cmd.AddCommand(newInitCmd(st))
	cmd.AddCommand(newShowCmd(st))
	cmd.AddCommand(newSetCmd(st))
	cmd.AddCommand(newSubmitCmd(st))
	cmd.AddCommand(newNextCmd(st))
	cmd.AddCommand(newPrevCmd(st))
	cmd.AddCommand(newScoresCmd(st))
	cmd.AddCommand(newSummaryCmd(st))
	cmd.AddCommand(newExportCmd(st))
	cmd.AddCommand(newResetCmd(st))
	return cmd
}

// NewRootCmdForTest returns the root command bound to cfg instead of the environment.
func NewRootCmdForTest(cfg config.ClientConfig) *cobra.Command {
	return newRootCmd(&cfg)
}

// Execute runs surveyctl with the process arguments and returns the exit code.
func Execute(ctx context.Context) int {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	return Run(ctx, newRootCmd(nil))
}

// Run executes cmd and reports any failure on its error stream. Panics are
// recovered and reported like errors.
func Run(ctx context.Context, cmd *cobra.Command) (code int) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("cli.panic", map[string]any{"panic": fmt.Sprint(r)})
			printAlert(cmd.ErrOrStderr(), fmt.Errorf("unexpected failure: %v", r))
			code = 2
		}
	}()
	if err := cmd.ExecuteContext(ctx); err != nil {
		printAlert(cmd.ErrOrStderr(), err)
		return 1
	}
	return 0
}
