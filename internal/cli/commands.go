package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"dqsurvey/internal/summary"
	"dqsurvey/internal/survey"
)

// withRuntime opens the engine for the duration of fn.
func withRuntime(cmd *cobra.Command, st *rootState, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	rt, err := st.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func newInitCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Start a survey, keeping any saved answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, st, func(ctx context.Context, rt *runtime) error {
				if err := rt.flow.Store.Init(ctx); err != nil {
					return err
				}
				path, err := rt.flow.Path(ctx)
				if err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), fmt.Sprintf("Survey %q ready", rt.flow.Store.Scope()))
				fmt.Fprintln(cmd.OutOrStdout(), renderPath(path))
				return nil
			})
		},
	}
}

func newShowCmd(st *rootState) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "show [section]",
		Short: "Show the saved answers of a section",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section := "section1"
			if len(args) > 0 {
				section = sectionArg(args[0])
			}
			return withRuntime(cmd, st, func(ctx context.Context, rt *runtime) error {
				form, err := rt.flow.Enter(ctx, section)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderForm(rt.catalog, form, all))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include fields hidden by the current selections")
	return cmd
}

func newSetCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "set <field> [value]",
		Short: "Save one answer; omit the value to clear it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			field := args[0]
			var value any
			if len(args) == 2 {
				value = args[1]
			}
			return withRuntime(cmd, st, func(ctx context.Context, rt *runtime) error {
				if err := rt.flow.Gateway.Set(ctx, field, value); err != nil {
					return err
				}
				if value == nil || args[1] == "" {
					printOK(cmd.OutOrStdout(), field+" cleared")
					return nil
				}
				printOK(cmd.OutOrStdout(), fmt.Sprintf("%s = %s", field, args[1]))
				return nil
			})
		},
	}
}

func newSubmitCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <section>",
		Short: "Validate a section and send it to the storage service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section := sectionArg(args[0])
			return withRuntime(cmd, st, func(ctx context.Context, rt *runtime) error {
				res, err := rt.flow.Submit(ctx, section)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printOK(out, fmt.Sprintf("%s saved with id %d", res.Section, res.ID))
				if res.Next == "" {
					fmt.Fprintln(out, "All sections submitted. Run `surveyctl export` to finish.")
					return nil
				}
				fmt.Fprintf(out, "Next: %s\n", res.Next)
				return nil
			})
		},
	}
}

func newNextCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "next <section>",
		Short: "Print the section after the given one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section := sectionArg(args[0])
			return withRuntime(cmd, st, func(ctx context.Context, rt *runtime) error {
				next, ok, err := rt.flow.Next(ctx, section)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "summary")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), next)
				return nil
			})
		},
	}
}

func newPrevCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "prev <section>",
		Short: "Print the section before the given one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section := sectionArg(args[0])
			return withRuntime(cmd, st, func(ctx context.Context, rt *runtime) error {
				prev, ok, err := rt.flow.Previous(ctx, section)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s is the first section", section)
				}
				fmt.Fprintln(cmd.OutOrStdout(), prev)
				return nil
			})
		},
	}
}

type scoresView struct {
	Sections map[string]string `json:"sections"`
	Groups   map[string]string `json:"groups"`
	Overall  string            `json:"overall"`
}

func newScoresCmd(st *rootState) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Show section, group and overall score averages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, st, func(ctx context.Context, rt *runtime) error {
				if err := rt.flow.Scorer.Refresh(ctx); err != nil {
					return err
				}
				doc, err := rt.flow.Store.Get(ctx)
				if err != nil {
					return err
				}
				view := scoresView{Sections: map[string]string{}, Groups: map[string]string{}}
				for _, id := range rt.catalog.SectionIDs() {
					view.Sections[id] = survey.FormatScore(doc.Scores.BySectionAverage[id])
				}
				for group, avg := range survey.GroupAverages(doc) {
					view.Groups[group] = survey.FormatScore(avg)
				}
				view.Overall = survey.FormatScore(doc.Scores.Overall)

				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(view)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderScores(rt.catalog, view))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output scores as JSON")
	return cmd
}

func newSummaryCmd(st *rootState) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Render the survey summary without clearing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, st, func(ctx context.Context, rt *runtime) error {
				s, err := rt.project(ctx)
				if err != nil {
					return err
				}
				if !markdown {
					fmt.Fprint(cmd.OutOrStdout(), renderSummary(s))
					return nil
				}
				out, err := renderSummaryMarkdown(s)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render each section as the Markdown document written to the archive")
	return cmd
}

func newExportCmd(st *rootState) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the finished survey and clear local state",
		Long:  "Projects the summary from the stored records, writes it to the export store and clears the saved answers once the export succeeded.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, st, func(ctx context.Context, rt *runtime) error {
				var key string
				err := rt.flow.Complete(ctx, func(ctx context.Context, doc survey.Document, ids map[string]int64) error {
					s, err := rt.projector.Project(ctx, rt.flow.Store.Scope(), doc, ids)
					if err != nil {
						return err
					}
					store, err := rt.exportStore(ctx)
					if err != nil {
						return err
					}
					key, err = summary.Publish(ctx, store, s, format)
					return err
				})
				if err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "Survey exported to "+key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", summary.FormatArchive, "Export format: zip or csv")
	return cmd
}

func newResetCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard saved answers and submitted section ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, st, func(ctx context.Context, rt *runtime) error {
				if err := rt.flow.Reset(ctx); err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), fmt.Sprintf("Survey %q cleared", rt.flow.Store.Scope()))
				return nil
			})
		},
	}
}
