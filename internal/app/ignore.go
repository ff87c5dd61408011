package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imring/apptime/internal/output"
	"github.com/imring/apptime/internal/store"
)

var (
	ignoreKind string

	ignoreCmd = &cobra.Command{
		Use:   "ignore",
		Short: "Manage applications excluded from recording",
		Long: `Ignore rules keep applications out of the database and out of reports.

Rule kinds:
  • file: one executable, matched by its exact path
  • path: every executable inside a directory, at any depth

Rules also hide intervals recorded before the rule was added. Removing the
rule makes them visible again.`,
	}

	ignoreAddCmd = &cobra.Command{
		Use:   "add <value>",
		Short: "Add an ignore rule",
		Example: `  # Ignore one program
  apptime ignore add /usr/bin/bash

  # Ignore everything under a directory
  apptime ignore add --kind path /usr/lib`,
		Args: cobra.ExactArgs(1),
		RunE: runIgnoreAdd,
	}

	ignoreRemoveCmd = &cobra.Command{
		Use:     "remove <value>",
		Aliases: []string{"rm"},
		Short:   "Remove an ignore rule",
		Args:    cobra.ExactArgs(1),
		RunE:    runIgnoreRemove,
	}

	ignoreListCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List ignore rules",
		Args:    cobra.NoArgs,
		RunE:    runIgnoreList,
	}
)

func init() {
	for _, c := range []*cobra.Command{ignoreAddCmd, ignoreRemoveCmd} {
		c.Flags().StringVar(&ignoreKind, "kind", string(store.IgnoreFile), "rule kind: file or path")
	}
	ignoreCmd.AddCommand(ignoreAddCmd, ignoreRemoveCmd, ignoreListCmd)
}

// ignoreRule validates the kind flag and the value argument.
func ignoreRule(value string) (store.IgnoreRule, error) {
	kind, err := store.ParseIgnoreKind(ignoreKind)
	if err != nil {
		return store.IgnoreRule{}, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return store.IgnoreRule{}, fmt.Errorf("ignore value cannot be empty")
	}
	return store.IgnoreRule{Kind: kind, Value: value}, nil
}

func runIgnoreAdd(cmd *cobra.Command, args []string) error {
	rule, err := ignoreRule(args[0])
	if err != nil {
		return err
	}
	_, cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	st, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.AddIgnore(ctx, rule.Kind, rule.Value); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Ignoring %s %s\n", rule.Kind, rule.Value)
	return nil
}

func runIgnoreRemove(cmd *cobra.Command, args []string) error {
	rule, err := ignoreRule(args[0])
	if err != nil {
		return err
	}
	_, cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	st, err := openExistingStore(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.RemoveIgnore(commandContext(cmd), rule.Kind, rule.Value); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ No longer ignoring %s %s\n", rule.Kind, rule.Value)
	return nil
}

func runIgnoreList(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	st, err := openExistingStore(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	rules, err := st.Ignores(commandContext(cmd))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderIgnoreTable(rules))
	return nil
}
