package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"bird-conservation/internal/ml"

	"github.com/spf13/cobra"
)

func newModelsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage registered model versions",
		Long:  "Registers classifier and label codec pairs in the models directory and selects the active one, used when MODEL_PATH is empty.",
	}

	open := func() (*ml.ModelManager, error) {
		mm, err := ml.NewModelManager(root.settings.ModelsDir)
		if err != nil {
			return nil, fmt.Errorf("open models directory %s: %w", root.settings.ModelsDir, err)
		}
		return mm, nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List model versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mm, err := open()
			if err != nil {
				return err
			}
			versions := mm.ListVersions()

			if root.output == outputJSON {
				return writeIndented(cmd.OutOrStdout(), versions)
			}
			if len(versions) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No model versions registered.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTIVE\tVERSION\tFORMAT\tCREATED\tMODEL")
			for _, v := range versions {
				active := ""
				if v.IsActive {
					active = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", active, v.Version, v.Format, v.CreatedAt.Format(time.RFC3339), v.ModelPath)
			}
			return tw.Flush()
		},
	}

	var (
		add      ml.ModelVersion
		activate bool
	)
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a model version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mm, err := open()
			if err != nil {
				return err
			}
			for _, p := range []*string{&add.ModelPath, &add.CodecPath, &add.MetadataPath} {
				if *p == "" {
					continue
				}
				// Flag paths are relative to the working directory.
				if *p, err = filepath.Abs(*p); err != nil {
					return err
				}
			}
			v, err := mm.AddVersion(add)
			if err != nil {
				return err
			}
			if activate {
				if err := mm.ActivateVersion(v.Version); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", v.Version)
			return nil
		},
	}
	f := addCmd.Flags()
	f.StringVar(&add.Version, "version", "", "version tag (default: creation timestamp)")
	f.StringVar(&add.ModelPath, "model", "", "model artifact path")
	f.StringVar(&add.CodecPath, "codec", "", "label codec path")
	f.StringVar(&add.MetadataPath, "metadata", "", "model metadata path")
	f.StringVar(&add.Format, "format", ml.FormatAuto, "model format")
	f.Float64Var(&add.Accuracy, "accuracy", 0, "validation accuracy")
	f.BoolVar(&activate, "activate", false, "activate the new version")

	activateCmd := &cobra.Command{
		Use:   "activate VERSION",
		Short: "Make VERSION the active model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mm, err := open()
			if err != nil {
				return err
			}
			if err := mm.ActivateVersion(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "activated %s\n", args[0])
			return nil
		},
	}

	rollback := &cobra.Command{
		Use:   "rollback",
		Short: "Activate the version registered before the active one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mm, err := open()
			if err != nil {
				return err
			}
			if err := mm.Rollback(); err != nil {
				return err
			}
			v, _ := mm.GetCurrentVersion()
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back to %s\n", v.Version)
			return nil
		},
	}

	cmd.AddCommand(list, addCmd, activateCmd, rollback)
	return cmd
}
