package main

import (
	"context"
	"errors"
	"fmt"

	"calman.com/worklog/infrastructure/filesystem"
	"github.com/spf13/cobra"
)

func (a *app) storage(ctx context.Context, source string) (*filesystem.Storage, error) {
	if _, _, ok := filesystem.ParseS3URI(source); !ok {
		return filesystem.NewStorage(nil), nil
	}
	return filesystem.NewS3Storage(ctx, a.cfg.Storage.Region)
}

func newImportCmd(a *app) *cobra.Command {
	var carModel string

	cmd := &cobra.Command{
		Use:   "import <file|s3://bucket/key>",
		Short: "Upload a production plan workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := a.storage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f, name, err := storage.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctrl, err := a.controller()
			if err != nil {
				return err
			}
			res, err := ctrl.Mutations.ImportBatch(cmd.Context(), name, f, carModel)
			if err != nil {
				return err
			}

			if res.Message != "" {
				fmt.Fprintln(a.out, res.Message)
			}
			for _, e := range res.Errors {
				fmt.Fprintln(a.out, "  "+e)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&carModel, "car-model", "", "car model the plan belongs to")
	_ = cmd.MarkFlagRequired("car-model")
	return cmd
}

func newSourcesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sources [prefix]",
		Short: "List the workbooks in the configured S3 bucket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Storage.Bucket == "" {
				return errors.New("storage.bucket is not configured")
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}

			storage, err := filesystem.NewS3Storage(cmd.Context(), a.cfg.Storage.Region)
			if err != nil {
				return err
			}
			keys, err := storage.ListFiles(cmd.Context(), a.cfg.Storage.Bucket, prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintf(a.out, "s3://%s/%s\n", a.cfg.Storage.Bucket, k)
			}
			return nil
		},
	}
}
