package main

import (
	"fmt"

	"calman.com/worklog/model"
	"github.com/spf13/cobra"
)

type recordFlags struct {
	at       string
	carModel string
	color    string
	code     string
	name     string
	quantity int
}

func (f *recordFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.at, "at", "", "work time as YY.MM.DD HH:MM")
	cmd.Flags().StringVar(&f.carModel, "car-model", "", "car model")
	cmd.Flags().StringVar(&f.color, "color", "", "product color")
	cmd.Flags().StringVar(&f.code, "code", "", "product code")
	cmd.Flags().StringVar(&f.name, "name", "", "product name")
	cmd.Flags().IntVar(&f.quantity, "quantity", 0, "quantity")
}

// overlay copies the flags the user set onto req.
func (f *recordFlags) overlay(cmd *cobra.Command, req *model.UpdateRequest) {
	changed := cmd.Flags().Changed
	if changed("at") {
		req.WorkDatetime = f.at
	}
	if changed("car-model") {
		req.CarModel = f.carModel
	}
	if changed("color") {
		req.ProductColor = f.color
	}
	if changed("code") {
		req.ProductCode = f.code
	}
	if changed("name") {
		req.ProductName = f.name
	}
	if changed("quantity") {
		req.Quantity = f.quantity
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var rec recordFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a work log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.controller()
			if err != nil {
				return err
			}
			created, err := ctrl.Mutations.Create(cmd.Context(), model.CreateRequest{
				WorkDatetime: rec.at,
				CarModel:     rec.carModel,
				ProductColor: rec.color,
				ProductCode:  rec.code,
				ProductName:  rec.name,
				Quantity:     rec.quantity,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created work log %d\n", created.ID)
			return nil
		},
	}

	rec.bind(cmd)
	_ = cmd.MarkFlagRequired("at")
	_ = cmd.MarkFlagRequired("car-model")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var (
		rec       recordFlags
		completed bool
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the fields of a work log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctrl, err := a.controller()
			if err != nil {
				return err
			}

			current, err := a.client.WorkLogs.Get(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			req := model.UpdateRequest{
				WorkDatetime: current.WorkDatetime,
				CarModel:     current.CarModel,
				ProductColor: current.ProductColor,
				ProductCode:  current.ProductCode,
				ProductName:  current.ProductName,
				Quantity:     current.Quantity,
			}
			rec.overlay(cmd, &req)

			if cmd.Flags().Changed("completed") {
				err = ctrl.Mutations.UpdateWithStatus(cmd.Context(), ids[0], req, completed)
			} else {
				err = ctrl.Mutations.Update(cmd.Context(), ids[0], req)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "updated work log %d\n", ids[0])
			return nil
		},
	}

	rec.bind(cmd)
	cmd.Flags().BoolVar(&completed, "completed", false, "also set the completion state")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a work log complete, or incomplete with --undo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctrl, err := a.controller()
			if err != nil {
				return err
			}
			if err := ctrl.Mutations.UpdateStatus(cmd.Context(), ids[0], !undo); err != nil {
				return err
			}
			state := "complete"
			if undo {
				state = "incomplete"
			}
			fmt.Fprintf(a.out, "work log %d marked %s\n", ids[0], state)
			return nil
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "mark incomplete instead")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete one or more work logs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctrl, err := a.controller()
			if err != nil {
				return err
			}
			if err := ctrl.Mutations.DeleteMany(cmd.Context(), ids); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %d work logs\n", len(ids))
			return nil
		},
	}
}
