package main

import (
	"fmt"
	"time"

	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/calman/v1/common/status"
	"calman.com/worklog/core"
	"github.com/spf13/cobra"
)

type viewFlags struct {
	date   string
	status string
	sort   string
	desc   bool
	size   int
}

func (f *viewFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "only show one day (YY.MM.DD)")
	cmd.Flags().StringVar(&f.status, "status", "all", "all, completed or incomplete")
	cmd.Flags().StringVar(&f.sort, "sort", "workDatetime", "sort field")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&f.size, "size", 0, "page size (0 reads everything in one request)")
}

func (f *viewFlags) context() (core.QueryContext, error) {
	field, err := common.ParseSortField(f.sort)
	if err != nil {
		return core.QueryContext{}, err
	}
	st, err := status.Parse(f.status)
	if err != nil {
		return core.QueryContext{}, err
	}
	dir := common.Asc
	if f.desc {
		dir = common.Desc
	}

	qc := core.NewQueryContext().WithSort(field, dir).WithStatus(st)
	if f.size > 0 {
		qc = qc.WithPage(0, f.size)
	} else {
		qc = qc.Unpaged()
	}
	if f.date != "" {
		qc = qc.WithDate(f.date)
	}
	return qc, nil
}

func newListCmd(a *app) *cobra.Command {
	var (
		view viewFlags
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the work logs matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			qc, err := view.context()
			if err != nil {
				return err
			}
			ctrl, err := a.controller()
			if err != nil {
				return err
			}

			res, err := ctrl.SetContext(cmd.Context(), qc)
			if err != nil {
				return err
			}
			for all && res.HasMore && view.size > 0 {
				if res, err = ctrl.LoadMore(cmd.Context()); err != nil {
					return err
				}
			}

			records := ctrl.View()
			fmt.Fprintln(a.out, renderTable(records, time.Now()))
			fmt.Fprintf(a.out, "%d work logs\n", len(records))
			return nil
		},
	}

	view.bind(cmd)
	cmd.Flags().BoolVar(&all, "all-pages", false, "keep reading pages until the backend has no more")
	return cmd
}
