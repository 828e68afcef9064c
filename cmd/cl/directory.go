package main

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func companyCmd() *cobra.Command {
	c := &cobra.Command{Use: "company", Short: "Company directory"}
	c.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute("/admin/companies"); err != nil {
					return err
				}
				companies, err := a.client.ListCompanies(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(companies)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Plan", "Max Buildings", "Active"})
				for _, c := range companies {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Plan, c.MaxBuildings, c.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	})
	return c
}

func buildingCmd() *cobra.Command {
	var companyID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List buildings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute("/admin/buildings"); err != nil {
					return err
				}
				buildings, err := a.client.ListBuildings(ctx, companyID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(buildings)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Type", "Address", "Company"})
				for _, b := range buildings {
					tw.AppendRow(table.Row{b.ID, b.Name, b.Type, b.Address, b.CompanyID})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&companyID, "company", "", "company filter")
	b := &cobra.Command{Use: "building", Short: "Building directory"}
	b.AddCommand(list)
	return b
}

func roomCmd() *cobra.Command {
	var buildingID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute("/admin/rooms"); err != nil {
					return err
				}
				rooms, err := a.client.ListRooms(ctx, buildingID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rooms)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Building", "Beds"})
				for _, r := range rooms {
					tw.AppendRow(table.Row{r.ID, r.Name, r.BuildingID, r.BedsSummary})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&buildingID, "building", "", "building filter")
	r := &cobra.Command{Use: "room", Short: "Room directory"}
	r.AddCommand(list)
	return r
}

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "User directory"}
	u.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute("/admin/users"); err != nil {
					return err
				}
				users, err := a.client.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Company", "Active"})
				for _, usr := range users {
					tw.AppendRow(table.Row{usr.ID, usr.Name, usr.Email, usr.Role.Label(), usr.CompanyID, usr.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	})
	return u
}
