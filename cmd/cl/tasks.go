package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cleanline/internal/api"
	"cleanline/internal/domain"
)

// statusStyles colors every lifecycle status; the map is total over the
// closed status set.
var statusStyles = map[domain.TaskStatus]lipgloss.Style{
	domain.StatusToClean:       lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	domain.StatusToCleanUrgent: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	domain.StatusInProgress:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	domain.StatusCompleted:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	domain.StatusVerified:      lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
}

func renderStatus(s domain.TaskStatus) string {
	return statusStyles[s].Render(s.Label())
}

func domainRole(s string) domain.Role {
	return domain.Role(s)
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage cleaning tasks",
		Long:  "Tasks are room cleanings. They flow to_clean / to_clean_urgent -> in_progress -> completed -> verified; the backend arbitrates every transition and owns completedAt / verifiedAt.",
	}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskCurrentCmd())
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskStartCmd())
	task.AddCommand(taskCompleteCmd())
	task.AddCommand(taskVerifyCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var f api.TaskFilters
	var status string
	var mine, pending, cached bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute(a.taskSurface()); err != nil {
					return err
				}
				if mine {
					p := a.session.Principal()
					f.AssignedTo = p.ID
				}
				f.Status = domain.TaskStatus(status)
				var tasks []domain.TaskWithDetails
				var err error
				if cached {
					tasks, err = a.engine.Tasks(ctx)
				} else {
					tasks, err = a.engine.FetchTasks(ctx, f)
				}
				if err != nil {
					return err
				}
				if pending {
					filtered := tasks[:0]
					for _, t := range tasks {
						if t.Status.Pending() {
							filtered = append(filtered, t)
						}
					}
					tasks = filtered
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTaskTable(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.RoomID, "room", "", "room filter")
	cmd.Flags().StringVar(&f.BuildingID, "building", "", "building filter")
	cmd.Flags().StringVar(&f.AssignedTo, "assignee", "", "assignee filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().BoolVar(&mine, "mine", false, "only tasks assigned to me")
	cmd.Flags().BoolVar(&pending, "pending", false, "only tasks not yet started")
	cmd.Flags().BoolVar(&cached, "cached", false, "read the local cache, no network")
	return cmd
}

func renderTaskTable(tasks []domain.TaskWithDetails) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Room", "Building", "Status", "Assignee", "Scheduled"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.RoomName, t.BuildingName, renderStatus(t.Status), t.AssignedToName, t.ScheduledDate})
	}
	tw.Render()
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Fetch one task and make it the current focus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute(a.taskSurface()); err != nil {
					return err
				}
				t, err := a.engine.FetchTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	return cmd
}

func taskCurrentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show the focused task from the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute(a.taskSurface()); err != nil {
					return err
				}
				t, err := a.engine.CurrentTask(ctx)
				if err != nil {
					return err
				}
				if t == nil {
					fmt.Println("No task in focus; run 'cl task show <id>' first")
					return nil
				}
				return printTask(*t)
			})
		},
	}
	return cmd
}

func printTask(t domain.TaskWithDetails) error {
	if viper.GetBool("json") {
		return printJSON(t)
	}
	fmt.Printf("Task %s\n", t.ID)
	fmt.Printf("  Room:      %s (%s)\n", t.RoomName, t.BuildingName)
	fmt.Printf("  Status:    %s\n", renderStatus(t.Status))
	if t.AssignedToName != "" {
		fmt.Printf("  Assignee:  %s\n", t.AssignedToName)
	}
	fmt.Printf("  Scheduled: %s\n", t.ScheduledDate)
	if t.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", *t.CompletedAt)
	}
	if t.VerifiedAt != nil {
		fmt.Printf("  Verified:  %s\n", *t.VerifiedAt)
	}
	if t.Observations != "" {
		fmt.Printf("  Notes:     %s\n", t.Observations)
	}
	for _, img := range t.Images {
		fmt.Printf("  Image:     %s\n", img)
	}
	return nil
}

func taskCreateCmd() *cobra.Command {
	var input api.CreateTaskInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute("/admin/tasks"); err != nil {
					return err
				}
				t, err := a.engine.Create(ctx, input)
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	cmd.Flags().StringVar(&input.RoomID, "room", "", "room id")
	cmd.Flags().StringVar(&input.AssignedTo, "assignee", "", "assignee user id")
	cmd.Flags().StringVar(&input.ScheduledDate, "date", "", "scheduled date (RFC3339)")
	cmd.Flags().StringVar(&input.Observations, "observations", "", "notes for the cleaner")
	cmd.Flags().BoolVar(&input.Urgent, "urgent", false, "create as to_clean_urgent")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var assignee, date, observations, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Partially update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input api.UpdateTaskInput
			if cmd.Flags().Changed("assignee") {
				input.AssignedTo = &assignee
			}
			if cmd.Flags().Changed("date") {
				input.ScheduledDate = &date
			}
			if cmd.Flags().Changed("observations") {
				input.Observations = &observations
			}
			if cmd.Flags().Changed("status") {
				s := domain.TaskStatus(status)
				input.Status = &s
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute("/admin/tasks"); err != nil {
					return err
				}
				t, err := a.engine.Update(ctx, args[0], input)
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee user id (empty clears)")
	cmd.Flags().StringVar(&date, "date", "", "scheduled date (RFC3339)")
	cmd.Flags().StringVar(&observations, "observations", "", "notes")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	return cmd
}

func taskStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start a pending task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute(a.taskSurface()); err != nil {
					return err
				}
				p := a.session.Principal()
				t, err := a.engine.Start(ctx, args[0], *p)
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	return cmd
}

func taskCompleteCmd() *cobra.Command {
	var observations string
	var images []string
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete an in-progress task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute(a.taskSurface()); err != nil {
					return err
				}
				t, err := a.engine.Complete(ctx, args[0], observations, images)
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	cmd.Flags().StringVar(&observations, "observations", "", "closing notes")
	cmd.Flags().StringArrayVar(&images, "image", []string{}, "evidence image reference (repeatable)")
	return cmd
}

func taskVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <id>",
		Short: "Verify a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute("/admin/tasks"); err != nil {
					return err
				}
				p := a.session.Principal()
				t, err := a.engine.Verify(ctx, args[0], *p)
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute("/admin/tasks"); err != nil {
					return err
				}
				if err := a.engine.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted %s\n", args[0])
				return nil
			})
		},
	}
	return cmd
}
