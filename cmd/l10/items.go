package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	leveltensdk "levelten/sdk/go"
)

func rockCmd() *cobra.Command {
	rk := &cobra.Command{Use: "rock", Short: "Manage rocks"}
	rk.AddCommand(rockAddCmd())
	rk.AddCommand(rockStatusCmd())
	return rk
}

func rockAddCmd() *cobra.Command {
	var in leveltensdk.NewRock
	cmd := &cobra.Command{
		Use:   "add <meeting-id>",
		Short: "Add a rock (starts on-track)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				rock, err := c.AddRock(ctx, args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(rock, func() { printCreated("rock", rock.ID, rock.Description) })
			})
		},
	}
	cmd.Flags().StringVar(&in.Description, "description", "", "rock description")
	cmd.Flags().StringVar(&in.Owner, "owner", "", "owner name")
	cmd.Flags().StringVar(&in.CreatedAt, "created-at", "", "creation date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func rockStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "status <meeting-id> <rock-id> <on-track|off-track|completed>",
		Short:     "Set rock status",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"on-track", "off-track", "completed"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				rock, err := c.SetRockStatus(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				return printJSONOrTable(rock, func() {
					fmt.Fprintf(out, "rock %s is %s\n", rock.ID, rock.Status)
				})
			})
		},
	}
}

func todoCmd() *cobra.Command {
	td := &cobra.Command{Use: "todo", Short: "Manage to-dos"}
	td.AddCommand(todoAddCmd())
	td.AddCommand(todoCompleteCmd("done", "Mark a to-do done", true))
	td.AddCommand(todoCompleteCmd("reopen", "Mark a to-do not done", false))
	return td
}

func todoAddCmd() *cobra.Command {
	var in leveltensdk.NewTodo
	cmd := &cobra.Command{
		Use:   "add <meeting-id>",
		Short: "Add a to-do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				todo, err := c.AddTodo(ctx, args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(todo, func() { printCreated("to-do", todo.ID, todo.Description) })
			})
		},
	}
	cmd.Flags().StringVar(&in.Description, "description", "", "what needs doing")
	cmd.Flags().StringVar(&in.Assignee, "assignee", "", "assignee name")
	cmd.Flags().StringVar(&in.CreatedAt, "created-at", "", "creation date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func todoCompleteCmd(use, short string, completed bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <meeting-id> <todo-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				todo, err := c.SetTodoCompleted(ctx, args[0], args[1], completed)
				if err != nil {
					return err
				}
				return printJSONOrTable(todo, func() {
					state := "open"
					if todo.Completed {
						state = "done"
					}
					fmt.Fprintf(out, "to-do %s is %s\n", todo.ID, state)
				})
			})
		},
	}
}

func headlineCmd() *cobra.Command {
	hl := &cobra.Command{Use: "headline", Short: "Manage headlines"}
	var in leveltensdk.NewHeadline
	add := &cobra.Command{
		Use:   "add <meeting-id>",
		Short: "Add a headline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				h, err := c.AddHeadline(ctx, args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(h, func() { printCreated("headline", h.ID, h.Content) })
			})
		},
	}
	add.Flags().StringVar(&in.Content, "content", "", "headline text")
	add.Flags().StringVar(&in.Reporter, "reporter", "", "reporter name")
	add.Flags().StringVar(&in.CreatedAt, "created-at", "", "creation date YYYY-MM-DD (default today)")
	_ = add.MarkFlagRequired("content")
	hl.AddCommand(add)
	return hl
}

func issueCmd() *cobra.Command {
	is := &cobra.Command{
		Use:   "issue",
		Short: "Manage issues",
		Long:  "Issues are worked through IDS (Identify, Discuss, Solve) in list order. A resolved issue stays resolved.",
	}
	is.AddCommand(issueAddCmd())
	is.AddCommand(issueResolveCmd())
	is.AddCommand(issueReorderCmd())
	return is
}

func issueAddCmd() *cobra.Command {
	var in leveltensdk.NewIssue
	var details string
	cmd := &cobra.Command{
		Use:   "add <meeting-id>",
		Short: "Add an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Details = optionalString(details)
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				issue, err := c.AddIssue(ctx, args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(issue, func() { printCreated("issue", issue.ID, issue.Description) })
			})
		},
	}
	cmd.Flags().StringVar(&in.Description, "description", "", "issue description")
	cmd.Flags().StringVar(&in.Reporter, "reporter", "", "reporter name")
	cmd.Flags().StringVar(&in.Category, "category", "", "category")
	cmd.Flags().StringVar(&details, "details", "", "longer notes")
	cmd.Flags().StringVar(&in.CreatedAt, "created-at", "", "creation date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func issueResolveCmd() *cobra.Command {
	var resolution string
	cmd := &cobra.Command{
		Use:   "resolve <meeting-id> <issue-id>",
		Short: "Resolve an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				issue, err := c.ResolveIssue(ctx, args[0], args[1], resolution)
				if err != nil {
					return err
				}
				return printJSONOrTable(issue, func() {
					fmt.Fprintf(out, "issue %s resolved: %s\n", issue.ID, resolution)
				})
			})
		},
	}
	cmd.Flags().StringVar(&resolution, "resolution", "", "how the issue was solved")
	_ = cmd.MarkFlagRequired("resolution")
	return cmd
}

func issueReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <meeting-id> <old-index> <new-index>",
		Short: "Move an issue to a new position (0-based)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldIndex, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("old index: %w", err)
			}
			newIndex, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("new index: %w", err)
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				issues, err := c.ReorderIssues(ctx, args[0], oldIndex, newIndex)
				if err != nil {
					return err
				}
				return printJSONOrTable(issues, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(out)
					tw.AppendHeader(table.Row{"#", "ID", "Description"})
					for i, is := range issues {
						tw.AppendRow(table.Row{i, is.ID, is.Description})
					}
					tw.Render()
				})
			})
		},
	}
}

func itemsCmd() *cobra.Command {
	var member string
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Rocks, to-dos, headlines and issues owned by you (or --member) across meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				var (
					items leveltensdk.PersonalItems
					err   error
				)
				if member == "" {
					items, err = c.MyItems(ctx)
				} else {
					items, err = c.MemberItems(ctx, member)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func() { renderItems(items) })
			})
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "member name (default: current user)")
	return cmd
}

func renderItems(items leveltensdk.PersonalItems) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetTitle("Items for " + items.Member)
	tw.AppendHeader(table.Row{"Kind", "Meeting", "ID", "Description", "State"})
	for _, r := range items.Rocks {
		tw.AppendRow(table.Row{"rock", r.MeetingName, r.ID, r.Description, r.Status})
	}
	for _, t := range items.Todos {
		state := "open"
		if t.Completed {
			state = "done"
		}
		tw.AppendRow(table.Row{"to-do", t.MeetingName, t.ID, t.Description, state})
	}
	for _, h := range items.Headlines {
		tw.AppendRow(table.Row{"headline", h.MeetingName, h.ID, h.Content, ""})
	}
	for _, is := range items.Issues {
		state := "open"
		if is.Resolved != nil && *is.Resolved {
			state = "resolved"
		}
		tw.AppendRow(table.Row{"issue", is.MeetingName, is.ID, is.Description, state})
	}
	tw.Render()
}

func printCreated(kind, id, text string) {
	fmt.Fprintf(out, "created %s %s: %s\n", kind, id, text)
}
