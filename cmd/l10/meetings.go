package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	leveltensdk "levelten/sdk/go"
)

func meetingCmd() *cobra.Command {
	mtg := &cobra.Command{Use: "meeting", Short: "Browse meetings"}
	mtg.AddCommand(meetingListCmd())
	mtg.AddCommand(meetingShowCmd())
	mtg.AddCommand(meetingWeekCmd())
	mtg.AddCommand(meetingHistoryCmd())
	mtg.AddCommand(meetingRatingsCmd())
	mtg.AddCommand(meetingSelectCmd())
	return mtg
}

func meetingListCmd() *cobra.Command {
	var member string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				meetings, err := c.Meetings(ctx, member)
				if err != nil {
					return err
				}
				return printJSONOrTable(meetings, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(out)
					tw.AppendHeader(table.Row{"ID", "Name", "Day", "Time", "Duration", "Members"})
					for _, m := range meetings {
						tw.AppendRow(table.Row{m.ID, m.Name, m.DayOfWeek, m.Time, m.Duration, strings.Join(m.Members, ", ")})
					}
					tw.Render()
				})
			})
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "only meetings this member attends")
	return cmd
}

func meetingShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <meeting-id>",
		Short: "Show a meeting agenda",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				m, err := c.Meeting(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(m, func() { renderMeeting(m) })
			})
		},
	}
}

func renderMeeting(m leveltensdk.Meeting) {
	fmt.Fprintf(out, "%s (%s %s, %s)\n", m.Name, m.DayOfWeek, m.Time, m.Duration)
	if m.Description != "" {
		fmt.Fprintln(out, m.Description)
	}
	fmt.Fprintln(out, "Members:", strings.Join(m.Members, ", "))
	if len(m.Attendees) > 0 {
		fmt.Fprintf(out, "Checked in at %s: %s\n", m.StartedAt, strings.Join(m.Attendees, ", "))
	}

	rocks := table.NewWriter()
	rocks.SetOutputMirror(out)
	rocks.SetTitle("Rocks")
	rocks.AppendHeader(table.Row{"ID", "Description", "Owner", "Status"})
	for _, r := range m.Rocks {
		rocks.AppendRow(table.Row{r.ID, r.Description, r.Owner, r.Status})
	}
	rocks.Render()

	headlines := table.NewWriter()
	headlines.SetOutputMirror(out)
	headlines.SetTitle("Headlines")
	headlines.AppendHeader(table.Row{"ID", "Content", "Reporter"})
	for _, h := range m.Headlines {
		headlines.AppendRow(table.Row{h.ID, h.Content, h.Reporter})
	}
	headlines.Render()

	todos := table.NewWriter()
	todos.SetOutputMirror(out)
	todos.SetTitle("To-dos")
	todos.AppendHeader(table.Row{"ID", "Description", "Assignee", "Done"})
	for _, t := range m.Todos {
		todos.AppendRow(table.Row{t.ID, t.Description, t.Assignee, checkmark(t.Completed)})
	}
	todos.Render()

	issues := table.NewWriter()
	issues.SetOutputMirror(out)
	issues.SetTitle("Issues (IDS)")
	issues.AppendHeader(table.Row{"#", "ID", "Description", "Reporter", "Category", "Resolved"})
	for i, is := range m.Issues {
		issues.AppendRow(table.Row{i, is.ID, is.Description, is.Reporter, is.Category, checkmark(is.Resolved != nil && *is.Resolved)})
	}
	issues.Render()

	if m.Conclusion != "" {
		fmt.Fprintln(out, "Conclusion:", m.Conclusion)
	}
}

func checkmark(v bool) string {
	if v {
		return "x"
	}
	return ""
}

func meetingWeekCmd() *cobra.Command {
	var member string
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Meetings grouped by weekday",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				days, err := c.MeetingsByDay(ctx, member)
				if err != nil {
					return err
				}
				return printJSONOrTable(days, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(out)
					tw.AppendHeader(table.Row{"Day", "Time", "ID", "Name"})
					for _, d := range days {
						for _, m := range d.Meetings {
							tw.AppendRow(table.Row{d.Day, m.Time, m.ID, m.Name})
						}
						tw.AppendSeparator()
					}
					tw.Render()
				})
			})
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "only meetings this member attends")
	return cmd
}

func meetingHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <meeting-id>",
		Short: "Completed rocks and to-dos and resolved issues, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				groups, err := c.History(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(groups, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(out)
					tw.AppendHeader(table.Row{"Date", "Type", "ID", "Description", "Owner", "Category"})
					for _, g := range groups {
						for _, it := range g.Items {
							tw.AppendRow(table.Row{g.Date, it.Type, it.ID, it.Description, it.Owner, it.Category})
						}
					}
					tw.Render()
				})
			})
		},
	}
}

func meetingRatingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ratings <meeting-id>",
		Short: "Member ratings and the meeting average",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				m, err := c.Meeting(ctx, args[0])
				if err != nil {
					return err
				}
				r, err := c.Ratings(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(r, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(out)
					tw.AppendHeader(table.Row{"Member", "Rating"})
					for _, member := range m.Members {
						tw.AppendRow(table.Row{member, r.Ratings[member]})
					}
					tw.AppendFooter(table.Row{"Average", fmt.Sprintf("%.1f", r.Average)})
					tw.Render()
				})
			})
		},
	}
}

func meetingSelectCmd() *cobra.Command {
	var clearSel bool
	cmd := &cobra.Command{
		Use:   "select [meeting-id]",
		Short: "Select the current meeting, or show the selection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				var (
					sess leveltensdk.Session
					err  error
				)
				switch {
				case clearSel:
					sess, err = c.SelectMeeting(ctx, "")
				case len(args) == 1:
					sess, err = c.SelectMeeting(ctx, args[0])
				default:
					sess, err = c.Session(ctx)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(sess, func() {
					if sess.Meeting == nil {
						fmt.Fprintf(out, "%s has no meeting selected\n", sess.User.Name)
						return
					}
					fmt.Fprintf(out, "%s is in %s (%s)\n", sess.User.Name, sess.Meeting.Name, sess.MeetingID)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&clearSel, "clear", false, "clear the selection")
	return cmd
}

func rateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <meeting-id> <member> <rating>",
		Short: "Rate a meeting 1-10 for a member",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("rating must be a number: %w", err)
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				stored, err := c.SetRating(ctx, args[0], args[1], rating)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"member": args[1], "rating": stored}, func() {
					fmt.Fprintf(out, "%s rated %d\n", args[1], stored)
				})
			})
		},
	}
}

func concludeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conclude <meeting-id> <text>",
		Short: "Replace the meeting conclusion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				m, err := c.UpdateConclusion(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(m, func() {
					fmt.Fprintln(out, "Conclusion:", m.Conclusion)
				})
			})
		},
	}
}

func messageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "message <meeting-id> <text>",
		Short: "Post a message to the meeting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				msg, err := c.SendMessage(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(msg, func() {
					fmt.Fprintf(out, "[%s] %s\n", msg.Timestamp, msg.Content)
				})
			})
		},
	}
}

func checkinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkin <meeting-id> <member>...",
		Short: "Record who is present and start the meeting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				m, err := c.CheckIn(ctx, args[0], args[1:])
				if err != nil {
					return err
				}
				return printJSONOrTable(m, func() {
					fmt.Fprintf(out, "%s started at %s with %s\n", m.Name, m.StartedAt, strings.Join(m.Attendees, ", "))
				})
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event journal",
		Long:  "Every change made through the server, newest first. The journal lives in memory and resets with the server.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var meetingID, evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *leveltensdk.Client) error {
				page, err := c.EventsPage(ctx, leveltensdk.EventFilter{Limit: n, MeetingID: meetingID, Type: evtType})
				if err != nil {
					return err
				}
				items := page.Items
				return printJSONOrTable(items, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(out)
					tw.AppendHeader(table.Row{"ID", "Time", "Type", "Meeting", "Entity", "Actor"})
					for _, e := range items {
						tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.MeetingID, e.EntityKind + ":" + e.EntityID, e.ActorID})
					}
					tw.Render()
				})
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&meetingID, "meeting", "", "meeting id filter")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	return cmd
}
