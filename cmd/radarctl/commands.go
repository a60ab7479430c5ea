package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/nadmax/radar/internal/client"
	"github.com/nadmax/radar/internal/middleware"
	"github.com/nadmax/radar/internal/notify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd(out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("RADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("server", "http://localhost:8080")

	root := &cobra.Command{
		Use:           "radarctl",
		Short:         "Command line client for the radar task service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().String("server", "", "server base url (env RADAR_SERVER)")
	root.PersistentFlags().String("token", "", "bearer token for mutating requests (env RADAR_TOKEN)")
	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("token", root.PersistentFlags().Lookup("token"))

	newClient := func() (*client.Client, error) {
		return client.New(v.GetString("server"), client.WithToken(v.GetString("token")))
	}

	root.AddCommand(
		newListCmd(newClient),
		newGetCmd(newClient),
		newAddCmd(newClient),
		newUpdateCmd(newClient),
		newDeleteCmd(newClient),
		newStatsCmd(newClient),
		newWatchCmd(newClient),
		newTokenCmd(),
	)

	return root
}

type clientFactory func() (*client.Client, error)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func newListCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			tasks, err := c.List(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTasks(tasks))
			return nil
		},
	}
}

func newGetCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}

			t, err := c.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTask(t))
			return nil
		},
	}
}

func taskFlags(cmd *cobra.Command, in *client.TaskInput) {
	cmd.Flags().StringVarP(&in.Name, "name", "n", "", "task name")
	cmd.Flags().StringVarP(&in.Status, "status", "s", "", "Pending, Running, Done or Failed")
	cmd.Flags().Float64VarP(&in.Accuracy, "accuracy", "a", 0, "accuracy between 0 and 100")
}

func newAddCmd(newClient clientFactory) *cobra.Command {
	var in client.TaskInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			id, err := c.Create(cmd.Context(), in)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created task %d\n", id)
			return nil
		},
	}
	taskFlags(cmd, &in)
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newUpdateCmd(newClient clientFactory) *cobra.Command {
	var in client.TaskInput

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a task's name, status and accuracy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}

			if err := c.Update(cmd.Context(), id, in); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "updated task %d\n", id)
			return nil
		},
	}
	taskFlags(cmd, &in)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("status")

	return cmd
}

func newDeleteCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}

			if err := c.Delete(cmd.Context(), id); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted task %d\n", id)
			return nil
		},
	}
}

func newStatsCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task counts per status and the average accuracy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats))
			return nil
		},
	}
}

// newWatchCmd prints the task list and reprints it after every change
// notification until interrupted.
func newWatchCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the task list live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			out := cmd.OutOrStdout()

			refresh := func() {
				tasks, err := c.List(ctx)
				if err != nil {
					if ctx.Err() == nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "refresh failed: %v\n", err)
					}
					return
				}
				fmt.Fprintf(out, "%s\n%s\n", time.Now().Format(time.TimeOnly), renderTasks(tasks))
			}

			refresh()
			return c.Watch(ctx, func(notify.Event) { refresh() })
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with the server's secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := middleware.IssueToken(secret, subject, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (auth.jwt_secret on the server)")
	cmd.Flags().StringVar(&subject, "subject", "radarctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}
