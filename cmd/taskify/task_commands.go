package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/taskify/domain/task"
	"github.com/example/taskify/taskstore"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks, newest first",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show tasks grouped by status",
	Args:  cobra.NoArgs,
	RunE:  runBoard,
}

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a task",
	Long: `Change fields of a task. Only the flags given are sent.
Pass --due "" to remove the deadline.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

var statusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Move a task to todo, inprogress, onhold or completed",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Mark a task completed, or back to todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runToggle,
}

var removeCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the board and redraw it as tasks change",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var (
	listStatusFlag string

	addDescriptionFlag string
	addPriorityFlag    string
	addStatusFlag      string
	addDueFlag         string

	editTitleFlag       string
	editDescriptionFlag string
	editPriorityFlag    string
	editStatusFlag      string
	editDueFlag         string

	removeYesFlag bool
)

func init() {
	listCmd.Flags().StringVarP(&listStatusFlag, "status", "s", "", "Only show tasks with this status")

	addCmd.Flags().StringVarP(&addDescriptionFlag, "description", "d", "", "Task description")
	addCmd.Flags().StringVarP(&addPriorityFlag, "priority", "p", "", "urgent, high or low (default low)")
	addCmd.Flags().StringVarP(&addStatusFlag, "status", "s", "", "Initial status (default todo)")
	addCmd.Flags().StringVar(&addDueFlag, "due", "", "Deadline, e.g. 2026-11-01 or 2026-11-01T17:00")

	editCmd.Flags().StringVarP(&editTitleFlag, "title", "t", "", "New title")
	editCmd.Flags().StringVarP(&editDescriptionFlag, "description", "d", "", "New description")
	editCmd.Flags().StringVarP(&editPriorityFlag, "priority", "p", "", "New priority")
	editCmd.Flags().StringVarP(&editStatusFlag, "status", "s", "", "New status")
	editCmd.Flags().StringVar(&editDueFlag, "due", "", "New deadline; empty removes it")

	removeCmd.Flags().BoolVarP(&removeYesFlag, "yes", "y", false, "Do not ask for confirmation")

	addTaskFlagAliases(addCmd, editCmd)
	rootCmd.AddCommand(listCmd, boardCmd, addCmd, editCmd, statusCmd, toggleCmd, removeCmd, watchCmd)
}

// withStore opens a loaded store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(*environment, *taskstore.Store) error) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	store, err := env.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(env, store)
}

func runList(cmd *cobra.Command, _ []string) error {
	var filter task.Status
	if listStatusFlag != "" {
		status, err := task.ParseStatus(listStatusFlag)
		if err != nil {
			return err
		}
		filter = status
	}

	return withStore(cmd, func(env *environment, store *taskstore.Store) error {
		tasks := store.Snapshot()
		if filter != "" {
			filtered := tasks[:0]
			for _, t := range tasks {
				if t.Status.OrDefault() == filter {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}
		fmt.Fprint(cmd.OutOrStdout(), formatTaskTable(tasks, time.Now(), env.loc))
		return nil
	})
}

func runBoard(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(env *environment, store *taskstore.Store) error {
		fmt.Fprint(cmd.OutOrStdout(), renderBoard(store.Columns(), time.Now(), env.loc))
		return nil
	})
}

func runAdd(cmd *cobra.Command, args []string) error {
	in := taskstore.NewTask{
		Title:       strings.Join(args, " "),
		Description: addDescriptionFlag,
		Due:         addDueFlag,
	}
	if addPriorityFlag != "" {
		priority, err := task.ParsePriority(addPriorityFlag)
		if err != nil {
			return err
		}
		in.Priority = priority
	}
	if addStatusFlag != "" {
		status, err := task.ParseStatus(addStatusFlag)
		if err != nil {
			return err
		}
		in.Status = status
	}

	return withStore(cmd, func(_ *environment, store *taskstore.Store) error {
		created, err := store.Add(cmd.Context(), in)
		if err != nil {
			return friendlyError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s\n", shortID(created.ID), created.Title)
		return nil
	})
}

// editFromFlags builds an Edit from the flags set on cmd.
func editFromFlags(cmd *cobra.Command) (taskstore.Edit, error) {
	var edit taskstore.Edit
	flags := cmd.Flags()
	if flags.Changed("title") {
		edit.Title = &editTitleFlag
	}
	if flags.Changed("description") {
		edit.Description = &editDescriptionFlag
	}
	if flags.Changed("priority") {
		priority, err := task.ParsePriority(editPriorityFlag)
		if err != nil {
			return taskstore.Edit{}, err
		}
		edit.Priority = &priority
	}
	if flags.Changed("status") {
		status, err := task.ParseStatus(editStatusFlag)
		if err != nil {
			return taskstore.Edit{}, err
		}
		edit.Status = &status
	}
	if flags.Changed("due") {
		edit.Due = &editDueFlag
	}
	return edit, nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	edit, err := editFromFlags(cmd)
	if err != nil {
		return err
	}

	return withStore(cmd, func(_ *environment, store *taskstore.Store) error {
		id, err := resolveTaskID(store.Snapshot(), args[0])
		if err != nil {
			return err
		}
		updated, err := store.Update(cmd.Context(), id, edit)
		if err != nil {
			return friendlyError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", shortID(updated.ID), updated.Title)
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := task.ParseStatus(args[1])
	if err != nil {
		return err
	}

	return withStore(cmd, func(_ *environment, store *taskstore.Store) error {
		id, err := resolveTaskID(store.Snapshot(), args[0])
		if err != nil {
			return err
		}
		if err := store.ChangeStatus(cmd.Context(), id, status); err != nil {
			return friendlyError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", shortID(id), status.Title())
		return nil
	})
}

func runToggle(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(_ *environment, store *taskstore.Store) error {
		id, err := resolveTaskID(store.Snapshot(), args[0])
		if err != nil {
			return err
		}
		if err := store.ToggleComplete(cmd.Context(), id); err != nil {
			return friendlyError(err)
		}
		if t, ok := store.Get(id); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s\n", shortID(id), t.Title, t.Status.OrDefault().Title())
		}
		return nil
	})
}

func runRemove(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(_ *environment, store *taskstore.Store) error {
		id, err := resolveTaskID(store.Snapshot(), args[0])
		if err != nil {
			return err
		}
		t, _ := store.Get(id)

		if !removeYesFlag {
			question := fmt.Sprintf("Delete %s %q?", shortID(id), t.Title)
			ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), question)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
				return nil
			}
		}

		if err := store.Delete(cmd.Context(), id); err != nil {
			return friendlyError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", shortID(id))
		return nil
	})
}

// confirm asks a y/N question. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(env *environment, store *taskstore.Store) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		previous := store.Snapshot()
		fmt.Fprint(out, renderBoard(taskstore.GroupByStatus(previous), time.Now(), env.loc))

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-store.Done():
				return nil
			case <-store.Updates():
				current := store.Snapshot()
				for _, line := range describeChange(previous, current) {
					fmt.Fprintln(out, line)
				}
				previous = current
				fmt.Fprint(out, renderBoard(taskstore.GroupByStatus(current), time.Now(), env.loc))
			}
		}
	})
}
