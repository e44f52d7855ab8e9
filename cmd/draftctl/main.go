// Command draftctl is a staff tool for inspecting wizard drafts.
// Support uses it to find abandoned drafts and to clean up after
// owners who ask for their data to be removed.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/evermore-app/evermore/internal/db"
	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/store"
	"github.com/evermore-app/evermore/internal/wizard"
)

var dbPath string

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func openStores() (store.DraftStore, store.MemorialRepository, func(), error) {
	database := db.NewSQLite(dbPath)
	if err := database.InitDB(); err != nil {
		return nil, nil, nil, err
	}
	drafts := store.NewDBDraftStore(database)
	memorials := store.NewDBMemorialRepository(database)
	return drafts, memorials, func() { database.Close() }, nil
}

func openDrafts() (store.DraftStore, func(), error) {
	drafts, _, closeDB, err := openStores()
	return drafts, closeDB, err
}

func main() {
	root := &cobra.Command{
		Use:          "draftctl",
		Short:        "Inspect and manage memorial drafts",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "./evermore.db", "Path to the SQLite database")

	listCmd := &cobra.Command{
		Use:   "list <owner-id>",
		Short: "List an owner's unfinished drafts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drafts, closeDB, err := openDrafts()
			if err != nil {
				return err
			}
			defer closeDB()

			unfinished, err := drafts.ListUnfinishedDrafts(context.Background(), model.UserID(args[0]))
			if err != nil {
				return err
			}
			if len(unfinished) == 0 {
				fmt.Println(dimStyle.Render("No unfinished drafts."))
				return nil
			}

			fmt.Println(headerStyle.Render(fmt.Sprintf("%d unfinished draft(s)", len(unfinished))))
			for _, d := range unfinished {
				fmt.Printf("%s  %s  %s\n",
					idStyle.Render(string(d.ID)),
					d.DisplayName(),
					dimStyle.Render("modified "+d.ModifiedDate.Format("2006-01-02 15:04")),
				)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <draft-id>",
		Short: "Show a draft's content and step progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drafts, closeDB, err := openDrafts()
			if err != nil {
				return err
			}
			defer closeDB()

			draft, err := drafts.GetDraft(context.Background(), model.DraftID(args[0]))
			if err != nil {
				return err
			}

			fmt.Println(headerStyle.Render(draft.DisplayName()))
			fmt.Printf("Owner:    %s\n", draft.Owner)
			fmt.Printf("Status:   %s\n", draft.Status)
			fmt.Printf("Created:  %s\n", draft.CreatedDate.Format("2006-01-02 15:04"))
			fmt.Printf("Modified: %s\n", draft.ModifiedDate.Format("2006-01-02 15:04"))
			fmt.Println()

			registry := wizard.NewRegistry()
			for idx, step := range registry.Steps() {
				marker := dimStyle.Render("·")
				switch {
				case draft.Progress.Completed.Has(idx):
					marker = doneStyle.Render("✓")
				case draft.Progress.Errored.Has(idx):
					marker = errStyle.Render("✗")
				}
				current := " "
				if idx == draft.Progress.CurrentStep {
					current = ">"
				}
				fmt.Printf("%s %s %d. %s\n", current, marker, idx+1, step.Title)
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <draft-id>",
		Short: "Delete a draft permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drafts, closeDB, err := openDrafts()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := drafts.DeleteDraft(context.Background(), model.DraftID(args[0])); err != nil {
				return err
			}
			fmt.Println("Draft deleted.")
			return nil
		},
	}

	publishCmd := &cobra.Command{
		Use:   "publish <draft-id>",
		Short: "Publish a completed draft on the owner's behalf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drafts, memorials, closeDB, err := openStores()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := context.Background()
			draft, err := drafts.GetDraft(ctx, model.DraftID(args[0]))
			if err != nil {
				return err
			}

			// The wizard's completeness gate applies here too.
			registry := wizard.NewRegistry()
			if failing := registry.FailingRequired(&draft.Content); len(failing) > 0 {
				for _, step := range failing {
					fmt.Println(errStyle.Render("incomplete: " + step.Title))
				}
				return fmt.Errorf("draft has incomplete required steps")
			}

			memorial, err := memorials.PublishDraft(ctx, draft)
			if err != nil {
				return err
			}

			published := model.DraftStatusPublished
			if err := drafts.PatchDraft(ctx, draft.ID, store.DraftPatch{Status: &published}); err != nil {
				return fmt.Errorf("memorial created but draft status not updated: %w", err)
			}
			fmt.Println(doneStyle.Render("Published: /memorials/" + memorial.Slug))
			return nil
		},
	}

	root.AddCommand(listCmd, showCmd, deleteCmd, publishCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
