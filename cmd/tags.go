package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/corpus/internal/app"
	"github.com/corvid-labs/corpus/internal/knowledge"
)

func newTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List and manage tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tags, err := a.Store.ListTags(ctx)
				if err != nil {
					return err
				}
				if len(tags) == 0 {
					fmt.Println("No tags.")
					return nil
				}
				for _, t := range tags {
					if t.Description != "" {
						fmt.Printf("%s\t%s\n", t.Name, t.Description)
						continue
					}
					fmt.Println(t.Name)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(newTagsCreateCmd())
	return cmd
}

func newTagsCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tag, err := a.Store.CreateTag(ctx, args[0], description)
				if errors.Is(err, knowledge.ErrUniqueViolation) {
					return fmt.Errorf("tag %q already exists", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Printf("Created tag %s (%s)\n", tag.Name, tag.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "optional tag description")
	return cmd
}
