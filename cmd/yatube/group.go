package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// 分组只能由运维创建
func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "group", Short: "Manage groups"}

	var title, description string
	create := &cobra.Command{
		Use:   "create <slug>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if title == "" {
				title = args[0]
			}
			g := &model.Group{Title: title, Slug: args[0], Description: description}
			if err := a.groups.Create(cmd.Context(), g); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return fmt.Errorf("group %q already exists", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "group %s created (id=%d)\n", g.Slug, g.ID)
			return nil
		},
	}
	create.Flags().StringVar(&title, "title", "", "group title (defaults to slug)")
	create.Flags().StringVar(&description, "description", "", "group description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			groups, err := a.groups.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, g := range groups {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", g.ID, g.Slug, g.Title)
			}
			return nil
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}
