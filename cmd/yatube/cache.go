package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d60-Lab/yatube/pkg/logger"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Page cache operations"}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()
			// 进程内缓存只能通过运行中服务的管理接口清空
			if !cfg.Redis.Enabled {
				return errors.New("redis is disabled; use POST /api/v1/admin/cache/clear on the running server")
			}
			pc, closeCache, err := newPageCache(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeCache()
			if err := pc.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "page cache cleared")
			return nil
		},
	})
	return cmd
}
