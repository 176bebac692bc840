package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bugbounty-tracker/internal/report"
	"bugbounty-tracker/internal/storage"
)

func main() {
	root, st := newRootCmd()
	err := root.Execute()
	st.close()
	if err != nil {
		os.Exit(1)
	}
}

// cliState 保存所有子命令共享的数据库连接
type cliState struct {
	dataDir string
	dsn     string
	verbose bool

	db      *storage.DB
	service *report.Service
}

func newRootCmd() (*cobra.Command, *cliState) {
	st := &cliState{}

	root := &cobra.Command{
		Use:          "bugbounty-cli",
		Short:        "管理漏洞报告数据库",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.open(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&st.dataDir, "data-dir", "./.data", "应用程序的数据目录")
	root.PersistentFlags().StringVar(&st.dsn, "dsn", "", "数据库连接串 (覆盖 data-dir)")
	root.PersistentFlags().BoolVarP(&st.verbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(
		newListCmd(st),
		newGetCmd(st),
		newStatusCmd(st),
		newDeleteCmd(st),
		newStatsCmd(st),
	)
	return root, st
}

func (st *cliState) open(ctx context.Context) error {
	logger := zap.NewNop()
	if st.verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}

	dsn := st.dsn
	if dsn == "" {
		var err error
		if dsn, err = storage.DefaultDSN(st.dataDir); err != nil {
			return err
		}
	}
	db, err := storage.Open(ctx, dsn, logger)
	if err != nil {
		return err
	}
	service, err := report.NewService(db.DB, logger)
	if err != nil {
		db.Close()
		return err
	}
	st.db = db
	st.service = service
	return nil
}

// close 在命令执行结束后释放数据库连接, 无论命令是否成功
func (st *cliState) close() {
	if st.db != nil {
		_ = st.db.Close()
		st.db = nil
	}
}

func newListCmd(st *cliState) *cobra.Command {
	var (
		severity string
		status   string
		company  string
		limit    int
		skip     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出漏洞报告 (按提交时间倒序)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := st.service.List(cmd.Context(), report.Filter{
				Severity:    report.Severity(severity),
				Status:      report.Status(status),
				CompanyName: company,
				Limit:       limit,
				Skip:        skip,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"data":       page.Reports,
				"pagination": page.Pagination,
			})
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "按严重程度过滤")
	cmd.Flags().StringVar(&status, "status", "", "按状态过滤")
	cmd.Flags().StringVar(&company, "company", "", "按公司名称过滤 (子串, 不区分大小写)")
	cmd.Flags().IntVar(&limit, "limit", report.DefaultLimit, "返回数量")
	cmd.Flags().IntVar(&skip, "skip", 0, "跳过数量")
	return cmd
}

func newGetCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "查看一条漏洞报告",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := st.service.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
}

func newStatusCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "更新漏洞报告的状态 (open, in-progress, resolved, closed, rejected)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := st.service.UpdateStatus(cmd.Context(), args[0], report.Status(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
}

func newDeleteCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "删除一条漏洞报告",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.service.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "成功删除漏洞报告: ID=%s\n", args[0])
			return nil
		},
	}
}

func newStatsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "输出统计汇总",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := st.service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
