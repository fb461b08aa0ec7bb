package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"envbench/internal/dummy"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run a local mock environment server",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		hosts, _ := cmd.Flags().GetString("hosts")

		opts := dummy.Options{Port: port}
		if hosts != "" {
			for _, h := range strings.Split(hosts, ",") {
				if h = strings.TrimSpace(h); h != "" {
					opts.Hosts = append(opts.Hosts, h)
				}
			}
		}

		dummy.Start(opts)
		select {}
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8000, "Port to serve on")
	dummyCmd.Flags().String("hosts", "", "Comma-separated host labels to round-robin (simulates a cluster)")
}
