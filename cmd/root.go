package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mavkit/mavconn/cmd/perf"
	"github.com/mavkit/mavconn/cmd/proxy"
	"github.com/mavkit/mavconn/cmd/send"
	"github.com/mavkit/mavconn/cmd/util"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "mavconn",
		Short: "framed protocol transport toolkit",
		Long: fmt.Sprintf(`mavconn (v%s)

A transport library and toolkit for binary framed protocol links
over TCP and UDP, with client, server and datagram channels.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mavconn",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mavconn v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(proxy.ProxyCmd)
	RootCmd.AddCommand(send.SendCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("log level (debug, info, warning, error)"))

	util.SetupChannelFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	util.InitConfig()
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
