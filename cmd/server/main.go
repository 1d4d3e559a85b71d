package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

func main() {
	serve := serveCmd()

	rootCmd := &cobra.Command{
		Use:   "session-gate",
		Short: "Session and token lifecycle gateway for the course marketplace",
		Long: `session-gate keeps browser sessions signed in against the account service.

It holds each session's access and refresh tokens server side, renews them
once per session however many tabs ask, pushes renewals to open sockets and
gates page routes by role.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	rootCmd.AddCommand(serve, inspectCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
