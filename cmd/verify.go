package cmd

import (
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify ejector inputs",
	Long:  `Verify ejector inputs such as pre-signed exit messages.`,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
