package cmd

import (
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract ejector data",
	Long:  `Extract ejector data such as decrypted exit messages.`,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
