package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/validator-ejector/pkg/consensus"
	"github.com/ethpandaops/validator-ejector/pkg/transport"
)

var (
	verifyMessagesPath     string
	verifyMessagesPassword string
	verifyMessagesBeacon   string
	verifyMessagesNetwork  string
)

var verifyMessagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Verify pre-signed exit messages",
	Long: `Verify the signatures of the pre-signed exit messages in a directory against
the validator pubkeys known to a beacon node. Encrypted messages are decrypted
with the given password.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verifier, err := newVerifier(verifyMessagesNetwork, consensus.NewBeaconAPI(verifyMessagesBeacon, transport.NewNodeClient(log, nil), log))
		if err != nil {
			return err
		}

		loaded, err := loadMessageFiles(cmd, verifyMessagesPath, verifyMessagesPassword)
		if err != nil {
			return err
		}

		set, err := verifier.Verify(cmd.Context(), loaded)
		if err != nil {
			return errors.Wrap(err, "failed to verify exit messages")
		}

		if set.Len() != len(loaded) {
			return errors.Errorf("%d of %d exit messages failed verification", len(loaded)-set.Len(), len(loaded))
		}

		fmt.Printf("✅ Successfully verified %d exit messages\n", set.Len())

		return nil
	},
}

func init() {
	verifyCmd.AddCommand(verifyMessagesCmd)

	verifyMessagesCmd.Flags().StringVar(&verifyMessagesPath, "path", "", "Path to directory containing exit message files")
	verifyMessagesCmd.Flags().StringVar(&verifyMessagesPassword, "password", "", "Password of encrypted exit message files")
	verifyMessagesCmd.Flags().StringVar(&verifyMessagesBeacon, "beacon", "", "Beacon node endpoint URL (e.g. 'http://localhost:5052')")
	verifyMessagesCmd.Flags().StringVar(&verifyMessagesNetwork, "network", "", "Network the messages must be signed for (mainnet, sepolia, holesky or hoodi)")

	err := verifyMessagesCmd.MarkFlagRequired("path")
	if err != nil {
		log.WithError(err).Fatalf("Failed to mark flag %s as required", "path")
	}

	err = verifyMessagesCmd.MarkFlagRequired("beacon")
	if err != nil {
		log.WithError(err).Fatalf("Failed to mark flag %s as required", "beacon")
	}
}
