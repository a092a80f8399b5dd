package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/validator-ejector/pkg/consensus"
	"github.com/ethpandaops/validator-ejector/pkg/messages"
	"github.com/ethpandaops/validator-ejector/pkg/transport"
)

var (
	extractMessagesInput    string
	extractMessagesOutput   string
	extractMessagesPassword string
	extractMessagesBeacon   string
	extractMessagesNetwork  string
)

var extractMessagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Extract verified exit messages",
	Long: `Decrypt the exit messages in a directory, verify them against a beacon node
and write the verified messages as plain JSON files named <validator_index>.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verifier, err := newVerifier(extractMessagesNetwork, consensus.NewBeaconAPI(extractMessagesBeacon, transport.NewNodeClient(log, nil), log))
		if err != nil {
			return err
		}

		loaded, err := loadMessageFiles(cmd, extractMessagesInput, extractMessagesPassword)
		if err != nil {
			return err
		}

		set, err := verifier.Verify(cmd.Context(), loaded)
		if err != nil {
			return errors.Wrap(err, "failed to verify exit messages")
		}

		written, err := messages.Export(extractMessagesOutput, set)
		if err != nil {
			return errors.Wrap(err, "failed to extract exit messages")
		}

		fmt.Printf("✅ Successfully extracted %d of %d exit messages\n", written, len(loaded))

		return nil
	},
}

func init() {
	extractCmd.AddCommand(extractMessagesCmd)

	extractMessagesCmd.Flags().StringVar(&extractMessagesInput, "input", "", "Path to directory containing exit message files")
	extractMessagesCmd.Flags().StringVar(&extractMessagesOutput, "output", "", "Path to directory to save extracted exit messages")
	extractMessagesCmd.Flags().StringVar(&extractMessagesPassword, "password", "", "Password of encrypted exit message files")
	extractMessagesCmd.Flags().StringVar(&extractMessagesBeacon, "beacon", "", "Beacon node endpoint URL (e.g. 'http://localhost:5052')")
	extractMessagesCmd.Flags().StringVar(&extractMessagesNetwork, "network", "", "Network the messages must be signed for (mainnet, sepolia, holesky or hoodi)")

	for _, flag := range []string{"input", "output", "beacon"} {
		if err := extractMessagesCmd.MarkFlagRequired(flag); err != nil {
			log.WithError(err).Fatalf("Failed to mark flag %s as required", flag)
		}
	}
}

func loadMessageFiles(cmd *cobra.Command, path, password string) ([]*messages.ExitMessage, error) {
	loaded, err := messages.NewStore(messages.NewDirReader(path), password, log).Load(cmd.Context())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load exit messages")
	}

	if len(loaded) == 0 {
		return nil, errors.Errorf("no exit messages found in %s", path)
	}

	return loaded, nil
}
