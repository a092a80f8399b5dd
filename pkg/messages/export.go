package messages

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Export writes every message of the set as plain JSON into dir, one file
// per validator named <validator_index>.json.
func Export(dir string, set *VerifiedSet) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errors.Wrapf(err, "failed to create directory %s", dir)
	}

	written := 0

	for _, msg := range set.Messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return written, errors.Wrapf(err, "failed to marshal exit message for validator %s", msg.Message.ValidatorIndex)
		}

		path := filepath.Join(dir, msg.Message.ValidatorIndex+".json")

		if err := os.WriteFile(path, data, 0o600); err != nil {
			return written, errors.Wrapf(err, "failed to write %s", path)
		}

		written++
	}

	return written, nil
}
