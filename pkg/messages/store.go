package messages

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-ejector/pkg/keystore"
)

// Store loads pre-signed exit messages through a Reader, decrypting
// keystore-wrapped files with the configured password.
type Store struct {
	reader   Reader
	password string
	log      logrus.FieldLogger
}

// NewStore creates a Store. password may be empty when no file is encrypted.
func NewStore(reader Reader, password string, log logrus.FieldLogger) *Store {
	return &Store{
		reader:   reader,
		password: password,
		log:      log.WithField("component", "messages"),
	}
}

// Load reads every message file. Files that cannot be parsed or decrypted
// are skipped with a warning.
func (s *Store) Load(ctx context.Context) ([]*ExitMessage, error) {
	files, err := s.reader.Read(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read message files")
	}

	messages := make([]*ExitMessage, 0, len(files))

	for _, file := range files {
		msg, err := s.parse(file.Data)
		if err != nil {
			s.log.WithError(err).WithField("file", file.Name).Warn("Skipping file")

			continue
		}

		messages = append(messages, msg)
	}

	s.log.WithFields(logrus.Fields{
		"files":    len(files),
		"messages": len(messages),
	}).Info("Loaded exit messages")

	return messages, nil
}

func (s *Store) parse(data []byte) (*ExitMessage, error) {
	if keystore.IsEncrypted(data) {
		if s.password == "" {
			return nil, errors.New("message is encrypted but no password is configured")
		}

		plaintext, err := keystore.Decrypt(data, s.password)
		if err != nil {
			return nil, err
		}

		data = plaintext
	}

	return ParseMessage(data)
}

// ParseMessage parses a plain JSON exit message.
func ParseMessage(data []byte) (*ExitMessage, error) {
	var msg ExitMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal exit message")
	}

	if msg.Message.ValidatorIndex == "" || msg.Message.Epoch == "" || msg.Signature == "" {
		return nil, errors.New("exit message is missing fields")
	}

	return &msg, nil
}
