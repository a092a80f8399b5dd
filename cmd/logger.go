package cmd

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-ejector/pkg/config"
)

const redacted = "<redacted>"

// redactingFormatter masks secret values in formatted entries
type redactingFormatter struct {
	logrus.Formatter

	secrets [][]byte
}

func (f *redactingFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	out, err := f.Formatter.Format(entry)
	if err != nil {
		return nil, err
	}

	for _, secret := range f.secrets {
		out = bytes.ReplaceAll(out, secret, []byte(redacted))
	}

	return out, nil
}

// setLogLevel sets the logging level
func setLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %s", level)
	}

	log.SetLevel(lvl)

	return nil
}

// configureLogger applies the configured format, level and secrets. A level
// given on the command line wins.
func configureLogger(cfg *config.Config) error {
	var formatter logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	if cfg.LoggerFormat == config.LogFormatJSON {
		formatter = &logrus.JSONFormatter{}
	}

	secrets := make([][]byte, 0, len(cfg.LoggerSecrets))

	for _, secret := range cfg.LoggerSecrets {
		if secret != "" {
			secrets = append(secrets, []byte(secret))
		}
	}

	if len(secrets) > 0 {
		formatter = &redactingFormatter{Formatter: formatter, secrets: secrets}
	}

	log.SetFormatter(formatter)

	if logLevel != "" {
		return nil
	}

	return setLogLevel(cfg.LoggerLevel)
}
