package commands

import (
	"errors"
	"fmt"

	"github.com/attn-provisioner/provisioner-go/pkg/log"
)

// RunFilter copies the matching events of a log file into a new log file
// and returns how many were written.
func RunFilter(path, output string, sel Selection) (int, error) {
	if output == "" {
		return 0, errors.New("output file is required")
	}
	if output == path {
		return 0, errors.New("output must differ from input")
	}

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output log: %w", err)
	}

	count := 0
	err = forEach(path, sel, func(event log.Event) error {
		logger.Log(event)
		count++
		return nil
	})
	if cerr := logger.Close(); err == nil {
		err = cerr
	}
	return count, err
}
