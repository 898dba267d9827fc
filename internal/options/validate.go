// Package options holds option checks and process settings shared by the
// command-line tool and the MCP server.
package options

import "github.com/erraggy/paramcontract/pcerrors"

// ValidateSingleInputSource ensures exactly one input source is specified.
// option names the setting in the returned *pcerrors.ConfigError and sources
// reports which sources were set.
func ValidateSingleInputSource(option, noSourceMsg, multiSourceMsg string, sources ...bool) error {
	sourceCount := 0
	for _, hasSource := range sources {
		if hasSource {
			sourceCount++
		}
	}

	if sourceCount == 0 {
		return &pcerrors.ConfigError{Option: option, Message: noSourceMsg}
	}
	if sourceCount > 1 {
		return &pcerrors.ConfigError{Option: option, Value: sourceCount, Message: multiSourceMsg}
	}

	return nil
}
