// Package output holds the exit-code table and the JSON output helpers used
// by smartosctl's commands. The launcher and scheduler binaries do not use it.
package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// Exit codes shared across smartos binaries.
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitArgs    = 2
)

// PrintJSON marshals v as indented JSON and writes it to w.
func PrintJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// PrintError writes a JSON error envelope to w.
func PrintError(w io.Writer, code string, message string) error {
	return PrintJSON(w, map[string]string{
		"error":   code,
		"message": message,
	})
}
