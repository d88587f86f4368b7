package main

import (
	"bytes"
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON renders a daemon response value as indented JSON on the
// command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeRawJSON re-indents a stored JSON artifact, such as a QA report or
// evidence map, without decoding it into a typed value. Malformed input is
// passed through unchanged so the caller still sees what the daemon stored.
func writeRawJSON(cmd *cobra.Command, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, werr := cmd.OutOrStdout().Write(append(raw, '\n'))
		return werr
	}
	buf.WriteByte('\n')
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}
