// Package iojson writes JSON for command line output.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteLine writes obj as a single JSON line, suitable for piping into jq or
// line-oriented tools.
func WriteLine(w io.Writer, obj any) error {
	bits, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// WriteIndent writes obj as indented JSON.
func WriteIndent(w io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintln(w, string(bits))
	return err
}
