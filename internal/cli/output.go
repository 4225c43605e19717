package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"memorialwall/internal/model"
)

// printEntries writes the presented list in the selected format
func printEntries(w io.Writer, format string, entries []model.Entry) error {
	if format == "json" {
		if entries == nil {
			entries = []model.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	fmt.Fprintf(w, "Messages (%d total)\n", len(entries))
	if len(entries) == 0 {
		fmt.Fprintln(w, "No messages yet. Be the first to share.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "\n%s  (%s)\n", e.Author, e.CreatedAt.Local().Format("2006-01-02 15:04"))
		for _, line := range strings.Split(e.Body, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	return nil
}

// printEntry writes a single entry
func printEntry(w io.Writer, format string, e model.Entry) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(e)
	}
	_, err := fmt.Fprintf(w, "Posted %s by %s\n", e.ID, e.Author)
	return err
}
