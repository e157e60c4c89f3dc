package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptResult contains the result of a user prompt interaction.
type PromptResult struct {
	// Accepted is true if the user typed "y" or "yes".
	Accepted bool
	// Cancelled is true if reading input failed.
	Cancelled bool
}

// ConfirmWithdrawal asks the user to confirm sending funds. It declines
// without prompting when interactive is false, so scripts must pass --yes.
//
// The prompt defaults to "No" when the user presses Enter without input.
// Valid inputs: "y", "Y", "yes", "Yes", "YES" for acceptance; anything else declines.
func ConfirmWithdrawal(
	writer io.Writer,
	reader io.Reader,
	interactive bool,
	count int,
	total string,
	atomic bool,
) PromptResult {
	if !interactive {
		return PromptResult{Accepted: false}
	}

	mode := "one at a time"
	if atomic {
		mode = "as a single all-or-nothing batch"
	}
	fmt.Fprintf(writer, "\nAbout to send %d withdrawals totalling %s, %s.\n", count, total, mode)
	fmt.Fprint(writer, "? Continue? [y/N] ")

	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if scanner.Err() != nil {
			return PromptResult{Cancelled: true}
		}
		// EOF (Ctrl+D) declines.
		return PromptResult{Accepted: false}
	}

	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return PromptResult{Accepted: true}
	default:
		return PromptResult{Accepted: false}
	}
}
