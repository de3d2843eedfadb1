// Command invoicectl drives an invoicedesk server from the terminal.
package main

import (
	"errors"
	"fmt"
	"os"

	"invoicedesk/internal/client"
)

func main() {
	cmd := newRootCmd(os.Stdin, os.Stdout)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Retryable {
			fmt.Fprintln(os.Stderr, "The server marked this error as retryable.")
		}
		os.Exit(1)
	}
}
