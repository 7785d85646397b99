// Command rendini aggregates template-rendering backends behind one gateway.
package main

import (
	"fmt"
	"os"

	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/cli"
)

func main() {
	if err := cli.Run(); err != nil {
		var userMessage string
		if fmsg := failure.MessageOf(err); fmsg != "" {
			userMessage = fmsg.String()
		} else {
			userMessage = err.Error()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", userMessage)
		os.Exit(1)
	}
}
