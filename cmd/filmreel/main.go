// Command filmreel runs contract tests written as reels of frames.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/filmreel/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
