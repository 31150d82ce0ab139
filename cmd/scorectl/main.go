// scorectl evaluates LotiCredit scores offline.
package main

import "github.com/loticredit/loticredit/internal/cli"

// Version is set by ldflags.
var Version = "dev"

func main() {
	cli.Execute(Version)
}
