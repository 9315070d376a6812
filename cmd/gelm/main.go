package main

import (
	"fmt"
	"os"

	"github.com/gelm-lang/gelm/internal/cli"
	"github.com/gelm-lang/gelm/pkg/buildinfo"
)

func main() {
	cli.SetVersion(buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
