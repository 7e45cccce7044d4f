// Command daily-report sends today's sales summary with an inventory snapshot.
package main

import (
	"os"

	"github.com/kirana/posreport/internal/domain/report"
	"github.com/kirana/posreport/internal/interfaces/cli"
)

func main() {
	os.Exit(cli.Run(report.KindDaily, os.Args[1:]))
}
