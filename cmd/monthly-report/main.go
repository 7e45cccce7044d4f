// Command monthly-report sends the previous month's top sellers with the
// transaction ledger attached.
package main

import (
	"os"

	"github.com/kirana/posreport/internal/domain/report"
	"github.com/kirana/posreport/internal/interfaces/cli"
)

func main() {
	os.Exit(cli.Run(report.KindMonthly, os.Args[1:]))
}
