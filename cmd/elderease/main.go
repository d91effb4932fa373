// Command elderease は高齢者見守りサービスのAPIサーバー、ワーカー、マイグレーションを起動する。
//
//	elderease [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/elderease/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "elderease: %v\n", err)
		os.Exit(1)
	}
}
