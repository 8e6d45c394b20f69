// payment-service/cmd/main.go

package main

import (
	"fmt"
	"os"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
