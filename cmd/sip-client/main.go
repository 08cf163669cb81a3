// Package main provides a small SIP user agent for exercising the SMSC
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-smsc/pkg/logging"
)

var logger = zap.NewNop()

func main() {
	l, err := logging.New("info", logging.FormatConsole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger = l
	defer logger.Sync()

	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
