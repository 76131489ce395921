package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fieldsync/internal/client/cli"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// exit codes by error class; anything unclassified exits with 1
var exitCodes = map[common.Code]int{
	common.CodeConnectivity: 3,
	common.CodeTimeout:      3,
	common.CodeServer:       4,
	common.CodeAuth:         5,
	common.CodeProtocol:     6,
	common.CodeStore:        7,
	common.CodeSyncActive:   8,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return
	}

	code := common.Classify(err)
	fmt.Fprintf(os.Stderr, "fieldsync: %v (%s)\n", err, code)
	stop()
	if n, ok := exitCodes[code]; ok {
		os.Exit(n)
	}
	os.Exit(1)
}
