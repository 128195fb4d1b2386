package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/user"
	"github.com/trezcool/perception/services/backend"
	logsvc "github.com/trezcool/perception/services/logger"
	"github.com/trezcool/perception/storage/tokenstore/boltstore"
)

func main() {
	os.Exit(start())
}

func start() int {
	conf, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		return 1
	}

	logOut := io.Discard
	if conf.Debug {
		logOut = os.Stderr
	}
	logger := logsvc.NewRollbarLogger(log.New(logOut, "CLI : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	defer logger.Flush()

	storage, err := boltstore.Open(conf.CLI.TokenPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logger.Error("closing token storage", err)
		}
	}()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// one request id per invocation
	ctx := backend.WithRequestID(context.Background(), uuid.New().String())

	cli, err := newCommandLine(ctx, backend.New(conf.API.BaseURL), storage, validate, translator, logger, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Debug("command failed", err)
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		return 1
	}
	return 0
}
