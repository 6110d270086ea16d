package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	permlint "github.com/AllianceSoftware/csvpermissions-go/internal/cmd/permlint"
)

func main() {
	cfg, err := permlint.ParseConfig(flag.CommandLine, os.Args[1:], func(key string) (string, bool) {
		value, ok := os.LookupEnv(key)
		return value, ok
	})
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[PERMLINT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := permlint.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("permission tables invalid: %v", err)
	}
}
