// Driver for quick experiments

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"example.com/time-oracle/core/client"
)

func runT() {
	var (
		raddr    string
		timeout  time.Duration
		interval time.Duration
		periodic bool
		library  bool
	)

	toolFlags := flag.NewFlagSet("t", flag.ExitOnError)
	toolFlags.StringVar(&raddr, "remote", "", "Remote address")
	toolFlags.DurationVar(&timeout, "timeout", 2*time.Second, "Query timeout")
	toolFlags.DurationVar(&interval, "interval", time.Second, "Measurement interval")
	toolFlags.BoolVar(&periodic, "periodic", false, "Perform periodic offset measurements")
	toolFlags.BoolVar(&library, "library", false, "Use the library NTP client")

	err := toolFlags.Parse(os.Args[2:])
	if err != nil || toolFlags.NArg() != 0 || raddr == "" {
		panic("failed to parse arguments")
	}

	log := initLogger(logLevelVerbose)
	ctx := context.Background()

	var c client.Querier = &client.IPClient{Log: log}
	if library {
		c = &client.LibraryClient{Log: log}
	}
	for {
		s := c.Query(ctx, raddr, timeout)
		now := time.Now()
		if !s.Success() {
			log.Fatal("failed to measure clock offset",
				zap.String("remote", raddr), zap.Error(s.Failure))
		}
		// The offset is relative to a local reading taken right after
		// the query, so it includes the time spent evaluating the reply.
		fmt.Printf("%s,%+.9f,%.6f\n", s.Timestamp.UTC().Format(time.RFC3339Nano),
			s.Timestamp.Sub(now).Seconds(), s.RTT.Seconds())
		if !periodic {
			break
		}
		time.Sleep(interval)
	}
}
