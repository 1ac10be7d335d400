// Command rawget downloads one URL over plain HTTP/1.1 into a file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"fortio.org/log"

	"github.com/WhileEndless/go-rawget"
	"github.com/WhileEndless/go-rawget/pkg/constants"
	"github.com/WhileEndless/go-rawget/pkg/errors"
)

// Exit codes, one per outcome class.
const (
	exitOK = iota
	exitUsage
	exitInput
	exitNetwork
	exitProtocol
	exitHTTPError
	exitTooManyRedirects
	exitTimeout
	exitIO
	exitOther
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet(constants.AppName, flag.ContinueOnError)
	var (
		output       = fs.String("o", constants.DefaultOutputFile, "output `file` for the response body")
		timeout      = fs.Duration("timeout", constants.DefaultRequestTimeout, "deadline for the whole download, redirects included")
		maxRedirects = fs.Int("max-redirects", constants.DefaultMaxRedirects, "maximum number of redirects to follow")
		level        = fs.String("loglevel", "info", "log `level`: debug, verbose, info, warning, error")
		ipv4         = fs.Bool("4", false, "resolve IPv4 addresses only")
		ipv6         = fs.Bool("6", false, "resolve IPv6 addresses only")
		version      = fs.Bool("version", false, "print the version and exit")
	)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] http://host[:port]/path\n", constants.AppName)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *version {
		fmt.Println(constants.UserAgent)
		return exitOK
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	lvl, err := log.ValidateLevel(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -loglevel: %v\n", err)
		return exitUsage
	}
	log.SetLogLevel(lvl)

	opts := rawget.DefaultOptions()
	opts.Timeout = *timeout
	opts.MaxRedirects = *maxRedirects
	if *maxRedirects == 0 {
		opts.MaxRedirects = -1
	}
	switch {
	case *ipv4 && *ipv6:
		fmt.Fprintln(os.Stderr, "-4 and -6 are mutually exclusive")
		return exitUsage
	case *ipv4:
		opts.Network = "tcp4"
	case *ipv6:
		opts.Network = "tcp6"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	url := fs.Arg(0)
	res, err := rawget.Download(ctx, url, *output, opts)
	if err != nil {
		log.Errf("%s: %v", url, err)
		return exitCode(err)
	}
	if res.NoContent {
		log.Infof("Server returned 204 No Content, %s was not written", *output)
		return exitOK
	}
	if !res.Complete {
		log.Warnf("Body of %s is incomplete", res.URL)
	}
	log.Infof("%d %s from %s saved to %s, %d bytes (%s)", res.StatusCode, res.Reason, res.URL, *output, res.Written, res.Metrics.Total)
	log.LogVf("Timings: %s", res.Metrics)
	return exitOK
}

func exitCode(err error) int {
	switch errors.GetErrorType(err) {
	case errors.ErrorTypeInput:
		return exitInput
	case errors.ErrorTypeNetwork:
		return exitNetwork
	case errors.ErrorTypeProtocol:
		return exitProtocol
	case errors.ErrorTypePolicy:
		if errors.GetKind(err) == errors.KindTooManyRedirects {
			return exitTooManyRedirects
		}
		return exitHTTPError
	case errors.ErrorTypeTimeout:
		return exitTimeout
	case errors.ErrorTypeIO:
		return exitIO
	}
	return exitOther
}
