// main.go — Entry point for the browserctl CLI.
// Drives a remote-controlled browser session over the DevTools wire
// protocol from the command line.
//
// Usage: browserctl <command> [options] [--flags]
//
// Commands: targets, navigate, click, type, export-traces
//
// Exit codes:
//
//	0 = success
//	1 = error (command failed)
//	2 = usage error (missing args, invalid flags)
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dev-console/browserctl/internal/action"
	"github.com/dev-console/browserctl/internal/client"
	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/locator"
	"github.com/dev-console/browserctl/internal/navigation"
	"github.com/dev-console/browserctl/internal/obslog"
	"github.com/dev-console/browserctl/internal/reason"
)

const usageText = `browserctl — remote control for a Chromium-family browser over DevTools

Usage:
  browserctl <command> [options] [--flags]

Commands:
  targets                       Show the main target (id, kind, URL)
  navigate --url <url>          Navigate the main target to url
  click --selector <css>        Click the first element matching a CSS selector
  type --selector <css> --text <text>   Type text into a matching element
  export-traces --out <path>    Write every recorded job trace as trace_<id>.zip under path

Global Flags:
  --config <path>       Config file (YAML), overrides defaults; env overrides it
  --remote-port <port>  DevTools remote debugging port (default: 9222)
  --timeout <ms>        Command timeout in ms (default: 10000)
  --version             Show version
  --help                Show this help
`

var version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the CLI's entry point, separated from main for testability.
func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}

	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Printf("browserctl %s\n", version)
			return 0
		}
		if a == "--help" || a == "-h" {
			fmt.Print(usageText)
			return 0
		}
	}

	command := args[0]
	if command == "help" {
		fmt.Print(usageText)
		return 0
	}
	remaining := args[1:]

	configPath, remaining := extractFlag(remaining, "--config")
	portStr, remaining := extractFlag(remaining, "--remote-port")
	timeoutStr, remaining := extractFlag(remaining, "--timeout")

	cfg, err := config.Load(configPath, func(c *config.Config) {
		if port := parseInt(portStr); port > 0 {
			c.Session.RemotePort = port
		}
		if timeout := parseInt(timeoutStr); timeout > 0 {
			c.Session.CommandTimeoutMS = timeout
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration: %v\n", err)
		return 2
	}

	logger, err := obslog.New(obslog.LevelInfo, "browserctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	cl := client.New(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Session.ConnectTimeout()+30*time.Second)
	defer cancel()

	if err := cl.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: connect: %v\n", err)
		return 1
	}
	defer cl.Close()

	switch command {
	case "targets":
		return runTargets(cl)
	case "navigate":
		return runNavigate(ctx, cl, remaining)
	case "click":
		return runClick(ctx, cl, remaining)
	case "type":
		return runType(ctx, cl, remaining)
	case "export-traces":
		return runExportTraces(cl, remaining)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}
}

func runTargets(cl *client.Client) int {
	t, ok := cl.Targets.Main()
	if !ok {
		fmt.Println("no main target attached")
		return 0
	}
	fmt.Printf("%s\t%s\t%s\n", t.ID, t.Kind, t.URL)
	return 0
}

func runNavigate(ctx context.Context, cl *client.Client, args []string) int {
	url, _ := extractFlag(args, "--url")
	if url == "" {
		fmt.Fprintln(os.Stderr, "Error: navigate requires --url")
		return 2
	}
	result := cl.Navigation.Navigate(ctx, url, 0, navigation.WaitLoad)
	return reportReason(result.Reason)
}

func runClick(ctx context.Context, cl *client.Client, args []string) int {
	selector, _ := extractFlag(args, "--selector")
	if selector == "" {
		fmt.Fprintln(os.Stderr, "Error: click requires --selector")
		return 2
	}
	result := cl.Actions.Click(ctx, locator.CSS(selector), action.ClickOptions{})
	return reportReason(result.Reason)
}

func runType(ctx context.Context, cl *client.Client, args []string) int {
	selector, args := extractFlag(args, "--selector")
	text, _ := extractFlag(args, "--text")
	if selector == "" || text == "" {
		fmt.Fprintln(os.Stderr, "Error: type requires --selector and --text")
		return 2
	}
	result := cl.Actions.Type(ctx, locator.CSS(selector), text, action.TypeOptions{})
	return reportReason(result.Reason)
}

func runExportTraces(cl *client.Client, args []string) int {
	out, _ := extractFlag(args, "--out")
	if out == "" {
		out = "."
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: export-traces: %v\n", err)
		return 1
	}
	for _, jt := range cl.Traces.All() {
		path := fmt.Sprintf("%s/trace_%s.zip", out, jt.JobID)
		f, err := os.Create(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: export-traces: %v\n", err)
			return 1
		}
		err = jt.WriteArchive(f, nil)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: export-traces: %v\n", err)
			return 1
		}
		fmt.Println(path)
	}
	return 0
}

func reportReason(r reason.Reason) int {
	if r.IsSuccess() {
		fmt.Println("ok")
		return 0
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", r.Error())
	return 1
}

// extractFlag removes a flag and its value from args, returning the value
// and the remaining args.
func extractFlag(args []string, flag string) (string, []string) {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			val := args[i+1]
			remaining := make([]string, 0, len(args)-2)
			remaining = append(remaining, args[:i]...)
			remaining = append(remaining, args[i+2:]...)
			return val, remaining
		}
	}
	return "", args
}

// parseInt parses a string as a positive integer, returning 0 on failure
// (matching the convention: a non-positive parse means "flag not set").
func parseInt(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
