// Command sentinelctl is the operator-facing CLI: it reads the control
// file and state store directly for read-only queries (status, summary,
// procmatch), and speaks the wire protocol via internal/controlclient for
// anything that mutates a running daemon (start, stop, restart, monitor,
// unmonitor), mirroring src/monit.c's verb table (spec §6).
package main

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"syscall"

	"github.com/asydsolutions/sentinel/internal/config"
	"github.com/asydsolutions/sentinel/internal/controlclient"
	"github.com/asydsolutions/sentinel/internal/daemon"
	"github.com/asydsolutions/sentinel/internal/procobserve"
)

func main() {
	controlFile := flag.String("c", "", "control file (overrides SENTINEL_CONTROL_FILE)")
	pidFile := flag.String("p", "", "pid file (overrides SENTINEL_PID_FILE)")
	stateFile := flag.String("s", "", "state file (overrides SENTINEL_STATE_FILE)")
	group := flag.String("g", "", "restrict a bulk action verb to services in this group")
	checksum := flag.Bool("H", false, "print SHA1 and MD5 of the control file and exit")
	controlURL := flag.String("url", "", "control listener base URL for action verbs (e.g. http://127.0.0.1:2812)")
	user := flag.String("u", "", "control listener basic-auth username")
	pass := flag.String("pw", "", "control listener basic-auth password")
	verbose := flag.Bool("v", false, "verbose output")
	veryVerbose := flag.Bool("vv", false, "very verbose output")
	showVersion := flag.Bool("V", false, "print version and exit")
	resetID := flag.Bool("resetid", false, "regenerate the daemon identity file and exit")
	showID := flag.Bool("id", false, "print the daemon identity and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("sentinelctl (sentinel monitoring suite)")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sentinelctl: config:", err)
		os.Exit(1)
	}
	if *controlFile != "" {
		cfg.ControlFile = *controlFile
	}
	if *pidFile != "" {
		cfg.PidFile = *pidFile
	}
	if *stateFile != "" {
		cfg.StateFile = *stateFile
	}
	if *group != "" {
		cfg.Group = *group
	}

	if *resetID {
		id, err := daemon.ResetIdentity(cfg.IDFile)
		fatalIf(err, "reset identity")
		fmt.Println(id)
		return
	}
	if *showID {
		id, err := daemon.Identity(cfg.IDFile)
		fatalIf(err, "read identity")
		fmt.Println(id)
		return
	}
	if *checksum {
		runChecksum(cfg.ControlFile)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		runTUI(cfg)
		return
	}

	verb := args[0]
	rest := args[1:]

	switch verb {
	case "-t", "validate":
		err := config.ValidateControlFile(cfg.ControlFile)
		fatalIf(err, "control file invalid")
		fmt.Println("control file OK")

	case "procmatch":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, "usage: sentinelctl procmatch <pattern>")
			os.Exit(2)
		}
		pattern, err := regexp.Compile(rest[0])
		fatalIf(err, "bad pattern")
		matches, err := procobserve.ProcMatch(pattern)
		fatalIf(err, "procmatch")
		for _, m := range matches {
			fmt.Println(m)
		}

	case "status":
		runStatus(cfg, false, *verbose || *veryVerbose)

	case "summary":
		runStatus(cfg, true, *verbose || *veryVerbose)

	case "reload":
		pid, err := daemon.ReadPidFile(cfg.PidFile)
		fatalIf(err, "reload")
		fatalIf(syscall.Kill(pid, syscall.SIGHUP), "reload")
		fmt.Println("sent reload signal")

	case "quit":
		pid, err := daemon.ReadPidFile(cfg.PidFile)
		fatalIf(err, "quit")
		fatalIf(syscall.Kill(pid, syscall.SIGTERM), "quit")
		fmt.Println("sent shutdown signal")

	case "start", "stop", "restart", "monitor", "unmonitor":
		if len(rest) != 1 {
			fmt.Fprintf(os.Stderr, "usage: sentinelctl %s <name|all>\n", verb)
			os.Exit(2)
		}
		client := controlclient.New(effectiveControlURL(cfg, *controlURL), *user, *pass)
		err := runAction(context.Background(), client, cfg, verb, rest[0])
		fatalIf(err, verb)

	default:
		fmt.Fprintf(os.Stderr, "sentinelctl: unknown verb %q\n", verb)
		os.Exit(2)
	}
}

func effectiveControlURL(cfg *config.Config, flagURL string) string {
	if flagURL != "" {
		return flagURL
	}
	if cfg.HTTPAddr != "" {
		scheme := "http"
		if cfg.HTTPUseSSL {
			scheme = "https"
		}
		return fmt.Sprintf("%s://%s", scheme, cfg.HTTPAddr)
	}
	return "http://127.0.0.1:2812"
}

func runChecksum(controlFile string) {
	f, err := os.Open(controlFile)
	fatalIf(err, "open control file")
	defer f.Close()

	sha := sha1.New()
	md := md5.New()
	_, err = io.Copy(io.MultiWriter(sha, md), f)
	fatalIf(err, "read control file")

	fmt.Printf("SHA1:  %x\n", sha.Sum(nil))
	fmt.Printf("MD5:   %x\n", md.Sum(nil))
}

func fatalIf(err error, action string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "sentinelctl: %s: %v\n", action, err)
	os.Exit(1)
}
