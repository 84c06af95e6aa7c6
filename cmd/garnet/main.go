// garnet boots an object space and offers an introspection shell and an
// inspection server over it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/garnet/config"
	"github.com/chazu/garnet/server"
	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/marshal"
)

func main() {
	configPath := flag.String("config", "", "Configuration file (default: garnet.toml or garnet.yaml found upward from the working directory)")
	verbose := flag.Int("v", -1, "Log verbosity (overrides [log] verbosity)")
	serveMode := flag.Bool("serve", false, "Start the inspection server (gRPC + Connect, CBOR codec)")
	addr := flag.String("addr", "", "Inspection server address (overrides [server] addr)")
	interactive := flag.Bool("i", false, "Start the introspection shell")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: garnet [options]\n\n")
		fmt.Fprintf(os.Stderr, "Boots a runtime and inspects it.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  garnet -i                     # Start the shell\n")
		fmt.Fprintf(os.Stderr, "  garnet -serve -addr :7411     # Serve the inspection API\n")
		fmt.Fprintf(os.Stderr, "  garnet -serve -i              # Both at once\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose >= 0 {
		cfg.Log.Verbosity = *verbose
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	var logPath *string
	if cfg.Log.Path != "" {
		logPath = &cfg.Log.Path
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)
	log := commonlog.GetLogger("garnet")
	if cfg.Path != "" {
		log.Infof("configuration from %s", cfg.Path)
	}

	rt := vm.NewRuntime(cfg.RuntimeOptions())
	defer rt.Shutdown()
	if _, err := marshal.Install(rt); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var srv *server.Server
	errc := make(chan error, 1)
	if *serveMode {
		srv = server.New(rt)
		go func() { errc <- srv.ListenAndServe(cfg.Server.Addr) }()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	if *interactive || !*serveMode {
		runShell(rt, os.Stdin, os.Stdout)
		return
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)
	select {
	case err := <-errc:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	case <-sigc:
		log.Notice("interrupted")
	}
}

// loadConfig reads path if given, else searches upward from the working
// directory, else returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}
