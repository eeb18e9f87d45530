package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/syslog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	ddns "github.com/ddns-tools/dreamhost-ddns"
	"golang.org/x/term"
)

var config = struct {
	Hostname string
	Provider string
	KeyFile  string
	MinSleep time.Duration
	MaxSleep time.Duration
	Verbose  bool
	Syslog   bool
	File     string
}{}

func init() {
	flag.StringVar(&config.Hostname, "host", config.Hostname, "DNS entry to keep updated")
	flag.StringVar(&config.Provider, "provider", "dreamhost", "DNS provider holding the records (dreamhost or cloudflare)")
	flag.StringVar(&config.KeyFile, "k", filepath.Join(os.Getenv("HOME"), ".dreamhost"), "Path to API credentials file")
	flag.DurationVar(&config.MinSleep, "min", 40*time.Second, "Minimum duration to wait between update cycles")
	flag.DurationVar(&config.MaxSleep, "max", 30*time.Minute, "Maximum duration to wait between update cycles after repeated failures")
	flag.BoolVar(&config.Verbose, "v", false, "Enable verbose logging")
	flag.BoolVar(&config.Syslog, "syslog", false, "Send diagnostics to syslog instead of stderr")
	flag.StringVar(&config.File, "config", "", "Path to optional TOML config file (flags take precedence)")
	flag.Parse()
}

var logger *log.Logger = log.New(io.Discard, "", log.LstdFlags)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if config.File != "" {
		if err := loadConfigFile(config.File); err != nil {
			return err
		}
	}

	errlog := log.Default()
	if config.Syslog {
		w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, "dreamhost-ddns")
		if err != nil {
			return fmt.Errorf("error connecting to syslog: %w", err)
		}
		errlog = log.New(w, "", 0)
		if config.Verbose {
			logger = log.New(w, "", 0)
		}
	} else if config.Verbose {
		logger = log.Default()
	}

	if err := validate(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	logger.Printf("config is valid: %+v", config)

	key, err := readKey(config.KeyFile)
	if err != nil {
		return fmt.Errorf("error reading key: %w", err)
	}
	logger.Println("successfully read key from key file")

	opts := []ddns.Option{
		ddns.UsingResolver(ddns.OpenDNSResolver()),
		ddns.WithLogger(logger),
	}
	switch config.Provider {
	case "dreamhost":
		opts = append(opts, ddns.UsingDreamhost(key))
	case "cloudflare":
		opts = append(opts, ddns.UsingCloudflare(key))
	default:
		return fmt.Errorf("unknown provider %q", config.Provider)
	}

	client, err := ddns.New(config.Hostname, opts...)
	if err != nil {
		return fmt.Errorf("error creating ddns client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ddns.RunDaemon(client, ctx, config.MinSleep, config.MaxSleep, errlog)
	<-ctx.Done()
	logger.Println("shutting down")
	return nil
}

func loadConfigFile(path string) error {
	var fc struct {
		Hostname string   `toml:"hostname"`
		Provider string   `toml:"provider"`
		KeyFile  string   `toml:"keyfile"`
		MinSleep duration `toml:"min_sleep"`
		MaxSleep duration `toml:"max_sleep"`
		Syslog   bool     `toml:"syslog"`
	}
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("error decoding config file %s: %w", path, err)
	}

	// Values from the file only fill in flags the user did not set.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["host"] && fc.Hostname != "" {
		config.Hostname = fc.Hostname
	}
	if !set["provider"] && fc.Provider != "" {
		config.Provider = fc.Provider
	}
	if !set["k"] && fc.KeyFile != "" {
		config.KeyFile = fc.KeyFile
	}
	if !set["min"] && fc.MinSleep.Duration != 0 {
		config.MinSleep = fc.MinSleep.Duration
	}
	if !set["max"] && fc.MaxSleep.Duration != 0 {
		config.MaxSleep = fc.MaxSleep.Duration
	}
	if !set["syslog"] && fc.Syslog {
		config.Syslog = true
	}
	return nil
}

// duration lets TOML carry values like "40s" or "30m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func runSetup() error {
	logger.Println("running setup")
	time.Sleep(200 * time.Millisecond) // dirty timer hack to try to get stderr and stdout output lines to display in order
	fmt.Printf("Enter %s API key: \n", config.Provider)
	bytekey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("runSetup: error reading from stdin: %w", err)
	}
	key := strings.TrimSpace(string(bytekey))
	if key == "" {
		return errors.New("runSetup: key cannot be empty")
	}

	logger.Printf("creating key file at \"%s\"\n", config.KeyFile)
	f, err := os.OpenFile(config.KeyFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", config.KeyFile, err)
	}
	defer f.Close()
	fmt.Fprintln(f, key)
	logger.Printf("key written to \"%s\"\n", config.KeyFile)
	return nil
}

func readKey(path string) (key string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	keyb, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	return string(keyb), nil
}

func validate() error {

	if config.Hostname == "" {
		return errors.New("hostname cannot be empty")
	}

	if !strings.Contains(config.Hostname, ".") {
		return errors.New("hostname must have at least one dot")
	}

	if config.MinSleep <= 0 {
		return errors.New("minimum sleep must be positive")
	}
	if config.MaxSleep < config.MinSleep {
		return errors.New("maximum sleep cannot be below minimum sleep")
	}

	_, err := os.Stat(config.KeyFile)
	if os.IsNotExist(err) {
		logger.Printf("key file \"%s\" does not exist\n", config.KeyFile)
		if err := runSetup(); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	if err := verifyPermissions(config.KeyFile); err != nil {
		return err
	}

	return nil
}

func verifyPermissions(path string) error {

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking keyfile permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, perms)
	}

	return nil
}
