package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/acronymia/ui-test-harness/framework/browser"
	"github.com/acronymia/ui-test-harness/framework/uitest"

	"github.com/joho/godotenv"
)

const (
	envPrefix      = "ACRONYMIA_"
	defaultEnvFile = ".env"
	defaultAppURL  = "http://localhost:3000/"
)

type commandParams struct {
	appURL         string
	selfTest       bool
	selfTestDelay  time.Duration
	nicknameRules  bool
	driver         string
	headless       bool
	browserBin     string
	controlURL     string
	filters        uitest.RegexFilters
	skipFile       string
	recordFailures string
	parallelism    int
	timeout        time.Duration
	pollInterval   time.Duration
	navTimeout     time.Duration
	testTimeout    time.Duration
	startupTimeout time.Duration
	debug          bool
	debugAll       bool
	progress       bool
	jUnitFile      string
	redisURL       string
	redisPrefix    string
	artifactsDir   string
	s3             s3Params
}

type s3Params struct {
	bucket       string
	prefix       string
	endpoint     string
	region       string
	publicURL    string
	usePathStyle bool
}

// Read parses the command line. Every option can also be given as an environment variable named
// ACRONYMIA_ followed by the option name in upper case with dashes changed to underscores, such
// as ACRONYMIA_APP_URL. Variables are also read from the file named by -env-file, or from .env if
// it exists; variables already set in the environment take precedence over the file.
func (c *commandParams) Read(args []string, errOut io.Writer) bool {
	if err := loadEnvFile(args[1:]); err != nil {
		fmt.Fprintln(errOut, err)
		return false
	}

	var env envDefaults
	envBool, envInt, envDuration := env.boolean, env.integer, env.duration

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	var envFile string
	fs.StringVar(&envFile, "env-file", "", "read environment variables from this file (default .env if present)")

	fs.StringVar(&c.appURL, "app-url", envString("app-url", defaultAppURL), "base URL of the application under test")
	fs.BoolVar(&c.selfTest, "self-test", envBool("self-test", false), "run against the built-in fixture lobby instead of -app-url")
	fs.DurationVar(&c.selfTestDelay, "self-test-join-delay", envDuration("self-test-join-delay", 200*time.Millisecond),
		"delay before the fixture lobby shows a joined player")
	fs.BoolVar(&c.nicknameRules, "nickname-rules", envBool("nickname-rules", false),
		"also check the fixture lobby's nickname rules (always on with -self-test)")
	fs.StringVar(&c.driver, "driver", envString("driver", browser.DriverRod), "browser backend: rod or playwright")
	fs.BoolVar(&c.headless, "headless", envBool("headless", true), "run the browser without a window")
	fs.StringVar(&c.browserBin, "browser-bin", envString("browser-bin", ""), "path of the browser executable")
	fs.StringVar(&c.controlURL, "browser-url", envString("browser-url", ""), "DevTools URL of an already running browser (rod only)")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.StringVar(&c.skipFile, "skip-from", envString("skip-from", ""), "file of test IDs to skip, one per line")
	fs.StringVar(&c.recordFailures, "record-failures", envString("record-failures", ""), "write the IDs of failed tests to this file")
	fs.IntVar(&c.parallelism, "parallel", envInt("parallel", 1), "how many tests may drive browsers at once")
	fs.DurationVar(&c.timeout, "timeout", envDuration("timeout", browser.DefaultTimeout), "how long each interaction or assertion waits")
	fs.DurationVar(&c.pollInterval, "poll-interval", envDuration("poll-interval", 0), "how often waits re-check the page (default 50ms)")
	fs.DurationVar(&c.navTimeout, "nav-timeout", envDuration("nav-timeout", browser.DefaultNavigationTimeout), "how long a page may take to load")
	fs.DurationVar(&c.testTimeout, "test-timeout", envDuration("test-timeout", 2*time.Minute), "limit on the duration of each test")
	fs.DurationVar(&c.startupTimeout, "startup-timeout", envDuration("startup-timeout", 10*time.Second), "how long to wait for the application to respond")
	fs.BoolVar(&c.debug, "debug", envBool("debug", false), "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", envBool("debug-all", false), "enable debug logging for all tests")
	fs.BoolVar(&c.progress, "progress", envBool("progress", false), "show a progress bar instead of a line per test")
	fs.StringVar(&c.jUnitFile, "junit", envString("junit", ""), "write JUnit XML output to the specified path")
	fs.StringVar(&c.redisURL, "redis-url", envString("redis-url", ""), "publish test results to this Redis server")
	fs.StringVar(&c.redisPrefix, "redis-prefix", envString("redis-prefix", ""), "prefix of the Redis keys (default acronymia:ui-tests)")
	fs.StringVar(&c.artifactsDir, "artifacts-dir", envString("artifacts-dir", ""), "save snapshots of failed pages below this directory")
	fs.StringVar(&c.s3.bucket, "artifacts-s3-bucket", envString("artifacts-s3-bucket", ""), "save snapshots of failed pages to this S3 bucket")
	fs.StringVar(&c.s3.prefix, "artifacts-s3-prefix", envString("artifacts-s3-prefix", ""), "key prefix for snapshots in S3")
	fs.StringVar(&c.s3.endpoint, "artifacts-s3-endpoint", envString("artifacts-s3-endpoint", ""), "endpoint of an S3-compatible service")
	fs.StringVar(&c.s3.region, "artifacts-s3-region", envString("artifacts-s3-region", ""), "S3 region")
	fs.StringVar(&c.s3.publicURL, "artifacts-s3-public-url", envString("artifacts-s3-public-url", ""), "URL that stored snapshots can be read from")
	fs.BoolVar(&c.s3.usePathStyle, "artifacts-s3-path-style", envBool("artifacts-s3-path-style", false), "use path-style S3 addressing")

	if len(env.errs) != 0 {
		for _, err := range env.errs {
			fmt.Fprintln(errOut, err)
		}
		return false
	}
	if err := fs.Parse(args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fs.Usage()
		}
		return false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(errOut, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return false
	}
	if c.artifactsDir != "" && c.s3.bucket != "" {
		fmt.Fprintln(errOut, "-artifacts-dir and -artifacts-s3-bucket cannot be used together")
		return false
	}
	if c.parallelism < 1 {
		c.parallelism = 1
	}
	return true
}

// loadEnvFile loads the file named by -env-file, which has to be found before the other flags
// are defined since it supplies their defaults.
func loadEnvFile(args []string) error {
	path, explicit := "", false
	for i := 0; i < len(args); i++ {
		arg := strings.TrimLeft(args[i], "-")
		if len(arg) == len(args[i]) {
			continue
		}
		switch {
		case arg == "env-file" && i+1 < len(args):
			path, explicit = args[i+1], true
		case strings.HasPrefix(arg, "env-file="):
			path, explicit = strings.TrimPrefix(arg, "env-file="), true
		}
	}
	if !explicit {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot load environment file %q: %w", path, err)
	}
	return nil
}

func envName(option string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(option, "-", "_"))
}

func envString(option, defaultValue string) string {
	if v, ok := os.LookupEnv(envName(option)); ok {
		return v
	}
	return defaultValue
}

// envDefaults reads typed option defaults from the environment, remembering every variable
// that could not be parsed.
type envDefaults struct {
	errs []error
}

func (e *envDefaults) parse(option string, parse func(string) error) {
	v, ok := os.LookupEnv(envName(option))
	if !ok {
		return
	}
	if err := parse(v); err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid value %q for %s: %w", v, envName(option), err))
	}
}

func (e *envDefaults) boolean(option string, defaultValue bool) bool {
	ret := defaultValue
	e.parse(option, func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			ret = b
		}
		return err
	})
	return ret
}

func (e *envDefaults) integer(option string, defaultValue int) int {
	ret := defaultValue
	e.parse(option, func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			ret = n
		}
		return err
	})
	return ret
}

func (e *envDefaults) duration(option string, defaultValue time.Duration) time.Duration {
	ret := defaultValue
	e.parse(option, func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			ret = d
		}
		return err
	})
	return ret
}
