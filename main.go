package main

import (
	"context"
	_ "embed" // this is required in order for go:embed to work
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/acronymia/ui-test-harness/framework"
	"github.com/acronymia/ui-test-harness/framework/artifacts"
	"github.com/acronymia/ui-test-harness/framework/browser"
	"github.com/acronymia/ui-test-harness/framework/harness"
	"github.com/acronymia/ui-test-harness/framework/uitest"
	"github.com/acronymia/ui-test-harness/mockapp"
	"github.com/acronymia/ui-test-harness/uitests"

	"github.com/google/uuid"
)

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

func main() {
	fmt.Printf("acronymia-ui-test-harness v%s\n", strings.TrimSpace(versionString))

	var params commandParams
	if !params.Read(os.Args, os.Stderr) {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	results, err := run(ctx, params)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !results.OK() {
		os.Exit(1)
	}
}

func run(ctx context.Context, params commandParams) (*uitest.Results, error) {
	if params.skipFile != "" {
		if err := loadSuppressions(&params); err != nil {
			return nil, err
		}
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	appURL := params.appURL
	if params.selfTest {
		fixture, err := mockapp.Start("localhost:0", mockapp.New(mockapp.Config{
			JoinDelay: params.selfTestDelay,
			Logger:    framework.LoggerWithPrefix(mainDebugLogger, "[lobby] "),
		}))
		if err != nil {
			return nil, fmt.Errorf("cannot start fixture lobby: %w", err)
		}
		defer func() { _ = fixture.Close() }()
		appURL = fixture.URL()
		fmt.Printf("Running against the fixture lobby at %s\n", appURL)
	}

	runID := uuid.NewString()
	store, err := newArtifactStore(ctx, params)
	if err != nil {
		return nil, err
	}

	var browserOutput io.Writer
	if params.debugAll {
		browserOutput = harness.NewFilteredWriter(os.Stderr, harness.BrowserNoise)
	}
	driver, err := browser.NewDriver(params.driver, browser.DriverConfig{
		Headless:   params.headless,
		BrowserBin: params.browserBin,
		ControlURL: params.controlURL,
		Output:     browserOutput,
		Logger:     framework.LoggerWithPrefix(mainDebugLogger, "[browser] "),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot start browser: %w", err)
	}

	h, err := harness.NewTestHarness(
		harness.Config{
			BaseURL:           appURL,
			StartupTimeout:    params.startupTimeout,
			Timeout:           params.timeout,
			PollInterval:      params.pollInterval,
			NavigationTimeout: params.navTimeout,
			Artifacts:         store,
			RunID:             runID,
		},
		driver,
		mainDebugLogger,
		os.Stdout,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Close() }()

	testLogger, closeLoggers, err := newTestLogger(params, h, mainDebugLogger)
	if err != nil {
		return nil, err
	}
	defer closeLoggers()

	results := uitests.RunUITestSuite(h, params.filters, testLogger, uitests.SuiteConfig{
		Context:       ctx,
		Parallelism:   params.parallelism,
		TestTimeout:   params.testTimeout,
		NicknameRules: params.nicknameRules || params.selfTest,
	})

	fmt.Println()
	if err := testLogger.EndLog(results); err != nil {
		return nil, fmt.Errorf("error writing log: %w", err)
	}

	if params.recordFailures != "" {
		f, err := os.Create(params.recordFailures)
		if err != nil {
			return nil, fmt.Errorf("cannot create suppression file: %w", err)
		}
		for _, test := range results.Failures {
			if len(test.TestID) != 0 {
				fmt.Fprintln(f, test.TestID)
			}
		}
		_ = f.Close()
	}

	return &results, nil
}

func newTestLogger(
	params commandParams,
	h *harness.TestHarness,
	debugLogger framework.Logger,
) (uitest.TestLogger, func(), error) {
	var loggers []uitest.TestLogger
	closeFn := func() {}

	if params.progress {
		loggers = append(loggers, uitest.NewProgressTestLogger(os.Stderr))
	} else {
		loggers = append(loggers, &uitest.ConsoleTestLogger{
			DebugOutputOnFailure: params.debug || params.debugAll,
			DebugOutputOnSuccess: params.debugAll,
		})
	}

	if params.jUnitFile != "" {
		properties := h.AppInfo().Properties()
		properties["browser.driver"] = h.DriverName()
		properties["run.id"] = h.RunID()
		loggers = append(loggers, uitest.NewJUnitTestLogger(params.jUnitFile, properties, params.filters))
	}

	if params.redisURL != "" {
		client, err := uitest.NewRedisClient(params.redisURL)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("cannot reach Redis at %s: %w", params.redisURL, err)
		}
		redisLogger := uitest.NewRedisTestLogger(client, h.RunID(), params.redisPrefix, debugLogger)
		fmt.Printf("Publishing results to Redis list %s\n", redisLogger.ListKey())
		loggers = append(loggers, redisLogger)
		closeFn = func() { _ = client.Close() }
	}

	if len(loggers) == 1 {
		return loggers[0], closeFn, nil
	}
	return &uitest.MultiTestLogger{Loggers: loggers}, closeFn, nil
}

func newArtifactStore(ctx context.Context, params commandParams) (artifacts.Store, error) {
	switch {
	case params.artifactsDir != "":
		return artifacts.DirStore{Root: params.artifactsDir}, nil
	case params.s3.bucket != "":
		store, err := artifacts.NewS3Store(ctx, artifacts.S3Config{
			Endpoint:     params.s3.endpoint,
			Region:       params.s3.region,
			Bucket:       params.s3.bucket,
			Prefix:       params.s3.prefix,
			PublicURL:    params.s3.publicURL,
			UsePathStyle: params.s3.usePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("cannot configure S3 artifact storage: %w", err)
		}
		return store, nil
	default:
		return artifacts.NullStore(), nil
	}
}

func loadSuppressions(params *commandParams) error {
	file, err := os.Open(params.skipFile)
	if err != nil {
		return fmt.Errorf("cannot open provided suppression file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return uitest.ReadSuppressions(file, &params.filters.MustNotMatch)
}
