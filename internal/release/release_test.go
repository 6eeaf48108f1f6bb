package release

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ralt/pkgbuilder/internal/catalog"
	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/ralt/pkgbuilder/internal/testutil"
	"github.com/ralt/pkgbuilder/internal/utils"
)

func setup(t *testing.T, port int, mutate func(cfg *models.BuildConfig)) (*models.BuildConfig, []*models.Package) {
	t.Helper()
	cfg := testutil.Config(t, func(cfg *models.BuildConfig) {
		testutil.OnlyLinux64(cfg)
		cfg.BuildSource = true
		cfg.ServerPort = port
		cfg.ResponseTimeout = 20 * time.Second
		if mutate != nil {
			mutate(cfg)
		}
	})
	packages, err := catalog.Build(cfg)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	return cfg, packages
}

func countBinaries(packages []*models.Package) int {
	n := 0
	for _, pkg := range packages {
		if pkg.Binary {
			n++
		}
	}
	return n
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	host := testutil.StartBuildHost(t, testutil.Linux64Build(testutil.Version))
	cfg, packages := setup(t, host.Port(), nil)
	binaries := countBinaries(packages)
	if binaries == 0 || binaries == len(packages) {
		t.Fatalf("Expected a mix of binary and source packages, got %d of %d", binaries, len(packages))
	}

	served := host.Serve(ctx, binaries, true)
	var observed []string
	report, err := Run(ctx, cfg, packages,
		WithListenHook(host.ReplyTo),
		WithObserver(func(pkg *models.Package) { observed = append(observed, pkg.Name()) }),
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := <-served; err != nil {
		t.Fatalf("Build host failed: %v", err)
	}

	if report.Done() != len(packages) {
		t.Errorf("Done = %d, want %d", report.Done(), len(packages))
	}
	if len(observed) != len(packages) {
		t.Errorf("Observer saw %d packages, want %d", len(observed), len(packages))
	}
	for i, res := range report.Results {
		if res.Package != packages[i] {
			t.Errorf("Result %d is %s, want catalog order", i, res.Package.Name())
		}
		if res.State != models.StateDone || res.Err != nil {
			t.Errorf("%s: %s %v", res.Package.Name(), res.State, res.Err)
		}
		if !utils.FileExists(res.Bundle) {
			t.Errorf("%s: bundle %q missing", res.Package.Name(), res.Bundle)
		}
	}
}

func TestRunReportsFailedPackages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	host := testutil.StartBuildHost(t, func(dir string) error {
		license, err := testutil.JobLicense(dir)
		if err != nil {
			return err
		}
		if license == models.LicenseGPL.String() {
			return testutil.FailBuild(dir)
		}
		return testutil.Linux64Build(testutil.Version)(dir)
	})
	cfg, packages := setup(t, host.Port(), nil)

	served := host.Serve(ctx, countBinaries(packages), false)
	report, err := Run(ctx, cfg, packages, WithListenHook(host.ReplyTo))
	if err == nil {
		t.Fatal("Expected an error for the failed package")
	}
	if err := <-served; err != nil {
		t.Fatalf("Build host failed: %v", err)
	}

	if !models.IsErrorType(err, models.ErrRemoteBuild) {
		t.Errorf("Expected a RemoteBuild error in %v", err)
	}
	if !strings.HasPrefix(err.Error(), "1 of ") {
		t.Errorf("Unexpected summary: %v", err)
	}
	if report.Done() != len(packages)-1 {
		t.Errorf("Done = %d, want %d", report.Done(), len(packages)-1)
	}
	for _, res := range report.Results {
		failed := res.Package.Binary && res.Package.License == models.LicenseGPL
		if failed && res.State != models.StateFailed {
			t.Errorf("%s: state %s, want Failed", res.Package.Name(), res.State)
		}
		if !failed && res.State != models.StateDone {
			t.Errorf("%s: state %s, want Done", res.Package.Name(), res.State)
		}
	}
}

func TestRunUnreachableHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Grab a free port, then release it so nothing listens there
	placeholder := testutil.StartBuildHost(t, nil)
	port := placeholder.Port()
	placeholder.Close()

	cfg, packages := setup(t, port, func(cfg *models.BuildConfig) {
		cfg.DialRetries = 0
		cfg.DialTimeout = time.Second
	})

	start := time.Now()
	report, err := Run(ctx, cfg, packages)
	if err == nil {
		t.Fatal("Expected an error for unreachable hosts")
	}
	if elapsed := time.Since(start); elapsed > 15*time.Second {
		t.Errorf("Run against unreachable hosts took %v", elapsed)
	}
	var be *models.BuildError
	if !errors.As(err, &be) || be.Type != models.ErrTransport {
		t.Errorf("Expected a Transport error, got %v", err)
	}
	for _, res := range report.Results {
		if res.Package.Binary {
			if res.State != models.StateFailed {
				t.Errorf("%s: state %s, want Failed", res.Package.Name(), res.State)
			}
			continue
		}
		if res.State != models.StateDone {
			t.Errorf("%s: source package state %s, want Done", res.Package.Name(), res.State)
		}
	}
}

func TestReportErr(t *testing.T) {
	report := &Report{Results: []*Result{
		{State: models.StateDone},
		{State: models.StateTimedOut, Err: models.TransportError("a", errors.New("no response"))},
		{State: models.StateFailed, Err: models.AssemblyError("b", errors.New("boom"))},
	}}
	err := report.Err()
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !strings.Contains(err.Error(), "2 of 3 packages did not complete") {
		t.Errorf("Unexpected summary: %v", err)
	}
	var be *models.BuildError
	if !errors.As(err, &be) || be.Package != "a" {
		t.Errorf("Joined error lost the first failure: %v", err)
	}
	if !strings.Contains(err.Error(), "b: boom") {
		t.Errorf("Joined error lost the second failure: %v", err)
	}
	if report.Done() != 1 {
		t.Errorf("Done = %d", report.Done())
	}

	if err := (&Report{Results: []*Result{{State: models.StateDone}}}).Err(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
