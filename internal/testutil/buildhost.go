package testutil

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ralt/pkgbuilder/internal/archive"
)

// BuildFunc simulates a remote build in the unpacked job directory
type BuildFunc func(dir string) error

// BuildHost is an in-process build host speaking the job wire contract:
// one connection per job, payload streamed until close, result sent back
// on a new connection to the collector
type BuildHost struct {
	ln    net.Listener
	build BuildFunc
	reply chan string
}

// StartBuildHost listens on an ephemeral loopback port
func StartBuildHost(t *testing.T, build BuildFunc) *BuildHost {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return &BuildHost{ln: ln, build: build, reply: make(chan string, 1)}
}

// Port returns the job submission port
func (h *BuildHost) Port() int {
	return h.ln.Addr().(*net.TCPAddr).Port
}

// ReplyTo sets the collector address results are sent to
func (h *BuildHost) ReplyTo(addr net.Addr) {
	h.reply <- addr.String()
}

// Serve accepts n jobs. With reverse set, results are sent only once all
// jobs arrived, last job first. The returned channel yields one error or nil.
func (h *BuildHost) Serve(ctx context.Context, n int, reverse bool) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- h.serve(ctx, n, reverse)
	}()
	return done
}

func (h *BuildHost) serve(ctx context.Context, n int, reverse bool) error {
	work, err := os.MkdirTemp("", "buildhost-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	var results []string
	replyAddr := ""
	send := func(result string) error {
		if replyAddr == "" {
			select {
			case replyAddr = <-h.reply:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", replyAddr)
		if err != nil {
			return err
		}
		if _, err := archive.SendStream(conn, result); err != nil {
			conn.Close()
			return err
		}
		return conn.Close()
	}

	for i := 0; i < n; i++ {
		result, err := h.runJob(ctx, work, i)
		if err != nil {
			return err
		}
		if reverse {
			results = append([]string{result}, results...)
			continue
		}
		if err := send(result); err != nil {
			return err
		}
	}

	for _, result := range results {
		if err := send(result); err != nil {
			return err
		}
	}
	return nil
}

// runJob receives one payload, builds it and packs the result
func (h *BuildHost) runJob(ctx context.Context, work string, i int) (string, error) {
	conn, err := h.ln.Accept()
	if err != nil {
		return "", err
	}
	payload := filepath.Join(work, fmt.Sprintf("job%d%s", i, archive.Extension))
	_, err = archive.ReceiveStream(conn, payload)
	conn.Close()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(work, fmt.Sprintf("job%d", i))
	if err := archive.Uncompress(ctx, payload, dir); err != nil {
		return "", err
	}
	if h.build != nil {
		if err := h.build(dir); err != nil {
			return "", err
		}
	}

	result := filepath.Join(work, fmt.Sprintf("result%d%s", i, archive.Extension))
	if err := archive.Compress(ctx, result, dir); err != nil {
		return "", err
	}
	return result, nil
}

// JobLicense returns the license named on the setup line of a job's build
// script
func JobLicense(dir string) (string, error) {
	for _, name := range []string{"task.sh", "task.bat"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		first := strings.SplitN(string(data), "\n", 2)[0]
		fields := strings.Fields(first)
		return fields[len(fields)-1], nil
	}
	return "", fmt.Errorf("no build script in %s", dir)
}

// Linux64Build simulates a successful linux64 build: the platform jar and a
// task log appear, plus object files the assembler must strip
func Linux64Build(version string) BuildFunc {
	return func(dir string) error {
		jar := filepath.Join(dir, "qtjambi-linux64-gcc-"+version+".jar")
		if err := writeJar(jar, map[string]string{
			"lib/libqtjambi.so":    "ELF",
			"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n",
		}); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, ".task.log"), []byte("BUILD SUCCESSFUL\n"), 0644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "qtjambi", "qtjambi_core.o"), []byte("obj"), 0644)
	}
}

// FailBuild leaves the failure marker in the tree
func FailBuild(dir string) error {
	return os.WriteFile(filepath.Join(dir, "FATAL.ERROR"), []byte("compile failed\n"), 0644)
}

// Close stops accepting jobs
func (h *BuildHost) Close() error {
	return h.ln.Close()
}
