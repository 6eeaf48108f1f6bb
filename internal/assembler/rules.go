package assembler

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/ralt/pkgbuilder/internal/scanner"
	"github.com/ralt/pkgbuilder/internal/utils"
	"github.com/sirupsen/logrus"
)

// ApplyFileRules copies the package's files into place, then removes every
// explicitly listed or pattern-matched path. Both steps are recorded in
// transcripts next to the package directory.
func (a *Assembler) ApplyFileRules(ctx context.Context, pkg *models.Package) error {
	logrus.WithField("package", pkg.Name()).Debug("Copying files around...")
	if err := a.copyFiles(pkg); err != nil {
		return a.fail(pkg, err)
	}

	logrus.WithField("package", pkg.Name()).Debug("Deleting files and directories...")
	if err := a.removeFiles(ctx, pkg); err != nil {
		return a.fail(pkg, err)
	}
	return nil
}

func (a *Assembler) copyFiles(pkg *models.Package) error {
	root := pkg.StageDir
	var copylog []string

	for _, rule := range pkg.CopyFiles {
		src := filepath.Join(root, filepath.FromSlash(rule.Source()))

		var dst, line string
		switch r := rule.(type) {
		case models.CopyToRoot:
			dst = filepath.Join(root, path.Base(r.Path))
			line = fmt.Sprintf("%s -> root", r.Path)
		case models.CopyTo:
			dst = filepath.Join(root, filepath.FromSlash(r.Dest))
			if utils.DirExists(dst) {
				dst = filepath.Join(dst, path.Base(r.Path))
			}
			line = fmt.Sprintf("%s -> %s", r.Path, r.Dest)
		default:
			return fmt.Errorf("unknown file rule %T", rule)
		}

		if !utils.FileExists(src) {
			if utils.FileExists(dst) {
				// Source already cleaned up by an earlier run
				logrus.Debugf("Skipping %s, already in place", rule.Source())
				copylog = append(copylog, line)
				continue
			}
			return fmt.Errorf("copy source %s is missing", rule.Source())
		}

		if src != dst {
			if err := utils.CopyFile(src, dst); err != nil {
				return fmt.Errorf("failed to copy %s: %w", rule.Source(), err)
			}
		}
		copylog = append(copylog, line)
	}

	return a.writeTranscript(pkg, "copylog", copylog)
}

// removeFiles computes the deletion closure and deletes it. A single entry
// that cannot be removed is logged and skipped.
func (a *Assembler) removeFiles(ctx context.Context, pkg *models.Package) error {
	root := pkg.StageDir

	entries, err := a.scanner.Scan(ctx, root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !pkg.MatchesRemovePattern(entry.Path) {
			continue
		}
		switch entry.Type {
		case scanner.TypeDir:
			pkg.AddRemoveDir(entry.Path)
		case scanner.TypeFile:
			pkg.AddRemoveFile(entry.Path)
		}
	}

	var rmlist []string

	for _, rel := range bottomUp(pkg.RemoveFiles) {
		target := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Lstat(target)
		if err != nil || info.IsDir() {
			continue
		}
		if err := os.Remove(target); err != nil {
			logrus.Warnf("Failed to delete file %s: %v", rel, err)
			continue
		}
		rmlist = append(rmlist, "remove file: "+rel)
	}

	for _, rel := range bottomUp(pkg.RemoveDirs) {
		target := filepath.Join(root, filepath.FromSlash(rel))
		if !utils.DirExists(target) {
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			logrus.Warnf("Failed to delete directory %s: %v", rel, err)
			continue
		}
		rmlist = append(rmlist, "remove dir: "+rel)
	}

	return a.writeTranscript(pkg, "removelog", rmlist)
}

// bottomUp returns paths ordered deepest first, keeping list order among
// paths of equal depth
func bottomUp(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.SliceStable(out, func(i, j int) bool {
		return scanner.Depth(out[i]) > scanner.Depth(out[j])
	})
	return out
}
