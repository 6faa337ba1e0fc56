package project

import (
	"os"
	"path/filepath"
)

// PackageManager is the package manager in effect for a project.
type PackageManager string

const (
	PackageManagerNpm  PackageManager = "npm"
	PackageManagerYarn PackageManager = "yarn"
	PackageManagerPnpm PackageManager = "pnpm"
)

var lockfiles = []struct {
	file string
	pm   PackageManager
}{
	{"pnpm-lock.yaml", PackageManagerPnpm},
	{"yarn.lock", PackageManagerYarn},
	{"package-lock.json", PackageManagerNpm},
}

// DetectPackageManager inspects the lockfiles in dir.
func DetectPackageManager(dir string) (PackageManager, error) {
	for _, lf := range lockfiles {
		if _, err := os.Stat(filepath.Join(dir, lf.file)); err == nil {
			return lf.pm, nil
		}
	}
	return "", errorf(ErrNoPackageManager, "Could not find package manager lockfile in directory %s", dir)
}
