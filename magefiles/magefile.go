//go:build mage

// Package main provides build targets for the storytree project using Mage.
//
// Usage:
//
//	mage build    Compile the storytree binary to bin/
//	mage test     Run all tests
//	mage race     Run all tests with the race detector
//	mage lint     Run golangci-lint
//	mage clean    Remove build artifacts
//	mage install  Install storytree to GOPATH/bin
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "storytree"
	binaryDir  = "bin"
	cmdDir     = "./cmd/storytree"
	versionVar = "github.com/mesh-intelligence/storytree/internal/cli.Version"
)

// ldflags stamps the version from git when a tag is reachable.
func ldflags() string {
	out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || out == "" {
		return ""
	}
	return "-X " + versionVar + "=" + strings.TrimPrefix(out, "v")
}

// Build compiles the storytree binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if flags := ldflags(); flags != "" {
		args = append(args, "-ldflags", flags)
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Test runs all tests.
func Test() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs all tests with the race detector.
func Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
