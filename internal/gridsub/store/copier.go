// Package store moves files between the local filesystem and the shared
// distributed store, shelling out to the store's own tooling whenever one
// endpoint lives inside it.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gridsub/gridsub/internal/gridsub/mirror"
	"github.com/gridsub/gridsub/pkg/errors"
	"github.com/gridsub/gridsub/pkg/logger"
)

// Copier copies files and directory trees between the three namespaces a
// job sees. Copies involving the distributed store go through the external
// store command; plain local copies stay in-process.
type Copier struct {
	resolver *mirror.Resolver
	command  string
	runner   Runner
	log      *logger.Logger
}

// NewCopier builds a copier for the store mounted at the resolver's prefix.
// command names the store binary, normally "hadoop".
func NewCopier(resolver *mirror.Resolver, command string, runner Runner, log *logger.Logger) *Copier {
	return &Copier{
		resolver: resolver,
		command:  command,
		runner:   runner,
		log:      log.WithField("component", "store"),
	}
}

// storeRelative strips the mount prefix so paths can be handed to the
// store command, which addresses the store from its own root.
func (c *Copier) storeRelative(p string) string {
	rel := strings.TrimPrefix(filepath.Clean(p), c.resolver.StorePrefix())
	if rel == "" {
		return "/"
	}
	return rel
}

// Copy copies src to dest, choosing the transfer verb from which endpoints
// live in the store. Destination files are overwritten.
func (c *Copier) Copy(ctx context.Context, src, dest string) error {
	srcInStore := c.resolver.InStore(src)
	destInStore := c.resolver.InStore(dest)

	if !srcInStore && !destInStore {
		return c.copyLocal(src, dest)
	}

	verb := "-cp"
	if !destInStore {
		verb = "-copyToLocal"
	} else if !srcInStore {
		verb = "-copyFromLocal"
	}

	srcArg := src
	if srcInStore {
		srcArg = c.storeRelative(src)
	}
	destArg := dest
	if destInStore {
		destArg = c.storeRelative(dest)
	}

	c.log.Info("copying file", "src", src, "dest", dest, "verb", verb)
	return c.runner.Run(ctx, Command{
		Name: c.command,
		Args: []string{"fs", verb, "-f", srcArg, destArg},
	})
}

// MkdirAll creates dir and any missing parents, through the store command
// for store-resident paths. Fails when the path already exists as a file.
func (c *Copier) MkdirAll(ctx context.Context, dir string) error {
	if c.resolver.InStore(dir) {
		return c.runner.Run(ctx, Command{
			Name: c.command,
			Args: []string{"fs", "-mkdir", "-p", c.storeRelative(dir)},
		})
	}

	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return errors.NewConfigError("store", "", fmt.Errorf("%s is a file, cannot make directory", dir))
		}
		return nil
	}

	c.log.Info("making directory", "dir", dir)
	return os.MkdirAll(dir, 0755)
}

func (c *Copier) copyLocal(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	c.log.Info("copying file", "src", src, "dest", dest, "verb", "local")
	if info.IsDir() {
		return c.copyTree(src, dest)
	}
	return copyFile(src, dest, info.Mode())
}

func (c *Copier) copyTree(src, dest string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(p, target, info.Mode())
	})
}

func copyFile(src, dest string, mode os.FileMode) error {
	// copying onto a directory lands the file inside it, matching the
	// behavior of the external store command
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, filepath.Base(src))
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
