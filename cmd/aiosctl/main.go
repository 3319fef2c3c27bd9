// Command aiosctl is a one-shot hosted tool for inspecting and manipulating
// an AIOS filesystem image from outside the emulator: format a fresh image,
// or mount an existing one and run a single operation against it.
//
// Grounded on dargueta-disko's cmd/main.go for the urfave/cli/v2 App shape;
// unlike the kernel's and hosted shell's interactive REPL (out of scope
// here, see spec's hosted command-line surface), each invocation mounts,
// performs exactly one operation, and unmounts.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/b3p3k0/AIOS/blockdev"
	"github.com/b3p3k0/AIOS/blockfs"
	"github.com/b3p3k0/AIOS/disks"
)

func main() {
	app := &cli.App{
		Name:  "aiosctl",
		Usage: "inspect and manipulate AIOS filesystem images",
		Commands: []*cli.Command{
			formatCommand(),
			mkdirCommand(),
			createCommand(),
			writeCommand(),
			readCommand(),
			lsCommand(),
			rmCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("aiosctl: %s", err)
	}
}

func imageFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "image",
		Aliases:  []string{"i"},
		Usage:    "path to the filesystem image",
		Value:    "fs_image.img",
		Required: false,
	}
}

func formatCommand() *cli.Command {
	return &cli.Command{
		Name:      "format",
		Usage:     "create a new filesystem image",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "geometry", Value: "default", Usage: "preset geometry, see `aiosctl format --help`"},
			&cli.UintFlag{Name: "blocks", Usage: "override total block count"},
			&cli.UintFlag{Name: "block-size", Usage: "override block size in bytes"},
			&cli.UintFlag{Name: "inodes", Usage: "override inode count"},
		},
		Action: runFormat,
	}
}

func runFormat(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = "fs_image.img"
	}

	geometry, err := disks.Get(c.String("geometry"))
	if err != nil {
		return err
	}
	blockSize := geometry.BlockSize
	totalBlocks := geometry.TotalBlocks
	inodeCount := geometry.InodeCount
	if v := c.Uint("block-size"); v != 0 {
		blockSize = uint32(v)
	}
	if v := c.Uint("blocks"); v != 0 {
		totalBlocks = uint32(v)
	}
	if v := c.Uint("inodes"); v != 0 {
		inodeCount = uint32(v)
	}

	dev, err := blockdev.CreateFile(path, blockSize, totalBlocks)
	if err != nil {
		return err
	}
	defer dev.Close()

	fs, err := blockfs.Format(dev, inodeCount)
	if err != nil {
		return err
	}
	return fs.Unmount()
}

func withMountedImage(c *cli.Context, fn func(fs *blockfs.Filesystem) error) error {
	path := c.String("image")
	dev, err := blockdev.OpenFile(path, defaultBlockSizeHint(c))
	if err != nil {
		return err
	}
	defer dev.Close()

	fs, err := blockfs.Mount(dev)
	if err != nil {
		return err
	}
	if err := fn(fs); err != nil {
		return err
	}
	return fs.Unmount()
}

// defaultBlockSizeHint returns the block size OpenFile probes the image with:
// a block-size flag value if the command defines one, else the default
// geometry's block size. None of the commands that mount an image define a
// block-size flag, so they always use the default, and an image formatted
// with another block size fails Mount's block-size check. OpenFile itself
// validates the image's actual size is a multiple of whatever is passed.
func defaultBlockSizeHint(c *cli.Context) uint32 {
	if v := c.Uint("block-size"); v != 0 {
		return uint32(v)
	}
	return disks.Default.BlockSize
}

func mkdirCommand() *cli.Command {
	return &cli.Command{
		Name:      "mkdir",
		Usage:     "create a directory",
		ArgsUsage: "PATH",
		Flags:     []cli.Flag{imageFlag()},
		Action: func(c *cli.Context) error {
			return withMountedImage(c, func(fs *blockfs.Filesystem) error {
				return fs.MakeDir(fs.RootInode(), c.Args().First())
			})
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "create an empty file",
		ArgsUsage: "PATH",
		Flags:     []cli.Flag{imageFlag()},
		Action: func(c *cli.Context) error {
			return withMountedImage(c, func(fs *blockfs.Filesystem) error {
				return fs.CreateFile(fs.RootInode(), c.Args().First())
			})
		},
	}
}

func writeCommand() *cli.Command {
	return &cli.Command{
		Name:      "write",
		Usage:     "replace a file's contents with data read from standard input",
		ArgsUsage: "PATH",
		Flags:     []cli.Flag{imageFlag()},
		Action: func(c *cli.Context) error {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			return withMountedImage(c, func(fs *blockfs.Filesystem) error {
				return fs.WriteFile(fs.RootInode(), c.Args().First(), data, 0)
			})
		},
	}
}

func readCommand() *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "print a file's contents to standard output",
		ArgsUsage: "PATH",
		Flags:     []cli.Flag{imageFlag()},
		Action: func(c *cli.Context) error {
			return withMountedImage(c, func(fs *blockfs.Filesystem) error {
				inode, _, err := fs.Lookup(fs.RootInode(), c.Args().First())
				if err != nil {
					return err
				}
				buf := make([]byte, inode.Size)
				n, err := fs.ReadFile(fs.RootInode(), c.Args().First(), buf, 0)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(buf[:n])
				return err
			})
		},
	}
}

func lsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "list a directory's entries",
		ArgsUsage: "[PATH]",
		Flags:     []cli.Flag{imageFlag()},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				path = "/"
			}
			return withMountedImage(c, func(fs *blockfs.Filesystem) error {
				entries, err := fs.ListDir(fs.RootInode(), path)
				if err != nil {
					return err
				}
				for _, ent := range entries {
					fmt.Println(ent.Name)
				}
				return nil
			})
		},
	}
}

func rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "delete a file or empty directory",
		ArgsUsage: "PATH",
		Flags:     []cli.Flag{imageFlag()},
		Action: func(c *cli.Context) error {
			return withMountedImage(c, func(fs *blockfs.Filesystem) error {
				return fs.Delete(fs.RootInode(), c.Args().First())
			})
		},
	}
}
