package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentop/agentop/internal/errors"
)

var installDir string

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Copy the agentop binary onto your PATH",
	Long: `Copy the running binary to an install directory, ~/.local/bin by
default.

Examples:
  agentop install
  agentop install --dir /usr/local/bin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return installCommand(installDir)
	},
}

func init() {
	installCmd.Flags().StringVar(&installDir, "dir", "", "install directory (default ~/.local/bin)")
	rootCmd.AddCommand(installCmd)
}

func installCommand(dir string) error {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot determine home directory", "")
		}
		dir = filepath.Join(home, ".local", "bin")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot create install directory: "+dir,
			"Check directory permissions or pass --dir")
	}

	self, err := os.Executable()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot locate the running binary", "")
	}

	target := filepath.Join(dir, "agentop")
	if same, _ := filepath.EvalSymlinks(self); same == target {
		fmt.Printf("Already installed at %s\n", target)
		return nil
	}

	src, err := os.Open(self)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot read the running binary", "")
	}
	defer src.Close()

	// Write beside the target then rename, so a running copy is never
	// truncated in place.
	tmp, err := os.CreateTemp(dir, "agentop-*")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write to "+dir,
			"Check directory permissions or pass --dir")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to copy the binary", "")
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to mark the binary executable", "")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to finish writing the binary", "")
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to install to "+target, "")
	}

	fmt.Printf("Installed %s\n", target)
	fmt.Println("Make sure the directory is on your PATH.")
	return nil
}
