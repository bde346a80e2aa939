package content

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	cp "github.com/otiai10/copy"
)

// Policy is how source files reach the content directory.
type Policy int

const (
	PolicyCopy Policy = iota + 1
	PolicyMove
)

func (p Policy) String() string {
	if p == PolicyMove {
		return "move"
	}
	return "copy"
}

func (p Policy) transfer(src, dst string) error {
	if p == PolicyMove {
		return moveFile(src, dst)
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	if err := cp.Copy(src, dst, cp.Options{Sync: true}); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

// moveFile renames src to dst, copying then removing when they sit on
// different devices.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return fmt.Errorf("rename: %w", err)
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}

	return nil
}
