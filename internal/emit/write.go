package emit

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// WriteFiles writes files into dir on fs, creating dir as needed.
func WriteFiles(fs billy.Filesystem, dir string, files []File) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, f := range files {
		path := fs.Join(dir, f.Name)
		if err := util.WriteFile(fs, path, f.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
