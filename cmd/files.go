/**************************************************************************************************
** Local file discovery for the timeline intake CLI. Each path given on the command line is one
** selection batch.
**************************************************************************************************/

package main

import (
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/majorfi/timeline-intake/pkg/utils"
)

/**************************************************************************************************
** collectBatch lists the regular files under path, in lexical order, as one selection batch.
** Hidden files and directories are skipped. A path naming a single file yields that file.
**
** @param path - File or directory to scan
** @return []utils.TFile - The batch, with the media type guessed from the extension
** @return error - When the path cannot be read
**************************************************************************************************/
func collectBatch(path string) ([]utils.TFile, error) {
	var batch []utils.TFile
	err := filepath.WalkDir(path, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if current != path && strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		batch = append(batch, toFile(current, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", path, err)
	}
	return batch, nil
}

func toFile(path string, info os.FileInfo) utils.TFile {
	return utils.TFile{
		Name:         info.Name(),
		Path:         path,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		MediaType:    mime.TypeByExtension(strings.ToLower(filepath.Ext(info.Name()))),
	}
}
