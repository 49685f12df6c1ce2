/**************************************************************************************************
** Package intake implements the identity and dedup filter applied to every batch of files the
** user selects. Session state is an explicit value: Filter never mutates its input session and
** returns the next one.
**************************************************************************************************/

package intake

import (
	"path/filepath"
	"strings"

	"github.com/majorfi/timeline-intake/pkg/utils"
)

/**************************************************************************************************
** Session holds the files accepted so far and the running audit log. The zero value is an empty
** session.
**************************************************************************************************/
type Session struct {
	Accepted []utils.TFile
	Log      []utils.TSelectionEntry
}

/**************************************************************************************************
** Counts summarizes a list of selection entries by status.
**************************************************************************************************/
type Counts struct {
	Added     int
	Duplicate int
	Dropped   int
}

/**************************************************************************************************
** IsImage reports whether the file is recognizably an image. A declared image/* media type is
** enough; otherwise the extension must be on the allow-list, which covers platforms that report
** HEIC or HEIF files with an empty or generic media type.
**
** @param file - The incoming file
** @return bool - True when the file should be treated as an image
**************************************************************************************************/
func IsImage(file utils.TFile) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(file.MediaType)), "image/") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(file.Name))
	return ext != "" && utils.Contains(utils.ImageExtensions, ext)
}

/**************************************************************************************************
** Filter classifies each incoming file as added, duplicate or dropped and returns the next
** session together with the entries produced for this batch.
**
** Duplicates are detected on the (name, size, lastModified) identity key against every file
** accepted earlier in the session and earlier in the same batch, unless allowDuplicates is set.
** Every decision is appended to the audit log, whatever its outcome.
**
** @param session - Current session (not modified)
** @param batch - Incoming files, in selection order
** @param allowDuplicates - Accept files whose identity key was already seen
** @return Session - The next session
** @return []utils.TSelectionEntry - Entries produced for this batch, in batch order
**************************************************************************************************/
func Filter(session Session, batch []utils.TFile, allowDuplicates bool) (Session, []utils.TSelectionEntry) {
	next := Session{
		Accepted: append(make([]utils.TFile, 0, len(session.Accepted)+len(batch)), session.Accepted...),
		Log:      append(make([]utils.TSelectionEntry, 0, len(session.Log)+len(batch)), session.Log...),
	}

	seen := make(map[string]struct{}, len(next.Accepted))
	for _, file := range next.Accepted {
		seen[file.IdentityKey()] = struct{}{}
	}

	entries := make([]utils.TSelectionEntry, 0, len(batch))
	for _, file := range batch {
		entry := utils.TSelectionEntry{
			Name:         file.Name,
			Size:         file.Size,
			LastModified: file.LastModified,
		}

		key := file.IdentityKey()
		_, duplicate := seen[key]

		switch {
		case !IsImage(file):
			entry.Status = utils.SelectionDropped
			entry.Reason = utils.REASON_NOT_AN_IMAGE
		case duplicate && !allowDuplicates:
			entry.Status = utils.SelectionDuplicate
			entry.Reason = utils.REASON_DUPLICATE
		default:
			entry.Status = utils.SelectionAdded
			seen[key] = struct{}{}
			next.Accepted = append(next.Accepted, file)
		}

		entries = append(entries, entry)
	}

	next.Log = append(next.Log, entries...)
	return next, entries
}

/**************************************************************************************************
** Summarize counts entries per status.
**************************************************************************************************/
func Summarize(entries []utils.TSelectionEntry) Counts {
	var counts Counts
	for _, entry := range entries {
		switch entry.Status {
		case utils.SelectionAdded:
			counts.Added++
		case utils.SelectionDuplicate:
			counts.Duplicate++
		case utils.SelectionDropped:
			counts.Dropped++
		}
	}
	return counts
}
