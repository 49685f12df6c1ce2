// Package utils provides the shared types of the intake pipeline and some 'prettier' printers
// for the command line reports. Structured logs go through logrus; these write human-facing
// tables to any io.Writer.
package utils

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
)

var colorGreen = color.New(color.FgGreen).Add(color.Bold).SprintFunc()
var colorRed = color.New(color.FgRed).Add(color.Bold).SprintFunc()
var colorYellow = color.New(color.FgYellow).Add(color.Bold).SprintFunc()
var colorBlue = color.New(color.FgBlue).Add(color.Bold).SprintFunc()
var colorCyan = color.New(color.FgCyan).SprintFunc()
var colorMagenta = color.New(color.FgMagenta).Add(color.Bold).SprintFunc()

// Success formats a success message.
func Success(msg string) string {
	return colorGreen(msg)
}

// Failure formats an error message.
func Failure(msg string) string {
	return colorRed(msg)
}

// Warning formats a warning message.
func Warning(msg string) string {
	return colorYellow(msg)
}

/**************************************************************************************************
** statusLabel renders a selection status with its color.
**************************************************************************************************/
func statusLabel(status TSelectionStatus) string {
	switch status {
	case SelectionAdded:
		return colorGreen("[ADDED]    ")
	case SelectionDuplicate:
		return colorYellow("[DUPLICATE]")
	default:
		return colorRed("[DROPPED]  ")
	}
}

/**************************************************************************************************
** PrintSelectionLog writes one line per intake decision, followed by the reason when there is
** one.
**
** @param w - Destination
** @param entries - Audit log entries, in decision order
**************************************************************************************************/
func PrintSelectionLog(w io.Writer, entries []TSelectionEntry) {
	for _, entry := range entries {
		line := fmt.Sprintf("%s %s (%d bytes)", statusLabel(entry.Status), entry.Name, entry.Size)
		if entry.Reason != "" {
			line += " " + colorCyan("- "+entry.Reason)
		}
		fmt.Fprintln(w, line)
	}
}

/**************************************************************************************************
** PrintClusters writes the cluster plan: one header per cluster with its date, size, stage and
** event type, then the member files in order.
**
** @param w - Destination
** @param clusters - Clusters to print
**************************************************************************************************/
func PrintClusters(w io.Writer, clusters []TCluster) {
	for i, c := range clusters {
		fmt.Fprintf(w, "%s %s %s %s\n",
			colorMagenta(fmt.Sprintf("[%d]", i)),
			colorBlue(c.DateKey),
			fmt.Sprintf("%d photo(s)", len(c.Items)),
			colorCyan(fmt.Sprintf("stage=%s type=%s", c.Stage, c.EventType)),
		)
		for _, item := range c.Items {
			fmt.Fprintf(w, "    %s  %s\n", item.RepresentativeTime().Format("15:04:05"), item.File.Name)
		}
	}
}

// PrintTask writes one upload task state on a single line.
func PrintTask(w io.Writer, clusterID string, task TUploadTask) {
	status := string(task.Status)
	switch task.Status {
	case UploadCompleted:
		status = colorGreen(status)
	case UploadError:
		status = colorRed(status + ": " + task.Error)
	}
	fmt.Fprintf(w, "%s %s %3d%% %s\n", colorMagenta(clusterID), task.FileName, task.Progress, status)
}

// Pretty dumps any value with spew, for debugging.
func Pretty(w io.Writer, data ...interface{}) {
	config := spew.ConfigState{Indent: "    ", DisablePointerAddresses: true, SortKeys: true}
	config.Fdump(w, data...)
}
