package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"bbsgatewayd/internal/filestore"
	"bbsgatewayd/internal/store"
	"bbsgatewayd/internal/yapp"
)

func fileArgs(text string) []string {
	return strings.Fields(text)
}

func parseFileID(args []string, idx int) (int64, bool) {
	if len(args) <= idx {
		return 0, false
	}
	id, err := strconv.ParseInt(args[idx], 10, 64)
	return id, err == nil
}

func (d *Dispatcher) handleFilesList(station Station, text string) {
	args := fileArgs(text)
	filter := ""
	if len(args) > 1 {
		filter = strings.ToLower(args[1])
	}

	files, err := d.Store.ListFiles(station.Callsign())
	if err != nil {
		d.reply(station, "Internal error. Please try again.")
		return
	}

	var b strings.Builder
	for _, f := range files {
		if filter != "" && filter != "all" && string(f.Access) != filter {
			continue
		}
		fmt.Fprintf(&b, "[%d] %s (%d bytes, %s) by %s\n", f.ID, f.Filename, f.Size, f.Access, f.Owner)
	}
	if b.Len() == 0 {
		d.reply(station, "No files found.")
		return
	}
	d.reply(station, b.String())
}

func (d *Dispatcher) handleFileInfo(station Station, text string) {
	id, ok := parseFileID(fileArgs(text), 1)
	if !ok {
		d.reply(station, "Usage: /fileinfo <id>")
		return
	}
	allowed, err := d.Store.CheckAccess(id, station.Callsign())
	if err != nil || !allowed {
		d.reply(station, "File not found or access denied.")
		return
	}
	f, err := d.Store.GetFile(id)
	if err != nil {
		d.reply(station, "File not found or access denied.")
		return
	}
	d.reply(station, fmt.Sprintf(
		"File #%d: %s\nSize: %d bytes\nOwner: %s\nAccess: %s\nDescription: %s\nDownloads: %d",
		f.ID, f.Filename, f.Size, f.Owner, f.Access, f.Description, f.DownloadCount))
}

func previewText(data []byte, max int) string {
	if len(data) > max {
		data = data[:max]
	}
	return strings.ToValidUTF8(string(data), "�")
}

func (d *Dispatcher) handleDownload(station Station, text string) {
	id, ok := parseFileID(fileArgs(text), 1)
	if !ok {
		d.reply(station, "Usage: /download <id>")
		return
	}

	f, data, err := d.Files.Download(id, station.Callsign())
	if err != nil {
		d.reply(station, "File not found or access denied.")
		return
	}

	if station.Transport() != "ax25" {
		d.reply(station, fmt.Sprintf(
			"File: %s (%d bytes)\n%s\n\nNote: telnet cannot carry binary YAPP transfers; use an AX.25 connection to download this file intact.",
			f.Filename, f.Size, previewText(data, 500)))
		return
	}

	ax, ok := station.(*ax25Station)
	if !ok {
		d.reply(station, "Internal error. Please try again.")
		return
	}
	if err := d.LinkManager.StartYappDownload(ax.key, f.Filename, data); err != nil {
		d.reply(station, "Download failed to start.")
		return
	}
	if t, ok := d.LinkManager.YappTransfer(ax.key); ok {
		t.OnComplete = func(h yapp.Header, _ []byte) {
			d.reply(station, fmt.Sprintf("Download of %s complete.", h.Filename))
		}
		t.OnError = func(reason string) {
			d.reply(station, "Download failed: "+reason)
		}
	}
}

func (d *Dispatcher) handleShare(station Station, text string) {
	args := fileArgs(text)
	id, ok := parseFileID(args, 1)
	if !ok || len(args) < 3 {
		d.reply(station, "Usage: /share <id> <callsign>")
		return
	}
	if err := d.Store.ShareFile(id, station.Callsign(), strings.ToUpper(args[2])); err != nil {
		d.reply(station, "Share failed: file not found or not yours.")
		return
	}
	d.reply(station, fmt.Sprintf("Shared file #%d with %s.", id, strings.ToUpper(args[2])))
}

func (d *Dispatcher) handlePublicFile(station Station, text string) {
	id, ok := parseFileID(fileArgs(text), 1)
	if !ok {
		d.reply(station, "Usage: /publicfile <id>")
		return
	}
	if err := d.Store.SetPublic(id, station.Callsign()); err != nil {
		d.reply(station, "Failed: file not found or not yours.")
		return
	}
	d.reply(station, fmt.Sprintf("File #%d is now public.", id))
}

func (d *Dispatcher) handleDeleteFile(station Station, text string) {
	id, ok := parseFileID(fileArgs(text), 1)
	if !ok {
		d.reply(station, "Usage: /deletefile <id>")
		return
	}
	if err := d.Files.Delete(id, station.Callsign()); err != nil {
		d.reply(station, "Delete failed: file not found or not yours.")
		return
	}
	d.reply(station, fmt.Sprintf("Deleted file #%d.", id))
}

// handleUploadCommand prepares to receive a YAPP upload on AX.25; quota
// and filename validation run once the transfer completes and the real
// filename and size are known, per §4.10.
func (d *Dispatcher) handleUploadCommand(station Station, text string) {
	if station.Transport() != "ax25" {
		d.reply(station, "File uploads require an AX.25 connection; telnet cannot carry YAPP.")
		return
	}
	ax, ok := station.(*ax25Station)
	if !ok {
		d.reply(station, "Internal error. Please try again.")
		return
	}
	if err := d.LinkManager.StartYappUpload(ax.key); err != nil {
		d.reply(station, "Upload failed to start.")
		return
	}

	cs := station.Callsign()
	t, ok := d.LinkManager.YappTransfer(ax.key)
	if !ok {
		return
	}
	t.OnComplete = func(h yapp.Header, data []byte) {
		if err := filestore.ValidateFilename(h.Filename); err != nil {
			d.reply(station, "Upload rejected: "+err.Error())
			return
		}
		if err := d.Files.CheckQuota(cs, int64(len(data))); err != nil {
			d.reply(station, "Upload rejected: "+err.Error())
			return
		}
		if _, err := d.Files.Save(cs, h.Filename, "application/octet-stream", "", store.AccessPrivate, data); err != nil {
			d.reply(station, "Upload failed: "+err.Error())
			return
		}
		d.Activity.Add(cs, "file", h.Filename)
		d.reply(station, fmt.Sprintf("Uploaded %s (%d bytes).", h.Filename, len(data)))
	}
	t.OnError = func(reason string) {
		d.reply(station, "Upload failed: "+reason)
	}
}
