package tools

import (
	"encoding/json"

	"github.com/dustin/go-humanize"

	"bbsgatewayd/internal/store"
)

const fileHelpText = `File Transfer Commands:
- /upload - Start uploading a file via YAPP protocol
- /files [public|private|shared] - List available files
- /download <file_id> - Download a file by ID
- /fileinfo <file_id> - Get detailed information about a file
- /share <file_id> <callsign> - Share a file with another callsign
- /publicfile <file_id> - Make one of your files public
- /deletefile <file_id> - Delete one of your files

File Transfer Protocol:
- Files are transferred using YAPP (Yet Another Packet Protocol)
- YAPP is a standard amateur radio file transfer protocol
- Transfers work over AX.25 connections, not telnet
- Telnet sessions can list files and preview text files but cannot run YAPP

File Access Levels:
- private: Only you can access the file
- public: Anyone can download the file
- shared: Specific callsigns you've shared with can access

Tips:
- You can ask me to list files, get file info, or help with operations
- I can't initiate uploads/downloads, but I can guide you through the process
- File IDs are shown when listing files - use these for download/share commands`

// FileTool wraps the file store as the file_management tool. It only
// ever reports metadata and guidance text; YAPP transfers themselves are
// driven by the link layer, not by the LLM.
type FileTool struct {
	store *store.Store
}

// NewFileTool constructs the file_management tool over a persistence store.
func NewFileTool(s *store.Store) *FileTool {
	return &FileTool{store: s}
}

func (t *FileTool) Name() string { return "file_management" }

func (t *FileTool) Description() string {
	return "Manage files stored on the BBS. List available files, get file information, " +
		"and help users with file operations. Files are transferred via YAPP protocol " +
		"over AX.25. Use this when users ask about files, file transfers, uploads, or " +
		"downloads."
}

func (t *FileTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["list", "info", "help"],
				"description": "list: list accessible files, info: get info about one file, help: file operation help"
			},
			"file_id": {
				"type": "integer",
				"description": "File ID (required for 'info' action)"
			},
			"filter": {
				"type": "string",
				"enum": ["public", "private", "shared", "all"],
				"description": "Filter files by access level (for 'list' action)"
			},
			"callsign": {
				"type": "string",
				"description": "User's callsign"
			}
		},
		"required": ["action", "callsign"]
	}`)
}

type fileInput struct {
	Action   string `json:"action"`
	FileID   int64  `json:"file_id"`
	Filter   string `json:"filter"`
	Callsign string `json:"callsign"`
}

func (t *FileTool) Invoke(input json.RawMessage) (string, error) {
	var in fileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return errorJSON("invalid input"), nil
	}
	if in.Callsign == "" {
		return errorJSONf("Missing parameter", "Callsign is required"), nil
	}

	switch in.Action {
	case "list":
		return t.list(in)
	case "info":
		if in.FileID == 0 {
			return errorJSON("file_id is required for 'info' action"), nil
		}
		return t.info(in)
	case "help":
		b, _ := json.Marshal(map[string]interface{}{"success": true, "help_text": fileHelpText})
		return string(b), nil
	default:
		return errorJSON("Unknown action: " + in.Action), nil
	}
}

func (t *FileTool) list(in fileInput) (string, error) {
	files, err := t.store.ListFiles(in.Callsign)
	if err != nil {
		return errorJSONf("File operation failed", err.Error()), nil
	}

	filtered := files[:0:0]
	for _, f := range files {
		if in.Filter == "" || in.Filter == "all" || string(f.Access) == in.Filter {
			filtered = append(filtered, f)
		}
	}

	if len(filtered) == 0 {
		b, _ := json.Marshal(map[string]interface{}{
			"success": true,
			"message": "No files found.",
			"files":   []interface{}{},
		})
		return string(b), nil
	}

	list := make([]map[string]interface{}, 0, len(filtered))
	for _, f := range filtered {
		list = append(list, map[string]interface{}{
			"id":          f.ID,
			"filename":    f.Filename,
			"size":        humanize.Bytes(uint64(f.Size)),
			"size_bytes":  f.Size,
			"owner":       f.Owner,
			"access":      f.Access,
			"description": f.Description,
			"downloads":   f.DownloadCount,
			"uploaded_at": f.UploadedAt.Format("2006-01-02 15:04"),
		})
	}

	b, _ := json.Marshal(map[string]interface{}{
		"success": true,
		"message": "Found file(s).",
		"files":   list,
	})
	return string(b), nil
}

func (t *FileTool) info(in fileInput) (string, error) {
	f, err := t.store.GetFile(in.FileID)
	if err != nil {
		b, _ := json.Marshal(map[string]interface{}{"success": false, "error": "File not found"})
		return string(b), nil
	}

	allowed, err := t.store.CheckAccess(in.FileID, in.Callsign)
	if err != nil || !allowed {
		b, _ := json.Marshal(map[string]interface{}{"success": false, "error": "Access denied"})
		return string(b), nil
	}

	b, _ := json.Marshal(map[string]interface{}{
		"success": true,
		"file": map[string]interface{}{
			"id":             f.ID,
			"filename":       f.Filename,
			"size":           humanize.Bytes(uint64(f.Size)),
			"size_bytes":     f.Size,
			"mime_type":      f.MimeType,
			"owner":          f.Owner,
			"access":         f.Access,
			"description":    f.Description,
			"uploaded_at":    f.UploadedAt.Format("2006-01-02 15:04"),
			"download_count": f.DownloadCount,
		},
	})
	return string(b), nil
}
