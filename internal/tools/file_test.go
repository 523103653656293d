package tools

import (
	"encoding/json"
	"testing"

	"bbsgatewayd/internal/store"
)

func TestFileToolListEmpty(t *testing.T) {
	s := newTestMailStore(t)
	tool := NewFileTool(s)

	out, err := tool.Invoke(json.RawMessage(`{"action":"list","callsign":"W1AW"}`))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	var resp map[string]interface{}
	json.Unmarshal([]byte(out), &resp)
	if resp["message"] != "No files found." {
		t.Errorf("response = %v", resp)
	}
}

func TestFileToolListAndInfo(t *testing.T) {
	s := newTestMailStore(t)
	id, err := s.SaveFile(store.File{
		Filename: "log.txt",
		DiskPath: "/data/log.txt",
		Size:     2048,
		MimeType: "text/plain",
		Owner:    "W1AW",
		Access:   store.AccessPublic,
	})
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	tool := NewFileTool(s)

	out, _ := tool.Invoke(json.RawMessage(`{"action":"list","callsign":"K0ASM"}`))
	var listResp map[string]interface{}
	json.Unmarshal([]byte(out), &listResp)
	files, _ := listResp["files"].([]interface{})
	if len(files) != 1 {
		t.Fatalf("list response = %v, want 1 file", listResp)
	}

	infoIn, _ := json.Marshal(map[string]interface{}{
		"action":   "info",
		"callsign": "K0ASM",
		"file_id":  id,
	})
	out, _ = tool.Invoke(infoIn)
	var infoResp map[string]interface{}
	json.Unmarshal([]byte(out), &infoResp)
	if ok, _ := infoResp["success"].(bool); !ok {
		t.Errorf("info response = %v", infoResp)
	}
}

func TestFileToolInfoDeniesPrivateToNonOwner(t *testing.T) {
	s := newTestMailStore(t)
	id, _ := s.SaveFile(store.File{
		Filename: "secret.txt",
		DiskPath: "/data/secret.txt",
		Size:     100,
		Owner:    "W1AW",
		Access:   store.AccessPrivate,
	})

	tool := NewFileTool(s)
	infoIn, _ := json.Marshal(map[string]interface{}{
		"action":   "info",
		"callsign": "K0ASM",
		"file_id":  id,
	})
	out, _ := tool.Invoke(infoIn)
	var resp map[string]interface{}
	json.Unmarshal([]byte(out), &resp)
	if ok, _ := resp["success"].(bool); ok {
		t.Errorf("response = %v, want access denied", resp)
	}
}

func TestFileToolHelp(t *testing.T) {
	tool := NewFileTool(newTestMailStore(t))
	out, _ := tool.Invoke(json.RawMessage(`{"action":"help","callsign":"W1AW"}`))
	var resp map[string]interface{}
	json.Unmarshal([]byte(out), &resp)
	if resp["help_text"] == nil {
		t.Error("expected help_text in response")
	}
}
