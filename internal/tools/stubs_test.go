package tools

import (
	"encoding/json"
	"testing"
)

func TestStubToolsReportDisabled(t *testing.T) {
	stubs := []Tool{
		NewPotaSpotsTool(),
		NewDxClusterTool(),
		NewBandConditionsTool(),
		NewWebSearchTool(),
	}
	for _, tool := range stubs {
		t.Run(tool.Name(), func(t *testing.T) {
			out, err := tool.Invoke(json.RawMessage(`{}`))
			if err != nil {
				t.Fatalf("Invoke() error = %v", err)
			}
			var resp map[string]string
			json.Unmarshal([]byte(out), &resp)
			if resp["error"] == "" {
				t.Errorf("response = %v, want disabled error", resp)
			}
		})
	}
}
