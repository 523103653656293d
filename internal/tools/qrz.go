package tools

import (
	"encoding/json"

	"bbsgatewayd/internal/directory"
)

// QRZTool wraps a directory.Lookup as the qrz_lookup tool.
type QRZTool struct {
	lookup *directory.Lookup
}

// NewQRZTool constructs the qrz_lookup tool over the given QRZ client.
func NewQRZTool(lookup *directory.Lookup) *QRZTool {
	return &QRZTool{lookup: lookup}
}

func (t *QRZTool) Name() string { return "qrz_lookup" }

func (t *QRZTool) Description() string {
	return "Look up amateur radio operator information by callsign using the QRZ.com " +
		"callsign database. Returns the operator's name, address, license class, grid " +
		"square, and other public station details. Use this when a user asks about a " +
		"callsign, wants to know who operates a station, or asks for grid square or " +
		"location information."
}

func (t *QRZTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"callsign": {
				"type": "string",
				"description": "The amateur radio callsign to look up"
			}
		},
		"required": ["callsign"]
	}`)
}

type qrzInput struct {
	Callsign string `json:"callsign"`
}

type qrzOperator struct {
	Name           string `json:"name"`
	Address        string `json:"address"`
	Country        string `json:"country"`
	LicenseClass   string `json:"license_class"`
	LicenseExpires string `json:"license_expires"`
	GridSquare     string `json:"grid_square"`
	Email          string `json:"email"`
}

func (t *QRZTool) Invoke(input json.RawMessage) (string, error) {
	var in qrzInput
	if err := json.Unmarshal(input, &in); err != nil {
		return errorJSON("invalid input"), nil
	}
	if in.Callsign == "" {
		return errorJSONf("Missing parameter", "Callsign is required"), nil
	}

	info, ok := t.lookup.Lookup(in.Callsign)
	if !ok {
		b, _ := json.Marshal(map[string]interface{}{
			"found":    false,
			"callsign": in.Callsign,
			"message":  "No QRZ record found for this callsign",
		})
		return string(b), nil
	}

	b, _ := json.Marshal(map[string]interface{}{
		"found":    true,
		"callsign": info.Callsign,
		"operator": qrzOperator{
			Name:           info.FullName,
			Address:        info.Address,
			Country:        info.Country,
			LicenseClass:   info.LicenseCls,
			LicenseExpires: info.Expires,
			GridSquare:     info.Grid,
			Email:          info.Email,
		},
	})
	return string(b), nil
}
