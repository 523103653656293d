// Package directory looks up amateur radio operator information from
// QRZ.com's XML API, caching a session key and coalescing concurrent
// lookups for the same callsign.
package directory

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// OperatorInfo is the subset of a QRZ record this gateway exposes to
// authentication and to the qrz_lookup tool.
type OperatorInfo struct {
	Callsign    string
	FullName    string
	Address     string
	State       string
	Country     string
	Grid        string
	LicenseCls  string
	Expires     string
	Email       string
}

// Lookup is a QRZ.com XML API client. A zero-value Lookup with
// Enabled=false always reports not-found, degrading gracefully when no
// credentials are configured.
type Lookup struct {
	Username string
	Password string
	APIKey   string
	Enabled  bool

	BaseURL string
	Client  *http.Client

	mu             sync.Mutex
	sessionKey     string
	sessionExpires time.Time

	group singleflight.Group
}

// New constructs a Lookup client. Enabled is false unless credentials are
// provided; an API key, when set, is sent alongside the username and
// password on the session login request.
func New(username, password, apiKey string) *Lookup {
	enabled := apiKey != "" || (username != "" && password != "")
	return &Lookup{
		Username: username,
		Password: password,
		APIKey:   apiKey,
		Enabled:  enabled,
		BaseURL:  "https://xmldata.qrz.com/xml/current/",
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type qrzSessionResp struct {
	Session struct {
		Key   string `xml:"Key"`
		Error string `xml:"Error"`
	} `xml:"Session"`
}

type qrzLookupResp struct {
	Session struct {
		Error string `xml:"Error"`
	} `xml:"Session"`
	Callsign struct {
		Call    string `xml:"call"`
		FName   string `xml:"fname"`
		Name    string `xml:"name"`
		Addr1   string `xml:"addr1"`
		Addr2   string `xml:"addr2"`
		State   string `xml:"state"`
		Zip     string `xml:"zip"`
		Country string `xml:"country"`
		Grid    string `xml:"grid"`
		Email   string `xml:"email"`
		Class   string `xml:"class"`
		Expires string `xml:"expires"`
	} `xml:"Callsign"`
}

func (l *Lookup) ensureSession() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sessionKey != "" && time.Now().Before(l.sessionExpires) {
		return nil
	}

	params := url.Values{}
	params.Set("username", l.Username)
	params.Set("password", l.Password)
	if l.APIKey != "" {
		params.Set("api", l.APIKey)
	}

	resp, err := l.Client.Get(l.BaseURL + "?" + params.Encode())
	if err != nil {
		return fmt.Errorf("qrz session request: %w", err)
	}
	defer resp.Body.Close()

	var parsed qrzSessionResp
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("qrz session decode: %w", err)
	}
	if parsed.Session.Key == "" {
		return fmt.Errorf("qrz session error: %s", parsed.Session.Error)
	}

	l.sessionKey = parsed.Session.Key
	l.sessionExpires = time.Now().Add(24 * time.Hour)
	return nil
}

// Lookup returns operator info for callsign, or ok=false if not found, QRZ
// is disabled, or the lookup failed. Concurrent lookups of the same
// callsign are coalesced into a single outbound request.
func (l *Lookup) Lookup(callsign string) (OperatorInfo, bool) {
	if !l.Enabled {
		return OperatorInfo{}, false
	}

	callsign = strings.ToUpper(strings.TrimSpace(callsign))
	v, _, _ := l.group.Do(callsign, func() (interface{}, error) {
		return l.lookupOnce(callsign)
	})
	info, ok := v.(OperatorInfo)
	return info, ok
}

func (l *Lookup) lookupOnce(callsign string) (OperatorInfo, error) {
	if err := l.ensureSession(); err != nil {
		slog.Warn("qrz session unavailable", "err", err)
		return OperatorInfo{}, err
	}

	l.mu.Lock()
	key := l.sessionKey
	l.mu.Unlock()

	params := url.Values{}
	params.Set("s", key)
	params.Set("callsign", callsign)

	resp, err := l.Client.Get(l.BaseURL + "?" + params.Encode())
	if err != nil {
		slog.Warn("qrz lookup request failed", "callsign", callsign, "err", err)
		return OperatorInfo{}, err
	}
	defer resp.Body.Close()

	var parsed qrzLookupResp
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		slog.Warn("qrz lookup decode failed", "callsign", callsign, "err", err)
		return OperatorInfo{}, err
	}
	if parsed.Callsign.Call == "" {
		slog.Info("callsign not found on qrz", "callsign", callsign)
		return OperatorInfo{}, fmt.Errorf("not found")
	}

	info := OperatorInfo{
		Callsign:   parsed.Callsign.Call,
		FullName:   strings.TrimSpace(parsed.Callsign.FName + " " + parsed.Callsign.Name),
		State:      parsed.Callsign.State,
		Country:    parsed.Callsign.Country,
		Grid:       parsed.Callsign.Grid,
		LicenseCls: parsed.Callsign.Class,
		Expires:    parsed.Callsign.Expires,
		Email:      parsed.Callsign.Email,
	}
	var addr []string
	if parsed.Callsign.Addr1 != "" {
		addr = append(addr, parsed.Callsign.Addr1)
	}
	if parsed.Callsign.Addr2 != "" {
		addr = append(addr, parsed.Callsign.Addr2)
	}
	if parsed.Callsign.State != "" || parsed.Callsign.Zip != "" {
		addr = append(addr, strings.TrimSpace(parsed.Callsign.State+" "+parsed.Callsign.Zip))
	}
	info.Address = strings.Join(addr, ", ")

	slog.Info("qrz lookup succeeded", "callsign", callsign, "fullname", info.FullName)
	return info, nil
}
