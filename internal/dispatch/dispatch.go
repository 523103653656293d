// Package dispatch is the single entry point that turns one inbound line
// of text, from either transport, into a command reply, a file-transfer
// action, or an LLM turn. It owns no transport state itself — only the
// session, persistence, and engine handles needed to answer a line.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"bbsgatewayd/internal/activity"
	"bbsgatewayd/internal/config"
	"bbsgatewayd/internal/directory"
	"bbsgatewayd/internal/filestore"
	"bbsgatewayd/internal/link"
	"bbsgatewayd/internal/ratelimit"
	"bbsgatewayd/internal/session"
	"bbsgatewayd/internal/store"
	"bbsgatewayd/internal/telnet"
	"bbsgatewayd/internal/tools"
	"bbsgatewayd/internal/turnengine"
)

// Station is the transport-agnostic caller the dispatcher talks to: a
// telnet socket or an AX.25 connection, addressed uniformly.
type Station interface {
	// Identity is the current lookup key: "ip:port" pre-auth on telnet,
	// the callsign afterward; always "CALL-SSID" on AX.25.
	Identity() string
	// Callsign is the authenticated callsign, or "" if not yet known
	// (telnet only; AX.25 stations are always identified).
	Callsign() string
	Transport() string
	// Environ returns telnet NEW_ENVIRON variables, or nil on AX.25.
	Environ() map[string]string
	Send(text string) error
	Disconnect() error
}

type telnetStation struct {
	conn *telnet.Connection
}

func (s *telnetStation) Identity() string          { return s.conn.Identity() }
func (s *telnetStation) Callsign() string          { return s.conn.Callsign }
func (s *telnetStation) Transport() string         { return "telnet" }
func (s *telnetStation) Environ() map[string]string { return s.conn.Environ() }
func (s *telnetStation) Send(text string) error    { _, err := s.conn.Write([]byte(text)); return err }
func (s *telnetStation) Disconnect() error         { return s.conn.Close() }

// ax25Station addresses one AX.25 peer by its connection-table key
// ("CALL-SSID"); unlike telnet, the key is never stripped to a bare
// callsign, matching the gateway's uniform treatment of "remote address
// as the callsign" for directory lookups and session keys alike.
type ax25Station struct {
	key string
	mgr *link.Manager
}

func (s *ax25Station) Identity() string           { return s.key }
func (s *ax25Station) Callsign() string           { return s.key }
func (s *ax25Station) Transport() string          { return "ax25" }
func (s *ax25Station) Environ() map[string]string { return nil }

const ax25ChunkSize = 200

// Send translates newlines to bare CR and splits the result into
// ≤200-byte UI frames with a brief inter-frame pause, per §4.9's AX.25
// fragmentation rule.
func (s *ax25Station) Send(text string) error {
	folded := strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\r"), "\n", "\r")
	data := []byte(folded)
	for i := 0; i < len(data); i += ax25ChunkSize {
		end := i + ax25ChunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := s.mgr.SendUI(s.key, data[i:end]); err != nil {
			return err
		}
		if end < len(data) {
			time.Sleep(100 * time.Millisecond)
		}
	}
	return nil
}

func (s *ax25Station) Disconnect() error { return s.mgr.Disconnect(s.key) }

var exitCommands = map[string]bool{
	"quit": true, "bye": true, "exit": true, "73": true,
	"/exit": true, "close": true, "logout": true, "disconnect": true,
}

const helpText = `Available commands:
  help, ?                         show this help
  status                          rate limit and session status
  clear, reset                    clear conversation history
  /files [public|private|shared]  list accessible files
  /fileinfo <id>                  show file details
  /download <id>                  download a file
  /upload                         upload a file (AX.25 only)
  /share <id> <callsign>          share a file with another callsign
  /publicfile <id>                make a file public
  /deletefile <id>                delete one of your files
  quit, bye, exit, 73             disconnect

Anything else is sent to the station's AI assistant.`

// Dispatcher routes inbound lines from both transports to commands, file
// handlers, or the turn engine, and owns the per-connection bookkeeping
// (connection-log row ids) neither transport's connection type carries.
type Dispatcher struct {
	Config       *config.Config
	Store        *store.Store
	Sessions     *session.Store
	Limiter      *ratelimit.Limiter
	Engine       *turnengine.Engine
	Directory    *directory.Lookup
	Files        *filestore.Store
	Activity     *activity.Feed
	TelnetServer *telnet.Server
	LinkManager  *link.Manager
	Logger       *log.Logger

	startedAt time.Time

	mu      sync.Mutex
	connIDs map[string]int64
}

// New constructs a Dispatcher and wires it as the callback target for
// both transports.
func New(
	cfg *config.Config,
	st *store.Store,
	sessions *session.Store,
	limiter *ratelimit.Limiter,
	engine *turnengine.Engine,
	dir *directory.Lookup,
	files *filestore.Store,
	act *activity.Feed,
	telnetServer *telnet.Server,
	linkManager *link.Manager,
	logger *log.Logger,
) *Dispatcher {
	d := &Dispatcher{
		Config:       cfg,
		Store:        st,
		Sessions:     sessions,
		Limiter:      limiter,
		Engine:       engine,
		Directory:    dir,
		Files:        files,
		Activity:     act,
		TelnetServer: telnetServer,
		LinkManager:  linkManager,
		Logger:       logger,
		startedAt:    time.Now(),
		connIDs:      make(map[string]int64),
	}

	telnetServer.OnConnect = d.OnTelnetConnect
	telnetServer.OnData = d.OnTelnetData
	telnetServer.OnDisconnect = d.OnTelnetDisconnect

	linkManager.OnConnect = d.OnAX25Connect
	linkManager.OnData = d.OnAX25Data
	linkManager.OnDisconnect = d.OnAX25Disconnect

	return d
}

// Control returns the narrow capability surface the bbs_session tool is
// allowed to exercise.
func (d *Dispatcher) Control() tools.BbsControl {
	return &bbsControl{d: d}
}

func (d *Dispatcher) connID(identity string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.connIDs[identity]
	return id, ok
}

func (d *Dispatcher) setConnID(identity string, id int64) {
	d.mu.Lock()
	d.connIDs[identity] = id
	d.mu.Unlock()
}

func (d *Dispatcher) dropConnID(identity string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.connIDs[identity]
	delete(d.connIDs, identity)
	return id, ok
}

// OnTelnetConnect logs acceptance; authentication happens lazily on the
// first inbound line (or NEW_ENVIRON), not at accept time.
func (d *Dispatcher) OnTelnetConnect(c *telnet.Connection) {
	d.Logger.Printf("telnet connect: %s", c.PeerAddr)
}

// OnTelnetData dispatches one line from a telnet peer.
func (d *Dispatcher) OnTelnetData(c *telnet.Connection, line string) {
	d.dispatchRaw(&telnetStation{conn: c}, line)
}

// OnTelnetDisconnect finalizes a telnet peer's connection log row and,
// per the Open Question resolved in DESIGN.md, drops its session
// entirely when sessions.timeout is configured as 0.
func (d *Dispatcher) OnTelnetDisconnect(c *telnet.Connection) {
	d.finalizeDisconnect(c.Identity(), c.Callsign)
}

// OnAX25Connect authenticates immediately: unlike telnet, the AX.25
// address itself is the caller's identity, so there is no unauthenticated
// prompt phase.
func (d *Dispatcher) OnAX25Connect(key string) {
	d.authenticateCallsign(&ax25Station{key: key, mgr: d.LinkManager}, key)
}

// OnAX25Data dispatches one UI-frame payload from an AX.25 peer.
func (d *Dispatcher) OnAX25Data(key string, info []byte) {
	d.dispatchRaw(&ax25Station{key: key, mgr: d.LinkManager}, string(info))
}

// OnAX25Disconnect mirrors OnTelnetDisconnect for the AX.25 transport.
// Packet counters are not available at this point (the connection table
// entry is already gone by the time OnDisconnect fires), so the
// connection log records zero sent/received — see DESIGN.md.
func (d *Dispatcher) OnAX25Disconnect(key string) {
	d.finalizeDisconnect(key, key)
}

func (d *Dispatcher) finalizeDisconnect(identity, callsign string) {
	if id, ok := d.dropConnID(identity); ok {
		if err := d.Store.LogDisconnection(id, 0, 0); err != nil {
			d.Logger.Printf("log disconnection: %v", err)
		}
	}
	if callsign == "" {
		return
	}
	if d.Config.Sessions.Timeout == 0 {
		d.Sessions.Remove(callsign)
	}
	d.Activity.Add(callsign, "disconnect", "")
}

// dispatchRaw sanitizes one inbound line and routes it, recovering from
// any panic at this single boundary (§7, §9).
func (d *Dispatcher) dispatchRaw(station Station, raw string) {
	defer d.recoverPanic(station)

	text := strings.TrimSpace(strings.ToValidUTF8(raw, ""))
	if text == "" {
		return
	}
	d.handleLine(station, text)
}

func (d *Dispatcher) recoverPanic(station Station) {
	if r := recover(); r != nil {
		d.Logger.Printf("recovered panic dispatching for %s: %v", station.Identity(), r)
		_ = d.Store.LogError(station.Callsign(), "panic", fmt.Sprint(r), "dispatch")
		_ = station.Send("Internal error. Please try again.\n> ")
	}
}

func (d *Dispatcher) handleLine(station Station, text string) {
	if station.Transport() == "telnet" && station.Callsign() == "" {
		d.handleUnauthenticated(station, text)
		return
	}
	d.handleAuthenticated(station, text)
}

// handleUnauthenticated resolves a telnet caller's identity, preferring a
// NEW_ENVIRON-supplied USER/LOGNAME over the typed line itself.
func (d *Dispatcher) handleUnauthenticated(station Station, text string) {
	candidate := text
	if env := station.Environ(); env != nil {
		if v := env["USER"]; v != "" {
			candidate = v
		} else if v := env["LOGNAME"]; v != "" {
			candidate = v
		}
	}
	candidate = ratelimit.Normalize(candidate)
	if !ratelimit.IsValidCallsign(candidate) {
		_ = station.Send("Invalid callsign format. Please enter your callsign:\n")
		return
	}
	d.authenticateCallsign(station, candidate)
}

func (d *Dispatcher) reply(station Station, text string) {
	_ = station.Send(text + "\n> ")
}

func (d *Dispatcher) handleAuthenticated(station Station, text string) {
	lower := strings.ToLower(text)

	switch {
	case lower == "help" || lower == "?":
		d.reply(station, helpText)
	case exitCommands[lower]:
		d.handleExit(station)
	case lower == "status":
		d.handleStatus(station)
	case lower == "clear" || lower == "reset":
		d.Sessions.ClearSession(station.Callsign())
		d.reply(station, "Conversation history cleared.")
	case strings.HasPrefix(lower, "/files"), strings.HasPrefix(lower, "/list"):
		d.handleFilesList(station, text)
	case strings.HasPrefix(lower, "/download"):
		d.handleDownload(station, text)
	case strings.HasPrefix(lower, "/fileinfo"):
		d.handleFileInfo(station, text)
	case strings.HasPrefix(lower, "/share"):
		d.handleShare(station, text)
	case strings.HasPrefix(lower, "/publicfile"):
		d.handlePublicFile(station, text)
	case strings.HasPrefix(lower, "/deletefile"):
		d.handleDeleteFile(station, text)
	case strings.HasPrefix(lower, "/upload"):
		d.handleUploadCommand(station, text)
	default:
		d.handleQuery(station, text)
	}
}

func (d *Dispatcher) handleExit(station Station) {
	_ = station.Send("73! Goodbye.\n")
	time.Sleep(300 * time.Millisecond)
	_ = station.Disconnect()
}

func (d *Dispatcher) handleStatus(station Station) {
	cs := station.Callsign()
	status, err := d.Limiter.GetStatus(cs)
	if err != nil {
		d.reply(station, "Internal error. Please try again.")
		return
	}
	sess := d.Sessions.Get(cs)
	text := fmt.Sprintf("%s\nSession age: %s, %d queries this session.",
		ratelimit.FormatStatus(status), sess.Age().Round(time.Second), sess.QueryCount)
	d.reply(station, text)
}

func toEngineHistory(msgs []session.Message) []turnengine.Message {
	out := make([]turnengine.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, turnengine.Message{
			Role:    m.Role,
			Content: []turnengine.ContentBlock{{Type: "text", Text: m.Content}},
		})
	}
	return out
}

func truncateResponse(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	return text[:max] + "\n[response truncated]"
}

// handleQuery is the default branch: rate-check, run the turn engine, log
// the exchange, and send back a fragmented, truncated reply.
func (d *Dispatcher) handleQuery(station Station, text string) {
	cs := station.Callsign()

	allowed, reason, err := d.Limiter.CheckLimit(cs)
	if err != nil {
		d.Logger.Printf("rate check for %s: %v", cs, err)
		d.reply(station, "Internal error. Please try again.")
		return
	}
	if !allowed {
		d.reply(station, fmt.Sprintf(
			"Rate limit exceeded: %s\nPlease try again later. Type 'status' for details.", reason))
		return
	}

	_ = station.Send("...\n")

	ctxTag := fmt.Sprintf("[Connection: %s via %s] %s", station.Identity(), station.Transport(), text)
	history := toEngineHistory(d.Sessions.History(cs))

	start := time.Now()
	respText, usage, err := d.Engine.Turn(context.Background(), ctxTag, history)
	latencyMs := int(time.Since(start).Milliseconds())

	connID, _ := d.connID(cs)

	if err != nil {
		_ = d.Store.LogQuery(store.QueryLog{
			ConnectionID: connID, Callsign: cs, Query: text,
			Err: err.Error(), ResponseTimeMs: latencyMs,
		})
		_ = d.Store.LogError(cs, "llm_error", err.Error(), "query")
		d.reply(station, "Internal error. Please try again.")
		return
	}

	d.Sessions.AddUserMessage(cs, text)
	d.Sessions.AddAssistantMessage(cs, respText)
	_ = d.Store.LogQuery(store.QueryLog{
		ConnectionID: connID, Callsign: cs, Query: text, Response: respText,
		TokensUsed: usage.InputTokens + usage.OutputTokens, ResponseTimeMs: latencyMs,
	})
	d.Activity.Add(cs, "query", "")

	d.reply(station, truncateResponse(respText, d.Config.RateLimits.MaxResponseChars))
}

// bbsControl adapts a Dispatcher to tools.BbsControl, the narrow
// capability surface the bbs_session tool is allowed to exercise.
type bbsControl struct {
	d *Dispatcher
}

func (b *bbsControl) ListUsers() []string {
	return b.d.Sessions.Callsigns()
}

func (b *bbsControl) Status() tools.BbsStatus {
	return tools.BbsStatus{
		ActiveSessions: b.d.Sessions.Count(),
		ActiveAX25:     b.d.LinkManager.Count(),
		ActiveTelnet:   b.d.TelnetServer.Count(),
		UptimeSeconds:  int64(time.Since(b.d.startedAt).Seconds()),
	}
}

func (b *bbsControl) ClearHistory(callsign string) bool {
	b.d.Sessions.ClearSession(ratelimit.Normalize(callsign))
	return true
}

func (b *bbsControl) Disconnect(callsign string) bool {
	cs := ratelimit.Normalize(callsign)
	if c, ok := b.d.TelnetServer.Get(cs); ok {
		_ = c.Close()
		return true
	}
	if err := b.d.LinkManager.Disconnect(cs); err == nil {
		return true
	}
	return false
}
