package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/seqthink/engine/internal/engerr"
	"github.com/seqthink/engine/internal/toolcall"
)

// ServerStatus is the state of a single registered server in the
// Manager's registration table.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusFailed   ServerStatus = "failed"
	StatusStopped  ServerStatus = "stopped"
)

// ToolDescriptor is one entry in the Manager's resolved tool catalog:
// the MCP server's own tool metadata plus the wire_name it was assigned.
type ToolDescriptor struct {
	WireName    string
	ServerName  string
	ToolName    string // as reported by the server, before sanitization
	Description string
	InputSchema []byte
}

type registration struct {
	cfg    ServerConfig
	client *Client // nil for per_call servers between calls
	status ServerStatus
	err    error
	tools  []ToolDescriptor
	cb     *gobreaker.CircuitBreaker[string]
}

// Manager owns the lifecycle of every configured MCP server connection
// and the wire_name → (server, tool) resolution table.
//
// Concurrency model: state changes are guarded by mu. Network I/O
// (Connect, ListTools, CallTool) is always performed outside the lock so
// that a slow or hung server cannot block other Manager operations.
type Manager struct {
	configPath string

	mu    sync.Mutex
	regs  map[string]*registration // by server name
	names *wireNameTable
	cache *lru.Cache[string, []ToolDescriptor] // server name -> catalog, survives individual Reload no-ops

	logHandler LogHandler
}

// NewManager creates a Manager for the given mcp.json path. No
// connections are established until ConnectAll is called.
func NewManager(configPath string) *Manager {
	cache, _ := lru.New[string, []ToolDescriptor](256)
	return &Manager{
		configPath: configPath,
		regs:       make(map[string]*registration),
		names:      newWireNameTable(),
		cache:      cache,
	}
}

// OnLog registers a handler applied to every server's log notifications.
// Must be called before ConnectAll.
func (m *Manager) OnLog(h LogHandler) {
	m.mu.Lock()
	m.logHandler = h
	m.mu.Unlock()
}

// ConnectAll loads the config and connects to every configured server
// concurrently via errgroup. A failure connecting to one server never
// prevents the others from starting; per-server errors are returned
// alongside the count of servers that reached StatusReady.
func (m *Manager) ConnectAll(ctx context.Context) (int, []error) {
	configs, err := LoadConfig(m.configPath)
	if err != nil {
		return 0, []error{err}
	}

	outcomes := make([]connectOutcome, len(configs))

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic iteration order for reproducible wire_name assignment

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		cfg := configs[name]
		g.Go(func() error {
			outcomes[i] = m.connectOne(gctx, name, cfg)
			return nil // collect all outcomes; never short-circuit siblings
		})
	}
	_ = g.Wait() // errors are per-outcome, not propagated through the group

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	connected := 0
	for _, o := range outcomes {
		if o.name == "" {
			continue
		}
		if o.err != nil {
			errs = append(errs, fmt.Errorf("server %q: %w", o.name, o.err))
			m.regs[o.name] = &registration{cfg: o.cfg, status: StatusFailed, err: o.err}
			continue
		}
		descs := m.resolveTools(o.name, o.tools)
		m.regs[o.name] = &registration{
			cfg:    o.cfg,
			client: o.cli,
			status: StatusReady,
			tools:  descs,
			cb:     newBreaker(o.name),
		}
		m.cache.Add(o.name, descs)
		connected++
	}
	return connected, errs
}

// connectOutcome is the result of dialing a single configured server.
type connectOutcome struct {
	name  string
	cfg   ServerConfig
	cli   *Client
	tools []ToolInfo
	err   error
}

// connectOne performs all network I/O for a single server outside any lock.
func (m *Manager) connectOne(ctx context.Context, name string, cfg ServerConfig) connectOutcome {
	if cfg.Lifecycle == "per_call" {
		tmp := NewClient(cfg)
		m.attachLogHandler(tmp)
		if err := tmp.Connect(ctx); err != nil {
			return connectOutcome{name: name, cfg: cfg, err: err}
		}
		tools, err := tmp.ListTools(ctx)
		_ = tmp.Close()
		if err != nil {
			return connectOutcome{name: name, cfg: cfg, err: err}
		}
		return connectOutcome{name: name, cfg: cfg, cli: nil, tools: tools}
	}

	cli := NewClient(cfg)
	m.attachLogHandler(cli)
	if err := cli.Connect(ctx); err != nil {
		return connectOutcome{name: name, cfg: cfg, err: err}
	}
	tools, err := cli.ListTools(ctx)
	if err != nil {
		_ = cli.Close()
		return connectOutcome{name: name, cfg: cfg, err: err}
	}
	return connectOutcome{name: name, cfg: cfg, cli: cli, tools: tools}
}

func (m *Manager) attachLogHandler(c *Client) {
	m.mu.Lock()
	h := m.logHandler
	m.mu.Unlock()
	if h != nil {
		c.OnLog(h)
	}
}

// resolveTools assigns wire_names for a freshly-discovered tool list.
// Must be called with m.mu held.
func (m *Manager) resolveTools(server string, infos []ToolInfo) []ToolDescriptor {
	descs := make([]ToolDescriptor, 0, len(infos))
	for _, info := range infos {
		descs = append(descs, ToolDescriptor{
			WireName:    m.names.resolve(server, info.Name),
			ServerName:  server,
			ToolName:    info.Name,
			Description: info.Description,
			InputSchema: info.InputSchema,
		})
	}
	return descs
}

func newBreaker(server string) *gobreaker.CircuitBreaker[string] {
	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        server,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("server", name).Str("from", from.String()).Str("to", to.String()).
				Msg("mcp circuit breaker state change")
		},
	})
}

// ToolFilter restricts which tools AvailableTools returns.
type ToolFilter struct {
	BlockedServers []string // server names excluded entirely
	AllowedTools   []string // if non-empty, only these wire_names are returned
}

// AvailableTools returns the resolved catalog across every ready server,
// applying filter (nil means no filtering).
func (m *Manager) AvailableTools(filter *ToolFilter) []ToolDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()

	var blocked map[string]bool
	var allowed map[string]bool
	if filter != nil {
		if len(filter.BlockedServers) > 0 {
			blocked = make(map[string]bool, len(filter.BlockedServers))
			for _, s := range filter.BlockedServers {
				blocked[s] = true
			}
		}
		if len(filter.AllowedTools) > 0 {
			allowed = make(map[string]bool, len(filter.AllowedTools))
			for _, t := range filter.AllowedTools {
				allowed[t] = true
			}
		}
	}

	names := make([]string, 0, len(m.regs))
	for name := range m.regs {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []ToolDescriptor
	for _, name := range names {
		reg := m.regs[name]
		if reg.status != StatusReady || blocked[name] {
			continue
		}
		for _, d := range reg.tools {
			if allowed != nil && !allowed[d.WireName] {
				continue
			}
			out = append(out, d)
		}
	}
	return out
}

// ToProviderDefinitions converts the current catalog to toolcall.Definition,
// suitable for passing straight to a provider.Adapter.ToProviderTools.
func (m *Manager) ToProviderDefinitions(filter *ToolFilter) []toolcall.Definition {
	descs := m.AvailableTools(filter)
	defs := make([]toolcall.Definition, len(descs))
	for i, d := range descs {
		schema := d.InputSchema
		if len(schema) == 0 {
			schema = []byte(`{"type":"object","properties":{}}`)
		}
		defs[i] = toolcall.Definition{
			Name:        d.WireName,
			Description: d.Description,
			Parameters:  schema,
		}
	}
	return defs
}

// CallTool resolves call.Name (a wire_name) back to its server and
// underlying tool name, augments arguments with reqCtx for servers that
// declared NeedsDBContext or are the well-known graph-mode-mcp server
// (spec §4.B), and dispatches through that server's circuit breaker.
// Infrastructure failures, circuit-open rejections, and tool-level
// errors are all folded into toolcall.Result.Error — CallTool itself
// returns a non-nil Go error only for engerr.KindUnknownTool, which the
// caller should treat as a programming error rather than something to
// recover from mid-round.
func (m *Manager) CallTool(ctx context.Context, call toolcall.Call, args map[string]any, reqCtx toolcall.RequestContext) (toolcall.Result, error) {
	m.mu.Lock()
	desc, reg, ok := m.lookupByWireName(call.Name)
	m.mu.Unlock()

	if !ok {
		return toolcall.Result{}, engerr.New(engerr.KindUnknownTool, fmt.Sprintf("no tool registered for wire_name %q", call.Name))
	}
	if reg.status != StatusReady {
		return toolcall.Result{CallID: call.ID, Error: fmt.Sprintf("server %q is not ready", desc.ServerName)}, nil
	}

	if needsRequestContext(reg, desc.ServerName) {
		args = withRequestContext(args, reqCtx)
	}

	invoke := func() (string, error) {
		if reg.cfg.Lifecycle == "per_call" {
			tmp := NewClient(reg.cfg)
			m.attachLogHandler(tmp)
			if err := tmp.Connect(ctx); err != nil {
				return "", err
			}
			defer tmp.Close() //nolint:errcheck
			return tmp.CallTool(ctx, desc.ToolName, args)
		}
		return reg.client.CallTool(ctx, desc.ToolName, args)
	}

	result, err := reg.cb.Execute(invoke)
	if err != nil {
		return toolcall.Result{CallID: call.ID, Error: err.Error()}, nil
	}
	return toolcall.Result{CallID: call.ID, Output: result}, nil
}

// graphModeMCPServer is the well-known server name spec §4.B always
// augments context for, regardless of its needs_db_context config flag.
const graphModeMCPServer = "graph-mode-mcp"

// needsRequestContext implements spec §4.B's OR-condition: a server gets
// request-context augmentation if it opted in via config, or if it is
// the well-known graph-mode-mcp server.
func needsRequestContext(reg *registration, serverName string) bool {
	return reg.cfg.NeedsDBContext || serverName == graphModeMCPServer
}

// withRequestContext augments tool arguments with the read-only
// per-request context fields spec §4.B names — conversation_id,
// api_base, auth_token — without overwriting any value the tool call
// already supplied explicitly.
func withRequestContext(args map[string]any, reqCtx toolcall.RequestContext) map[string]any {
	out := make(map[string]any, len(args)+3)
	for k, v := range args {
		out[k] = v
	}
	if _, exists := out["conversation_id"]; !exists && reqCtx.ConversationID != "" {
		out["conversation_id"] = reqCtx.ConversationID
	}
	if _, exists := out["api_base"]; !exists && reqCtx.APIBase != "" {
		out["api_base"] = reqCtx.APIBase
	}
	if _, exists := out["auth_token"]; !exists && reqCtx.AuthToken != "" {
		out["auth_token"] = reqCtx.AuthToken
	}
	return out
}

func (m *Manager) lookupByWireName(wireName string) (ToolDescriptor, *registration, bool) {
	for _, reg := range m.regs {
		for _, d := range reg.tools {
			if d.WireName == wireName {
				return d, reg, true
			}
		}
	}
	return ToolDescriptor{}, nil, false
}

// Reload re-reads mcp.json and applies a diff against the current
// registration table: added stdio servers whose command or args name a
// .py/.js/.mjs/.ts script are security-scanned before connecting, removed servers are disconnected, unchanged servers
// are left untouched. Network I/O runs outside the lock.
func (m *Manager) Reload(ctx context.Context) (string, error) {
	newConfigs, err := LoadConfig(m.configPath)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	var toRemove []string
	var toAdd []ServerConfig
	unchanged := 0
	for name := range m.regs {
		if _, exists := newConfigs[name]; !exists {
			toRemove = append(toRemove, name)
		}
	}
	for name, cfg := range newConfigs {
		if _, exists := m.regs[name]; !exists {
			toAdd = append(toAdd, cfg)
		} else {
			unchanged++
		}
	}
	m.mu.Unlock()

	removed := 0
	for _, name := range toRemove {
		m.mu.Lock()
		reg := m.regs[name]
		delete(m.regs, name)
		m.mu.Unlock()
		if reg != nil && reg.client != nil {
			if err := reg.client.Close(); err != nil {
				log.Warn().Str("server", name).Err(err).Msg("mcp close error during reload")
			}
		}
		removed++
		log.Info().Str("server", name).Msg("mcp server disconnected")
	}

	var notices []string
	added := 0
	for _, cfg := range toAdd {
		if cfg.Transport == "stdio" {
			if script := findScannableScript(cfg); script != "" {
				findings, scanErr := ScanScript(script)
				if scanErr == nil && HasCritical(findings) {
					LogFindings(cfg.Name, findings)
					notices = append(notices, fmt.Sprintf("[BLOCKED] server %q: critical security findings in %s", cfg.Name, script))
					continue
				}
				LogFindings(cfg.Name, findings)
			}
		}

		o := m.connectOne(ctx, cfg.Name, cfg)
		if o.err != nil {
			notices = append(notices, fmt.Sprintf("[WARNING] connect %q: %v", cfg.Name, o.err))
			continue
		}
		m.mu.Lock()
		descs := m.resolveTools(cfg.Name, o.tools)
		m.regs[cfg.Name] = &registration{cfg: cfg, client: o.cli, status: StatusReady, tools: descs, cb: newBreaker(cfg.Name)}
		m.cache.Add(cfg.Name, descs)
		m.mu.Unlock()
		added++
		log.Info().Str("server", cfg.Name).Int("tools", len(descs)).Msg("mcp server connected via reload")
	}

	summary := fmt.Sprintf("mcp reload: +%d connected, -%d removed, %d unchanged", added, removed, unchanged)
	if len(notices) > 0 {
		summary += "\n" + strings.Join(notices, "\n")
	}
	return summary, nil
}

// CloseAll terminates every active MCP server connection. Safe to call
// multiple times.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	regs := make(map[string]*registration, len(m.regs))
	for name, reg := range m.regs {
		regs[name] = reg
		delete(m.regs, name)
	}
	m.mu.Unlock()

	for name, reg := range regs {
		if reg.client == nil {
			continue
		}
		if err := reg.client.Close(); err != nil {
			log.Warn().Str("server", name).Err(err).Msg("mcp close error")
		}
	}
	log.Info().Msg("mcp: all connections closed")
}

// scannableExts lists the launch-script extensions ScanScript knows how
// to inspect; anything else (native binaries, npx/uvx package specs) is
// left unscanned.
var scannableExts = []string{".py", ".js", ".mjs", ".ts"}

// findScannableScript returns the first command/arg in cfg that ends in
// a ScanScript-supported extension, or "" if none does.
func findScannableScript(cfg ServerConfig) string {
	candidates := append([]string{cfg.Command}, cfg.Args...)
	for _, c := range candidates {
		for _, ext := range scannableExts {
			if strings.HasSuffix(c, ext) {
				return c
			}
		}
	}
	return ""
}
