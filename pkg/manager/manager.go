// Package manager is C11: the manager facade. It validates every request,
// enforces permission intersection against the authenticated identity,
// assigns a correlation id, delegates to the local shared-file store or a
// remote peer, records the outcome in the performance monitor and audit
// log, and publishes the resulting lifecycle event.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/commy-mesh/commy/internal/logger"
	"github.com/commy-mesh/commy/pkg/auth"
	"github.com/commy-mesh/commy/pkg/mesh"
	"github.com/commy-mesh/commy/pkg/metrics"
	"github.com/commy-mesh/commy/pkg/model"
	"github.com/commy-mesh/commy/pkg/perfmon"
	"github.com/commy-mesh/commy/pkg/sharedfile"
	"github.com/commy-mesh/commy/pkg/transport/network"
	"github.com/commy-mesh/commy/pkg/transport/selector"
)

// Manager wires together the components a file request touches.
type Manager struct {
	store     *sharedfile.Store
	authN     *auth.Authenticator
	perf      *perfmon.Monitor
	sel       *selector.Selector
	netClient *network.Client
	meshReg   *mesh.Registry
	audit     AuditSink
	events    *EventBus
	sfMetrics metrics.SharedFileMetrics
}

// Config bundles a Manager's collaborators. Every field but Audit, Events
// and SharedFileMetrics is required.
type Config struct {
	Store             *sharedfile.Store
	Authenticator     *auth.Authenticator
	PerfMonitor       *perfmon.Monitor
	Selector          *selector.Selector
	NetworkClient     *network.Client
	MeshRegistry      *mesh.Registry
	Audit             AuditSink
	Events            *EventBus
	SharedFileMetrics metrics.SharedFileMetrics
}

// New builds a Manager from cfg.
func New(cfg Config) *Manager {
	audit := cfg.Audit
	if audit == nil {
		audit = NopAuditSink{}
	}
	events := cfg.Events
	if events == nil {
		events = NewEventBus()
	}
	return &Manager{
		store:     cfg.Store,
		authN:     cfg.Authenticator,
		perf:      cfg.PerfMonitor,
		sel:       cfg.Selector,
		netClient: cfg.NetworkClient,
		meshReg:   cfg.MeshRegistry,
		audit:     audit,
		events:    events,
		sfMetrics: cfg.SharedFileMetrics,
	}
}

// Response wraps a successful request_file call, its correlation id, and
// the chosen transport for the caller to act on.
type Response struct {
	CorrelationID string
	FileID        uint64
	ConnectionID  string
	Path          string
	Capacity      uint64
	Transport     selector.Transport
}

func requiredPermission(policy model.ExistencePolicy) []auth.Permission {
	switch policy {
	case model.CreateOnly:
		return []auth.Permission{auth.PermissionCreateFile}
	case model.ConnectOnly:
		return []auth.Permission{auth.PermissionConnectFile}
	default:
		return []auth.Permission{auth.PermissionCreateFile, auth.PermissionConnectFile}
	}
}

// hasAny reports whether granted holds at least one of candidates.
func hasAny(granted auth.PermissionSet, candidates []auth.Permission) bool {
	for _, p := range candidates {
		if granted.Has(p) {
			return true
		}
	}
	return false
}

// RequestFile implements request_file(request) -> response.
func (m *Manager) RequestFile(ctx context.Context, req *model.SharedFileRequest, clientID string) (*Response, error) {
	correlationID := uuid.NewString()
	start := time.Now()

	identity, err := m.authorize(req.Token, requiredPermission(req.Policy), "request_file")
	if err != nil {
		return nil, err
	}

	if req.Identifier == "" {
		return nil, m.fail(identity, "request_file", model.NewFault(model.KindValidation, "manager.request_file", model.ErrValidation).
			WithDetail("reason", "empty identifier"))
	}
	if req.Policy != model.ConnectOnly && req.MaxSize == 0 {
		return nil, m.fail(identity, "request_file", model.NewFault(model.KindValidation, "manager.request_file", model.ErrValidation).
			WithDetail("reason", "max_size must be > 0 when creating"))
	}

	existedLocally := m.localEntryExists(req.Identifier)
	decision, err := m.sel.Select(selector.Request{
		Identifier:             req.Identifier,
		Preference:             transportPreference(req.TransportPref),
		EncryptionRequired:     req.Performance.EncryptionRequired,
		PerformanceRequirement: req.Performance.MaxLatency,
		// A create policy can always be served locally, whether or not the
		// entry exists yet; only a bare connect to an unknown identifier
		// truly requires locating it elsewhere in the mesh.
		LocalEntryExists: req.Policy != model.ConnectOnly || existedLocally,
	})
	if err != nil {
		return nil, m.fail(identity, "request_file", err)
	}

	var result *sharedfile.RequestResult
	if decision.Transport == selector.SharedMemory {
		result, err = m.store.Request(req, clientID, identity.Subject)
	} else {
		result, err = m.requestRemote(ctx, *decision.Endpoint, req, clientID, identity.Subject)
	}

	dur := time.Since(start)
	if m.sfMetrics != nil {
		m.sfMetrics.ObserveRequest(req.Policy.String(), dur, err)
	}
	if m.perf != nil {
		m.perf.Record(perfmon.Key{Identifier: req.Identifier, Path: req.Identifier, Transport: string(decision.Transport)}, perfmon.Sample{
			Latency: dur, Success: err == nil, Timestamp: time.Now(),
		})
	}

	if err != nil {
		return nil, m.fail(identity, "request_file", err)
	}

	m.audit.Record(AuditEntry{Timestamp: time.Now(), Identity: identity.Subject, Operation: "request_file", Outcome: AuditSuccess})
	logger.Info("manager: request_file succeeded",
		logger.CorrelationID(correlationID), logger.Identifier(req.Identifier),
		logger.ConnectionID(connID(result)), logger.Transport(string(decision.Transport)),
		logger.DurationMs(float64(dur.Microseconds())/1000))
	eventType := FileConnected
	if decision.Transport == selector.SharedMemory && !existedLocally {
		eventType = FileCreated
	}
	m.events.Publish(Event{Type: eventType, Identifier: req.Identifier, FileID: result.FileID, ConnectionID: connID(result), Timestamp: time.Now()})

	return &Response{
		CorrelationID: correlationID,
		FileID:        result.FileID,
		ConnectionID:  connID(result),
		Path:          result.Path,
		Capacity:      result.Capacity,
		Transport:     decision.Transport,
	}, nil
}

// Disconnect implements disconnect(connection handle) -> ().
func (m *Manager) Disconnect(fileID uint64, connID string, reason model.DisconnectReason, token string) error {
	identity, err := m.authorize(token, []auth.Permission{auth.PermissionDisconnect}, "disconnect")
	if err != nil {
		return err
	}

	if err := m.store.Disconnect(fileID, connID, reason); err != nil {
		return m.fail(identity, "disconnect", err)
	}

	m.audit.Record(AuditEntry{Timestamp: time.Now(), Identity: identity.Subject, Operation: "disconnect", Outcome: AuditSuccess})
	m.events.Publish(Event{Type: ClientDisconnected, FileID: fileID, ConnectionID: connID, Timestamp: time.Now()})

	if entry, ok := m.store.Get(fileID); ok && entry.RefCount == 0 {
		m.events.Publish(Event{Type: FileDisconnected, Identifier: entry.Identifier, FileID: fileID, Timestamp: time.Now()})
	}
	return nil
}

// ListActiveFiles implements list_active_files() -> sequence.
func (m *Manager) ListActiveFiles(token string) ([]model.SharedFileEntry, error) {
	identity, err := m.authorize(token, []auth.Permission{auth.PermissionListFiles}, "list_active_files")
	if err != nil {
		return nil, err
	}
	entries := m.store.ListActive()
	m.audit.Record(AuditEntry{Timestamp: time.Now(), Identity: identity.Subject, Operation: "list_active_files", Outcome: AuditSuccess})
	return entries, nil
}

// SubscribeEvents implements subscribe_events() -> lazy sequence of events.
func (m *Manager) SubscribeEvents(token, subscriberID string) (*Subscription, error) {
	identity, err := m.authorize(token, []auth.Permission{auth.PermissionSubscribe}, "subscribe_events")
	if err != nil {
		return nil, err
	}
	m.audit.Record(AuditEntry{Timestamp: time.Now(), Identity: identity.Subject, Operation: "subscribe_events", Outcome: AuditSuccess})
	return m.events.Subscribe(subscriberID), nil
}

func (m *Manager) authorize(token string, required []auth.Permission, op string) (*auth.Identity, error) {
	result, err := m.authN.Validate(context.Background(), token)
	if err != nil {
		m.audit.Record(AuditEntry{Timestamp: time.Now(), Identity: "", Operation: op, Outcome: AuditFailure, Detail: err.Error()})
		return nil, model.NewFault(model.KindAuth, "manager."+op, model.ErrValidation).WithDetail("reason", err.Error())
	}
	if !hasAny(result.Identity.Permissions, required) {
		m.audit.Record(AuditEntry{Timestamp: time.Now(), Identity: result.Identity.Subject, Operation: op, Outcome: AuditFailure, Detail: "missing required permission"})
		return nil, model.NewFault(model.KindAuth, "manager."+op, model.ErrValidation).WithDetail("reason", "missing required permission")
	}
	return &result.Identity, nil
}

func (m *Manager) fail(identity *auth.Identity, op string, err error) error {
	subject := ""
	if identity != nil {
		subject = identity.Subject
	}
	m.audit.Record(AuditEntry{Timestamp: time.Now(), Identity: subject, Operation: op, Outcome: AuditFailure, Detail: err.Error()})
	return err
}

// Ready reports whether the manager has a usable store and selector behind
// it, for the control API's readiness probe.
func (m *Manager) Ready() (bool, string) {
	if m.store == nil {
		return false, "shared-file store not configured"
	}
	if m.sel == nil {
		return false, "transport selector not configured"
	}
	return true, ""
}

func (m *Manager) localEntryExists(identifier string) bool {
	for _, e := range m.store.ListActive() {
		if e.Identifier == identifier {
			return true
		}
	}
	return false
}

func transportPreference(p model.TransportPreference) selector.Preference {
	switch p {
	case model.LocalOnly:
		return selector.LocalOnly
	case model.NetworkOnly:
		return selector.NetworkOnly
	default:
		return selector.PreferenceNone
	}
}

func connID(r *sharedfile.RequestResult) string {
	if r.Connection == nil {
		return ""
	}
	return r.Connection.ID
}

type wireRequest struct {
	Identifier  string
	Path        string
	MaxSize     uint64
	Policy      int
	Token       string
	ClientID    string
	Identity    string
	Permissions model.PermissionSet
}

type wireResponse struct {
	FileID       uint64
	ConnectionID string
	Path         string
	Capacity     uint64
	Err          string
}

// requestRemote delegates req to a peer over C8, per the routing decision's
// chosen endpoint.
func (m *Manager) requestRemote(ctx context.Context, ep mesh.Endpoint, req *model.SharedFileRequest, clientID, identity string) (*sharedfile.RequestResult, error) {
	payload, err := json.Marshal(wireRequest{
		Identifier:  req.Identifier,
		Path:        req.Path,
		MaxSize:     req.MaxSize,
		Policy:      int(req.Policy),
		Token:       req.Token,
		ClientID:    clientID,
		Identity:    identity,
		Permissions: req.Permissions,
	})
	if err != nil {
		return nil, err
	}

	frame, err := m.netClient.SendRequest(ctx, ep.ID, ep.Address, payload)
	if err != nil {
		return nil, model.NewFault(model.KindTransientNetwork, "manager.request_remote", err).WithDetail("peer", ep.ID)
	}

	var wr wireResponse
	if err := json.Unmarshal(frame.Payload, &wr); err != nil {
		return nil, fmt.Errorf("manager: decode remote response: %w", err)
	}
	if wr.Err != "" {
		return nil, model.NewFault(model.KindUnknown, "manager.request_remote", fmt.Errorf("%s", wr.Err))
	}

	return &sharedfile.RequestResult{
		FileID:   wr.FileID,
		Path:     wr.Path,
		Capacity: wr.Capacity,
		Connection: &model.Connection{
			ID:       wr.ConnectionID,
			ClientID: clientID,
			FileID:   wr.FileID,
		},
	}, nil
}

// HandleInbound answers a peer's request_file frame against the local
// store directly, bypassing the transport selector: once a frame has
// arrived over the network, the routing decision has already been made by
// the caller. Registered as a network.Handler on the inbound server.
func (m *Manager) HandleInbound(req *network.Frame) (*network.Frame, error) {
	if req.Type != network.MessageRequest {
		return nil, fmt.Errorf("manager: unexpected inbound frame type %s", req.Type)
	}

	var wr wireRequest
	if err := json.Unmarshal(req.Payload, &wr); err != nil {
		return nil, fmt.Errorf("manager: decode inbound request: %w", err)
	}

	sfReq := &model.SharedFileRequest{
		Identifier:  wr.Identifier,
		Path:        wr.Path,
		MaxSize:     wr.MaxSize,
		Policy:      model.ExistencePolicy(wr.Policy),
		Token:       wr.Token,
		Permissions: wr.Permissions,
	}

	result, err := m.store.Request(sfReq, wr.ClientID, wr.Identity)
	resp := wireResponse{}
	if err != nil {
		resp.Err = err.Error()
	} else {
		resp.FileID = result.FileID
		resp.ConnectionID = connID(result)
		resp.Path = result.Path
		resp.Capacity = result.Capacity
	}

	payload, merr := json.Marshal(resp)
	if merr != nil {
		return nil, merr
	}
	return &network.Frame{Version: 1, Type: network.MessageResponse, Payload: payload}, nil
}
