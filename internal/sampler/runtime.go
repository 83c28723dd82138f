package sampler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/agentop/agentop/internal/errors"
	"github.com/agentop/agentop/internal/snapshot"
)

// Runtime samples the external agent runtime's status command. The source
// fails closed: an absent, failing, or malformed response yields
// reachable=false with empty session and agent lists, never stale ones.
type Runtime struct {
	argv    []string
	timeout time.Duration
}

// NewRuntime creates a runtime status sampler for the given command line.
func NewRuntime(argv []string, timeout time.Duration) *Runtime {
	return &Runtime{argv: argv, timeout: timeout}
}

// statusDoc mirrors the runtime's JSON status document. Agents appear under
// either "agents" or "heartbeat.agents" depending on runtime version.
type statusDoc struct {
	Gateway struct {
		Reachable bool `json:"reachable"`
	} `json:"gateway"`
	Sessions struct {
		Recent []sessionDoc `json:"recent"`
	} `json:"sessions"`
	Agents    []agentDoc `json:"agents"`
	Heartbeat struct {
		Agents []agentDoc `json:"agents"`
	} `json:"heartbeat"`
}

type sessionDoc struct {
	Key           string `json:"key"`
	ID            string `json:"id"`
	Name          string `json:"name"`
	Model         string `json:"model"`
	Channel       string `json:"channel"`
	AgentID       string `json:"agentId"`
	TotalTokens   int64  `json:"totalTokens"`
	ContextWindow int64  `json:"contextWindow"`
	UpdatedAt     int64  `json:"updatedAt"` // epoch milliseconds
}

type agentDoc struct {
	ID       string `json:"id"`
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

// Sample invokes the status command and parses the result.
func (r *Runtime) Sample(ctx context.Context) snapshot.RuntimeReading {
	unreachable := snapshot.RuntimeReading{
		Status:    snapshot.SourceUnavailable,
		Reachable: false,
		Sessions:  []snapshot.Session{},
		Agents:    []snapshot.Agent{},
	}

	out, err := runArgv(ctx, r.timeout, r.argv)
	if err != nil {
		log.Debug("runtime status command failed: %v", err)
		return unreachable
	}

	doc, err := parseStatus([]byte(out))
	if err != nil {
		log.Debug("runtime status parse failed: %v", err)
		return unreachable
	}
	return doc
}

// parseStatus converts a raw status document into a reading.
func parseStatus(data []byte) (snapshot.RuntimeReading, error) {
	var doc statusDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return snapshot.RuntimeReading{}, err
	}

	reading := snapshot.RuntimeReading{
		Status:    snapshot.SourceOK,
		Reachable: doc.Gateway.Reachable,
		Sessions:  make([]snapshot.Session, 0, len(doc.Sessions.Recent)),
		Agents:    []snapshot.Agent{},
	}

	for _, s := range doc.Sessions.Recent {
		reading.Sessions = append(reading.Sessions, s.toSession())
	}

	agents := doc.Agents
	if len(agents) == 0 {
		agents = doc.Heartbeat.Agents
	}
	for _, a := range agents {
		reading.Agents = append(reading.Agents, snapshot.Agent{
			ID:       a.ID,
			Enabled:  a.Enabled,
			Schedule: a.Schedule,
		})
	}

	return reading, nil
}

func (s sessionDoc) toSession() snapshot.Session {
	key := s.Key
	if key == "" {
		key = s.ID
	}
	out := snapshot.Session{
		Key:           key,
		Name:          s.Name,
		Model:         s.Model,
		Channel:       s.Channel,
		AgentID:       s.AgentID,
		TotalTokens:   s.TotalTokens,
		ContextWindow: s.ContextWindow,
	}
	if s.UpdatedAt > 0 {
		out.UpdatedAt = time.UnixMilli(s.UpdatedAt)
	}
	return out
}

// sessionFileEntry is one value of the sessions file: a JSON object keyed by
// session id.
type sessionFileEntry struct {
	Channel       string `json:"channel"`
	Name          string `json:"name"`
	Model         string `json:"model"`
	AgentID       string `json:"agentId"`
	TotalTokens   int64  `json:"totalTokens"`
	ContextWindow int64  `json:"contextWindow"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// ReadSessionsFile reads the persisted sessions file. A missing file is
// distinguishable from a read or parse failure via IsMissing. Sessions are
// returned in stable key order.
func ReadSessionsFile(path string) ([]snapshot.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrSource,
				"Sessions file absent: "+path, "")
		}
		return nil, errors.WrapWithCode(err, errors.ErrSource,
			"Cannot read sessions file: "+path,
			"Check file permissions")
	}

	var entries map[string]sessionFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSource,
			"Cannot parse sessions file: "+path,
			"The file must be a JSON object keyed by session id")
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sessions := make([]snapshot.Session, 0, len(entries))
	for _, k := range keys {
		e := entries[k]
		s := snapshot.Session{
			Key:           k,
			Name:          e.Name,
			Model:         e.Model,
			Channel:       e.Channel,
			AgentID:       e.AgentID,
			TotalTokens:   e.TotalTokens,
			ContextWindow: e.ContextWindow,
		}
		if e.UpdatedAt > 0 {
			s.UpdatedAt = time.UnixMilli(e.UpdatedAt)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// IsMissing reports whether err came from an absent sessions file, as
// opposed to an unreadable or malformed one.
func IsMissing(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}
