package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/engine"
	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

type sessionResponse struct {
	engine.SessionInfo
	Warning string `json:"warning,omitempty"`
}

// partial turns a partial load into a warning; any other error is returned.
func partial(err error) (string, error) {
	if errors.Is(err, graph.ErrPartialLoad) {
		return err.Error(), nil
	}
	return "", err
}

type portView struct {
	Index     int                   `json:"index"`
	Name      string                `json:"name"`
	Type      transition.Type       `json:"type"`
	State     transition.Transition `json:"state"`
	Connected bool                  `json:"connected"`
	Pending   bool                  `json:"pending,omitempty"`
}

type nodeView struct {
	Index     int             `json:"index"`
	Type      string          `json:"type"`
	Lifecycle string          `json:"lifecycle"`
	Position  circuit.Point   `json:"position"`
	Args      json.RawMessage `json:"args,omitempty"`
	Inputs    []portView      `json:"inputs"`
	Outputs   []portView      `json:"outputs"`
}

func viewNode(index int, n *circuit.Node) nodeView {
	v := nodeView{
		Index:     index,
		Type:      n.Type(),
		Lifecycle: n.Lifecycle().String(),
		Position:  n.Position,
		Inputs:    make([]portView, 0, n.InputCount()),
		Outputs:   make([]portView, 0, n.OutputCount()),
	}
	if args, err := n.Args(); err == nil {
		v.Args = args
	}
	for _, p := range n.Inputs() {
		v.Inputs = append(v.Inputs, portView{
			Index: p.Index(), Name: p.Name(), Type: p.Type(), State: p.State(),
			Connected: p.Connection() != nil,
		})
	}
	for _, p := range n.Outputs() {
		v.Outputs = append(v.Outputs, portView{
			Index: p.Index(), Name: p.Name(), Type: p.Type(), State: p.State(),
			Connected: p.Connection() != nil, Pending: p.Pending(),
		})
	}
	return v
}

func nodeAt(g *graph.Graph, i int) (*circuit.Node, error) {
	n := g.Node(i)
	if n == nil {
		return nil, fmt.Errorf("%w: %d", graph.ErrNodeNotFound, i)
	}
	return n, nil
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || i < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid node index %q", r.PathValue("index")))
		return 0, false
	}
	return i, true
}

type createSessionRequest struct {
	Records []graph.NodeRecord `json:"records"`
	From    string             `json:"from"`
}

// POST /v1/sessions: new session, empty, from records or from a stored graph.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decode(w, r, &req, true) {
		return
	}
	var (
		info engine.SessionInfo
		err  error
	)
	if req.From != "" {
		info, err = h.eng.Open(r.Context(), req.From)
	} else {
		info, err = h.eng.CreateSession(r.Context(), req.Records)
	}
	warning, err := partial(err)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionInfo: info, Warning: warning})
}

// GET /v1/sessions
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.eng.Sessions(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

// GET /v1/sessions/{id}
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	var info engine.SessionInfo
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		info = s.Info()
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// DELETE /v1/sessions/{id}
func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.CloseSession(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed": true})
}

type graphBody struct {
	Records []graph.NodeRecord `json:"records"`
}

// GET /v1/sessions/{id}/graph: serialized records.
func (h *Handler) getGraph(w http.ResponseWriter, r *http.Request) {
	var body graphBody
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		body.Records = s.Graph.Serialize()
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// PUT /v1/sessions/{id}/graph: replace the graph with records.
func (h *Handler) putGraph(w http.ResponseWriter, r *http.Request) {
	var body graphBody
	if !decode(w, r, &body, false) {
		return
	}
	var info engine.SessionInfo
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		err := s.Graph.ApplySerialized(body.Records)
		info = s.Info()
		return err
	})
	warning, err := partial(err)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionInfo: info, Warning: warning})
}

// GET /v1/sessions/{id}/events: recent events of the session's graph.
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	var out any
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		out = s.Events()
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

type addNodeRequest struct {
	Type     string          `json:"type"`
	Position circuit.Point   `json:"position"`
	Args     json.RawMessage `json:"args"`
}

// POST /v1/sessions/{id}/nodes
func (h *Handler) addNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if !decode(w, r, &req, false) {
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "node type is required")
		return
	}
	var view nodeView
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		n, err := s.Graph.AddNode(req.Type, req.Position)
		if err != nil {
			return err
		}
		if len(req.Args) > 0 {
			if err := n.ApplyArgs(req.Args); err != nil {
				_ = s.Graph.RemoveNode(n)
				return fmt.Errorf("%w: %w", errBadArgs, err)
			}
		}
		view = viewNode(s.Graph.IndexOf(n), n)
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GET /v1/sessions/{id}/nodes/{index}: port states.
func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	i, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var view nodeView
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		n, err := nodeAt(s.Graph, i)
		if err != nil {
			return err
		}
		view = viewNode(i, n)
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DELETE /v1/sessions/{id}/nodes/{index}
func (h *Handler) removeNode(w http.ResponseWriter, r *http.Request) {
	i, ok := pathIndex(w, r)
	if !ok {
		return
	}
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		n, err := nodeAt(s.Graph, i)
		if err != nil {
			return err
		}
		return s.Graph.RemoveNode(n)
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": i})
}

type setValueRequest struct {
	Port  int                   `json:"port"`
	Value transition.Transition `json:"value"`
}

// PUT /v1/sessions/{id}/nodes/{index}/value: write to a settable node.
func (h *Handler) setValue(w http.ResponseWriter, r *http.Request) {
	i, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var req setValueRequest
	if !decode(w, r, &req, false) {
		return
	}
	var view nodeView
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		n, err := nodeAt(s.Graph, i)
		if err != nil {
			return err
		}
		if err := n.SetValue(req.Port, req.Value); err != nil {
			return err
		}
		view = viewNode(i, n)
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

var errBadArgs = errors.New("invalid node args")

type setArgsRequest struct {
	Args json.RawMessage `json:"args"`
}

// PUT /v1/sessions/{id}/nodes/{index}/args: reconfigure a node.
func (h *Handler) setArgs(w http.ResponseWriter, r *http.Request) {
	i, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var req setArgsRequest
	if !decode(w, r, &req, false) {
		return
	}
	var view nodeView
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		n, err := nodeAt(s.Graph, i)
		if err != nil {
			return err
		}
		if err := n.ApplyArgs(req.Args); err != nil {
			return fmt.Errorf("%w: %w", errBadArgs, err)
		}
		view = viewNode(i, n)
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type portRef struct {
	Node int `json:"node"`
	Port int `json:"port"`
}

type connectRequest struct {
	From portRef `json:"from"`
	To   portRef `json:"to"`
}

// POST /v1/sessions/{id}/connections
func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !decode(w, r, &req, false) {
		return
	}
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		_, err := s.Graph.ConnectIndex(req.From.Node, req.From.Port, req.To.Node, req.To.Port)
		return err
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// DELETE /v1/sessions/{id}/connections: body names the input side.
func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	var req portRef
	if !decode(w, r, &req, false) {
		return
	}
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		n, err := nodeAt(s.Graph, req.Node)
		if err != nil {
			return err
		}
		if req.Port < 0 || req.Port >= n.InputCount() {
			return fmt.Errorf("%w: input %d", graph.ErrPortOutOfRange, req.Port)
		}
		s.Graph.Disconnect(n.Input(req.Port))
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"disconnected": req})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, step func(*graph.Graph) bool) {
	var (
		applied bool
		info    engine.SessionInfo
	)
	err := h.eng.WithSession(r.Context(), r.PathValue("id"), func(s *engine.Session) error {
		applied = step(s.Graph)
		info = s.Info()
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "session": info})
}

// POST /v1/sessions/{id}/undo
func (h *Handler) undo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, (*graph.Graph).Undo)
}

// POST /v1/sessions/{id}/redo
func (h *Handler) redo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, (*graph.Graph).Redo)
}

type settleRequest struct {
	MaxTicks int `json:"max_ticks"`
}

// POST /v1/sessions/{id}/settle: tick until idle.
func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if !decode(w, r, &req, true) {
		return
	}
	res, err := h.eng.Settle(r.Context(), r.PathValue("id"), req.MaxTicks)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type saveRequest struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

// POST /v1/sessions/{id}/save
func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decode(w, r, &req, false) {
		return
	}
	n, err := h.eng.Save(r.Context(), r.PathValue("id"), req.Name, req.Tag)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": req.Name, "tag": req.Tag, "nodes": n})
}

type loadRequest struct {
	Name string `json:"name"`
}

// POST /v1/sessions/{id}/load
func (h *Handler) load(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if !decode(w, r, &req, false) {
		return
	}
	entry, err := h.eng.Load(r.Context(), r.PathValue("id"), req.Name)
	warning, err := partial(err)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        entry.Name,
		"tag":         entry.Tag,
		"last_update": entry.LastUpdate,
		"nodes":       len(entry.Graph.Records),
		"warning":     warning,
	})
}
