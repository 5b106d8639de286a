package relay

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/lightningnetwork/lighthouse/engine"
	"github.com/lightningnetwork/lighthouse/lherr"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
)

// handleProject dispatches the endpoints rooted at /project/<id>: a status
// read (scrubbed or full), a pledge submission, and an owner-only claim
// trigger.
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	idHash, err := parseProjectID(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case r.Method == http.MethodGet:
		s.handleGetProject(w, r, idHash)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/claim"):
		s.handleClaimProject(w, r, idHash)
	case r.Method == http.MethodPost:
		s.handlePostPledge(w, r, idHash)
	default:
		writeError(w, http.StatusBadRequest, "unsupported method")
	}
}

func parseProjectID(path string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(path, "/project/")
	trimmed = strings.SplitN(trimmed, "?", 2)[0]
	trimmed = strings.TrimSuffix(trimmed, "/claim")
	if trimmed == "" {
		return out, errors.New("missing project id")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != 32 {
		return out, errors.New("malformed project id")
	}
	copy(out[:], raw)
	return out, nil
}

// handleGetProject serves the scrubbed status unconditionally, or the full
// status when msg/sig are present and verify against the project's
// auth_pubkey with a fresh nonce.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request, idHash [32]byte) {
	msg := r.URL.Query().Get("msg")
	sig := r.URL.Query().Get("sig")

	full := false
	if msg != "" || sig != "" {
		ok, err := s.authenticate(idHash, msg, sig)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid signature or nonce")
			return
		}
		full = true
	}

	status, err := s.cfg.Engine.WireMessage(idHash, full)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeStatus(w, status)
}

// authenticate implements the signed-GET rule: sig must verify over
// msg under the project's auth_pubkey, and msg must be a nonce not seen in
// the last NonceTTL for this project.
func (s *Server) authenticate(idHash [32]byte, msg, sigHex string) (bool, error) {
	if msg == "" || sigHex == "" {
		return false, errors.New("msg and sig are both required")
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, errors.New("sig must be hex")
	}

	pubkey, err := s.cfg.Engine.AuthPubkey(idHash)
	if err != nil {
		return false, err
	}
	if pubkey == nil {
		return false, errors.New("project has no auth_pubkey configured")
	}

	if !s.nonces.claim(idHash, []byte(msg)) {
		return false, nil
	}
	return verifySignature(pubkey, []byte(msg), sig), nil
}

// handlePostPledge decodes the request body as a framed Pledge and submits
// it to the engine as if it had been dropped on disk.
func (s *Server) handlePostPledge(w http.ResponseWriter, r *http.Request, idHash [32]byte) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed reading body")
		return
	}

	snap, err := s.cfg.Engine.SubmitPledge(engine.SourceHTTPUpload, body)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	status, err := s.cfg.Engine.WireMessage(snap.IDHash, false)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeStatus(w, status)
}

// handleClaimProject triggers claim assembly and broadcast for a project
// the caller owns, gated by the same signed-nonce scheme as the full
// status read since only the project's auth key should be able to force
// a claim attempt. The underlying RequestClaim is otherwise unreachable
// from outside the node process.
func (s *Server) handleClaimProject(w http.ResponseWriter, r *http.Request, idHash [32]byte) {
	msg := r.URL.Query().Get("msg")
	sig := r.URL.Query().Get("sig")

	ok, err := s.authenticate(idHash, msg, sig)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid signature or nonce")
		return
	}

	if _, err := s.cfg.Engine.RequestClaim(idHash); err != nil {
		writeEngineError(w, err)
		return
	}

	status, err := s.cfg.Engine.WireMessage(idHash, true)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeStatus(w, status)
}

func writeEngineError(w http.ResponseWriter, err error) {
	var le *lherr.Error
	if errors.As(err, &le) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(le.Kind.HTTPStatus())
		writeJSON(w, errorBody{Kind: le.Kind.String(), Detail: le.Detail})
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeStatus(w http.ResponseWriter, status *lhwire.ProjectStatus) {
	framed, err := lhwire.EncodeFramed(status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed encoding status")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.lighthouse.project-status")
	w.WriteHeader(http.StatusOK)
	w.Write(framed)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	json.NewEncoder(w).Encode(v)
}
