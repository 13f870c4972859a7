package builder

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	roltypes "github.com/nativerollup/core/rollup/types"
)

// HTTPServer exposes the Builder's REST surface (section 6: POST /submit,
// POST /simulate, GET /status) plus a /healthz liveness probe.
type HTTPServer struct {
	engine *Engine
	router *mux.Router
}

// NewHTTPServer builds the Builder's HTTP handler, wrapped in permissive
// CORS so browser-based wallet front ends can call it directly.
func NewHTTPServer(engine *Engine) *HTTPServer {
	s := &HTTPServer{engine: engine, router: mux.NewRouter()}
	s.router.HandleFunc("/submit", s.handleSubmit).Methods(http.MethodPost)
	s.router.HandleFunc("/simulate", s.handleSimulate).Methods(http.MethodPost)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return s
}

// Handler returns the CORS-wrapped http.Handler to pass to http.Server.
func (s *HTTPServer) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// submitWireRequest is the shared JSON shape of /submit and /simulate
// (section 6): {signedTx: hex, sourceChain: "L1"|"L2", hints?: {...}}.
type submitWireRequest struct {
	SignedTx    string     `json:"signedTx"`
	SourceChain string     `json:"sourceChain"`
	Hints       *hintsWire `json:"hints,omitempty"`
}

type hintsWire struct {
	L2TargetAddress *common.Address  `json:"l2TargetAddress,omitempty"`
	L2Addresses     []common.Address `json:"l2Addresses,omitempty"`
}

func (r submitWireRequest) decode() (SubmitRequest, error) {
	raw, err := hex.DecodeString(trimHexPrefix(r.SignedTx))
	if err != nil {
		return SubmitRequest{}, errors.New("signedTx is not valid hex")
	}
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return SubmitRequest{}, errors.New("signedTx does not decode as a transaction")
	}

	source := SourceChain(r.SourceChain)
	if source != SourceChainL1 && source != SourceChainL2 {
		return SubmitRequest{}, errors.New("sourceChain must be \"L1\" or \"L2\"")
	}

	var hints Hints
	if r.Hints != nil {
		hints.L2TargetAddress = r.Hints.L2TargetAddress
		hints.L2Addresses = r.Hints.L2Addresses
	}

	return SubmitRequest{SignedTx: &tx, SourceChain: source, Hints: hints}, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

type submitWireResponse struct {
	AnchorTxHash      common.Hash `json:"anchorTxHash"`
	Path              string      `json:"path"`
	FinalStateHash    common.Hash `json:"finalStateHash"`
	L2CallsDiscovered int         `json:"l2CallsDiscovered"`
	L2CallsRegistered int         `json:"l2CallsRegistered"`
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var wire submitWireRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := wire.decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.engine.Submit(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, submitWireResponse{
		AnchorTxHash:      result.AnchorTxHash,
		Path:              result.Path.String(),
		FinalStateHash:    result.FinalStateHash,
		L2CallsDiscovered: result.L2CallsDiscovered,
		L2CallsRegistered: result.L2CallsRegistered,
	})
}

type callDetailWire struct {
	L2Address    common.Address `json:"l2Address"`
	PreStateHash common.Hash    `json:"preStateHash"`
	CallData     string         `json:"callData"`
}

type simulateWireResponse struct {
	TxWouldSucceed    bool             `json:"txWouldSucceed"`
	TxError           string           `json:"txError,omitempty"`
	TxReturnData      string           `json:"txReturnData,omitempty"`
	CallDetails       []callDetailWire `json:"callDetails"`
	FinalL2StateHash  common.Hash      `json:"finalL2StateHash"`
	L2CallsDiscovered int              `json:"l2CallsDiscovered"`
	L2CallsRegistered int              `json:"l2CallsRegistered"`
}

func (s *HTTPServer) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var wire submitWireRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := wire.decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.engine.Simulate(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	details := make([]callDetailWire, len(result.CallDetails))
	for i, d := range result.CallDetails {
		details[i] = callDetailWire{
			L2Address:    d.L2Address,
			PreStateHash: d.PreStateHash,
			CallData:     "0x" + hex.EncodeToString(d.CallData),
		}
	}

	writeJSON(w, http.StatusOK, simulateWireResponse{
		TxWouldSucceed:    result.TxWouldSucceed,
		TxError:           result.TxError,
		TxReturnData:      "0x" + hex.EncodeToString(result.TxReturnData),
		CallDetails:       details,
		FinalL2StateHash:  result.FinalL2StateHash,
		L2CallsDiscovered: result.L2CallsDiscovered,
		L2CallsRegistered: result.L2CallsRegistered,
	})
}

type statusWireResponse struct {
	AnchorBlockNumber uint64         `json:"anchorBlockNumber"`
	AnchorStateHash   common.Hash    `json:"anchorStateHash"`
	FullnodeStateHash common.Hash    `json:"fullnodeStateHash"`
	IsSynced          bool           `json:"isSynced"`
	RollupAddress     common.Address `json:"rollupAddress"`
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Status(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, statusWireResponse{
		AnchorBlockNumber: result.AnchorBlockNumber,
		AnchorStateHash:   result.AnchorStateHash,
		FullnodeStateHash: result.FullnodeStateHash,
		IsSynced:          result.IsSynced,
		RollupAddress:     result.RollupAddress,
	})
}

// handleHealthz is a supplemented liveness probe, cheaper than /status: it
// does not round-trip to the anchor chain or the Fullnode.
func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// statusForError maps a sentinel error kind (section 7) to an HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, roltypes.ErrConfig), errors.Is(err, roltypes.ErrNonceMismatch):
		return http.StatusBadRequest
	case errors.Is(err, roltypes.ErrStalePreState):
		return http.StatusConflict
	case errors.Is(err, roltypes.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, roltypes.ErrDiscoveryNonTermination),
		errors.Is(err, roltypes.ErrRegistrationFailed),
		errors.Is(err, roltypes.ErrPreBroadcastCheckFailed),
		errors.Is(err, roltypes.ErrBroadcastReverted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, roltypes.ErrBroadcastTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorWireResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Warn("builder http request failed", "status", status, "err", err)
	writeJSON(w, status, errorWireResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode http response", "err", err)
	}
}
