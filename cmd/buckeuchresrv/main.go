// Command buckeuchresrv runs the Buck Euchre game server: a WebSocket
// session endpoint, a small JSON lobby-admin API, and the AI executor
// that drives bot seats. Grounded on cmd/pokersrv/main.go's flag
// parsing and listener/portfile bootstrap, re-pointed at the
// websocket/HTTP transport this module actually has instead of gRPC.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/buckeuchre/buckeuchre/internal/apperr"
	"github.com/buckeuchre/buckeuchre/internal/cards"
	"github.com/buckeuchre/buckeuchre/internal/dealsource"
	"github.com/buckeuchre/buckeuchre/internal/euchre"
	"github.com/buckeuchre/buckeuchre/internal/logging"
	"github.com/buckeuchre/buckeuchre/pkg/aiexec"
	"github.com/buckeuchre/buckeuchre/pkg/auth"
	"github.com/buckeuchre/buckeuchre/pkg/diag"
	"github.com/buckeuchre/buckeuchre/pkg/ismcts"
	"github.com/buckeuchre/buckeuchre/pkg/lobby"
	"github.com/buckeuchre/buckeuchre/pkg/stats"
	"github.com/buckeuchre/buckeuchre/pkg/transport"
	"github.com/buckeuchre/buckeuchre/pkg/utils"
)

// characterRegistry tracks the ismcts.Character each AI seat plays
// with, keyed by (gameID, position), populated when that seat is
// seated via POST /api/games/{gameId}/ai. Absent entries play Balanced,
// so human-only games (or the /api/games/create AI-free path) never
// need to touch it.
type characterRegistry struct {
	mu    sync.Mutex
	byKey map[string]ismcts.Character
}

func newCharacterRegistry() *characterRegistry {
	return &characterRegistry{byKey: make(map[string]ismcts.Character)}
}

func (c *characterRegistry) set(gameID string, position int, ch ismcts.Character) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[characterKey(gameID, position)] = ch
}

func (c *characterRegistry) CharacterFor(gameID string, position int) ismcts.Character {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.byKey[characterKey(gameID, position)]; ok {
		return ch
	}
	return ismcts.Balanced()
}

func characterKey(gameID string, position int) string {
	return fmt.Sprintf("%s:%d", gameID, position)
}

// difficultyCharacter maps the §6.1 difficulty names onto bid/fold/risk
// multipliers; there is no single canonical mapping in the pack, so
// this one is hand-picked to keep "easy" passing more and folding more
// than "expert". The multipliers scale only the rollout policy's
// decisions; the tree search itself is the same at every difficulty.
func difficultyCharacter(difficulty string) ismcts.Character {
	switch difficulty {
	case "easy":
		return ismcts.Character{BidAggressiveness: 0.7, FoldThreshold: 1.3, RiskTaking: 0.7}
	case "hard":
		return ismcts.Character{BidAggressiveness: 1.2, FoldThreshold: 0.8, RiskTaking: 1.2}
	case "expert":
		return ismcts.Character{BidAggressiveness: 1.4, FoldThreshold: 0.6, RiskTaking: 1.4}
	default: // "medium" or unrecognized
		return ismcts.Balanced()
	}
}

// hubPublisher adapts *transport.Hub to aiexec.AnalysisPublisher so
// neither package needs to import the other's stat type; this main
// package is the one place allowed to know both shapes.
type hubPublisher struct{ hub *transport.Hub }

func (p hubPublisher) BroadcastAIAnalysis(gameID string, position int, stats []aiexec.ActionStat) {
	wire := make([]transport.ActionStat, len(stats))
	for i, s := range stats {
		wire[i] = transport.ActionStat{
			ActionKey:     s.ActionKey,
			Visits:        s.Visits,
			AverageValue:  s.AverageValue,
			StandardError: s.StandardError,
			CI95Low:       s.CI95Low,
			CI95High:      s.CI95High,
		}
	}
	p.hub.BroadcastAIAnalysis(gameID, position, wire)
}

func main() {
	var (
		dataDir         string
		dbPath          string
		host            string
		port            int
		portFile        string
		seed            int64
		iterations      int
		workers         int
		debugLevel      string
		allowedOrigin   string
		production      bool
		enableTestHooks bool
		jwtSecretHex    string
	)
	flag.StringVar(&dataDir, "datadir", "", "Directory for server state (stats db, logs); defaults to the OS temp dir")
	flag.StringVar(&dbPath, "db", "", "Path to SQLite results database file (created if missing, under -datadir by default)")
	flag.StringVar(&host, "host", "127.0.0.1", "Host to listen on")
	flag.IntVar(&port, "port", 0, "Port to listen on (0 for random free port)")
	flag.StringVar(&portFile, "portfile", "", "If set, write the selected port to this file")
	flag.Int64Var(&seed, "seed", 0, "Deterministic RNG seed for AI search (0 = random per search)")
	flag.IntVar(&iterations, "iterations", 0, "ISMCTS iterations per AI decision (0 = package default)")
	flag.IntVar(&workers, "workers", 0, "ISMCTS parallel search workers (0 = auto-sized)")
	flag.StringVar(&debugLevel, "debuglevel", "info", "Logging level: trace, debug, info, warn, error, off")
	flag.StringVar(&allowedOrigin, "alloworigin", "", "Allowed WebSocket Origin header in production mode")
	flag.BoolVar(&production, "production", false, "Enforce the alloworigin check (default permissive, for local dev)")
	flag.BoolVar(&enableTestHooks, "enable-test-hooks", false, "Expose /api/test/deck and /api/test/dealer to pin deals (never set in production)")
	flag.StringVar(&jwtSecretHex, "jwt-secret", "", "Hex-encoded HMAC secret validating websocket bearer tokens; a random one is generated (and logged once) if unset")
	flag.Parse()

	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "buckeuchre")
	}
	if err := utils.EnsureDataDirExists(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare data directory: %v\n", err)
		os.Exit(1)
	}
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "buckeuchre.sqlite")
	}

	logBackend, err := logging.NewBackend(logging.Config{DebugLevel: debugLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logging: %v\n", err)
		os.Exit(1)
	}
	log := logBackend.Logger(logging.SubsystemServer)

	statsDB, err := stats.Open(dbPath, logBackend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init stats db: %v\n", err)
		os.Exit(1)
	}
	defer statsDB.Close()

	var (
		registry *lobby.Registry
		pinned   *dealsource.Pinned
	)
	if enableTestHooks {
		registry, pinned = lobby.NewWithTestHooks(logBackend)
		log.Warnf("test hooks enabled: /api/test/deck and /api/test/dealer are live, do not run this in production")
	} else {
		registry = lobby.New(logBackend)
	}
	jwtSecret, err := resolveJWTSecret(jwtSecretHex, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init auth secret: %v\n", err)
		os.Exit(1)
	}
	validator := auth.NewJWTValidator(jwtSecret)
	issuer := auth.NewIssuer(jwtSecret, 12*time.Hour)
	hub := transport.NewHub(registry, validator, logBackend, allowedOrigin, production)

	characters := newCharacterRegistry()
	searchOpts := ismcts.SearchOptions{Seed: seed, Iterations: iterations, Workers: workers}
	executor := aiexec.New(hubPublisher{hub: hub}, characters.CharacterFor, searchOpts, logBackend)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/debug/procstats", diag.NewHandler(logBackend))
	mux.HandleFunc("/api/games", apiGames(registry))
	mux.HandleFunc("/api/games/create", apiCreateGame(registry, statsDB, executor))
	mux.HandleFunc("GET /api/games/{gameId}", apiGetGame(registry))
	mux.HandleFunc("POST /api/games/{gameId}/ai", apiSeatAI(registry, characters))
	if enableTestHooks {
		mux.HandleFunc("POST /api/test/deck", apiTestDeck(pinned))
		mux.HandleFunc("POST /api/test/dealer", apiTestDealer(pinned))
		mux.HandleFunc("POST /api/test/token", apiTestToken(issuer))
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to listen: %v\n", err)
		os.Exit(1)
	}

	if portFile != "" {
		_, p, _ := net.SplitHostPort(lis.Addr().String())
		_ = os.WriteFile(portFile, []byte(p), 0600)
	}

	log.Infof("buckeuchresrv listening on %s", lis.Addr().String())
	if err := http.Serve(lis, mux); err != nil {
		fmt.Fprintf(os.Stderr, "http serve error: %v\n", err)
		os.Exit(1)
	}
}

func apiGames(registry *lobby.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(registry.GetGames())
	}
}

type createGameRequest struct {
	HostID      string `json:"hostId"`
	DisplayName string `json:"displayName"`
}

type createGameResponse struct {
	GameID string `json:"gameId"`
}

// apiCreateGame is the one place a table is born, so it is the one
// place that wires a fresh table into the AI executor and the
// statistics sink — every other seating path (JOIN_GAME, SeatAI)
// reuses the same *table.Table instance these hooks were already
// attached to.
func apiCreateGame(registry *lobby.Registry, statsDB *stats.DB, executor *aiexec.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, apperr.Validation("MALFORMED_REQUEST", "could not parse request body"))
			return
		}
		t, err := registry.CreateGame(req.HostID, req.DisplayName)
		if err != nil {
			writeErr(w, err)
			return
		}
		executor.Attach(t.ID, t)
		t.OnGameOver = func(gs *euchre.GameState) {
			statsDB.RecordAsync(stats.ResultFromState(t.ID, gs, gs.UpdatedAtMs))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(createGameResponse{GameID: t.ID})
	}
}

// apiGetGame returns the §6.1 public (fully-redacted, no hands) snapshot
// of one game, for a caller who isn't necessarily seated.
func apiGetGame(registry *lobby.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := r.PathValue("gameId")
		t, ok := registry.GetTable(gameID)
		if !ok {
			writeErr(w, apperr.NotFound("GAME_NOT_FOUND", "no such game"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(t.Snapshot(-1))
	}
}

type seatAIRequest struct {
	Difficulty string `json:"difficulty"`
}

// apiSeatAI fills the next free seat with an AI player and records the
// difficulty it should play with for every future search the executor
// runs for that seat.
func apiSeatAI(registry *lobby.Registry, characters *characterRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := r.PathValue("gameId")
		var req seatAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, apperr.Validation("MALFORMED_REQUEST", "could not parse request body"))
			return
		}
		aiID := fmt.Sprintf("ai_%s_%d", gameID, time.Now().UnixNano())
		character := difficultyCharacter(req.Difficulty)
		position, err := registry.SeatAI(gameID, aiID, "AI ("+req.Difficulty+")", func(pos int) {
			characters.set(gameID, pos, character)
		})
		if err != nil {
			writeErr(w, err)
			return
		}

		t, _ := registry.GetTable(gameID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(t.Snapshot(-1))
	}
}

type testDeckRequest struct {
	Deck []cards.Card `json:"deck"`
}

// apiTestDeck pins the next round's deal across every game this server
// creates, a dev-only determinism hook (§6.1, §9).
func apiTestDeck(pinned *dealsource.Pinned) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testDeckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, apperr.Validation("MALFORMED_REQUEST", "could not parse request body"))
			return
		}
		if err := pinned.SetNextDeck(req.Deck); err != nil {
			writeErr(w, apperr.Validation("INVALID_DECK", err.Error()))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type testDealerRequest struct {
	Position *int `json:"position"`
}

// apiTestDealer pins the round-1 dealer seat, the companion dev-only
// determinism hook to apiTestDeck.
func apiTestDealer(pinned *dealsource.Pinned) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testDealerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, apperr.Validation("MALFORMED_REQUEST", "could not parse request body"))
			return
		}
		pinned.SetDealer(req.Position)
		w.WriteHeader(http.StatusNoContent)
	}
}

type testTokenRequest struct {
	PlayerID string `json:"playerId"`
}

type testTokenResponse struct {
	Token string `json:"token"`
}

// apiTestToken mints a websocket bearer token for playerId, a dev-only
// convenience so a local client (or buckeuchrectl) can complete the
// §4.5 handshake without a separate login service. Guarded behind
// -enable-test-hooks exactly like apiTestDeck/apiTestDealer.
func apiTestToken(issuer *auth.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
			writeErr(w, apperr.Validation("MALFORMED_REQUEST", "playerId is required"))
			return
		}
		token, err := issuer.Mint(req.PlayerID)
		if err != nil {
			writeErr(w, apperr.Fatal("TOKEN_MINT_FAILED", err.Error()))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(testTokenResponse{Token: token})
	}
}

// resolveJWTSecret decodes an operator-supplied hex secret, or
// generates and logs a random one for local dev; a fresh secret each
// run means tokens don't survive a restart, acceptable since §1 scopes
// credential issuance itself out of this module.
func resolveJWTSecret(hexSecret string, log slog.Logger) ([]byte, error) {
	if hexSecret != "" {
		return hex.DecodeString(hexSecret)
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	log.Warnf("no -jwt-secret given: generated an ephemeral one for this run only (%s)", hex.EncodeToString(secret))
	return secret, nil
}

func writeErr(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !apperr.As(err, &ae) {
		ae = apperr.Validation("UNKNOWN_ERROR", err.Error())
	}
	w.WriteHeader(ae.Category.HTTPStatus())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"code": ae.Code, "message": ae.Message})
}
