// Package api is the REST and websocket gateway in front of the
// matching engine. REST carries requests and point-in-time reads; the
// websocket feed streams every event the engine emits.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"bourse/pkg/engine"
	"bourse/pkg/matching"
	"bourse/pkg/orderbook"
	"bourse/pkg/protocol"
	"bourse/pkg/store"
	"bourse/pkg/util"
)

// Server exposes the engine over HTTP.
type Server struct {
	log    *zap.SugaredLogger
	engine *engine.Engine
	store  *store.Store
	clock  util.Clock
	router *mux.Router
	hub    *Hub
}

func NewServer(log *zap.SugaredLogger, eng *engine.Engine, st *store.Store, clock util.Clock) *Server {
	s := &Server{
		log:    log,
		engine: eng,
		store:  st,
		clock:  clock,
		router: mux.NewRouter(),
		hub:    NewHub(log),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order entry
	api.HandleFunc("/orders", s.handleEnterOrder).Methods("POST")
	api.HandleFunc("/orders/delete", s.handleDeleteOrder).Methods("POST")

	// Security endpoints
	api.HandleFunc("/securities", s.handleListSecurities).Methods("GET")
	api.HandleFunc("/securities/{isin}", s.handleGetSecurity).Methods("GET")
	api.HandleFunc("/securities/{isin}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/securities/{isin}/opening", s.handleGetOpening).Methods("GET")
	api.HandleFunc("/securities/{isin}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/securities/{isin}/state", s.handleChangeState).Methods("POST")

	// Ledger endpoints
	api.HandleFunc("/brokers/{id:[0-9]+}", s.handleGetBroker).Methods("GET")
	api.HandleFunc("/shareholders/{id:[0-9]+}", s.handleGetShareholder).Methods("GET")

	// WebSocket event feed
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub, the event feed and the HTTP listener. Blocks
// until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	go s.runEventFeed()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := c.Handler(s.router)

	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, handler)
}

// runEventFeed relays engine events to websocket channels: everything
// goes to "events", trade records also to "trades:{isin}".
func (s *Server) runEventFeed() {
	events := s.engine.Subscribe(1024)
	for ev := range events {
		frame := WSEvent{Channel: "events", Kind: ev.Kind(), Data: ev}
		s.hub.BroadcastToChannel("events", frame)
		if rec, ok := ev.(protocol.TradeRecord); ok {
			ch := "trades:" + rec.Security
			s.hub.BroadcastToChannel(ch, WSEvent{Channel: ch, Kind: ev.Kind(), Data: ev})
		}
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleEnterOrder(w http.ResponseWriter, r *http.Request) {
	var req EnterOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	entryType, ok := parseEntryType(req.Type)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid type", "expected NEW or UPDATE")
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid side", "expected BUY or SELL")
		return
	}
	if req.Quantity <= 0 || req.Price <= 0 {
		respondError(w, http.StatusBadRequest, "invalid order", "quantity and price must be positive")
		return
	}
	if req.PeakSize > 0 && req.StopPrice > 0 {
		respondError(w, http.StatusBadRequest, "invalid order", "iceberg and stop-limit are mutually exclusive")
		return
	}
	if req.StopPrice > 0 && req.MinExecQty > 0 {
		respondError(w, http.StatusBadRequest, "invalid order", "stop-limit cannot carry a minimum execution quantity")
		return
	}

	events := s.engine.EnterOrder(protocol.EnterOrder{
		RequestID:     req.RequestID,
		Security:      req.Security,
		OrderID:       req.OrderID,
		Type:          entryType,
		Side:          side,
		Quantity:      req.Quantity,
		Price:         req.Price,
		BrokerID:      req.BrokerID,
		ShareholderID: req.ShareholderID,
		PeakSize:      req.PeakSize,
		MinExecQty:    req.MinExecQty,
		StopPrice:     req.StopPrice,
		EntryTime:     s.clock.Now(),
	})
	respondJSON(w, envelopes(events))
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	var req DeleteOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid side", "expected BUY or SELL")
		return
	}

	events := s.engine.DeleteOrder(protocol.DeleteOrder{
		RequestID: req.RequestID,
		Security:  req.Security,
		Side:      side,
		OrderID:   req.OrderID,
	})
	respondJSON(w, envelopes(events))
}

func (s *Server) handleChangeState(w http.ResponseWriter, r *http.Request) {
	isin := mux.Vars(r)["isin"]

	var req ChangeStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	target, ok := parseState(req.Target)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid target", "expected CONTINUOUS or AUCTION")
		return
	}
	if _, found := s.engine.Security(isin); !found {
		respondError(w, http.StatusNotFound, "security not found", isin)
		return
	}

	events := s.engine.ChangeMatchingState(protocol.ChangeMatchingState{
		Security: isin,
		Target:   target,
	})
	respondJSON(w, envelopes(events))
}

func (s *Server) handleListSecurities(w http.ResponseWriter, r *http.Request) {
	securities := s.engine.Securities()
	response := make([]SecurityInfo, len(securities))
	for i, sec := range securities {
		response[i] = securityInfo(sec)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetSecurity(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.engine.Security(mux.Vars(r)["isin"])
	if !ok {
		respondError(w, http.StatusNotFound, "security not found", "")
		return
	}
	respondJSON(w, securityInfo(sec))
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.engine.Security(mux.Vars(r)["isin"])
	if !ok {
		respondError(w, http.StatusNotFound, "security not found", "")
		return
	}

	book := sec.Book()
	response := BookSnapshot{
		Security:  sec.ISIN,
		State:     sec.State().String(),
		Bids:      bookEntries(book.BuyOrders()),
		Asks:      bookEntries(book.SellOrders()),
		Timestamp: time.Now().UnixMilli(),
	}
	respondJSON(w, response)
}

func (s *Server) handleGetOpening(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.engine.Security(mux.Vars(r)["isin"])
	if !ok {
		respondError(w, http.StatusNotFound, "security not found", "")
		return
	}
	opening := sec.IndicativeOpening()
	respondJSON(w, OpeningInfo{
		Security:         sec.ISIN,
		Price:            opening.Price,
		TradableQuantity: opening.TradableQuantity,
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	isin := mux.Vars(r)["isin"]
	if _, ok := s.engine.Security(isin); !ok {
		respondError(w, http.StatusNotFound, "security not found", "")
		return
	}

	trades, err := s.store.Trades(isin, 100)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "trade history unavailable", err.Error())
		return
	}
	if trades == nil {
		trades = []protocol.TradeRecord{}
	}
	respondJSON(w, trades)
}

func (s *Server) handleGetBroker(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid broker id", "")
		return
	}
	b, ok := s.engine.Broker(id)
	if !ok {
		respondError(w, http.StatusNotFound, "broker not found", "")
		return
	}
	respondJSON(w, BrokerInfo{ID: b.ID, Name: b.Name, Credit: b.Credit()})
}

func (s *Server) handleGetShareholder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid shareholder id", "")
		return
	}
	sh, ok := s.engine.Shareholder(id)
	if !ok {
		respondError(w, http.StatusNotFound, "shareholder not found", "")
		return
	}
	respondJSON(w, ShareholderInfo{ID: sh.ID, Name: sh.Name, Positions: sh.Positions()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func securityInfo(sec *matching.Security) SecurityInfo {
	return SecurityInfo{
		ISIN:           sec.ISIN,
		Symbol:         sec.Symbol,
		State:          sec.State().String(),
		LastTradePrice: sec.LastTradePrice(),
	}
}

func bookEntries(orders []*orderbook.Order) []BookEntry {
	out := make([]BookEntry, len(orders))
	for i, o := range orders {
		out[i] = BookEntry{OrderID: o.ID, Quantity: o.VisibleQuantity(), Price: o.Price}
	}
	return out
}

func envelopes(events []protocol.Event) EventsResponse {
	out := EventsResponse{Events: make([]EventEnvelope, len(events))}
	for i, ev := range events {
		out.Events[i] = EventEnvelope{Kind: ev.Kind(), Data: ev}
	}
	return out
}

func parseEntryType(s string) (protocol.EntryType, bool) {
	switch s {
	case "NEW":
		return protocol.EntryNew, true
	case "UPDATE":
		return protocol.EntryUpdate, true
	}
	return 0, false
}

func parseSide(s string) (orderbook.Side, bool) {
	switch s {
	case "BUY":
		return orderbook.Buy, true
	case "SELL":
		return orderbook.Sell, true
	}
	return 0, false
}

func parseState(s string) (protocol.MatchingState, bool) {
	switch s {
	case "CONTINUOUS":
		return protocol.Continuous, true
	case "AUCTION":
		return protocol.Auction, true
	}
	return 0, false
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: detail})
}
