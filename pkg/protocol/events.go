package protocol

// RejectReason codes a rejection back to the requesting member.
type RejectReason string

const (
	ReasonOrderIDNotFound          RejectReason = "ORDER_ID_NOT_FOUND"
	ReasonStopLimitOrderIDNotFound RejectReason = "STOP_LIMIT_ORDER_ID_NOT_FOUND"
	ReasonNotEnoughCredit          RejectReason = "NOT_ENOUGH_CREDIT"
	ReasonNotEnoughPositions       RejectReason = "NOT_ENOUGH_POSITIONS"
	ReasonNotMetMEQValue           RejectReason = "NOT_MET_MEQ_VALUE"
	ReasonStopLimitNotInAuction    RejectReason = "STOP_LIMIT_ORDER_IS_NOT_ALLOWED_IN_AUCTION"
	ReasonMEQNotInAuction          RejectReason = "MEQ_ORDER_IS_NOT_ALLOWED_IN_AUCTION"
	ReasonCannotChangeMEQ          RejectReason = "CANNOT_CHANGE_MEQ_ON_UPDATE"
	ReasonCannotChangeIceberg      RejectReason = "CANNOT_CHANGE_ICEBERG_ON_UPDATE"
	ReasonSecurityNotFound         RejectReason = "SECURITY_NOT_FOUND"
	ReasonEngineClosed             RejectReason = "ENGINE_CLOSED"
	ReasonBrokerNotFound           RejectReason = "BROKER_NOT_FOUND"
	ReasonShareholderNotFound      RejectReason = "SHAREHOLDER_NOT_FOUND"
)

// Event is anything the core hands to the external emitter. Kind tags
// the concrete type for wire encoding.
type Event interface {
	Kind() string
}

// TradeRecord is the per-trade settlement report.
type TradeRecord struct {
	ID          string `json:"id"`
	Security    string `json:"security"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	BuyOrderID  int64  `json:"buyOrderId"`
	SellOrderID int64  `json:"sellOrderId"`
}

func (TradeRecord) Kind() string { return "TradeRecord" }

type OrderAccepted struct {
	RequestID int64 `json:"requestId"`
	OrderID   int64 `json:"orderId"`
}

func (OrderAccepted) Kind() string { return "OrderAccepted" }

type OrderUpdated struct {
	RequestID int64 `json:"requestId"`
	OrderID   int64 `json:"orderId"`
}

func (OrderUpdated) Kind() string { return "OrderUpdated" }

type OrderDeleted struct {
	RequestID int64 `json:"requestId"`
	OrderID   int64 `json:"orderId"`
}

func (OrderDeleted) Kind() string { return "OrderDeleted" }

type OrderRejected struct {
	RequestID int64          `json:"requestId"`
	OrderID   int64          `json:"orderId"`
	Reasons   []RejectReason `json:"reasons"`
}

func (OrderRejected) Kind() string { return "OrderRejected" }

type OrderExecuted struct {
	RequestID int64         `json:"requestId"`
	OrderID   int64         `json:"orderId"`
	Trades    []TradeRecord `json:"trades"`
}

func (OrderExecuted) Kind() string { return "OrderExecuted" }

// OrderActivated reports a stop order whose trigger fired.
type OrderActivated struct {
	RequestID int64 `json:"requestId"`
	OrderID   int64 `json:"orderId"`
}

func (OrderActivated) Kind() string { return "OrderActivated" }

type SecurityStateChanged struct {
	Security string        `json:"security"`
	State    MatchingState `json:"state"`
}

func (SecurityStateChanged) Kind() string { return "SecurityStateChanged" }

// OpeningPrice reports the (indicative or executed) auction clearing
// price and the volume tradable at it.
type OpeningPrice struct {
	Security         string `json:"security"`
	Price            int64  `json:"price"`
	TradableQuantity int64  `json:"tradableQuantity"`
}

func (OpeningPrice) Kind() string { return "OpeningPrice" }
