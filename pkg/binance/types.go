package binance

// TradeEvent represents a trade message from the Binance futures
// WebSocket stream (single-symbol "<symbol>@trade" subscription).
type TradeEvent struct {
	EventType string `json:"e"` // "trade" for trade executions
	EventTime int64  `json:"E"` // Event time (milliseconds since epoch)
	Symbol    string `json:"s"` // e.g., "BTCUSDT"
	TradeID   int64  `json:"t"` // Venue-assigned trade id
	Price     string `json:"p"` // Execution price as decimal string
	Quantity  string `json:"q"` // Executed quantity as decimal string
	TradeTime int64  `json:"T"` // Trade time (milliseconds since epoch)
	BuyerMkr  bool   `json:"m"` // True when the buyer is the maker
}

// RESTTrade represents one row of the /fapi/v1/trades response, used to
// backfill recent history before the stream settles.
type RESTTrade struct {
	ID       int64  `json:"id"`
	Price    string `json:"price"`
	Qty      string `json:"qty"`
	Time     int64  `json:"time"` // milliseconds since epoch
	IsBuyerM bool   `json:"isBuyerMaker"`
}

// ExchangeInfo is the trimmed /fapi/v1/exchangeInfo envelope used to
// validate tracked symbols at stream start.
type ExchangeInfo struct {
	Symbols []struct {
		Symbol string `json:"symbol"`
		Status string `json:"status"` // "TRADING" for active instruments
	} `json:"symbols"`
}
