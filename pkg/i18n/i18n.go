package i18n

import (
	"reflect"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting           string
	ConfigLoaded       string
	UsingDBPath        string
	ShuttingDown       string
	ConfigLoadFailed   string
	MissingCredentials string
	DBInitFailed       string
	DBMigrationsFailed string
	StateLoadFailed    string
	StateRestored      string
	APIServerError     string
	AnalyzerConfigUsed string
	TargetReached      string
	TargetHoldOnly     string
	BotStopped         string

	// Cycle
	CycleStarted      string
	CycleError        string
	BalanceFetched    string
	MaxPositionsHold  string
	ScanSkippedLocked string
	ScanSkippedListed string
	ScanSkippedOpen   string

	// Selector
	CatalogLoaded      string
	TickerFailed       string
	MarketDataFailed   string
	NotEnoughCandles   string
	DepthTooThin       string
	BadSymbol          string
	CandidatesSelected string
	NoCandidates       string

	// Signals
	IndicatorsFailed  string
	Blacklisted       string
	NoSignal          string
	SignalFound       string
	InvalidQuantity   string

	// Orders / positions
	OpeningPosition     string
	OpenFailed          string
	QuantityAdjusted    string
	QuantityBelowStep   string
	LeverageSetFailed   string
	ProtectiveSubmitted string
	ProtectiveFailed    string
	PositionRecorded    string
	PositionNotFound    string

	// Reconciler
	PositionReported   string
	PositionGone       string
	ProtectionMissing  string
	ThresholdReached   string
	CloseFailed        string
	PositionClosed     string
	HoldingPosition    string
	ReconcileError     string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
)

// English messages
var messagesEN = Messages{
	// System
	Starting:           "Starting futures trading loop...",
	ConfigLoaded:       "Config loaded (quote=%s timeframe=%s maxPositions=%d)",
	UsingDBPath:        "Using DB path: %s",
	ShuttingDown:       "Shutting down gracefully...",
	ConfigLoadFailed:   "Failed to load config: %v",
	MissingCredentials: "BINANCE_API_KEY / BINANCE_API_SECRET missing, cannot start",
	DBInitFailed:       "Failed to init database: %v",
	DBMigrationsFailed: "Failed to apply migrations: %v",
	StateLoadFailed:    "Failed to load state: %v",
	StateRestored:      "Restored %d tracked positions from DB",
	APIServerError:     "API server error: %v",
	AnalyzerConfigUsed: "Analyzer config: %s",
	TargetReached:      "Balance target %.2f reached, monitoring open positions only",
	TargetHoldOnly:     "%d positions still open, holding until flat",
	BotStopped:         "Balance target reached and no open positions, stopping",

	// Cycle
	CycleStarted:      "New cycle at %s",
	CycleError:        "Cycle error: %v (backing off %v)",
	BalanceFetched:    "Balance: %.2f %s",
	MaxPositionsHold:  "Max positions (%d) reached, reconcile only",
	ScanSkippedLocked: "%s is being processed, skipping",
	ScanSkippedListed: "%s is blacklisted, skipping",
	ScanSkippedOpen:   "%s already has an open position, skipping",

	// Selector
	CatalogLoaded:      "Catalog: %d active %s perpetuals",
	TickerFailed:       "Ticker unavailable for %s: %v",
	MarketDataFailed:   "Market data unavailable for %s: %v",
	NotEnoughCandles:   "Not enough candles for %s: %d",
	DepthTooThin:       "Order book too thin for %s: %.0f",
	BadSymbol:          "Malformed instrument id: %s",
	CandidatesSelected: "Selected %d candidates: %v",
	NoCandidates:       "No candidates this cycle",

	// Signals
	IndicatorsFailed: "Indicators unavailable for %s: %v",
	Blacklisted:      "Blacklisting %s: %v",
	NoSignal:         "No clear signal on %s",
	SignalFound:      "%s signal on %s (long=%.1f short=%.1f)",
	InvalidQuantity:  "Computed quantity invalid for %s: %f",

	// Orders / positions
	OpeningPosition:     "Opening %s %s @ %.6f qty %.6f lev %dx",
	OpenFailed:          "Open failed for %s: %v",
	QuantityAdjusted:    "Quantity for %s adjusted %.6f -> %.6f to meet min notional %.2f",
	QuantityBelowStep:   "Adjusted quantity %.8f below step %.8f for %s",
	LeverageSetFailed:   "Set leverage failed for %s: %v",
	ProtectiveSubmitted: "Protective orders placed for %s (tp=%.6f sl=%.6f)",
	ProtectiveFailed:    "Protective order failed for %s: %v",
	PositionRecorded:    "Recorded new position on %s",
	PositionNotFound:    "Exchange did not report a position on %s after open",

	// Reconciler
	PositionReported:  "Position %s: %.6f contracts, entry %.6f",
	PositionGone:      "Position %s closed on exchange, dropping from table",
	ProtectionMissing: "Protective order missing for %s, force closing",
	ThresholdReached:  "%s hit %s: PnL=%.4f ROI=%.2f%%",
	CloseFailed:       "Close failed for %s: %v",
	PositionClosed:    "Closed %s with reduce-only market %s",
	HoldingPosition:   "%s ROI %.2f%% - holding",
	ReconcileError:    "Reconcile error: %v",
}

// Chinese messages
var messagesZH = Messages{
	// System
	Starting:           "啟動合約交易循環...",
	ConfigLoaded:       "設定已載入（計價=%s 週期=%s 最大持倉=%d）",
	UsingDBPath:        "使用資料庫路徑：%s",
	ShuttingDown:       "正在優雅關閉...",
	ConfigLoadFailed:   "讀取設定失敗：%v",
	MissingCredentials: "缺少 BINANCE_API_KEY / BINANCE_API_SECRET，無法啟動",
	DBInitFailed:       "初始化資料庫失敗：%v",
	DBMigrationsFailed: "套用資料庫遷移失敗：%v",
	StateLoadFailed:    "載入狀態失敗：%v",
	StateRestored:      "已從資料庫還原 %d 筆追蹤持倉",
	APIServerError:     "API 伺服器錯誤：%v",
	AnalyzerConfigUsed: "分析器設定：%s",
	TargetReached:      "已達資金目標 %.2f，僅監控現有持倉",
	TargetHoldOnly:     "尚有 %d 筆持倉未平，持續監控",
	BotStopped:         "已達資金目標且無持倉，停止運行",

	// Cycle
	CycleStarted:      "新一輪循環：%s",
	CycleError:        "循環錯誤：%v（退避 %v）",
	BalanceFetched:    "餘額：%.2f %s",
	MaxPositionsHold:  "已達最大持倉數（%d），僅執行對帳",
	ScanSkippedLocked: "%s 處理中，跳過",
	ScanSkippedListed: "%s 已列入黑名單，跳過",
	ScanSkippedOpen:   "%s 已有持倉，跳過",

	// Selector
	CatalogLoaded:      "合約清單：%d 個活躍 %s 永續合約",
	TickerFailed:       "無法取得 %s 的行情：%v",
	MarketDataFailed:   "無法取得 %s 的市場資料：%v",
	NotEnoughCandles:   "%s K 線不足：%d",
	DepthTooThin:       "%s 訂單簿深度不足：%.0f",
	BadSymbol:          "不合法的合約代碼：%s",
	CandidatesSelected: "已選出 %d 個候選：%v",
	NoCandidates:       "本輪沒有候選合約",

	// Signals
	IndicatorsFailed: "無法取得 %s 的指標：%v",
	Blacklisted:      "將 %s 列入黑名單：%v",
	NoSignal:         "%s 無明確訊號",
	SignalFound:      "%s 訊號於 %s（多=%.1f 空=%.1f）",
	InvalidQuantity:  "%s 計算出的數量不合法：%f",

	// Orders / positions
	OpeningPosition:     "開倉 %s %s @ %.6f 數量 %.6f 槓桿 %dx",
	OpenFailed:          "%s 開倉失敗：%v",
	QuantityAdjusted:    "%s 數量由 %.6f 調整為 %.6f 以符合最小名目 %.2f",
	QuantityBelowStep:   "調整後數量 %.8f 低於最小跳動 %.8f（%s）",
	LeverageSetFailed:   "%s 設定槓桿失敗：%v",
	ProtectiveSubmitted: "已為 %s 掛上保護單（tp=%.6f sl=%.6f）",
	ProtectiveFailed:    "%s 保護單失敗：%v",
	PositionRecorded:    "已記錄 %s 的新持倉",
	PositionNotFound:    "開倉後交易所未回報 %s 的持倉",

	// Reconciler
	PositionReported:  "持倉 %s：%.6f 張，入場價 %.6f",
	PositionGone:      "%s 持倉已在交易所平掉，自表中移除",
	ProtectionMissing: "%s 缺少保護單，強制平倉",
	ThresholdReached:  "%s 觸及 %s：PnL=%.4f ROI=%.2f%%",
	CloseFailed:       "%s 平倉失敗：%v",
	PositionClosed:    "已平掉 %s（reduce-only 市價 %s）",
	HoldingPosition:   "%s ROI %.2f%% - 續抱",
	ReconcileError:    "對帳錯誤：%v",
}

func init() {
	messages = &messagesEN
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
	default:
		messages = &messagesEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns specific message by key dynamically using reflection
func Get(key string) string {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}
