package reporting

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the results workbook
const (
	SummarySheet = "Summary"
	TradesSheet  = "Trades"
	EquitySheet  = "Equity"
	AssetsSheet  = "Assets"
)

// ExcelSink writes results.xlsx into a directory
type ExcelSink struct {
	dir string
}

// NewExcelSink creates an Excel sink writing into dir
func NewExcelSink(dir string) *ExcelSink {
	return &ExcelSink{dir: dir}
}

func (s *ExcelSink) Name() string { return "excel" }

func (s *ExcelSink) Publish(_ context.Context, results *backtest.BacktestResults) error {
	if results == nil {
		return fmt.Errorf("excel: nil results")
	}
	return WriteResultsXLSX(results, filepath.Join(s.dir, WorkbookFile))
}

// WriteResultsXLSX writes the summary, trades, equity and per-asset sheets
func WriteResultsXLSX(results *backtest.BacktestResults, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	// Replace default sheet and create additional sheets
	if err := fx.SetSheetName(fx.GetSheetName(0), SummarySheet); err != nil {
		return err
	}
	for _, name := range []string{TradesSheet, EquitySheet, AssetsSheet} {
		if _, err := fx.NewSheet(name); err != nil {
			return err
		}
	}

	styles, err := createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := writeSummarySheet(fx, results, styles); err != nil {
		return err
	}
	if err := writeTradesSheet(fx, results, styles); err != nil {
		return err
	}
	if err := writeEquitySheet(fx, results, styles); err != nil {
		return err
	}
	if err := writeAssetsSheet(fx, results, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	thin := func(color string) []excelize.Border {
		return []excelize.Border{
			{Type: "left", Color: color, Style: 1},
			{Type: "right", Color: color, Style: 1},
			{Type: "top", Color: color, Style: 1},
			{Type: "bottom", Color: color, Style: 1},
		}
	}

	// Header style - Dark blue background with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thin("000000"),
	})
	if err != nil {
		return styles, err
	}

	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7, // $#,##0.00
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thin("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.PriceStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: strPtr("0.00000000"),
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		Border:       thin("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10, // 0.00%
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thin("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.RedPercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Font:      &excelize.Font{Color: "C00000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thin("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.GreenPercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Font:      &excelize.Font{Color: "008000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thin("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{
		Border: thin("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	// Section rows on the summary sheet
	styles.SummaryStyle, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    thin("000000"),
	})
	if err != nil {
		return styles, err
	}

	return styles, nil
}

func strPtr(s string) *string { return &s }

func writeHeader(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle); err != nil {
			return err
		}
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, Split: false, XSplit: 0, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// writeRow writes values starting at column A; colStyles[i] styles column i,
// falling back to the base style
func writeRow(fx *excelize.File, sheet string, row int, values []interface{}, colStyles map[int]int, styles ExcelStyles) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		style, ok := colStyles[i]
		if !ok {
			style = styles.BaseStyle
		}
		if err := fx.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func writeSummarySheet(fx *excelize.File, r *backtest.BacktestResults, styles ExcelStyles) error {
	const sheet = SummarySheet
	fx.SetColWidth(sheet, "A", "A", 26) // Metric
	fx.SetColWidth(sheet, "B", "B", 20) // Value
	fx.SetColWidth(sheet, "C", "C", 34) // Insight

	type line struct {
		label   string
		value   interface{}
		style   int
		insight string
	}
	section := func(title string) line { return line{label: title, style: -1} }

	cfg := r.Config
	lines := []line{
		section("RUN"),
		{label: "Assets", value: fmt.Sprintf("%v", r.Symbols), style: styles.BaseStyle},
		{label: "Start", value: r.StartTime.Format(timeLayout), style: styles.BaseStyle},
		{label: "End", value: r.EndTime.Format(timeLayout), style: styles.BaseStyle},
		{label: "Steps", value: r.Steps, style: styles.BaseStyle},
		section("PARAMETERS"),
		{label: "Gap Threshold", value: cfg.Strategy.GapThreshold, style: styles.PercentStyle},
		{label: "ATR Period", value: cfg.ATRPeriod, style: styles.BaseStyle},
		{label: "ATR Multiplier", value: cfg.Strategy.ATRMultiplier, style: styles.BaseStyle},
		{label: "ATR Smoothing", value: string(cfg.ATRSmoothing), style: styles.BaseStyle},
		{label: "Risk Fraction", value: cfg.RiskFraction, style: styles.PercentStyle},
		{label: "Commission", value: cfg.CommissionRate, style: styles.PercentStyle},
		{label: "Commission Mode", value: string(cfg.CommissionMode), style: styles.BaseStyle},
		{label: "Termination", value: string(cfg.Termination), style: styles.BaseStyle},
		section("PERFORMANCE"),
		{label: "Initial Balance", value: r.StartBalance, style: styles.CurrencyStyle},
		{label: "Final Equity", value: r.EndBalance, style: styles.CurrencyStyle},
		{label: "Final Cash", value: r.FinalCash, style: styles.CurrencyStyle},
		{label: "Commission Paid", value: r.TotalCommission, style: styles.CurrencyStyle},
		{label: "Total Return", value: r.TotalReturnPct / 100, style: signedPercentStyle(r.TotalReturnPct, styles)},
		{label: "Annualized Return", value: r.AnnualizedReturnPct / 100, style: signedPercentStyle(r.AnnualizedReturnPct, styles)},
		{label: "Max Drawdown", value: r.MaxDrawdownPct / 100, style: styles.RedPercentStyle, insight: drawdownInsight(r.MaxDrawdownPct)},
		{label: "Sharpe (per trade)", value: r.SharpeRatio, style: styles.BaseStyle, insight: sharpeInsight(r.SharpeRatio)},
		{label: "Profit Factor", value: formatRatio(r.ProfitFactor), style: styles.BaseStyle, insight: profitFactorInsight(r.ProfitFactor)},
		section("TRADES"),
		{label: "Closed Trades", value: r.TotalTrades, style: styles.BaseStyle},
		{label: "Winning Trades", value: r.WinningTrades, style: styles.BaseStyle},
		{label: "Losing Trades", value: r.LosingTrades, style: styles.BaseStyle},
		{label: "Win Rate", value: r.WinRate / 100, style: styles.PercentStyle},
		{label: "Open Positions", value: len(r.OpenPositions), style: styles.BaseStyle},
		{label: "Max Exposure", value: r.MaxExposure, style: styles.PercentStyle},
		{label: "Avg Exposure", value: r.AvgExposure, style: styles.PercentStyle},
	}
	cats := make([]string, 0, len(r.Skipped))
	for cat := range r.Skipped {
		cats = append(cats, string(cat))
	}
	sort.Strings(cats)
	for _, cat := range cats {
		lines = append(lines, line{label: "Skipped " + cat, value: r.Skipped[bterrors.ErrorCategory(cat)], style: styles.BaseStyle})
	}

	for i, l := range lines {
		row := i + 1
		a, _ := excelize.CoordinatesToCellName(1, row)
		b, _ := excelize.CoordinatesToCellName(2, row)
		c, _ := excelize.CoordinatesToCellName(3, row)
		if err := fx.SetCellValue(sheet, a, l.label); err != nil {
			return err
		}
		if l.style == -1 {
			if err := fx.SetCellStyle(sheet, a, c, styles.SummaryStyle); err != nil {
				return err
			}
			continue
		}
		fx.SetCellValue(sheet, b, l.value)
		fx.SetCellValue(sheet, c, l.insight)
		fx.SetCellStyle(sheet, a, a, styles.BaseStyle)
		fx.SetCellStyle(sheet, b, b, l.style)
		fx.SetCellStyle(sheet, c, c, styles.BaseStyle)
	}
	return nil
}

func writeTradesSheet(fx *excelize.File, r *backtest.BacktestResults, styles ExcelStyles) error {
	const sheet = TradesSheet
	fx.SetColWidth(sheet, "A", "A", 12) // Symbol
	fx.SetColWidth(sheet, "B", "C", 20) // Entry/Exit time
	fx.SetColWidth(sheet, "D", "E", 10) // Bars
	fx.SetColWidth(sheet, "F", "H", 16) // Prices, size
	fx.SetColWidth(sheet, "I", "K", 14) // Commission, PnL, return

	if err := writeHeader(fx, sheet, []string{
		"Symbol", "Entry Time", "Exit Time", "Entry Bar", "Exit Bar",
		"Entry Price", "Exit Price", "Size", "Commission", "PnL", "Return %",
	}, styles); err != nil {
		return err
	}

	for i, t := range r.Trades {
		ret := t.ReturnPct()
		colStyles := map[int]int{
			5:  styles.PriceStyle,
			6:  styles.PriceStyle,
			7:  styles.PriceStyle,
			8:  styles.CurrencyStyle,
			9:  styles.CurrencyStyle,
			10: signedPercentStyle(ret, styles),
		}
		values := []interface{}{
			t.Symbol,
			t.EntryTime.Format(timeLayout),
			t.ExitTime.Format(timeLayout),
			t.EntryIndex,
			t.ExitIndex,
			t.EntryPrice.InexactFloat64(),
			t.ExitPrice.InexactFloat64(),
			t.Size.InexactFloat64(),
			t.Commission.InexactFloat64(),
			t.PnL.InexactFloat64(),
			ret / 100,
		}
		if err := writeRow(fx, sheet, i+2, values, colStyles, styles); err != nil {
			return err
		}
	}
	return nil
}

func writeEquitySheet(fx *excelize.File, r *backtest.BacktestResults, styles ExcelStyles) error {
	const sheet = EquitySheet
	fx.SetColWidth(sheet, "A", "A", 8)
	fx.SetColWidth(sheet, "B", "B", 20)
	fx.SetColWidth(sheet, "C", "F", 16)

	if err := writeHeader(fx, sheet, []string{"Step", "Timestamp", "Cash", "Holdings", "Equity", "Drawdown %"}, styles); err != nil {
		return err
	}

	colStyles := map[int]int{
		2: styles.CurrencyStyle,
		3: styles.CurrencyStyle,
		4: styles.CurrencyStyle,
		5: styles.RedPercentStyle,
	}
	peak := decimal.Zero
	for i, p := range r.EquityCurve {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
		}
		dd := 0.0
		if peak.IsPositive() {
			dd = peak.Sub(p.Equity).Div(peak).InexactFloat64()
		}
		values := []interface{}{
			p.Index,
			p.Timestamp.Format(timeLayout),
			p.Cash.InexactFloat64(),
			p.Holdings.InexactFloat64(),
			p.Equity.InexactFloat64(),
			dd,
		}
		if err := writeRow(fx, sheet, i+2, values, colStyles, styles); err != nil {
			return err
		}
	}
	return nil
}

// AssetStats aggregates closed trades of one asset
type AssetStats struct {
	Symbol     string
	Trades     int
	Wins       int
	PnL        decimal.Decimal
	Commission decimal.Decimal
	BestPct    float64
	WorstPct   float64
}

// StatsByAsset groups trades per symbol in the order symbols are listed
func StatsByAsset(r *backtest.BacktestResults) []AssetStats {
	idx := make(map[string]int, len(r.Symbols))
	out := make([]AssetStats, 0, len(r.Symbols))
	for _, s := range r.Symbols {
		idx[s] = len(out)
		out = append(out, AssetStats{Symbol: s, BestPct: math.Inf(-1), WorstPct: math.Inf(1)})
	}
	for _, t := range r.Trades {
		i, ok := idx[t.Symbol]
		if !ok {
			idx[t.Symbol] = len(out)
			i = len(out)
			out = append(out, AssetStats{Symbol: t.Symbol, BestPct: math.Inf(-1), WorstPct: math.Inf(1)})
		}
		st := &out[i]
		st.Trades++
		if t.PnL.IsPositive() {
			st.Wins++
		}
		st.PnL = st.PnL.Add(t.PnL)
		st.Commission = st.Commission.Add(t.Commission)
		ret := t.ReturnPct()
		st.BestPct = math.Max(st.BestPct, ret)
		st.WorstPct = math.Min(st.WorstPct, ret)
	}
	for i := range out {
		if out[i].Trades == 0 {
			out[i].BestPct, out[i].WorstPct = 0, 0
		}
	}
	return out
}

func writeAssetsSheet(fx *excelize.File, r *backtest.BacktestResults, styles ExcelStyles) error {
	const sheet = AssetsSheet
	fx.SetColWidth(sheet, "A", "A", 12)
	fx.SetColWidth(sheet, "B", "G", 14)

	if err := writeHeader(fx, sheet, []string{"Symbol", "Trades", "Win Rate", "PnL", "Commission", "Best %", "Worst %"}, styles); err != nil {
		return err
	}
	for i, st := range StatsByAsset(r) {
		winRate := 0.0
		if st.Trades > 0 {
			winRate = float64(st.Wins) / float64(st.Trades)
		}
		colStyles := map[int]int{
			2: styles.PercentStyle,
			3: styles.CurrencyStyle,
			4: styles.CurrencyStyle,
			5: styles.GreenPercentStyle,
			6: styles.RedPercentStyle,
		}
		values := []interface{}{
			st.Symbol,
			st.Trades,
			winRate,
			st.PnL.InexactFloat64(),
			st.Commission.InexactFloat64(),
			st.BestPct / 100,
			st.WorstPct / 100,
		}
		if err := writeRow(fx, sheet, i+2, values, colStyles, styles); err != nil {
			return err
		}
	}
	return nil
}

func signedPercentStyle(v float64, styles ExcelStyles) int {
	if v < 0 {
		return styles.RedPercentStyle
	}
	return styles.GreenPercentStyle
}

func profitFactorInsight(profitFactor float64) string {
	switch {
	case math.IsInf(profitFactor, 1):
		return "No losing trades"
	case profitFactor >= 2.0:
		return "🌟 Excellent profitability"
	case profitFactor >= 1.5:
		return "✅ Good performance"
	case profitFactor >= 1.2:
		return "👌 Acceptable"
	default:
		return "⚠️ Needs improvement"
	}
}

func sharpeInsight(sharpeRatio float64) string {
	switch {
	case sharpeRatio >= 1.5:
		return "🏆 Outstanding risk-adjusted returns"
	case sharpeRatio >= 1.0:
		return "✅ Good risk management"
	case sharpeRatio >= 0.5:
		return "👌 Moderate performance"
	default:
		return "⚠️ High risk relative to return"
	}
}

func drawdownInsight(drawdownPct float64) string {
	switch {
	case drawdownPct <= 10:
		return "✅ Shallow drawdown"
	case drawdownPct <= 25:
		return "👌 Moderate drawdown"
	default:
		return "⚠️ Deep drawdown"
	}
}
