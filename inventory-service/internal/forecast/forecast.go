// Package forecast projects monthly item demand and derives reorder
// parameters from it. Every function works on a demand series: one value per
// calendar month, oldest first.
package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// Forecast methods.
const (
	MethodMovingAverage        = "moving_average"
	MethodExponentialSmoothing = "exponential_smoothing"
	MethodSeasonal             = "seasonal"
)

// SeasonalMinMonths is the history a seasonal forecast needs.
const SeasonalMinMonths = 24

// Series is monthly demand starting at Start.
type Series struct {
	Start  time.Time
	Values []float64
}

// Month returns the first day of the i-th month of the series.
func (s Series) Month(i int) time.Time {
	return s.Start.AddDate(0, i, 0)
}

// Demand is one outbound quantity at a point in time.
type Demand struct {
	Quantity float64
	At       time.Time
}

// MonthlyDemand buckets demand into the calendar months [from, to).
func MonthlyDemand(demand []Demand, from, to time.Time) Series {
	from, to = utils.MonthStart(from), utils.MonthStart(to)
	months := utils.Window{Start: from, End: to}.Months()
	if months < 0 {
		months = 0
	}
	s := Series{Start: from, Values: make([]float64, months)}
	for _, d := range demand {
		at := d.At.UTC()
		if at.Before(from) || !at.Before(to) {
			continue
		}
		i := utils.Window{Start: from, End: utils.MonthStart(at)}.Months()
		s.Values[i] += d.Quantity
	}
	return s
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// Trend is the least-squares slope of values against their index.
func Trend(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	return (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
}

// Confidence scores fitted values against actuals: 100 minus the mean
// absolute error as a share of peak demand, clamped to 0..100.
func Confidence(actual, fitted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(fitted) {
		return 0
	}
	var errSum, peak float64
	for i, a := range actual {
		errSum += math.Abs(a - fitted[i])
		peak = math.Max(peak, a)
	}
	if peak == 0 {
		if errSum == 0 {
			return 100
		}
		return 0
	}
	return utils.Round(utils.Clamp(100-errSum/float64(len(actual))/peak*100, 0, 100), 2)
}

type Point struct {
	Month  time.Time `json:"month"`
	Demand float64   `json:"demand"`
}

type Result struct {
	Method     string    `json:"method"`
	History    []Point   `json:"history"`
	Forecast   []Point   `json:"forecast"`
	Confidence float64   `json:"confidence"`
	Trend      float64   `json:"trend,omitempty"`
	Seasonal   []float64 `json:"seasonalIndices,omitempty"`
}

func (s Series) points() []Point {
	out := make([]Point, len(s.Values))
	for i, v := range s.Values {
		out[i] = Point{Month: s.Month(i), Demand: utils.Round(v, 2)}
	}
	return out
}

func (s Series) ahead(periods int, at func(step int) float64) []Point {
	out := make([]Point, periods)
	for k := 1; k <= periods; k++ {
		out[k-1] = Point{Month: s.Month(len(s.Values) - 1 + k), Demand: utils.Round(math.Max(0, at(k)), 2)}
	}
	return out
}

// MovingAverage forecasts from the last window-month average, carried
// forward along the trend of the averages.
func MovingAverage(s Series, window, periods int) (*Result, error) {
	if window < 1 {
		return nil, apperr.Invalid("window must be at least 1")
	}
	if len(s.Values) < window {
		return nil, apperr.Unprocessable("moving average needs %d months of history, have %d", window, len(s.Values))
	}
	averages := make([]float64, 0, len(s.Values)-window+1)
	for i := window - 1; i < len(s.Values); i++ {
		averages = append(averages, mean(s.Values[i-window+1:i+1]))
	}
	last := averages[len(averages)-1]
	trend := Trend(averages)
	return &Result{
		Method:     MethodMovingAverage,
		History:    s.points(),
		Forecast:   s.ahead(periods, func(k int) float64 { return last + trend*float64(k) }),
		Confidence: Confidence(s.Values[window-1:], averages),
		Trend:      utils.Round(trend, 4),
	}, nil
}

// ExponentialSmoothing forecasts a flat line at the last smoothed level.
func ExponentialSmoothing(s Series, alpha float64, periods int) (*Result, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, apperr.Invalid("alpha must be in (0, 1]")
	}
	if len(s.Values) < 2 {
		return nil, apperr.Unprocessable("exponential smoothing needs 2 months of history, have %d", len(s.Values))
	}
	smoothed := make([]float64, len(s.Values))
	smoothed[0] = s.Values[0]
	for i := 1; i < len(s.Values); i++ {
		smoothed[i] = alpha*s.Values[i] + (1-alpha)*smoothed[i-1]
	}
	level := smoothed[len(smoothed)-1]
	return &Result{
		Method:     MethodExponentialSmoothing,
		History:    s.points(),
		Forecast:   s.ahead(periods, func(int) float64 { return level }),
		Confidence: Confidence(s.Values, smoothed),
	}, nil
}

// Seasonal scales the trend line by a per-calendar-month index: the month's
// average demand over the overall average.
func Seasonal(s Series, periods int) (*Result, error) {
	if len(s.Values) < SeasonalMinMonths {
		return nil, apperr.Unprocessable("seasonal forecast needs %d months of history, have %d", SeasonalMinMonths, len(s.Values))
	}
	var sums, counts [12]float64
	for i, v := range s.Values {
		m := s.Month(i).Month() - 1
		sums[m] += v
		counts[m]++
	}
	overall := mean(s.Values)
	indices := make([]float64, 12)
	for m := range indices {
		indices[m] = 1
		if counts[m] > 0 && overall > 0 {
			indices[m] = sums[m] / counts[m] / overall
		}
	}
	fitted := make([]float64, len(s.Values))
	for i := range s.Values {
		fitted[i] = overall * indices[s.Month(i).Month()-1]
	}

	last := s.Values[len(s.Values)-1]
	trend := Trend(s.Values)
	rounded := make([]float64, 12)
	for m, idx := range indices {
		rounded[m] = utils.Round(idx, 4)
	}
	return &Result{
		Method:  MethodSeasonal,
		History: s.points(),
		Forecast: s.ahead(periods, func(k int) float64 {
			return (last + trend*float64(k)) * indices[s.Month(len(s.Values)-1+k).Month()-1]
		}),
		Confidence: Confidence(s.Values, fitted),
		Trend:      utils.Round(trend, 4),
		Seasonal:   rounded,
	}, nil
}

// zScores maps supported service levels to their normal quantile.
var zScores = map[float64]float64{
	0.90:  1.28,
	0.95:  1.65,
	0.99:  2.33,
	0.999: 3.09,
}

// ZScore returns the quantile for the service level, 1.65 when unsupported.
func ZScore(serviceLevel float64) float64 {
	if z, ok := zScores[serviceLevel]; ok {
		return z
	}
	return zScores[0.95]
}

// HoldingCostRate is the yearly holding cost as a share of unit cost.
const HoldingCostRate = 0.2

type ReorderInput struct {
	Monthly        []float64
	LeadTimeDays   float64
	LeadTimeStdDev float64
	UnitCost       float64
	OrderingCost   float64
	ServiceLevel   float64
}

type ReorderPlan struct {
	ServiceLevel        float64 `json:"serviceLevel"`
	ZScore              float64 `json:"zScore"`
	AverageDailyDemand  float64 `json:"averageDailyDemand"`
	DailyDemandStdDev   float64 `json:"dailyDemandStdDev"`
	AnnualDemand        float64 `json:"annualDemand"`
	SafetyStock         float64 `json:"safetyStock"`
	ReorderPoint        float64 `json:"reorderPoint"`
	EconomicOrderQty    float64 `json:"economicOrderQuantity"`
	HoldingCostPerUnit  float64 `json:"holdingCostPerUnit"`
	OrdersPerYear       float64 `json:"ordersPerYear"`
	CurrentReorderPoint float64 `json:"currentReorderPoint"`
	CurrentReorderQty   float64 `json:"currentReorderQuantity"`
}

// Reorder derives safety stock, reorder point and economic order quantity.
// Daily demand is monthly demand over 30 days.
func Reorder(in ReorderInput) ReorderPlan {
	daily := make([]float64, len(in.Monthly))
	for i, m := range in.Monthly {
		daily[i] = m / 30
	}
	d := mean(daily)
	sd := stddev(daily)
	z := ZScore(in.ServiceLevel)
	lt := in.LeadTimeDays

	ss := z * math.Sqrt(lt*sd*sd+d*d*in.LeadTimeStdDev*in.LeadTimeStdDev)
	annual := 12 * mean(in.Monthly)
	h := HoldingCostRate * in.UnitCost
	var eoq, orders float64
	if h > 0 {
		eoq = math.Sqrt(2 * annual * in.OrderingCost / h)
	}
	if eoq > 0 {
		orders = annual / eoq
	}
	level := in.ServiceLevel
	if _, ok := zScores[level]; !ok {
		level = 0.95
	}
	return ReorderPlan{
		ServiceLevel:       level,
		ZScore:             z,
		AverageDailyDemand: utils.Round(d, 4),
		DailyDemandStdDev:  utils.Round(sd, 4),
		AnnualDemand:       utils.Round(annual, 2),
		SafetyStock:        utils.Round(ss, 2),
		ReorderPoint:       utils.Round(d*lt+ss, 2),
		EconomicOrderQty:   utils.Round(eoq, 2),
		HoldingCostPerUnit: utils.RoundMoney(h),
		OrdersPerYear:      utils.Round(orders, 2),
	}
}

// ABC classes.
const (
	ClassA = "A"
	ClassB = "B"
	ClassC = "C"
)

type Consumption struct {
	ItemID      string  `json:"itemId"`
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	AnnualUnits float64 `json:"annualUnits"`
	UnitCost    float64 `json:"unitCost"`
}

type ABCItem struct {
	Consumption
	AnnualValue     float64 `json:"annualValue"`
	SharePercent    float64 `json:"sharePercent"`
	CumulativeShare float64 `json:"cumulativeSharePercent"`
	Class           string  `json:"class"`
}

type ABCReport struct {
	Items      []ABCItem      `json:"items"`
	TotalValue float64        `json:"totalValue"`
	Counts     map[string]int `json:"counts"`
}

// ABC ranks items by annual consumption value. Items within the first 80% of
// cumulative value are A, up to 95% are B, the rest C. The top item is A
// whenever it has any value.
func ABC(items []Consumption) ABCReport {
	report := ABCReport{Items: make([]ABCItem, 0, len(items)), Counts: map[string]int{ClassA: 0, ClassB: 0, ClassC: 0}}
	for _, c := range items {
		report.Items = append(report.Items, ABCItem{Consumption: c, AnnualValue: c.AnnualUnits * c.UnitCost})
		report.TotalValue += c.AnnualUnits * c.UnitCost
	}
	sort.SliceStable(report.Items, func(i, j int) bool { return report.Items[i].AnnualValue > report.Items[j].AnnualValue })

	var cumulative float64
	for i := range report.Items {
		it := &report.Items[i]
		share := utils.SafeDiv(it.AnnualValue, report.TotalValue) * 100
		cumulative += share
		switch {
		case report.TotalValue > 0 && (cumulative <= 80+1e-9 || (i == 0 && it.AnnualValue > 0)):
			it.Class = ClassA
		case report.TotalValue > 0 && cumulative <= 95+1e-9:
			it.Class = ClassB
		default:
			it.Class = ClassC
		}
		it.AnnualValue = utils.RoundMoney(it.AnnualValue)
		it.SharePercent = utils.Round(share, 2)
		it.CumulativeShare = utils.Round(cumulative, 2)
		report.Counts[it.Class]++
	}
	report.TotalValue = utils.RoundMoney(report.TotalValue)
	return report
}

type Accuracy struct {
	Window   int     `json:"window"`
	Samples  int     `json:"samples"`
	MAE      float64 `json:"mae"`
	RMSE     float64 `json:"rmse"`
	MAPE     float64 `json:"mape"`
	Accuracy float64 `json:"accuracyPercent"`
}

// Backtest replays a one-step moving average over the series: each month is
// forecast from the window months before it.
func Backtest(s Series, window int) (*Accuracy, error) {
	if window < 1 {
		return nil, apperr.Invalid("window must be at least 1")
	}
	if len(s.Values) <= window {
		return nil, apperr.Unprocessable("backtest needs more than %d months of history, have %d", window, len(s.Values))
	}
	var absSum, sqSum, pctSum float64
	pctCount := 0
	samples := 0
	for i := window; i < len(s.Values); i++ {
		predicted := mean(s.Values[i-window : i])
		actual := s.Values[i]
		e := actual - predicted
		absSum += math.Abs(e)
		sqSum += e * e
		if actual != 0 {
			pctSum += math.Abs(e) / actual * 100
			pctCount++
		}
		samples++
	}
	a := &Accuracy{
		Window:  window,
		Samples: samples,
		MAE:     utils.Round(absSum/float64(samples), 2),
		RMSE:    utils.Round(math.Sqrt(sqSum/float64(samples)), 2),
	}
	if pctCount > 0 {
		a.MAPE = utils.Round(pctSum/float64(pctCount), 2)
	}
	a.Accuracy = utils.Round(math.Max(0, 100-a.MAPE), 2)
	return a, nil
}
