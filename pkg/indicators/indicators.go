// Package indicators computes the technical series overlaid on charts.
// All functions are pure, operate on aligned float64 slices, and tolerate
// short history by emitting NaN instead of failing.
package indicators

import "math"

// MA returns the simple moving average of values over window. The first
// window-1 positions are NaN.
func MA(values []float64, window int) []float64 {
	return rollingMean(values, window, window)
}

// EWMASpan returns the exponentially weighted moving average with smoothing
// derived from a span: alpha = 2/(span+1). The recursion is seeded with the
// first value, so output[0] == values[0].
func EWMASpan(values []float64, span int) []float64 {
	if span <= 0 {
		return nil
	}
	return ewma(values, 2.0/float64(span+1))
}

// EWMAAlpha returns the exponentially weighted moving average with an
// explicit smoothing factor.
func EWMAAlpha(values []float64, alpha float64) []float64 {
	if alpha <= 0 || alpha > 1 {
		return nil
	}
	return ewma(values, alpha)
}

func ewma(values []float64, alpha float64) []float64 {
	result := make([]float64, len(values))
	for i, v := range values {
		if i == 0 {
			result[i] = v
			continue
		}
		prev := result[i-1]
		if math.IsNaN(v) {
			result[i] = prev
			continue
		}
		if math.IsNaN(prev) {
			result[i] = v
			continue
		}
		result[i] = (1-alpha)*prev + alpha*v
	}
	return result
}

// MACD returns the DIF, DEA and histogram series for a close series:
// DIF = EMA12 - EMA26, DEA = EMA9 of DIF, histogram = (DIF - DEA) * 2.
func MACD(closes []float64) (dif, dea, hist []float64) {
	if len(closes) == 0 {
		return nil, nil, nil
	}
	ema12 := EWMASpan(closes, 12)
	ema26 := EWMASpan(closes, 26)

	dif = make([]float64, len(closes))
	for i := range closes {
		dif[i] = ema12[i] - ema26[i]
	}
	dea = EWMASpan(dif, 9)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = (dif[i] - dea[i]) * 2
	}
	return dif, dea, hist
}

// KDJ returns the stochastic oscillator K/D/J series. RSV uses a shrinking
// lookback for the first n-1 bars and is forced to 50 whenever the window
// range is zero. J = 3K - 2D and may leave the [0,100] band.
func KDJ(closes, highs, lows []float64, n, m1, m2 int) (k, d, j []float64) {
	if len(closes) == 0 || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, nil, nil
	}
	if n <= 0 {
		n = 9
	}
	if m1 <= 0 {
		m1 = 3
	}
	if m2 <= 0 {
		m2 = 3
	}

	rsv := make([]float64, len(closes))
	for i := range closes {
		start := i - n + 1
		if start < 0 {
			start = 0
		}
		low := math.Inf(1)
		high := math.Inf(-1)
		for t := start; t <= i; t++ {
			low = math.Min(low, lows[t])
			high = math.Max(high, highs[t])
		}
		spread := high - low
		if spread == 0 || math.IsNaN(spread) {
			rsv[i] = 50
			continue
		}
		rsv[i] = (closes[i] - low) / spread * 100
	}

	k = EWMAAlpha(rsv, 1/float64(m1))
	d = EWMAAlpha(k, 1/float64(m2))
	j = make([]float64, len(closes))
	for i := range j {
		j[i] = 3*k[i] - 2*d[i]
	}
	return k, d, j
}

// RSI returns one series per requested period. Gains and losses are rolling
// means of the positive and negative close deltas; a zero average loss is
// left to IEEE division semantics (Inf/NaN) rather than special-cased.
func RSI(closes []float64, periods []int) map[int][]float64 {
	result := make(map[int][]float64, len(periods))
	if len(closes) == 0 {
		return result
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gains[i] = math.Max(delta, 0)
		losses[i] = math.Max(-delta, 0)
	}

	for _, period := range periods {
		if period <= 0 {
			continue
		}
		gain := rollingMean(gains, period, period)
		loss := rollingMean(losses, period, period)
		rsi := make([]float64, len(closes))
		for i := range closes {
			rs := gain[i] / loss[i]
			rsi[i] = 100 - 100/(1+rs)
		}
		result[period] = rsi
	}
	return result
}

// VolumeMA returns the rolling mean of volume for each period, with a
// shrinking window at the head so every bar has a value.
func VolumeMA(volumes []float64, periods []int) map[int][]float64 {
	result := make(map[int][]float64, len(periods))
	for _, period := range periods {
		if period <= 0 {
			continue
		}
		result[period] = rollingMean(volumes, period, 1)
	}
	return result
}

func rollingMean(values []float64, window, minPeriods int) []float64 {
	result := make([]float64, len(values))
	if window <= 0 {
		for i := range result {
			result[i] = math.NaN()
		}
		return result
	}
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		count := i - start + 1
		if count < minPeriods {
			result[i] = math.NaN()
			continue
		}
		sum := 0.0
		valid := true
		for t := start; t <= i; t++ {
			if math.IsNaN(values[t]) {
				valid = false
				break
			}
			sum += values[t]
		}
		if !valid {
			result[i] = math.NaN()
			continue
		}
		result[i] = sum / float64(count)
	}
	return result
}
