package catalogue

var defaultEntries = []Entry{
	{
		Type:   "SMA",
		Label:  "Simple Moving Average",
		Params: []ParamSpec{{Name: "period", Default: 20, Min: 2, Max: 500}},
		Color:  "#2962FF",
	},
	{
		Type:   "EMA",
		Label:  "Exponential Moving Average",
		Params: []ParamSpec{{Name: "period", Default: 9, Min: 2, Max: 500}},
		Color:  "#FF6D00",
	},
	{
		Type:   "WMA",
		Label:  "Weighted Moving Average",
		Params: []ParamSpec{{Name: "period", Default: 14, Min: 2, Max: 500}},
		Color:  "#AB47BC",
	},
	{
		Type:   "RSI",
		Label:  "Relative Strength Index",
		Params: []ParamSpec{{Name: "period", Default: 14, Min: 2, Max: 100}},
		Color:  "#7E57C2",
	},
	{
		Type:  "MACD",
		Label: "MACD",
		Params: []ParamSpec{
			{Name: "fast", Default: 12, Min: 2, Max: 100},
			{Name: "slow", Default: 26, Min: 3, Max: 200},
			{Name: "signal", Default: 9, Min: 2, Max: 50},
		},
		Color:      "#26A69A",
		Components: []string{"macd", "signal", "histogram"},
	},
	{
		Type:  "BOLL",
		Label: "Bollinger Bands",
		Params: []ParamSpec{
			{Name: "period", Default: 20, Min: 2, Max: 200},
			{Name: "stddev", Default: 2, Min: 0.5, Max: 5},
		},
		Color:      "#EF5350",
		Components: []string{"upper", "middle", "lower"},
	},
	{
		Type:   "ATR",
		Label:  "Average True Range",
		Params: []ParamSpec{{Name: "period", Default: 14, Min: 2, Max: 100}},
		Color:  "#8D6E63",
	},
	{
		Type:  "STOCH",
		Label: "Stochastic Oscillator",
		Params: []ParamSpec{
			{Name: "k", Default: 14, Min: 2, Max: 100},
			{Name: "d", Default: 3, Min: 1, Max: 50},
			{Name: "smooth", Default: 3, Min: 1, Max: 50},
		},
		Color:      "#FFCA28",
		Components: []string{"k", "d"},
	},
}
