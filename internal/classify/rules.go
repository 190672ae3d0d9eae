package classify

// DefaultRules returns the decision tables keyed by instrument id.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		// SCARED
		"assessment-1": {
			Input: InputPercentOfMax,
			Max:   82,
			SubscaleBands: []SubscaleBand{
				{Label: "High Anxiety", Min: map[string]float64{"panic": 18, "general": 13.5, "separation": 12, "social": 10.5, "school": 6}},
				{Label: "Possible Anxiety", Min: map[string]float64{"panic": 12, "general": 9, "separation": 8, "social": 7, "school": 4}},
			},
			SubscaleFloor: "Normal",
			Bands: []Band{
				{Label: "High Anxiety", Min: 51.7},
				{Label: "Possible Anxiety", Min: 30.5},
			},
			Floor: "Normal",
		},
		// Work-life balance; higher is worse.
		"assessment-2": {
			Bands: []Band{
				{Label: "Poor Balance", Min: 60},
				{Label: "Moderate Balance", Min: 45},
			},
			Floor: "Good Balance",
		},
		// HAM-A uses strict comparisons.
		"assessment-3": {
			Bands: []Band{
				{Label: "Severe", Min: 30, Exclusive: true},
				{Label: "Moderate-Severe", Min: 24, Exclusive: true},
				{Label: "Mild-Moderate", Min: 17, Exclusive: true},
			},
			Floor: "Mild",
		},
		// HDRS
		"assessment-4": {
			Bands: []Band{
				{Label: "Moderate-Severe", Min: 20},
				{Label: "Mild", Min: 8},
			},
			Floor: "Normal",
		},
		// CBCL
		"assessment-5": {
			Bands: []Band{
				{Label: "Severe", Min: 180},
				{Label: "Moderate", Min: 135},
				{Label: "Mild", Min: 68},
			},
			Floor: "Normal",
		},
		// IAT
		"assessment-6": {
			Bands: []Band{
				{Label: "Severe", Min: 80},
				{Label: "Moderate", Min: 50},
				{Label: "Mild", Min: 31},
			},
			Floor: "Normal",
		},
		// LSAS-SR
		"assessment-7": {
			SubscaleBands: []SubscaleBand{
				{Label: "Generalized SAD", Min: map[string]float64{"fear": 54, "avoidance": 54}},
				{Label: "SAD", Min: map[string]float64{"fear": 36, "avoidance": 36}},
			},
			SubscaleFloor: "Normal",
			Bands: []Band{
				{Label: "Generalized SAD", Min: 108},
				{Label: "SAD", Min: 72},
			},
			Floor: "Normal",
		},
		// 16PF
		"assessment-8": {
			Input: InputSten,
			Max:   370,
			Bands: []Band{
				{Label: "High", Min: 8},
				{Label: "Average-High", Min: 6},
				{Label: "Average-Low", Min: 4},
			},
			Floor: "Low",
		},
	}
}

// DefaultFallback bands a 0-100 score for instruments without a table.
func DefaultFallback() Rule {
	return Rule{
		Bands: []Band{
			{Label: "Excellent", Min: 85},
			{Label: "Good", Min: 70},
			{Label: "Needs Improvement", Min: 50},
		},
		Floor: "At Risk",
	}
}

// DefaultColors maps every label to its badge color.
func DefaultColors() map[string]string {
	return map[string]string{
		"Normal":            "green",
		"Mild":              "blue",
		"Mild-Moderate":     "yellow",
		"Moderate":          "orange",
		"Moderate-Severe":   "orange",
		"Severe":            "red",
		"Possible Anxiety":  "yellow",
		"High Anxiety":      "red",
		"SAD":               "orange",
		"Generalized SAD":   "red",
		"Good Balance":      "green",
		"Moderate Balance":  "yellow",
		"Poor Balance":      "red",
		"High":              "green",
		"Average-High":      "blue",
		"Average-Low":       "yellow",
		"Low":               "orange",
		"Excellent":         "green",
		"Good":              "blue",
		"Needs Improvement": "yellow",
		"At Risk":           "red",
	}
}
