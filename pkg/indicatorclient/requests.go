package indicatorclient

import (
	"strings"
	"time"
)

// DateLayout is the date format the service accepts for start and end dates.
const DateLayout = "2006-01-02"

// CalculateRequest asks for a synchronous calculation. A nil UseCache means true.
type CalculateRequest struct {
	Symbol     string
	Indicators []string
	StartDate  string
	EndDate    string
	UseCache   *bool
}

// AsyncCalculateRequest submits a calculation task. Parameters is forwarded
// as-is and omitted from the request when empty.
type AsyncCalculateRequest struct {
	Symbol     string
	Indicators []string
	StartDate  string
	EndDate    string
	Parameters map[string]any
}

// BatchRequest calculates the same indicators for several symbols.
type BatchRequest struct {
	Symbols    []string
	Indicators []string
	StartDate  string
	EndDate    string
}

// ValidateRequest checks whether one indicator can be computed for a range.
type ValidateRequest struct {
	Symbol    string
	Indicator string
	StartDate string
	EndDate   string
}

// Bool returns a pointer to v, for optional request fields.
func Bool(v bool) *bool { return &v }

type calculateBody struct {
	Symbol     string   `json:"symbol"`
	Indicators []string `json:"indicators"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	UseCache   bool     `json:"use_cache"`
}

type asyncCalculateBody struct {
	Symbol     string         `json:"symbol"`
	Indicators []string       `json:"indicators"`
	StartDate  string         `json:"start_date"`
	EndDate    string         `json:"end_date"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type validateBody struct {
	Symbol    string `json:"symbol"`
	Indicator string `json:"indicator"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (r CalculateRequest) body() (calculateBody, error) {
	if err := checkSelection(r.Symbol, r.Indicators, r.StartDate, r.EndDate); err != nil {
		return calculateBody{}, err
	}
	useCache := true
	if r.UseCache != nil {
		useCache = *r.UseCache
	}
	return calculateBody{
		Symbol:     r.Symbol,
		Indicators: r.Indicators,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		UseCache:   useCache,
	}, nil
}

func (r AsyncCalculateRequest) body() (asyncCalculateBody, error) {
	if err := checkSelection(r.Symbol, r.Indicators, r.StartDate, r.EndDate); err != nil {
		return asyncCalculateBody{}, err
	}
	return asyncCalculateBody{
		Symbol:     r.Symbol,
		Indicators: r.Indicators,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		Parameters: r.Parameters,
	}, nil
}

func (r ValidateRequest) body() (validateBody, error) {
	if strings.TrimSpace(r.Indicator) == "" {
		return validateBody{}, invalidArgument("indicator is required")
	}
	if err := checkSelection(r.Symbol, []string{r.Indicator}, r.StartDate, r.EndDate); err != nil {
		return validateBody{}, err
	}
	return validateBody{
		Symbol:    r.Symbol,
		Indicator: r.Indicator,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
	}, nil
}

func (r BatchRequest) query() (params, error) {
	if len(r.Symbols) == 0 {
		return nil, invalidArgument("at least one symbol is required")
	}
	for i, s := range r.Symbols {
		if strings.TrimSpace(s) == "" {
			return nil, invalidArgument("symbols[%d] is empty", i)
		}
	}
	if err := checkIndicators(r.Indicators); err != nil {
		return nil, err
	}
	if err := checkDateRange(r.StartDate, r.EndDate); err != nil {
		return nil, err
	}

	var q params
	q = q.add("symbols", strings.Join(r.Symbols, ","))
	q = q.add("indicators", strings.Join(r.Indicators, ","))
	q = q.add("start_date", r.StartDate)
	q = q.add("end_date", r.EndDate)
	return q, nil
}

func checkSelection(symbol string, indicators []string, start, end string) error {
	if strings.TrimSpace(symbol) == "" {
		return invalidArgument("symbol is required")
	}
	if err := checkIndicators(indicators); err != nil {
		return err
	}
	return checkDateRange(start, end)
}

func checkIndicators(indicators []string) error {
	if len(indicators) == 0 {
		return invalidArgument("at least one indicator is required")
	}
	for i, name := range indicators {
		if strings.TrimSpace(name) == "" {
			return invalidArgument("indicators[%d] is empty", i)
		}
	}
	return nil
}

func checkDateRange(start, end string) error {
	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return invalidArgument("start date %q is not %s", start, DateLayout)
	}
	to, err := time.Parse(DateLayout, end)
	if err != nil {
		return invalidArgument("end date %q is not %s", end, DateLayout)
	}
	if from.After(to) {
		return invalidArgument("start date %s is after end date %s", start, end)
	}
	return nil
}
