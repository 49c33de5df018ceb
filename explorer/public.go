package explorer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/nao1215/dataexplorer/domain/model"
)

const (
	opPublicData    = "explorer.LoadPublicData"
	defaultCovidURL = "https://disease.sh/v3/covid-19/countries"
	covidTopN       = 10
	maxFetchRetries = 2
)

// Public data sources.
const (
	SourceCovid   = "covid"
	SourceWeather = "weather"
	SourceStocks  = "stocks"
)

// PublicSources lists the accepted public data sources.
func PublicSources() []string {
	return []string{SourceCovid, SourceWeather, SourceStocks}
}

// PublicDataResponse is the outcome of loading a public data set.
type PublicDataResponse struct {
	Envelope
	Source    string   `json:"source" msgpack:"source"`
	TableName string   `json:"table_name" msgpack:"table_name"`
	RowCount  int      `json:"row_count" msgpack:"row_count"`
	Columns   []string `json:"columns" msgpack:"columns"`
	Message   string   `json:"message" msgpack:"message"`
}

// LoadPublicData fetches a public data set and stores it as public_<source>.
func (e *Explorer) LoadPublicData(ctx context.Context, source string) (*PublicDataResponse, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	fail := func(err error) (*PublicDataResponse, error) {
		return &PublicDataResponse{Envelope: failed(err), Source: source, Columns: []string{}}, err
	}

	var (
		columns []string
		rows    []model.Record
		err     error
	)
	switch source {
	case SourceCovid:
		columns = []string{"country", "cases", "deaths", "recovered", "active"}
		rows, err = e.fetchCovid(ctx)
		if err != nil {
			return fail(model.E(opPublicData, model.KindOther, fmt.Errorf("failed to fetch COVID data: %w", err)))
		}
	case SourceWeather:
		columns, rows = weatherColumns, weatherSample
	case SourceStocks:
		columns, rows = stocksColumns, stocksSample
	default:
		return fail(model.ES(opPublicData, model.KindInvalidArgument,
			"unsupported data source %q, expected one of %s", source, strings.Join(PublicSources(), ", ")))
	}

	tbl, err := recordsToTable(columns, rows)
	if err != nil {
		return fail(err)
	}
	res, err := e.store.CreateOrReplace(ctx, "public_"+source, tbl)
	if err != nil {
		return fail(err)
	}

	zerolog.Ctx(ctx).Info().Str("source", source).Str("table", res.TableName).Int("rows", res.RowCount).Msg("public data stored")
	return &PublicDataResponse{
		Envelope:  ok(),
		Source:    source,
		TableName: res.TableName,
		RowCount:  res.RowCount,
		Columns:   tbl.ColumnNames(),
		Message:   fmt.Sprintf("%s data fetched successfully", source),
	}, nil
}

func recordsToTable(columns []string, rows []model.Record) (*model.Table, error) {
	cols := lo.Map(columns, func(name string, _ int) model.Column {
		values := lo.Map(rows, func(r model.Record, _ int) any { return r[name] })
		return model.ColumnFromValues(name, values)
	})
	return model.NewTable(cols...)
}

type covidCountry struct {
	Country   string `json:"country"`
	Cases     int64  `json:"cases"`
	Deaths    int64  `json:"deaths"`
	Recovered int64  `json:"recovered"`
	Active    int64  `json:"active"`
}

// fetchCovid returns the countries with the most cases.
func (e *Explorer) fetchCovid(ctx context.Context) ([]model.Record, error) {
	var countries []covidCountry
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.covidURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := e.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("API returned status code: %d", resp.StatusCode)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return err
			}
			return backoff.Permanent(err)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &countries); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}

	sort.SliceStable(countries, func(i, j int) bool { return countries[i].Cases > countries[j].Cases })
	top := lo.Slice(countries, 0, covidTopN)
	return lo.Map(top, func(c covidCountry, _ int) model.Record {
		return model.Record{
			"country":   c.Country,
			"cases":     c.Cases,
			"deaths":    c.Deaths,
			"recovered": c.Recovered,
			"active":    c.Active,
		}
	}), nil
}

var (
	weatherColumns = []string{"city", "temperature", "humidity", "condition"}
	weatherSample  = []model.Record{
		{"city": "New York", "temperature": 22, "humidity": 65, "condition": "Sunny"},
		{"city": "London", "temperature": 15, "humidity": 80, "condition": "Cloudy"},
		{"city": "Tokyo", "temperature": 25, "humidity": 70, "condition": "Rainy"},
		{"city": "Sydney", "temperature": 18, "humidity": 75, "condition": "Partly Cloudy"},
		{"city": "Paris", "temperature": 20, "humidity": 60, "condition": "Clear"},
	}

	stocksColumns = []string{"symbol", "price", "change", "volume"}
	stocksSample  = []model.Record{
		{"symbol": "AAPL", "price": 150.25, "change": 2.5, "volume": 1000000},
		{"symbol": "GOOGL", "price": 2750.80, "change": -15.20, "volume": 500000},
		{"symbol": "MSFT", "price": 320.45, "change": 8.75, "volume": 750000},
		{"symbol": "AMZN", "price": 3400.00, "change": 25.50, "volume": 800000},
		{"symbol": "TSLA", "price": 750.30, "change": -12.80, "volume": 1200000},
	}
)
